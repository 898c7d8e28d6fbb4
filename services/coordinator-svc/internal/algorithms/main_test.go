package algorithms

import (
	"os"
	"testing"

	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init("error")
	os.Exit(m.Run())
}
