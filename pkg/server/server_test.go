package server

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashtsssssh/DiMITO/pkg/config"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

func init() {
	logger.Init("error")
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.App.Name = "test-coordinator"
	cfg.App.Version = "0.0.0"
	cfg.App.Environment = "development"
	cfg.HTTP.Port = 0
	cfg.HTTP.ReadTimeout = 5 * time.Second
	cfg.HTTP.WriteTimeout = 5 * time.Second
	cfg.HTTP.ShutdownTimeout = time.Second
	return cfg
}

func TestNew_WiresMiddleware(t *testing.T) {
	cfg := testConfig()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("pong"))
	})

	srv := New(cfg, handler)
	require.NotNil(t, srv)

	rec := httptest.NewRecorder()
	srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	body, _ := io.ReadAll(rec.Body)
	assert.Equal(t, "pong", string(body))
}

func TestNew_RecoversPanics(t *testing.T) {
	cfg := testConfig()

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("handler exploded")
	})

	srv := New(cfg, handler)

	rec := httptest.NewRecorder()
	assert.NotPanics(t, func() {
		srv.server.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestNew_BodyLimit(t *testing.T) {
	cfg := testConfig()
	cfg.HTTP.MaxBodyBytes = 8

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			http.Error(w, err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	srv := New(cfg, handler)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/edge/", strings.NewReader("this payload is longer than eight bytes"))
	srv.server.Handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestShutdown(t *testing.T) {
	cfg := testConfig()
	srv := New(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	assert.NoError(t, srv.Shutdown(ctx))
}
