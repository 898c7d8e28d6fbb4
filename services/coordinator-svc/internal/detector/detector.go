package detector

import (
	"context"
	"fmt"

	"github.com/Ashtsssssh/DiMITO/pkg/config"
)

// Measurement результат обработки одного кадра камеры
type Measurement struct {
	VehicleCounts map[string]int `json:"vehicle_counts"` // класс -> количество
	QueueLengthM  float64        `json:"queue_length_m"`
	Density       float64        `json:"density"`
	Pressure      float64        `json:"pressure"`
}

// Total возвращает суммарное число машин по всем классам
func (m *Measurement) Total() int {
	total := 0
	for _, count := range m.VehicleCounts {
		total += count
	}
	return total
}

// Detector контракт драйвера распознавания трафика
type Detector interface {
	Detect(ctx context.Context, image []byte, cameraID string) (*Measurement, error)
}

// DriverType тип драйвера детектора
type DriverType string

const (
	DriverTypeHTTP DriverType = "http"
	DriverTypeFake DriverType = "fake"
)

// New создаёт драйвер детектора по конфигурации
func New(cfg *config.DetectorConfig, registry *ROIRegistry) (Detector, error) {
	switch DriverType(cfg.Driver) {
	case DriverTypeHTTP, "":
		return NewHTTPDetector(cfg, registry), nil

	case DriverTypeFake:
		return NewFakeDetector(registry), nil

	default:
		return nil, fmt.Errorf("unsupported detector driver: %s", cfg.Driver)
	}
}
