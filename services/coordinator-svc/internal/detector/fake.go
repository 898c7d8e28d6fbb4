package detector

import (
	"context"
	"hash/fnv"
)

// FakeDetector детерминированный драйвер для тестов и локальной разработки.
// Счётчики выводятся из хеша кадра и камеры: одинаковый вход всегда даёт
// одинаковые метрики.
type FakeDetector struct {
	registry *ROIRegistry
}

// NewFakeDetector создаёт фейковый драйвер
func NewFakeDetector(registry *ROIRegistry) *FakeDetector {
	return &FakeDetector{registry: registry}
}

func (d *FakeDetector) Detect(ctx context.Context, image []byte, cameraID string) (*Measurement, error) {
	roi, err := d.registry.Lookup(cameraID)
	if err != nil {
		return nil, err
	}

	h := fnv.New64a()
	h.Write([]byte(cameraID)) //nolint:errcheck // hash writes cannot fail
	h.Write(image)            //nolint:errcheck // hash writes cannot fail
	seed := h.Sum64()

	counts := map[string]int{
		"car":   int(seed % 12),
		"truck": int((seed >> 8) % 4),
		"bus":   int((seed >> 16) % 2),
	}

	return deriveMeasurement(counts, roi), nil
}
