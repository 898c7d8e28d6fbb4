package detector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/apperror"
	"github.com/Ashtsssssh/DiMITO/pkg/config"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

// HTTPDetector драйвер, отправляющий кадры внешнему сервису распознавания
type HTTPDetector struct {
	url      string
	client   *http.Client
	registry *ROIRegistry
}

// inferenceResponse ответ сервиса распознавания
type inferenceResponse struct {
	Detections []struct {
		Label      string  `json:"label"`
		Confidence float64 `json:"confidence"`
	} `json:"detections"`
}

// NewHTTPDetector создаёт HTTP-драйвер детектора
func NewHTTPDetector(cfg *config.DetectorConfig, registry *ROIRegistry) *HTTPDetector {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &HTTPDetector{
		url:      cfg.InferenceURL,
		client:   &http.Client{Timeout: timeout},
		registry: registry,
	}
}

func (d *HTTPDetector) Detect(ctx context.Context, image []byte, cameraID string) (*Measurement, error) {
	roi, err := d.registry.Lookup(cameraID)
	if err != nil {
		return nil, err
	}

	counts, err := d.infer(ctx, image, cameraID)
	if err != nil {
		return nil, err
	}

	measurement := deriveMeasurement(counts, roi)

	logger.Log.Debug("Frame processed",
		"camera_id", cameraID,
		"vehicles", measurement.Total(),
		"queue_length_m", measurement.QueueLengthM,
		"pressure", measurement.Pressure,
	)

	return measurement, nil
}

// infer отправляет кадр сервису распознавания и возвращает счётчики классов
func (d *HTTPDetector) infer(ctx context.Context, image []byte, cameraID string) (map[string]int, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("image", cameraID+".jpg")
	if err != nil {
		return nil, fmt.Errorf("failed to build inference request: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("failed to write image part: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize inference request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.url, &body)
	if err != nil {
		return nil, fmt.Errorf("failed to create inference request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeDetectorFailure, "inference service unreachable")
	}
	defer resp.Body.Close() //nolint:errcheck // read side

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512)) //nolint:errcheck // best effort diagnostics
		return nil, apperror.New(apperror.CodeDetectorFailure,
			fmt.Sprintf("inference service returned %d: %s", resp.StatusCode, payload))
	}

	var parsed inferenceResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeDetectorFailure, "malformed inference response")
	}

	counts := make(map[string]int)
	for _, det := range parsed.Detections {
		counts[det.Label]++
	}

	return counts, nil
}
