// Package client содержит HTTP клиент координатора: его используют
// узловые агенты, симулятор машин и инструменты заливки топологии.
package client

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
	"github.com/Ashtsssssh/DiMITO/pkg/domain"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

// Config конфигурация клиента координатора
type Config struct {
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryBackoff time.Duration
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "http://localhost:8080",
		Timeout:      30 * time.Second,
		MaxRetries:   3,
		RetryBackoff: 500 * time.Millisecond,
	}
}

// Coordinator HTTP клиент координатора
type Coordinator struct {
	cfg  *Config
	http *http.Client
}

// NewCoordinator создаёт клиента
func NewCoordinator(cfg *Config) *Coordinator {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 1
	}
	return &Coordinator{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
	}
}

// errorBody тело ошибки координатора
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

// CreateNode регистрирует перекрёсток
func (c *Coordinator) CreateNode(ctx context.Context, node *domain.Node) error {
	return c.postJSON(ctx, "/node/", node, nil)
}

// CreateEdge регистрирует участок дороги
func (c *Coordinator) CreateEdge(ctx context.Context, edge *domain.Edge) error {
	return c.postJSON(ctx, "/edge/", edge, nil)
}

// AddRoutingEntry вручную добавляет запись таблицы маршрутизации
func (c *Coordinator) AddRoutingEntry(ctx context.Context, from, dest, nextHop string, cost float64) error {
	body := map[string]any{
		"from_node": from,
		"dest_node": dest,
		"next_hop":  nextHop,
		"cost":      cost,
	}
	return c.postJSON(ctx, "/add_routing_entry/", body, nil)
}

// UpdateTraffic отправляет патч метрик ребра от имени узла
func (c *Coordinator) UpdateTraffic(ctx context.Context, edgeID, nodeID string, patch *domain.MetricsPatch) error {
	path := fmt.Sprintf("/edge/update/%s/%s/", edgeID, nodeID)
	return c.postJSON(ctx, path, map[string]any{"updates": patch}, nil)
}

// CalculateGreen отправляет снимки камер и получает расписание фаз.
// Имя части multipart формы — идентификатор ребра.
func (c *Coordinator) CalculateGreen(ctx context.Context, nodeID string, images map[string][]byte) (*domain.GreenTimesResponse, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for edgeID, img := range images {
		part, err := mw.CreateFormFile(edgeID, edgeID+".jpg")
		if err != nil {
			return nil, fmt.Errorf("failed to build multipart form: %w", err)
		}
		if _, err := part.Write(img); err != nil {
			return nil, fmt.Errorf("failed to write image part: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart form: %w", err)
	}

	path := fmt.Sprintf("/green/%s/", nodeID)
	var resp domain.GreenTimesResponse
	err := c.do(ctx, http.MethodPost, path, buf.Bytes(), mw.FormDataContentType(), &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetRoutingTable получает стохастическую таблицу узла
func (c *Coordinator) GetRoutingTable(ctx context.Context, nodeID string) (*domain.RoutingTableResponse, error) {
	path := fmt.Sprintf("/gettable/node/%s/", nodeID)
	var resp domain.RoutingTableResponse
	if err := c.do(ctx, http.MethodGet, path, nil, "", &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TriggerDVUpdate запускает одну итерацию distance-vector обмена
func (c *Coordinator) TriggerDVUpdate(ctx context.Context) (int, error) {
	var resp domain.DVUpdateResponse
	if err := c.postJSON(ctx, "/routing/dv-update/", nil, &resp); err != nil {
		return 0, err
	}
	return resp.UpdatesApplied, nil
}

// Health проверяет доступность координатора
func (c *Coordinator) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, "", nil)
}

func (c *Coordinator) postJSON(ctx context.Context, path string, body any, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
	}
	return c.do(ctx, http.MethodPost, path, payload, "application/json", out)
}

// do выполняет запрос с повторами. Повторяются только сетевые сбои
// и ответы 5xx: ошибка 4xx при повторе не исчезнет.
func (c *Coordinator) do(ctx context.Context, method, path string, body []byte, contentType string, out any) error {
	var lastErr error

	for attempt := 1; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 1 {
			backoff := time.Duration(attempt-1) * c.cfg.RetryBackoff
			logger.Log.Debug("Retrying coordinator request",
				"path", path,
				"attempt", attempt,
				"backoff", backoff,
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
		}

		var retryable bool
		lastErr, retryable = c.once(ctx, method, path, body, contentType, out)
		if lastErr == nil || !retryable {
			return lastErr
		}
	}

	return lastErr
}

func (c *Coordinator) once(ctx context.Context, method, path string, body []byte, contentType string, out any) (err error, retryable bool) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err), false
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeStoreFailure, "coordinator unreachable"), true
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeStoreFailure, "failed to read response"), true
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, data), resp.StatusCode >= http.StatusInternalServerError
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err), false
		}
	}
	return nil, false
}

func decodeError(status int, data []byte) error {
	var body errorBody
	if err := json.Unmarshal(data, &body); err == nil && body.Error != "" {
		code := apperror.ErrorCode(body.Code)
		if code == "" {
			code = codeForStatus(status)
		}
		appErr := apperror.New(code, body.Error)
		if body.Field != "" {
			appErr = appErr.WithField(body.Field)
		}
		return appErr
	}
	return apperror.New(codeForStatus(status), fmt.Sprintf("coordinator returned status %d", status))
}

func codeForStatus(status int) apperror.ErrorCode {
	switch status {
	case http.StatusNotFound:
		return apperror.CodeNotFound
	case http.StatusConflict:
		return apperror.CodeConflict
	case http.StatusBadGateway:
		return apperror.CodeDetectorFailure
	case http.StatusServiceUnavailable:
		return apperror.CodeStoreFailure
	default:
		if status >= http.StatusInternalServerError {
			return apperror.CodeInternal
		}
		return apperror.CodeBadRequest
	}
}
