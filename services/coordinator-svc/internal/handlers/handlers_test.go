package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashtsssssh/DiMITO/pkg/cache"
	"github.com/Ashtsssssh/DiMITO/pkg/config"
	"github.com/Ashtsssssh/DiMITO/pkg/domain"
	"github.com/Ashtsssssh/DiMITO/pkg/passhash"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/algorithms"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/detector"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/repository"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/service"
)

// stubDetector отдаёт фиксированный замер для любого кадра
type stubDetector struct {
	measurement detector.Measurement
}

func (d *stubDetector) Detect(_ context.Context, _ []byte, _ string) (*detector.Measurement, error) {
	m := d.measurement
	return &m, nil
}

func newTestHandlers(t *testing.T) (*Handlers, *repository.Repositories) {
	t.Helper()

	repos, err := repository.NewRepositories(context.Background(), &config.DatabaseConfig{Driver: "memory"})
	require.NoError(t, err)
	t.Cleanup(func() { repos.Close() })

	hash, err := passhash.HashPassword("correct horse")
	require.NoError(t, err)

	cfg := &config.Config{
		App: config.AppConfig{Name: "coordinator-svc", Version: "test"},
		Auth: config.AuthConfig{
			Enabled:           true,
			JWTSecret:         "test-secret",
			TokenTTL:          time.Hour,
			Issuer:            "dimito",
			AdminUser:         "admin",
			AdminPasswordHash: hash,
		},
		Report: config.ReportConfig{CompanyName: "Test Authority", MaxRowsPerTable: 50},
	}

	topo := service.NewTopologyService(repos)
	det := &stubDetector{measurement: detector.Measurement{
		VehicleCounts: map[string]int{"car": 4},
		QueueLengthM:  10,
		Density:       0.1,
		Pressure:      0.3,
	}}
	engine := algorithms.NewEngine(repos.Edges, repos.Routing, algorithms.DefaultDVParams())
	routingCache := cache.NewRoutingCache(cache.NewMemoryCache(nil), time.Minute)

	h := New(cfg, Services{
		Topology: topo,
		Green:    service.NewGreenService(repos, det, algorithms.DefaultGreenParams()),
		Routing:  service.NewRoutingService(repos, engine, algorithms.DefaultStochasticParams(), routingCache),
		Analysis: service.NewAnalysisService(repos),
		Report:   service.NewReportService(repos, algorithms.DefaultCostWeights(), &cfg.Report),
		Auth:     service.NewAuthService(&cfg.Auth),
	}, repos, nil)

	return h, repos
}

func doJSON(t *testing.T, h *Handlers, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst))
}

func seedGraph(t *testing.T, h *Handlers) {
	t.Helper()

	for _, id := range []string{"a", "b", "c"} {
		rec := doJSON(t, h, http.MethodPost, "/node/", map[string]any{
			"node_id": id, "name": "intersection " + id,
		})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
	for _, e := range []map[string]any{
		{"edge_id": "ab", "name": "a to b", "out_node_id": "a", "in_node_id": "b",
			"camera_id": "cam-ab", "road_length_m": 200.0, "road_width_m": 7.0},
		{"edge_id": "bc", "name": "b to c", "out_node_id": "b", "in_node_id": "c",
			"camera_id": "cam-bc", "road_length_m": 200.0, "road_width_m": 7.0},
	} {
		rec := doJSON(t, h, http.MethodPost, "/edge/", e)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	}
}

func TestAddNode(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := doJSON(t, h, http.MethodPost, "/node/", map[string]any{
		"node_id": "a", "name": "Central square",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp map[string]string
	decodeResponse(t, rec, &resp)
	assert.Equal(t, "a", resp["node_id"])
	assert.Equal(t, "Central square", resp["name"])

	// Дубликат
	rec = doJSON(t, h, http.MethodPost, "/node/", map[string]any{
		"node_id": "a", "name": "Central square",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Невалидный JSON
	req := httptest.NewRequest(http.MethodPost, "/node/", strings.NewReader("{not json"))
	raw := httptest.NewRecorder()
	h.Router().ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)

	var errResp errorResponse
	decodeResponse(t, raw, &errResp)
	assert.Equal(t, "BAD_REQUEST", errResp.Code)
}

func TestAddEdge(t *testing.T) {
	h, _ := newTestHandlers(t)
	seedGraph(t, h)

	rec := doJSON(t, h, http.MethodPost, "/edge/", map[string]any{
		"edge_id": "ghost-edge", "name": "to nowhere",
		"out_node_id": "a", "in_node_id": "ghost",
		"camera_id": "cam-x", "road_length_m": 100.0, "road_width_m": 7.0,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var errResp errorResponse
	decodeResponse(t, rec, &errResp)
	assert.Equal(t, "in_node_id", errResp.Field)
}

func TestUpdateTraffic(t *testing.T) {
	h, repos := newTestHandlers(t)
	seedGraph(t, h)

	rec := doJSON(t, h, http.MethodPost, "/edge/update/ab/a/", map[string]any{
		"updates": map[string]any{"queue_length_m": 25.0, "total_vehicles": 7},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]string
	decodeResponse(t, rec, &resp)
	assert.Equal(t, "ab", resp["edge_id"])
	assert.Equal(t, "a", resp["updated_for_node"])

	stored, err := repos.Edges.Get(context.Background(), "ab")
	require.NoError(t, err)
	assert.Equal(t, 7, stored.OutgoingTraffic.TotalVehicles)
	assert.Zero(t, stored.IncomingTraffic.TotalVehicles)

	// Узел, не являющийся концом ребра
	rec = doJSON(t, h, http.MethodPost, "/edge/update/ab/c/", map[string]any{
		"updates": map[string]any{"queue_length_m": 1.0},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Без объекта updates
	rec = doJSON(t, h, http.MethodPost, "/edge/update/ab/a/", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Неизвестное ребро
	rec = doJSON(t, h, http.MethodPost, "/edge/update/ghost/a/", map[string]any{
		"updates": map[string]any{"queue_length_m": 1.0},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func multipartBody(t *testing.T, parts map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()

	buf := &bytes.Buffer{}
	writer := multipart.NewWriter(buf)
	for name, data := range parts {
		fw, err := writer.CreateFormFile(name, name+".jpg")
		require.NoError(t, err)
		_, err = fw.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return buf, writer.FormDataContentType()
}

func TestCalculateGreen(t *testing.T) {
	h, _ := newTestHandlers(t)
	seedGraph(t, h)

	body, contentType := multipartBody(t, map[string][]byte{
		"ab": []byte("frame-ab"),
	})
	req := httptest.NewRequest(http.MethodPost, "/green/a/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp domain.GreenTimesResponse
	decodeResponse(t, rec, &resp)
	assert.Equal(t, "a", resp.NodeID)
	assert.Contains(t, resp.GreenTimes, "ab")
	assert.Equal(t, []string{"ab"}, resp.EdgesUsed)
}

func TestCalculateGreen_NoImages(t *testing.T) {
	h, _ := newTestHandlers(t)
	seedGraph(t, h)

	body, contentType := multipartBody(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/green/a/", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	h.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp domain.GreenTimesResponse
	decodeResponse(t, rec, &resp)
	assert.Empty(t, resp.GreenTimes)
}

func TestCalculateGreen_NotMultipart(t *testing.T) {
	h, _ := newTestHandlers(t)
	seedGraph(t, h)

	rec := doJSON(t, h, http.MethodPost, "/green/a/", map[string]any{"ab": "frame"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRoutingFlow(t *testing.T) {
	h, repos := newTestHandlers(t)
	seedGraph(t, h)

	// Итерация DV наполняет таблицы
	rec := doJSON(t, h, http.MethodPost, "/routing/dv-update/", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var dv domain.DVUpdateResponse
	decodeResponse(t, rec, &dv)
	assert.Greater(t, dv.UpdatesApplied, 0)

	rec = doJSON(t, h, http.MethodGet, "/gettable/node/a/", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var table domain.RoutingTableResponse
	decodeResponse(t, rec, &table)
	assert.Equal(t, "a", table.NodeID)
	assert.NotEmpty(t, table.RoutingTable)

	// Неизвестный узел
	rec = doJSON(t, h, http.MethodGet, "/gettable/node/ghost/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	// Деактивированный узел тоже 404
	require.NoError(t, repos.Nodes.SetActive(context.Background(), "a", false))
	rec = doJSON(t, h, http.MethodGet, "/gettable/node/a/", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAddRoutingEntry(t *testing.T) {
	h, _ := newTestHandlers(t)
	seedGraph(t, h)

	rec := doJSON(t, h, http.MethodPost, "/add_routing_entry/", map[string]any{
		"from_node": "a", "dest_node": "c", "next_hop": "b", "cost": 12.5,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var entry domain.RoutingEntry
	decodeResponse(t, rec, &entry)
	assert.Equal(t, "a", entry.FromNodeID)
	assert.Equal(t, "c", entry.DestinationNodeID)
	assert.Equal(t, "b", entry.NextHopNodeID)
	assert.InDelta(t, 12.5, entry.Cost, 1e-9)

	// Дубликат отклоняется
	rec = doJSON(t, h, http.MethodPost, "/add_routing_entry/", map[string]any{
		"from_node": "a", "dest_node": "c", "next_hop": "b", "cost": 12.5,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	// Отрицательная стоимость
	rec = doJSON(t, h, http.MethodPost, "/add_routing_entry/", map[string]any{
		"from_node": "a", "dest_node": "c", "next_hop": "b", "cost": -1.0,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalysisEndpoints(t *testing.T) {
	h, _ := newTestHandlers(t)
	seedGraph(t, h)

	rec := doJSON(t, h, http.MethodPost, "/edge/update/ab/a/", map[string]any{
		"updates": map[string]any{"pressure": 0.97, "queue_length_m": 190.0},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/analysis/congestion?threshold=0.8&top=5", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var report struct {
		Hotspots []struct {
			EdgeID string `json:"edge_id"`
		} `json:"hotspots"`
	}
	decodeResponse(t, rec, &report)
	require.NotEmpty(t, report.Hotspots)
	assert.Equal(t, "ab", report.Hotspots[0].EdgeID)

	rec = doJSON(t, h, http.MethodGet, "/analysis/congestion?threshold=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/analysis/statistics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		NodeCount int `json:"node_count"`
		EdgeCount int `json:"edge_count"`
	}
	decodeResponse(t, rec, &stats)
	assert.Equal(t, 3, stats.NodeCount)
	assert.Equal(t, 2, stats.EdgeCount)
}

func TestTrafficReport(t *testing.T) {
	h, _ := newTestHandlers(t)
	seedGraph(t, h)

	rec := doJSON(t, h, http.MethodGet, "/report/traffic?format=csv", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), ".csv")

	rec = doJSON(t, h, http.MethodGet, "/report/traffic?format=docx", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIssueToken(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := doJSON(t, h, http.MethodPost, "/auth/token", domain.TokenRequest{
		Username: "admin", Password: "correct horse",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp domain.TokenResponse
	decodeResponse(t, rec, &resp)
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(3600), resp.ExpiresIn)

	rec = doJSON(t, h, http.MethodPost, "/auth/token", domain.TokenRequest{
		Username: "admin", Password: "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSystemEndpoints(t *testing.T) {
	h, _ := newTestHandlers(t)

	rec := doJSON(t, h, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var health map[string]any
	decodeResponse(t, rec, &health)
	assert.Equal(t, "ok", health["status"])
	assert.Equal(t, "coordinator-svc", health["service"])

	rec = doJSON(t, h, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, h, http.MethodGet, "/openapi.json", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var spec map[string]any
	decodeResponse(t, rec, &spec)
	assert.Contains(t, spec, "openapi")
}

func TestMetricsPathLabel(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/edge/update/ab/a/", "/edge/update/"},
		{"/green/a/", "/green/"},
		{"/gettable/node/a/", "/gettable/node/"},
		{"/node/", "/node/"},
		{"/health", "/health"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, tt.path, nil)
		assert.Equal(t, tt.want, MetricsPathLabel(req), tt.path)
	}
}
