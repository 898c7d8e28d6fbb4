package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/Ashtsssssh/DiMITO/gen/openapi"
	"github.com/Ashtsssssh/DiMITO/pkg/apperror"
	"github.com/Ashtsssssh/DiMITO/pkg/config"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/live"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/repository"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/service"
)

// Handlers HTTP-обработчики координатора
type Handlers struct {
	cfg *config.Config

	topology *service.TopologyService
	green    *service.GreenService
	routing  *service.RoutingService
	analysis *service.AnalysisService
	report   *service.ReportService
	auth     *service.AuthService

	store *repository.Repositories
	hub   *live.Hub

	startedAt time.Time
}

// Services сервисы, которые обслуживают обработчики
type Services struct {
	Topology *service.TopologyService
	Green    *service.GreenService
	Routing  *service.RoutingService
	Analysis *service.AnalysisService
	Report   *service.ReportService
	Auth     *service.AuthService
}

// New создаёт обработчики координатора
func New(cfg *config.Config, svcs Services, store *repository.Repositories, hub *live.Hub) *Handlers {
	return &Handlers{
		cfg:       cfg,
		topology:  svcs.Topology,
		green:     svcs.Green,
		routing:   svcs.Routing,
		analysis:  svcs.Analysis,
		report:    svcs.Report,
		auth:      svcs.Auth,
		store:     store,
		hub:       hub,
		startedAt: time.Now(),
	}
}

// Router собирает маршруты координатора
func (h *Handlers) Router() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /node/{$}", h.AddNode)
	mux.HandleFunc("POST /edge/{$}", h.AddEdge)
	mux.HandleFunc("POST /edge/update/{edge_id}/{node_id}/{$}", h.UpdateTraffic)
	mux.HandleFunc("POST /green/{node_id}/{$}", h.CalculateGreen)
	mux.HandleFunc("GET /gettable/node/{node_id}/{$}", h.GetTable)
	mux.HandleFunc("POST /routing/dv-update/{$}", h.DVUpdate)
	mux.HandleFunc("POST /add_routing_entry/{$}", h.AddRoutingEntry)

	mux.HandleFunc("GET /analysis/congestion", h.Congestion)
	mux.HandleFunc("GET /analysis/statistics", h.Statistics)
	mux.HandleFunc("GET /report/traffic", h.TrafficReport)

	if h.auth != nil {
		mux.HandleFunc("POST /auth/token", h.IssueToken)
	}
	if h.hub != nil {
		mux.HandleFunc("GET /ws/traffic", h.hub.Handler())
	}

	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("GET /ready", h.Ready)
	mux.HandleFunc("GET /openapi.json", h.OpenAPISpec)

	return mux
}

// ProtectedPaths префиксы, требующие Bearer-токен при включённой аутентификации
func ProtectedPaths() []string {
	return []string{"/node/", "/edge/", "/add_routing_entry/"}
}

// MetricsPathLabel нормализует путь запроса для меток Prometheus,
// чтобы идентификаторы узлов и рёбер не раздували кардинальность
func MetricsPathLabel(r *http.Request) string {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/edge/update/"):
		return "/edge/update/"
	case strings.HasPrefix(path, "/green/"):
		return "/green/"
	case strings.HasPrefix(path, "/gettable/node/"):
		return "/gettable/node/"
	default:
		return path
	}
}

// Health отвечает, жив ли процесс координатора
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"service":        h.cfg.App.Name,
		"version":        h.cfg.App.Version,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	})
}

// Ready отвечает, готов ли координатор принимать трафик: пингует хранилище
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	if err := h.store.HealthCheck(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"ready": false,
			"store": err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ready": true})
}

// OpenAPISpec отдаёт встроенную OpenAPI-спецификацию
func (h *Handlers) OpenAPISpec(w http.ResponseWriter, r *http.Request) {
	spec, err := openapi.GetSpec()
	if err != nil {
		writeError(w, apperror.Wrap(err, apperror.CodeInternal, "failed to load OpenAPI spec"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(spec) //nolint:errcheck // клиент мог уйти
}

// errorResponse формат ошибки, отдаваемый наружу
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
	Field string `json:"field,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Log.Warn("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	appErr := apperror.FromError(err)
	writeJSON(w, appErr.HTTPStatus(), errorResponse{
		Error: appErr.Message,
		Code:  string(appErr.Code),
		Field: appErr.Field,
	})
}

func decodeBody(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperror.Wrap(err, apperror.CodeBadRequest, "malformed JSON body")
	}
	return nil
}
