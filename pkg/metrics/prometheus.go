package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics глобальный контейнер метрик
type Metrics struct {
	// HTTP метрики
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Бизнес-метрики
	DVIterationsTotal   *prometheus.CounterVec
	DVIterationDuration *prometheus.HistogramVec
	DVUpdatesApplied    prometheus.Histogram
	RouteLookupsTotal   *prometheus.CounterVec
	GreenAllocations    *prometheus.CounterVec
	GreenPhaseSeconds   prometheus.Histogram
	EdgeQueueLength     *prometheus.GaugeVec
	EdgePressure        *prometheus.GaugeVec
	DetectorRequests    *prometheus.CounterVec
	TopologyNodes       prometheus.Gauge
	TopologyEdges       prometheus.Gauge

	// Системные метрики
	MemoryUsage *prometheus.GaugeVec
	Goroutines  prometheus.Gauge

	// Информация о сервисе
	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics инициализирует метрики
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		// HTTP метрики
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		// Бизнес-метрики
		DVIterationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dv_iterations_total",
				Help:      "Total number of distance-vector exchange iterations",
			},
			[]string{"status"},
		),

		DVIterationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dv_iteration_duration_seconds",
				Help:      "Duration of distance-vector exchange iterations",
				Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"trigger"},
		),

		DVUpdatesApplied: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "dv_updates_applied",
				Help:      "Number of routing entries written per iteration",
				Buckets:   []float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000},
			},
		),

		RouteLookupsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "route_lookups_total",
				Help:      "Total number of routing table lookups",
			},
			[]string{"status"},
		),

		GreenAllocations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "green_allocations_total",
				Help:      "Total number of green time allocations",
			},
			[]string{"status"},
		),

		GreenPhaseSeconds: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "green_phase_seconds",
				Help:      "Allocated green phase durations",
				Buckets:   []float64{8, 12, 16, 20, 24, 28, 32, 36, 40},
			},
		),

		EdgeQueueLength: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "edge_queue_length_meters",
				Help:      "Last observed queue length per edge",
			},
			[]string{"edge_id", "direction"},
		),

		EdgePressure: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "edge_pressure",
				Help:      "Last observed traffic pressure per edge",
			},
			[]string{"edge_id", "direction"},
		),

		DetectorRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "detector_requests_total",
				Help:      "Total number of vehicle detector invocations",
			},
			[]string{"driver", "status"},
		),

		TopologyNodes: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "topology_nodes",
				Help:      "Current number of registered intersections",
			},
		),

		TopologyEdges: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "topology_edges",
				Help:      "Current number of registered roads",
			},
		),

		// Системные метрики
		MemoryUsage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "memory_usage_bytes",
				Help:      "Current memory usage",
			},
			[]string{"type"},
		),

		Goroutines: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "goroutines",
				Help:      "Current number of goroutines",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service information",
			},
			[]string{"version", "environment"},
		),
	}

	defaultMetrics = m
	return m
}

// Get возвращает глобальные метрики
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("dimito", "")
	}
	return defaultMetrics
}

// RecordHTTPRequest записывает метрики HTTP запроса
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDVIteration записывает метрики DV-итерации
func (m *Metrics) RecordDVIteration(trigger string, success bool, duration time.Duration, updates int) {
	status := "success"
	if !success {
		status = "error"
	}

	m.DVIterationsTotal.WithLabelValues(status).Inc()
	m.DVIterationDuration.WithLabelValues(trigger).Observe(duration.Seconds())
	if success {
		m.DVUpdatesApplied.Observe(float64(updates))
	}
}

// RecordRouteLookup записывает результат поиска маршрута
func (m *Metrics) RecordRouteLookup(found bool) {
	status := "ok"
	if !found {
		status = "no_route"
	}
	m.RouteLookupsTotal.WithLabelValues(status).Inc()
}

// RecordGreenAllocation записывает метрики распределения зелёного времени
func (m *Metrics) RecordGreenAllocation(success bool, phases map[string]int) {
	status := "success"
	if !success {
		status = "error"
	}
	m.GreenAllocations.WithLabelValues(status).Inc()
	for _, seconds := range phases {
		m.GreenPhaseSeconds.Observe(float64(seconds))
	}
}

// RecordEdgeMetrics записывает последние наблюдения по ребру
func (m *Metrics) RecordEdgeMetrics(edgeID, direction string, queueLength, pressure float64) {
	m.EdgeQueueLength.WithLabelValues(edgeID, direction).Set(queueLength)
	m.EdgePressure.WithLabelValues(edgeID, direction).Set(pressure)
}

// RecordDetectorRequest записывает обращение к детектору
func (m *Metrics) RecordDetectorRequest(driver string, success bool) {
	status := "success"
	if !success {
		status = "error"
	}
	m.DetectorRequests.WithLabelValues(driver, status).Inc()
}

// SetTopologySize устанавливает текущий размер топологии
func (m *Metrics) SetTopologySize(nodes, edges int) {
	m.TopologyNodes.Set(float64(nodes))
	m.TopologyEdges.Set(float64(edges))
}

// SetServiceInfo устанавливает информацию о сервисе
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler возвращает HTTP handler для /metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer запускает HTTP сервер для метрик
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		// Игнорируем ошибку записи - response уже отправлен
		_, _ = w.Write([]byte("OK")) //nolint:errcheck // health endpoint, ошибка записи не критична
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
