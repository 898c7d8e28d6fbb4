package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/Ashtsssssh/DiMITO/gen/openapi"
	"github.com/Ashtsssssh/DiMITO/pkg/audit"
	"github.com/Ashtsssssh/DiMITO/pkg/config"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
	"github.com/Ashtsssssh/DiMITO/pkg/metrics"
	"github.com/Ashtsssssh/DiMITO/pkg/middleware"
	"github.com/Ashtsssssh/DiMITO/pkg/ratelimit"
	"github.com/Ashtsssssh/DiMITO/pkg/swagger"
	"github.com/Ashtsssssh/DiMITO/pkg/telemetry"
)

// HTTPServer обёртка над http.Server: собирает цепочку middleware,
// поднимает сопутствующие серверы (метрики, swagger) и обеспечивает
// graceful shutdown по сигналу.
type HTTPServer struct {
	server      *http.Server
	serviceName string
	config      *config.Config
	telemetry   *telemetry.Provider
	rateLimiter ratelimit.Limiter
	auditLogger audit.Logger
}

// Options дополнительные опции сервера
type Options struct {
	RateLimiter ratelimit.Limiter
	AuditLogger audit.Logger
	// AuthValidator включает проверку Bearer токенов на ProtectedPaths
	AuthValidator middleware.TokenValidator
	// ProtectedPaths префиксы путей, требующие авторизации
	ProtectedPaths []string
	// MetricsPathLabel нормализует путь для меток Prometheus
	MetricsPathLabel func(r *http.Request) string
}

// New создаёт сервер с опциями по умолчанию
func New(cfg *config.Config, handler http.Handler) *HTTPServer {
	return NewWithOptions(cfg, handler, nil)
}

// NewWithOptions создаёт сервер с дополнительными опциями
func NewWithOptions(cfg *config.Config, handler http.Handler, opts *Options) *HTTPServer {
	if opts == nil {
		opts = &Options{}
	}

	rateLimiter := opts.RateLimiter
	if rateLimiter == nil && cfg.RateLimit.Enabled {
		var err error
		rateLimiter, err = ratelimit.New(&ratelimit.Config{
			Requests:        cfg.RateLimit.Requests,
			Window:          cfg.RateLimit.Window,
			Strategy:        cfg.RateLimit.Strategy,
			Backend:         cfg.RateLimit.Backend,
			BurstSize:       cfg.RateLimit.BurstSize,
			CleanupInterval: cfg.RateLimit.CleanupInterval,
			RedisAddr:       cfg.RateLimit.RedisAddr,
		})
		if err != nil {
			logger.Log.Warn("Failed to create rate limiter, continuing without it", "error", err)
			rateLimiter = nil
		} else {
			logger.Log.Info("Rate limiter initialized",
				"requests", cfg.RateLimit.Requests,
				"window", cfg.RateLimit.Window,
				"strategy", cfg.RateLimit.Strategy,
			)
		}
	}

	auditLogger := opts.AuditLogger
	if auditLogger == nil && cfg.Audit.Enabled {
		var err error
		auditLogger, err = audit.New(&audit.Config{
			Enabled:         cfg.Audit.Enabled,
			Backend:         cfg.Audit.Backend,
			FilePath:        cfg.Audit.FilePath,
			BufferSize:      cfg.Audit.BufferSize,
			FlushPeriod:     cfg.Audit.FlushPeriod,
			ExcludeMethods:  cfg.Audit.ExcludePaths,
			IncludeRequest:  cfg.Audit.IncludeRequest,
			IncludeResponse: cfg.Audit.IncludeResponse,
		})
		if err != nil {
			logger.Log.Warn("Failed to create audit logger, continuing without it", "error", err)
			auditLogger = nil
		} else {
			audit.SetGlobal(auditLogger)
			logger.Log.Info("Audit logger initialized", "backend", cfg.Audit.Backend)
		}
	}

	auditExclude := make(map[string]bool)
	for _, path := range cfg.Audit.ExcludePaths {
		auditExclude[path] = true
	}

	mws := []middleware.Middleware{
		middleware.Recovery(),
		middleware.RequestID(),
	}
	if cfg.Tracing.Enabled {
		mws = append(mws, telemetry.Middleware)
	}
	if rateLimiter != nil {
		mws = append(mws, middleware.RateLimit(rateLimiter, middleware.ClientIPKey))
	}
	if cfg.HTTP.CORS.Enabled {
		mws = append(mws, middleware.CORS(cfg.HTTP.CORS))
	}
	mws = append(mws, middleware.Metrics(opts.MetricsPathLabel))
	mws = append(mws, middleware.Logging())
	if opts.AuthValidator != nil && cfg.Auth.Enabled {
		mws = append(mws, middleware.Auth(&middleware.AuthConfig{
			Validator: opts.AuthValidator,
			Protected: opts.ProtectedPaths,
		}))
	}
	if auditLogger != nil {
		mws = append(mws, middleware.Audit(&middleware.AuditConfig{
			ServiceName:  cfg.App.Name,
			Logger:       auditLogger,
			ExcludePaths: auditExclude,
		}))
	}

	chained := middleware.Chain(handler, mws...)
	if cfg.HTTP.MaxBodyBytes > 0 {
		chained = limitBody(chained, cfg.HTTP.MaxBodyBytes)
	}

	// h2c: узловые агенты держат долгоживущие соединения без TLS
	h2s := &http2.Server{}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:      h2c.NewHandler(chained, h2s),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &HTTPServer{
		server:      srv,
		serviceName: cfg.App.Name,
		config:      cfg,
		rateLimiter: rateLimiter,
		auditLogger: auditLogger,
	}
}

func limitBody(next http.Handler, maxBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		next.ServeHTTP(w, r)
	})
}

// GetAuditLogger возвращает audit logger
func (s *HTTPServer) GetAuditLogger() audit.Logger {
	return s.auditLogger
}

// Run запускает сервер и блокируется до сигнала остановки
func (s *HTTPServer) Run() error {
	ctx := context.Background()

	if s.config.Tracing.Enabled {
		tp, err := telemetry.Init(ctx, telemetry.Config{
			Enabled:     s.config.Tracing.Enabled,
			Endpoint:    s.config.Tracing.Endpoint,
			ServiceName: s.config.Tracing.ServiceName,
			Version:     s.config.App.Version,
			Environment: s.config.App.Environment,
			SampleRate:  s.config.Tracing.SampleRate,
		})
		if err != nil {
			logger.Log.Warn("Failed to init telemetry", "error", err)
		} else {
			s.telemetry = tp
			logger.Log.Info("Telemetry initialized",
				"endpoint", s.config.Tracing.Endpoint,
				"sample_rate", s.config.Tracing.SampleRate,
			)
		}
	}

	if s.config.Metrics.Enabled {
		go func() {
			logger.Log.Info("Starting metrics server",
				"port", s.config.Metrics.Port,
				"path", s.config.Metrics.Path,
			)
			if err := metrics.StartMetricsServer(s.config.Metrics.Port); err != nil {
				logger.Log.Error("Metrics server failed", "error", err)
			}
		}()
	}

	if s.config.Swagger.Enabled {
		go func() {
			spec, err := openapi.GetSpec()
			if err != nil {
				logger.Log.Error("Failed to load OpenAPI spec", "error", err)
				return
			}

			swaggerCfg := &swagger.Config{
				Title:    s.config.Swagger.Title,
				BasePath: "/swagger",
			}

			server := swagger.NewServer(swaggerCfg, spec)
			if err := server.Start(s.config.Swagger.Port); err != nil {
				logger.Log.Error("Swagger server failed", "error", err)
			}
		}()
		logger.Log.Info("Swagger UI started", "port", s.config.Swagger.Port)
	}

	errCh := make(chan error, 1)

	go func() {
		logger.Log.Info("Starting HTTP server",
			"service", s.serviceName,
			"port", s.config.HTTP.Port,
			"environment", s.config.App.Environment,
			"version", s.config.App.Version,
		)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	if m := metrics.Get(); m != nil {
		m.SetServiceInfo(s.config.App.Version, s.config.App.Environment)
	}

	if s.auditLogger != nil {
		entry := audit.NewEntry().
			Service(s.serviceName).
			Method("server.Start").
			Action(audit.ActionCreate).
			Outcome(audit.OutcomeSuccess).
			Meta("port", s.config.HTTP.Port).
			Meta("version", s.config.App.Version).
			Meta("environment", s.config.App.Environment).
			Build()
		if err := s.auditLogger.Log(ctx, entry); err != nil {
			logger.Log.Warn("Failed to log audit entry", "error", err)
		}
	}

	return s.waitForShutdown(errCh)
}

func (s *HTTPServer) waitForShutdown(errCh chan error) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Log.Info("Received shutdown signal", "signal", sig)
	}

	if s.auditLogger != nil {
		entry := audit.NewEntry().
			Service(s.serviceName).
			Method("server.Shutdown").
			Action(audit.ActionUpdate).
			Outcome(audit.OutcomeSuccess).
			Meta("reason", "signal").
			Build()
		if err := s.auditLogger.Log(context.Background(), entry); err != nil {
			logger.Log.Warn("Failed to log audit entry", "error", err)
		}
	}

	timeout := s.config.HTTP.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logger.Log.Warn("Forcing server stop", "error", err)
		_ = s.server.Close()
	} else {
		logger.Log.Info("Server stopped gracefully")
	}

	if s.telemetry != nil {
		if err := s.telemetry.Shutdown(ctx); err != nil {
			logger.Log.Warn("Failed to shutdown telemetry", "error", err)
		}
	}

	if s.rateLimiter != nil {
		if err := s.rateLimiter.Close(); err != nil {
			logger.Log.Warn("Failed to close rate limiter", "error", err)
		}
	}

	if s.auditLogger != nil {
		if err := s.auditLogger.Close(); err != nil {
			logger.Log.Warn("Failed to close audit logger", "error", err)
		}
	}

	return nil
}

// Shutdown останавливает сервер программно
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
