package main

import (
	"context"

	"github.com/Ashtsssssh/DiMITO/pkg/cache"
	"github.com/Ashtsssssh/DiMITO/pkg/config"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
	"github.com/Ashtsssssh/DiMITO/pkg/server"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/algorithms"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/detector"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/handlers"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/live"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/repository"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/service"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.LoadWithServiceDefaults("coordinator-svc", 8080)
	if err != nil {
		logger.Init("error")
		logger.Fatal("Failed to load config", "error", err)
	}

	// Инициализируем логгер
	logger.InitWithConfig(logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})

	logger.Log.Info("Starting Coordinator Service",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Хранилище топологии и таблиц маршрутизации
	repos, err := repository.NewRepositories(ctx, &cfg.Database)
	if err != nil {
		logger.Fatal("Failed to initialize repositories", "error", err)
	}
	defer repos.Close()

	// Реестр зон интереса камер и детектор транспорта
	registry, err := detector.NewROIRegistry(cfg.Detector.ROIPath)
	if err != nil {
		logger.Fatal("Failed to load ROI registry", "error", err, "path", cfg.Detector.ROIPath)
	}
	defer registry.Close()

	if cfg.Detector.Watch {
		if err := registry.Watch(); err != nil {
			logger.Fatal("Failed to start ROI watcher", "error", err)
		}
	}

	det, err := detector.New(&cfg.Detector, registry)
	if err != nil {
		logger.Fatal("Failed to initialize detector", "error", err)
	}

	// Кэш таблиц маршрутизации
	baseCache, err := cache.New(cache.FromConfig(&cfg.Cache))
	if err != nil {
		logger.Fatal("Failed to initialize cache", "error", err)
	}
	defer baseCache.Close() //nolint:errcheck // shutdown path

	routingCache := cache.NewRoutingCache(baseCache, cfg.Cache.DefaultTTL)

	// DV-движок поверх хранилища
	engine := algorithms.NewEngine(repos.Edges, repos.Routing, dvParams(&cfg.Routing))

	// Сервисный слой
	authSvc := service.NewAuthService(&cfg.Auth)
	svcs := handlers.Services{
		Topology: service.NewTopologyService(repos),
		Green:    service.NewGreenService(repos, det, greenParams(&cfg.Green)),
		Routing:  service.NewRoutingService(repos, engine, stochasticParams(&cfg.Routing), routingCache),
		Analysis: service.NewAnalysisService(repos),
		Report:   service.NewReportService(repos, costWeights(&cfg.Routing), &cfg.Report),
		Auth:     authSvc,
	}

	// Трансляция событий панели наблюдения
	var hub *live.Hub
	if cfg.Live.Enabled {
		hub = live.NewHub()
		go hub.Run(ctx)
	}

	h := handlers.New(cfg, svcs, repos, hub)

	opts := &server.Options{
		MetricsPathLabel: handlers.MetricsPathLabel,
	}
	if cfg.Auth.Enabled {
		opts.AuthValidator = authSvc.Tokens()
		opts.ProtectedPaths = handlers.ProtectedPaths()
	}

	srv := server.NewWithOptions(cfg, h.Router(), opts)
	if err := srv.Run(); err != nil {
		logger.Fatal("Server failed", "error", err)
	}
}

// dvParams собирает параметры DV-движка; нулевые значения конфигурации
// заменяются значениями по умолчанию
func dvParams(cfg *config.RoutingConfig) algorithms.DVParams {
	p := algorithms.DefaultDVParams()
	if cfg.Alpha > 0 {
		p.Alpha = cfg.Alpha
	}
	if cfg.MaxInflation > 0 {
		p.MaxInflation = cfg.MaxInflation
	}
	p.Cost = costWeights(cfg)
	return p
}

func costWeights(cfg *config.RoutingConfig) algorithms.CostWeights {
	w := algorithms.DefaultCostWeights()
	if cfg.QueueWeight > 0 || cfg.PressureWeight > 0 || cfg.LengthWeight > 0 {
		w = algorithms.CostWeights{
			Queue:    cfg.QueueWeight,
			Pressure: cfg.PressureWeight,
			Length:   cfg.LengthWeight,
		}
	}
	return w
}

func stochasticParams(cfg *config.RoutingConfig) algorithms.StochasticParams {
	p := algorithms.DefaultStochasticParams()
	if cfg.Beta > 0 {
		p.Beta = cfg.Beta
	}
	if cfg.MaxCostRatio > 0 {
		p.MaxCostRatio = cfg.MaxCostRatio
	}
	return p
}

func greenParams(cfg *config.GreenConfig) algorithms.GreenParams {
	p := algorithms.DefaultGreenParams()
	if cfg.CycleTime > 0 {
		p.CycleTime = cfg.CycleTime
	}
	if cfg.MinGreen > 0 {
		p.MinGreen = cfg.MinGreen
	}
	if cfg.MaxGreen > 0 {
		p.MaxGreen = cfg.MaxGreen
	}
	if cfg.QueueWeight > 0 {
		p.QueueWeight = cfg.QueueWeight
	}
	if cfg.WaitWeight > 0 {
		p.WaitWeight = cfg.WaitWeight
	}
	if cfg.PressureWeight > 0 {
		p.PressureWeight = cfg.PressureWeight
	}
	if cfg.MaxWaitSeconds > 0 {
		p.MaxWaitSeconds = cfg.MaxWaitSeconds
	}
	return p
}
