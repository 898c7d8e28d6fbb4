package main

import (
	"context"
	"math/rand/v2"
	"os/signal"
	"syscall"

	"github.com/Ashtsssssh/DiMITO/pkg/client"
	"github.com/Ashtsssssh/DiMITO/pkg/config"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
	"github.com/Ashtsssssh/DiMITO/pkg/metrics"
	"github.com/Ashtsssssh/DiMITO/services/node-svc/internal/agent"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.LoadWithServiceDefaults("node-svc", 9100)
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

	logger.Log.Info("Starting Node Agent",
		"node_id", cfg.Node.NodeID,
		"version", cfg.App.Version,
		"coordinator", cfg.Coordinator.BaseURL(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	coordinator := client.NewCoordinator(&client.Config{
		BaseURL:      cfg.Coordinator.BaseURL(),
		Timeout:      cfg.Coordinator.Timeout,
		MaxRetries:   cfg.Coordinator.MaxRetries,
		RetryBackoff: cfg.Coordinator.RetryBackoff,
	})

	a, err := agent.New(cfg, coordinator, rand.Float64)
	if err != nil {
		logger.Fatal("Failed to build agent", "error", err)
	}

	if cfg.Metrics.Enabled {
		metrics.Get().SetServiceInfo(cfg.App.Version, cfg.App.Environment)
		go func() {
			if err := metrics.StartMetricsServer(cfg.Metrics.Port); err != nil {
				logger.Log.Error("Metrics server failed", "error", err)
			}
		}()
	}

	if err := a.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Fatal("Agent failed", "error", err)
	}

	logger.Log.Info("Node agent stopped", "node_id", cfg.Node.NodeID)
}
