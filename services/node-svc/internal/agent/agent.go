// Package agent реализует узлового агента перекрёстка: планировщик
// зелёных фаз, TCP-ответчик для машин и локальный кэш таблицы
// маршрутизации координатора.
package agent

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ashtsssssh/DiMITO/pkg/config"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

// startupRetries попытки получить стартовую таблицу маршрутизации
const startupRetries = 10

// Agent связывает активности узла и управляет их жизненным циклом
type Agent struct {
	nodeID    string
	client    coordinatorAPI
	cache     *TableCache
	scheduler *Scheduler
	responder *Responder
}

// New собирает агента из конфигурации
func New(cfg *config.Config, client coordinatorAPI, rng func() float64) (*Agent, error) {
	if cfg.Node.NodeID == "" {
		return nil, fmt.Errorf("node_id is required")
	}

	cache := NewTableCache()
	camera := NewFileCamera(cfg.Node.Cameras)

	scheduler := NewScheduler(SchedulerConfig{
		NodeID:          cfg.Node.NodeID,
		Tick:            cfg.Node.TickInterval,
		RecomputeBefore: cfg.Node.RecomputeBefore,
	}, client, camera, cache)

	return &Agent{
		nodeID:    cfg.Node.NodeID,
		client:    client,
		cache:     cache,
		scheduler: scheduler,
		responder: NewResponder(cfg.Node.ListenAddr, cache, rng),
	}, nil
}

// Cache возвращает кэш таблицы маршрутизации
func (a *Agent) Cache() *TableCache {
	return a.cache
}

// Run получает стартовую таблицу и запускает активности.
// Возврат — после отмены контекста либо фатального сбоя активности.
func (a *Agent) Run(ctx context.Context) error {
	if err := a.bootstrapTable(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return a.scheduler.Run(ctx) })
	g.Go(func() error { return a.responder.Run(ctx) })
	return g.Wait()
}

// bootstrapTable тянет таблицу маршрутизации с линейным backoff.
// Координатор может подниматься дольше агента, поэтому ждём.
func (a *Agent) bootstrapTable(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= startupRetries; attempt++ {
		resp, err := a.client.GetRoutingTable(ctx, a.nodeID)
		if err == nil {
			a.cache.Replace(resp.RoutingTable)
			logger.Log.Info("Routing table loaded",
				"node_id", a.nodeID,
				"destinations", len(resp.RoutingTable),
			)
			return nil
		}

		lastErr = err
		backoff := time.Duration(attempt) * time.Second
		logger.Log.Warn("Routing table fetch failed, retrying",
			"node_id", a.nodeID,
			"attempt", attempt,
			"backoff", backoff,
			"error", err,
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("failed to load routing table after %d attempts: %w", startupRetries, lastErr)
}
