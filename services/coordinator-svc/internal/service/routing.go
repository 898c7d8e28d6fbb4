package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/apperror"
	"github.com/Ashtsssssh/DiMITO/pkg/cache"
	"github.com/Ashtsssssh/DiMITO/pkg/domain"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
	"github.com/Ashtsssssh/DiMITO/pkg/metrics"
	"github.com/Ashtsssssh/DiMITO/pkg/telemetry"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/algorithms"
	"github.com/Ashtsssssh/DiMITO/services/coordinator-svc/internal/repository"
)

// RoutingService маршрутизация: DV-обмен, стохастические таблицы,
// ручные маршрутные записи
type RoutingService struct {
	nodes   repository.NodeRepository
	routing repository.RoutingRepository
	engine  *algorithms.Engine
	stoch   algorithms.StochasticParams
	cache   *cache.RoutingCache

	// Одна DV-итерация на координатор: параллельный запуск отклоняется
	dvMu sync.Mutex
}

// NewRoutingService создаёт сервис маршрутизации
func NewRoutingService(repos *repository.Repositories, engine *algorithms.Engine, stoch algorithms.StochasticParams, routingCache *cache.RoutingCache) *RoutingService {
	return &RoutingService{
		nodes:   repos.Nodes,
		routing: repos.Routing,
		engine:  engine,
		stoch:   stoch,
		cache:   routingCache,
	}
}

// GetTable строит стохастическую таблицу маршрутизации узла.
// Неизвестный или выключенный узел таблицы не имеет.
func (s *RoutingService) GetTable(ctx context.Context, nodeID string) (*domain.RoutingTableResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "RoutingService.GetTable")
	defer span.End()

	node, err := s.nodes.Get(ctx, nodeID)
	if err != nil {
		metrics.Get().RecordRouteLookup(false)
		if errors.Is(err, repository.ErrNodeNotFound) {
			return nil, apperror.NewWithField(apperror.CodeNotFound,
				fmt.Sprintf("node %q does not exist", nodeID), "node_id")
		}
		return nil, apperror.Wrap(err, apperror.CodeStoreFailure, "failed to load node")
	}
	if !node.IsActive {
		metrics.Get().RecordRouteLookup(false)
		return nil, apperror.NewWithField(apperror.CodeNotFound,
			fmt.Sprintf("node %q is inactive", nodeID), "node_id")
	}

	if s.cache != nil {
		if cached, ok, err := s.cache.Get(ctx, nodeID); err == nil && ok {
			metrics.Get().RecordRouteLookup(true)
			return &domain.RoutingTableResponse{
				NodeID:       nodeID,
				RoutingTable: cached.Table,
				GeneratedAt:  cached.GeneratedAt.UTC().Format(time.RFC3339),
			}, nil
		}
	}

	entries, err := s.routing.FindRoutingEntries(ctx, &domain.RoutingFilter{FromNodeID: &nodeID})
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeStoreFailure, "failed to load routing entries")
	}

	table := algorithms.BuildRoutingTable(nodeID, entries, s.stoch)
	generatedAt := time.Now().UTC()

	if s.cache != nil {
		if err := s.cache.Set(ctx, nodeID, table, 0); err != nil {
			logger.Log.Warn("Failed to cache routing table", "node_id", nodeID, "error", err)
		}
	}

	metrics.Get().RecordRouteLookup(true)
	telemetry.SetAttributes(ctx, telemetry.RouteAttributes(nodeID, len(table))...)

	return &domain.RoutingTableResponse{
		NodeID:       nodeID,
		RoutingTable: table,
		GeneratedAt:  generatedAt.Format(time.RFC3339),
	}, nil
}

// DVUpdate выполняет одну итерацию DV-обмена. Пока итерация идёт,
// повторный запуск отклоняется сразу, без ожидания.
func (s *RoutingService) DVUpdate(ctx context.Context) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "RoutingService.DVUpdate")
	defer span.End()

	if !s.dvMu.TryLock() {
		return 0, apperror.New(apperror.CodeDVInProgress, "distance-vector iteration is already running")
	}
	defer s.dvMu.Unlock()

	started := time.Now()

	changes, err := s.engine.Iterate(ctx)
	if err != nil {
		metrics.Get().RecordDVIteration("manual", false, time.Since(started), 0)
		return 0, apperror.Wrap(err, apperror.CodeStoreFailure, "distance-vector iteration failed")
	}

	metrics.Get().RecordDVIteration("manual", true, time.Since(started), changes)
	telemetry.SetAttributes(ctx, telemetry.DVAttributes("manual", changes)...)

	s.invalidateTables(ctx)

	logger.Log.Info("Distance-vector iteration applied",
		"changes", changes,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return changes, nil
}

// AddEntry вручную вписывает маршрутную запись. Существующая тройка
// ключей не перезаписывается.
func (s *RoutingService) AddEntry(ctx context.Context, entry *domain.RoutingEntry) error {
	ctx, span := telemetry.StartSpan(ctx, "RoutingService.AddEntry")
	defer span.End()

	if err := entry.Validate(); err != nil {
		return err
	}

	key := entry.Key()
	existing, err := s.routing.FindRoutingEntries(ctx, &domain.RoutingFilter{
		FromNodeID:        &key.FromNodeID,
		DestinationNodeID: &key.DestinationNodeID,
		NextHopNodeID:     &key.NextHopNodeID,
	})
	if err != nil {
		return apperror.Wrap(err, apperror.CodeStoreFailure, "failed to check routing entry")
	}
	if len(existing) > 0 {
		return apperror.New(apperror.CodeConflict,
			fmt.Sprintf("routing entry %s already exists", key.String()))
	}

	if err := s.routing.UpsertRoutingEntry(ctx, key, entry.Cost, time.Now()); err != nil {
		return apperror.Wrap(err, apperror.CodeStoreFailure, "failed to store routing entry")
	}

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, entry.FromNodeID); err != nil {
			logger.Log.Warn("Failed to invalidate routing cache", "node_id", entry.FromNodeID, "error", err)
		}
	}

	logger.Log.Info("Routing entry added", "key", key.String(), "cost", entry.Cost)
	return nil
}

func (s *RoutingService) invalidateTables(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.InvalidateAll(ctx); err != nil {
		logger.Log.Warn("Failed to invalidate routing tables", "error", err)
	}
}
