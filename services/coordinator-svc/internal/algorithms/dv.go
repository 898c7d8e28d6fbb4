package algorithms

import (
	"context"
	"math"
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/domain"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

// =============================================================================
// Distance-Vector Update Engine
// =============================================================================
//
// One Iterate call is the atomic unit of progress: a bootstrap of direct
// routes followed by a single relaxation step over every active edge. The
// engine is idempotent in the convergence sense — with unchanged metrics,
// repeated invocations drive the applied-change count to zero, and callers
// (an operator or a scheduler) invoke it until it reports 0.
//
// Phases, in order:
//
//	0. self-routes    every node touched by an active edge gets (n, n, n, 0)
//	1. bootstrap      every active edge A->B upserts (A, B, B); existing rows
//	                  are EMA-merged: cost <- (1-alpha)*old + alpha*new
//	2. propagation    for each edge A->B and each known route (B, D, *) the
//	                  candidate (A, D, B) with cost c_AB + r_BD is offered,
//	                  guarded by the inflation gate
//
// The inflation gate rejects candidates that are much worse than what is
// already known (ratio above MaxInflation). It is what keeps the classic
// count-to-infinity and poisoned-shortcut pathologies out of the table: a
// route known to be short is never overwritten by a far longer alternative
// just because that alternative propagated later.
//
// Propagation sources are read from the live table, including rows written
// earlier in the same call: a direct route bootstrapped in phase 1 is
// immediately visible to its upstream neighbors, so a two-hop destination is
// reachable after the second iteration at the latest. How far a route
// cascades within a single call depends on edge processing order; whatever
// is left over completes on the following iterations. The EMA and the gate
// likewise always see current costs.
//
// Per-row anomalies (a route referencing a vanished node, a failed write)
// are skipped and logged; the returned count reflects only applied writes.
// =============================================================================

// DVParams параметры distance-vector обмена
type DVParams struct {
	Alpha        float64
	MaxInflation float64
	Cost         CostWeights
}

// DefaultDVParams возвращает параметры по умолчанию
func DefaultDVParams() DVParams {
	return DVParams{
		Alpha:        0.2,
		MaxInflation: 1.5,
		Cost:         DefaultCostWeights(),
	}
}

// EdgeSource отдаёт снимок активных рёбер
type EdgeSource interface {
	ActiveEdges(ctx context.Context) ([]*domain.Edge, error)
}

// RoutingStore хранилище DV-таблицы
type RoutingStore interface {
	FindRoutingEntries(ctx context.Context, filter *domain.RoutingFilter) ([]*domain.RoutingEntry, error)
	UpsertRoutingEntry(ctx context.Context, key domain.RoutingKey, cost float64, now time.Time) error
}

// Engine distance-vector движок поверх хранилища
type Engine struct {
	edges  EdgeSource
	routes RoutingStore
	params DVParams
}

// NewEngine создаёт движок
func NewEngine(edges EdgeSource, routes RoutingStore, params DVParams) *Engine {
	return &Engine{edges: edges, routes: routes, params: params}
}

// routeIndex живое представление таблицы в пределах одной итерации
type routeIndex map[domain.RoutingKey]float64

func (idx routeIndex) minCost(from, dest string) (float64, bool) {
	best := math.MaxFloat64
	found := false
	for k, c := range idx {
		if k.FromNodeID == from && k.DestinationNodeID == dest && c < best {
			best = c
			found = true
		}
	}
	return best, found
}

// Iterate выполняет одну итерацию и возвращает число применённых записей
func (e *Engine) Iterate(ctx context.Context) (int, error) {
	started := time.Now()

	edges, err := e.edges.ActiveEdges(ctx)
	if err != nil {
		return 0, err
	}

	snapshot, err := e.routes.FindRoutingEntries(ctx, nil)
	if err != nil {
		return 0, err
	}

	live := make(routeIndex, len(snapshot))
	for _, entry := range snapshot {
		live[entry.Key()] = entry.Cost
	}

	now := time.Now()

	// Phase 0: самомаршруты для всех узлов активных рёбер
	seen := make(map[string]bool)
	for _, edge := range edges {
		for _, nodeID := range []string{edge.OutNodeID, edge.InNodeID} {
			if seen[nodeID] {
				continue
			}
			seen[nodeID] = true

			key := domain.RoutingKey{FromNodeID: nodeID, DestinationNodeID: nodeID, NextHopNodeID: nodeID}
			if _, ok := live[key]; ok {
				continue
			}
			if err := e.routes.UpsertRoutingEntry(ctx, key, 0, now); err != nil {
				logger.Log.Warn("Failed to ensure self-route", "node_id", nodeID, "error", err)
				continue
			}
			live[key] = 0
		}
	}

	changes := 0

	// Phase 1: прямые маршруты по активным рёбрам.
	// Ребро ведёт из головного узла (out_node) в хвостовой (in_node):
	// камера головного узла видит поток, покидающий его.
	for _, edge := range edges {
		from, to := edge.OutNodeID, edge.InNodeID
		cost := EdgeCost(edge, e.params.Cost)

		key := domain.RoutingKey{FromNodeID: from, DestinationNodeID: to, NextHopNodeID: to}
		if old, ok := live[key]; ok {
			merged := (1-e.params.Alpha)*old + e.params.Alpha*cost
			if domain.FloatEquals(merged, old) {
				continue
			}
			if err := e.routes.UpsertRoutingEntry(ctx, key, merged, now); err != nil {
				logger.Log.Warn("Failed to update direct route", "key", key.String(), "error", err)
				continue
			}
			live[key] = merged
			changes++
		} else {
			if err := e.routes.UpsertRoutingEntry(ctx, key, cost, now); err != nil {
				logger.Log.Warn("Failed to insert direct route", "key", key.String(), "error", err)
				continue
			}
			live[key] = cost
			changes++
		}
	}

	// Phase 2: релаксация по живой таблице. Маршруты соседа читаются
	// на момент обработки ребра, включая прямые маршруты, поднятые
	// фазой 1 этой же итерации.
	processed := make(map[domain.RoutingKey]bool)
	for _, edge := range edges {
		from, via := edge.OutNodeID, edge.InNodeID
		edgeCost := EdgeCost(edge, e.params.Cost)

		// Лучшая известная стоимость соседа до каждой достижимой цели
		remotes := make(map[string]float64)
		for k, c := range live {
			if k.FromNodeID != via {
				continue
			}
			if best, ok := remotes[k.DestinationNodeID]; !ok || c < best {
				remotes[k.DestinationNodeID] = c
			}
		}

		for dest, remoteCost := range remotes {
			// Маршрут обратно в себя через соседа не имеет смысла
			if dest == from {
				continue
			}

			key := domain.RoutingKey{FromNodeID: from, DestinationNodeID: dest, NextHopNodeID: via}
			if processed[key] {
				continue
			}
			processed[key] = true

			candidate := edgeCost + remoteCost

			if old, ok := live[key]; ok {
				if candidate > old*e.params.MaxInflation {
					continue
				}
				merged := (1-e.params.Alpha)*old + e.params.Alpha*candidate
				if domain.FloatEquals(merged, old) {
					continue
				}
				if err := e.routes.UpsertRoutingEntry(ctx, key, merged, now); err != nil {
					logger.Log.Warn("Failed to update propagated route", "key", key.String(), "error", err)
					continue
				}
				live[key] = merged
				changes++
				continue
			}

			// Новая альтернатива соревнуется с лучшим известным маршрутом
			if best, ok := live.minCost(from, dest); ok && candidate > best*e.params.MaxInflation {
				continue
			}
			if err := e.routes.UpsertRoutingEntry(ctx, key, candidate, now); err != nil {
				logger.Log.Warn("Failed to insert propagated route", "key", key.String(), "error", err)
				continue
			}
			live[key] = candidate
			changes++
		}
	}

	logger.Log.Debug("DV iteration finished",
		"edges", len(edges),
		"changes", changes,
		"duration_ms", time.Since(started).Milliseconds(),
	)

	return changes, nil
}
