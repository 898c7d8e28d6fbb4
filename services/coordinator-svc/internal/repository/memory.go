package repository

import (
	"context"
	"sync"
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/domain"
)

// MemoryNodeRepository in-memory реализация NodeRepository
type MemoryNodeRepository struct {
	mu    sync.RWMutex
	nodes map[string]*domain.Node
}

// NewMemoryNodeRepository создаёт новый in-memory репозиторий узлов
func NewMemoryNodeRepository() *MemoryNodeRepository {
	return &MemoryNodeRepository{nodes: make(map[string]*domain.Node)}
}

func (r *MemoryNodeRepository) Create(ctx context.Context, node *domain.Node) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.nodes[node.NodeID]; exists {
		return ErrNodeAlreadyExists
	}

	now := time.Now()
	node.CreatedAt = now
	node.UpdatedAt = now

	r.nodes[node.NodeID] = node.Clone()
	return nil
}

func (r *MemoryNodeRepository) Get(ctx context.Context, nodeID string) (*domain.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, exists := r.nodes[nodeID]
	if !exists {
		return nil, ErrNodeNotFound
	}
	return node.Clone(), nil
}

func (r *MemoryNodeRepository) List(ctx context.Context) ([]*domain.Node, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Node, 0, len(r.nodes))
	for _, node := range r.nodes {
		result = append(result, node.Clone())
	}
	return result, nil
}

func (r *MemoryNodeRepository) SetActive(ctx context.Context, nodeID string, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	node, exists := r.nodes[nodeID]
	if !exists {
		return ErrNodeNotFound
	}

	node.IsActive = active
	node.UpdatedAt = time.Now()
	return nil
}

// MemoryEdgeRepository in-memory реализация EdgeRepository
type MemoryEdgeRepository struct {
	mu        sync.RWMutex
	edges     map[string]*domain.Edge
	byOutNode map[string][]string // out_node_id -> edge ids
}

// NewMemoryEdgeRepository создаёт новый in-memory репозиторий рёбер
func NewMemoryEdgeRepository() *MemoryEdgeRepository {
	return &MemoryEdgeRepository{
		edges:     make(map[string]*domain.Edge),
		byOutNode: make(map[string][]string),
	}
}

func (r *MemoryEdgeRepository) Create(ctx context.Context, edge *domain.Edge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.edges[edge.EdgeID]; exists {
		return ErrEdgeAlreadyExists
	}

	now := time.Now()
	edge.CreatedAt = now
	edge.UpdatedAt = now

	r.edges[edge.EdgeID] = edge.Clone()
	r.byOutNode[edge.OutNodeID] = append(r.byOutNode[edge.OutNodeID], edge.EdgeID)
	return nil
}

func (r *MemoryEdgeRepository) Get(ctx context.Context, edgeID string) (*domain.Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	edge, exists := r.edges[edgeID]
	if !exists {
		return nil, ErrEdgeNotFound
	}
	return edge.Clone(), nil
}

func (r *MemoryEdgeRepository) List(ctx context.Context) ([]*domain.Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*domain.Edge, 0, len(r.edges))
	for _, edge := range r.edges {
		result = append(result, edge.Clone())
	}
	return result, nil
}

func (r *MemoryEdgeRepository) ActiveEdges(ctx context.Context) ([]*domain.Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.Edge
	for _, edge := range r.edges {
		if edge.IsActive {
			result = append(result, edge.Clone())
		}
	}
	return result, nil
}

func (r *MemoryEdgeRepository) OutgoingEdges(ctx context.Context, nodeID string) ([]*domain.Edge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := r.byOutNode[nodeID]
	result := make([]*domain.Edge, 0, len(ids))
	for _, id := range ids {
		edge := r.edges[id]
		if !edge.IsActive {
			continue
		}
		result = append(result, edge.Clone())
	}
	return result, nil
}

func (r *MemoryEdgeRepository) UpdateMetrics(ctx context.Context, edgeID string, direction domain.Direction, patch *domain.MetricsPatch, now int64) (*domain.Edge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	edge, exists := r.edges[edgeID]
	if !exists {
		return nil, ErrEdgeNotFound
	}

	edge.Metrics(direction).Apply(patch, now)
	edge.UpdatedAt = time.Now()
	return edge.Clone(), nil
}

// MemoryRoutingRepository in-memory реализация RoutingRepository
type MemoryRoutingRepository struct {
	mu      sync.RWMutex
	entries map[domain.RoutingKey]*domain.RoutingEntry
}

// NewMemoryRoutingRepository создаёт новый in-memory репозиторий маршрутов
func NewMemoryRoutingRepository() *MemoryRoutingRepository {
	return &MemoryRoutingRepository{entries: make(map[domain.RoutingKey]*domain.RoutingEntry)}
}

func (r *MemoryRoutingRepository) FindRoutingEntries(ctx context.Context, filter *domain.RoutingFilter) ([]*domain.RoutingEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []*domain.RoutingEntry
	for _, entry := range r.entries {
		if filter.Matches(entry) {
			result = append(result, entry.Clone())
		}
	}
	return result, nil
}

func (r *MemoryRoutingRepository) UpsertRoutingEntry(ctx context.Context, key domain.RoutingKey, cost float64, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.entries[key] = &domain.RoutingEntry{
		FromNodeID:        key.FromNodeID,
		DestinationNodeID: key.DestinationNodeID,
		NextHopNodeID:     key.NextHopNodeID,
		Cost:              cost,
		LastUpdated:       now,
	}
	return nil
}

func (r *MemoryRoutingRepository) DeleteRoutingEntries(ctx context.Context, filter *domain.RoutingFilter) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var deleted int64
	for key, entry := range r.entries {
		if filter.Matches(entry) {
			delete(r.entries, key)
			deleted++
		}
	}
	return deleted, nil
}
