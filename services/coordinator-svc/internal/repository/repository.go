package repository

import (
	"context"
	"errors"
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/domain"
)

// Стандартные ошибки репозитория
var (
	ErrNodeNotFound      = errors.New("node not found")
	ErrNodeAlreadyExists = errors.New("node already exists")
	ErrEdgeNotFound      = errors.New("edge not found")
	ErrEdgeAlreadyExists = errors.New("edge already exists")
)

// NodeRepository интерфейс репозитория перекрёстков
type NodeRepository interface {
	Create(ctx context.Context, node *domain.Node) error
	Get(ctx context.Context, nodeID string) (*domain.Node, error)
	List(ctx context.Context) ([]*domain.Node, error)
	SetActive(ctx context.Context, nodeID string, active bool) error
}

// EdgeRepository интерфейс репозитория рёбер дорожного графа
type EdgeRepository interface {
	Create(ctx context.Context, edge *domain.Edge) error
	Get(ctx context.Context, edgeID string) (*domain.Edge, error)
	List(ctx context.Context) ([]*domain.Edge, error)
	ActiveEdges(ctx context.Context) ([]*domain.Edge, error)
	OutgoingEdges(ctx context.Context, nodeID string) ([]*domain.Edge, error)
	UpdateMetrics(ctx context.Context, edgeID string, direction domain.Direction, patch *domain.MetricsPatch, now int64) (*domain.Edge, error)
}

// RoutingRepository хранилище DV-таблицы маршрутизации.
// Сигнатуры совпадают с контрактом движка обмена, так что репозиторий
// подключается к нему напрямую.
type RoutingRepository interface {
	FindRoutingEntries(ctx context.Context, filter *domain.RoutingFilter) ([]*domain.RoutingEntry, error)
	UpsertRoutingEntry(ctx context.Context, key domain.RoutingKey, cost float64, now time.Time) error
	DeleteRoutingEntries(ctx context.Context, filter *domain.RoutingFilter) (int64, error)
}
