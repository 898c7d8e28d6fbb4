package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Ashtsssssh/DiMITO/pkg/database"
	"github.com/Ashtsssssh/DiMITO/pkg/domain"
	"github.com/Ashtsssssh/DiMITO/pkg/telemetry"
)

// PostgresNodeRepository PostgreSQL реализация NodeRepository
type PostgresNodeRepository struct {
	db database.DB
}

// NewPostgresNodeRepository создаёт новый PostgreSQL репозиторий узлов
func NewPostgresNodeRepository(db database.DB) *PostgresNodeRepository {
	return &PostgresNodeRepository{db: db}
}

func (r *PostgresNodeRepository) Create(ctx context.Context, node *domain.Node) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresNodeRepository.Create")
	defer span.End()

	query := `
		INSERT INTO nodes (node_id, name, latitude, longitude, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING created_at, updated_at
	`

	var lat, lon *float64
	if node.Location != nil {
		lat, lon = &node.Location.Latitude, &node.Location.Longitude
	}

	err := r.db.QueryRow(ctx, query,
		node.NodeID,
		node.Name,
		lat,
		lon,
		node.IsActive,
	).Scan(&node.CreatedAt, &node.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrNodeAlreadyExists
		}
		return fmt.Errorf("failed to create node: %w", err)
	}

	return nil
}

func (r *PostgresNodeRepository) Get(ctx context.Context, nodeID string) (*domain.Node, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresNodeRepository.Get")
	defer span.End()

	query := `
		SELECT node_id, name, latitude, longitude, is_active, created_at, updated_at
		FROM nodes
		WHERE node_id = $1
	`

	node, err := scanNode(r.db.QueryRow(ctx, query, nodeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	return node, nil
}

func (r *PostgresNodeRepository) List(ctx context.Context) ([]*domain.Node, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresNodeRepository.List")
	defer span.End()

	query := `
		SELECT node_id, name, latitude, longitude, is_active, created_at, updated_at
		FROM nodes
		ORDER BY node_id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*domain.Node
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan node: %w", err)
		}
		nodes = append(nodes, node)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return nodes, nil
}

func (r *PostgresNodeRepository) SetActive(ctx context.Context, nodeID string, active bool) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresNodeRepository.SetActive")
	defer span.End()

	query := `UPDATE nodes SET is_active = $2, updated_at = NOW() WHERE node_id = $1`

	result, err := r.db.Exec(ctx, query, nodeID, active)
	if err != nil {
		return fmt.Errorf("failed to set node activity: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrNodeNotFound
	}

	return nil
}

func scanNode(row pgx.Row) (*domain.Node, error) {
	node := &domain.Node{}
	var lat, lon *float64

	err := row.Scan(
		&node.NodeID,
		&node.Name,
		&lat,
		&lon,
		&node.IsActive,
		&node.CreatedAt,
		&node.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lat != nil && lon != nil {
		node.Location = &domain.Location{Latitude: *lat, Longitude: *lon}
	}

	return node, nil
}

// PostgresEdgeRepository PostgreSQL реализация EdgeRepository.
// Метрики направлений хранятся в JSONB: читаются и обновляются всегда
// целиком, индексировать их не требуется.
type PostgresEdgeRepository struct {
	db database.DB
}

// NewPostgresEdgeRepository создаёт новый PostgreSQL репозиторий рёбер
func NewPostgresEdgeRepository(db database.DB) *PostgresEdgeRepository {
	return &PostgresEdgeRepository{db: db}
}

const edgeColumns = `edge_id, name, in_node_id, out_node_id, camera_id,
		road_length_m, road_width_m, is_active,
		incoming_traffic, outgoing_traffic, created_at, updated_at`

func (r *PostgresEdgeRepository) Create(ctx context.Context, edge *domain.Edge) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresEdgeRepository.Create")
	defer span.End()

	incoming, outgoing, err := marshalMetrics(edge)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO edges (edge_id, name, in_node_id, out_node_id, camera_id,
			road_length_m, road_width_m, is_active, incoming_traffic, outgoing_traffic)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`

	err = r.db.QueryRow(ctx, query,
		edge.EdgeID,
		edge.Name,
		edge.InNodeID,
		edge.OutNodeID,
		edge.CameraID,
		edge.RoadLengthM,
		edge.RoadWidthM,
		edge.IsActive,
		incoming,
		outgoing,
	).Scan(&edge.CreatedAt, &edge.UpdatedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrEdgeAlreadyExists
		}
		return fmt.Errorf("failed to create edge: %w", err)
	}

	return nil
}

func (r *PostgresEdgeRepository) Get(ctx context.Context, edgeID string) (*domain.Edge, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresEdgeRepository.Get")
	defer span.End()

	query := `SELECT ` + edgeColumns + ` FROM edges WHERE edge_id = $1`

	edge, err := scanEdge(r.db.QueryRow(ctx, query, edgeID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEdgeNotFound
		}
		return nil, fmt.Errorf("failed to get edge: %w", err)
	}

	return edge, nil
}

func (r *PostgresEdgeRepository) List(ctx context.Context) ([]*domain.Edge, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresEdgeRepository.List")
	defer span.End()

	query := `SELECT ` + edgeColumns + ` FROM edges ORDER BY edge_id`
	return r.queryEdges(ctx, query)
}

func (r *PostgresEdgeRepository) ActiveEdges(ctx context.Context) ([]*domain.Edge, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresEdgeRepository.ActiveEdges")
	defer span.End()

	query := `SELECT ` + edgeColumns + ` FROM edges WHERE is_active ORDER BY edge_id`
	return r.queryEdges(ctx, query)
}

func (r *PostgresEdgeRepository) OutgoingEdges(ctx context.Context, nodeID string) ([]*domain.Edge, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresEdgeRepository.OutgoingEdges")
	defer span.End()

	query := `SELECT ` + edgeColumns + ` FROM edges WHERE out_node_id = $1 AND is_active ORDER BY edge_id`
	return r.queryEdges(ctx, query, nodeID)
}

func (r *PostgresEdgeRepository) UpdateMetrics(ctx context.Context, edgeID string, direction domain.Direction, patch *domain.MetricsPatch, now int64) (*domain.Edge, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresEdgeRepository.UpdateMetrics")
	defer span.End()

	return database.WithTransactionResult(ctx, r.db, func(tx pgx.Tx) (*domain.Edge, error) {
		query := `SELECT ` + edgeColumns + ` FROM edges WHERE edge_id = $1 FOR UPDATE`

		edge, err := scanEdge(tx.QueryRow(ctx, query, edgeID))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, ErrEdgeNotFound
			}
			return nil, fmt.Errorf("failed to lock edge: %w", err)
		}

		edge.Metrics(direction).Apply(patch, now)

		incoming, outgoing, err := marshalMetrics(edge)
		if err != nil {
			return nil, err
		}

		update := `
			UPDATE edges
			SET incoming_traffic = $2, outgoing_traffic = $3, updated_at = NOW()
			WHERE edge_id = $1
			RETURNING updated_at
		`
		if err := tx.QueryRow(ctx, update, edgeID, incoming, outgoing).Scan(&edge.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to update edge metrics: %w", err)
		}

		return edge, nil
	})
}

func (r *PostgresEdgeRepository) queryEdges(ctx context.Context, query string, args ...any) ([]*domain.Edge, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []*domain.Edge
	for rows.Next() {
		edge, err := scanEdge(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan edge: %w", err)
		}
		edges = append(edges, edge)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return edges, nil
}

func scanEdge(row pgx.Row) (*domain.Edge, error) {
	edge := &domain.Edge{}
	var incoming, outgoing []byte

	err := row.Scan(
		&edge.EdgeID,
		&edge.Name,
		&edge.InNodeID,
		&edge.OutNodeID,
		&edge.CameraID,
		&edge.RoadLengthM,
		&edge.RoadWidthM,
		&edge.IsActive,
		&incoming,
		&outgoing,
		&edge.CreatedAt,
		&edge.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(incoming, &edge.IncomingTraffic); err != nil {
		return nil, fmt.Errorf("failed to decode incoming metrics: %w", err)
	}
	if err := json.Unmarshal(outgoing, &edge.OutgoingTraffic); err != nil {
		return nil, fmt.Errorf("failed to decode outgoing metrics: %w", err)
	}

	return edge, nil
}

func marshalMetrics(edge *domain.Edge) ([]byte, []byte, error) {
	incoming, err := json.Marshal(&edge.IncomingTraffic)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode incoming metrics: %w", err)
	}
	outgoing, err := json.Marshal(&edge.OutgoingTraffic)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode outgoing metrics: %w", err)
	}
	return incoming, outgoing, nil
}

// PostgresRoutingRepository PostgreSQL реализация RoutingRepository
type PostgresRoutingRepository struct {
	db database.DB
}

// NewPostgresRoutingRepository создаёт новый PostgreSQL репозиторий маршрутов
func NewPostgresRoutingRepository(db database.DB) *PostgresRoutingRepository {
	return &PostgresRoutingRepository{db: db}
}

func (r *PostgresRoutingRepository) FindRoutingEntries(ctx context.Context, filter *domain.RoutingFilter) ([]*domain.RoutingEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRoutingRepository.FindRoutingEntries")
	defer span.End()

	query := `
		SELECT from_node_id, destination_node_id, next_hop_node_id, cost, last_updated
		FROM routing_table
	`
	where, args := routingFilterClause(filter)
	query += where + ` ORDER BY from_node_id, destination_node_id, next_hop_node_id`

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query routing entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.RoutingEntry
	for rows.Next() {
		entry := &domain.RoutingEntry{}
		err := rows.Scan(
			&entry.FromNodeID,
			&entry.DestinationNodeID,
			&entry.NextHopNodeID,
			&entry.Cost,
			&entry.LastUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan routing entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}

func (r *PostgresRoutingRepository) UpsertRoutingEntry(ctx context.Context, key domain.RoutingKey, cost float64, now time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRoutingRepository.UpsertRoutingEntry")
	defer span.End()

	query := `
		INSERT INTO routing_table (from_node_id, destination_node_id, next_hop_node_id, cost, last_updated)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (from_node_id, destination_node_id, next_hop_node_id)
		DO UPDATE SET cost = $4, last_updated = $5
	`

	_, err := r.db.Exec(ctx, query,
		key.FromNodeID,
		key.DestinationNodeID,
		key.NextHopNodeID,
		cost,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert routing entry: %w", err)
	}

	return nil
}

func (r *PostgresRoutingRepository) DeleteRoutingEntries(ctx context.Context, filter *domain.RoutingFilter) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "PostgresRoutingRepository.DeleteRoutingEntries")
	defer span.End()

	query := `DELETE FROM routing_table`
	where, args := routingFilterClause(filter)
	query += where

	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete routing entries: %w", err)
	}

	return result.RowsAffected(), nil
}

// routingFilterClause строит WHERE по непустым полям фильтра
func routingFilterClause(filter *domain.RoutingFilter) (string, []any) {
	if filter == nil {
		return "", nil
	}

	var conds []string
	var args []any

	add := func(column string, value *string) {
		if value == nil {
			return
		}
		args = append(args, *value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	add("from_node_id", filter.FromNodeID)
	add("destination_node_id", filter.DestinationNodeID)
	add("next_hop_node_id", filter.NextHopNodeID)

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// isUniqueViolation проверяет, является ли ошибка нарушением уникальности
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505" // unique_violation
	}
	return false
}
