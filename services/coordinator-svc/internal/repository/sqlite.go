package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Ashtsssssh/DiMITO/pkg/database"
	"github.com/Ashtsssssh/DiMITO/pkg/domain"
	"github.com/Ashtsssssh/DiMITO/pkg/telemetry"
)

// Временные метки в SQLite хранятся строками RFC3339 в UTC
const sqliteTimeLayout = time.RFC3339Nano

// SQLiteNodeRepository встраиваемая реализация NodeRepository
type SQLiteNodeRepository struct {
	db *database.SQLiteDB
}

// NewSQLiteNodeRepository создаёт новый SQLite репозиторий узлов
func NewSQLiteNodeRepository(db *database.SQLiteDB) *SQLiteNodeRepository {
	return &SQLiteNodeRepository{db: db}
}

func (r *SQLiteNodeRepository) Create(ctx context.Context, node *domain.Node) error {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteNodeRepository.Create")
	defer span.End()

	now := time.Now().UTC()
	node.CreatedAt = now
	node.UpdatedAt = now

	var lat, lon *float64
	if node.Location != nil {
		lat, lon = &node.Location.Latitude, &node.Location.Longitude
	}

	query := `
		INSERT INTO nodes (node_id, name, latitude, longitude, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		node.NodeID,
		node.Name,
		lat,
		lon,
		node.IsActive,
		now.Format(sqliteTimeLayout),
		now.Format(sqliteTimeLayout),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrNodeAlreadyExists
		}
		return fmt.Errorf("failed to create node: %w", err)
	}

	return nil
}

func (r *SQLiteNodeRepository) Get(ctx context.Context, nodeID string) (*domain.Node, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteNodeRepository.Get")
	defer span.End()

	query := `
		SELECT node_id, name, latitude, longitude, is_active, created_at, updated_at
		FROM nodes
		WHERE node_id = ?
	`

	node, err := scanSQLiteNode(r.db.QueryRowContext(ctx, query, nodeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNodeNotFound
		}
		return nil, fmt.Errorf("failed to get node: %w", err)
	}

	return node, nil
}

func (r *SQLiteNodeRepository) List(ctx context.Context) ([]*domain.Node, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteNodeRepository.List")
	defer span.End()

	query := `
		SELECT node_id, name, latitude, longitude, is_active, created_at, updated_at
		FROM nodes
		ORDER BY node_id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list nodes: %w", err)
	}
	defer rows.Close()

	var nodes []*domain.Node
	for rows.Next() {
		node, err := scanSQLiteNode(rows)
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

func (r *SQLiteNodeRepository) SetActive(ctx context.Context, nodeID string, active bool) error {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteNodeRepository.SetActive")
	defer span.End()

	query := `UPDATE nodes SET is_active = ?, updated_at = ? WHERE node_id = ?`

	result, err := r.db.ExecContext(ctx, query, active, time.Now().UTC().Format(sqliteTimeLayout), nodeID)
	if err != nil {
		return fmt.Errorf("failed to set node activity: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return ErrNodeNotFound
	}

	return nil
}

// sqliteScanner общий контракт *sql.Row и *sql.Rows
type sqliteScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteNode(row sqliteScanner) (*domain.Node, error) {
	node := &domain.Node{}
	var lat, lon sql.NullFloat64
	var createdAt, updatedAt string

	err := row.Scan(
		&node.NodeID,
		&node.Name,
		&lat,
		&lon,
		&node.IsActive,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lat.Valid && lon.Valid {
		node.Location = &domain.Location{Latitude: lat.Float64, Longitude: lon.Float64}
	}

	if node.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if node.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return node, nil
}

// SQLiteEdgeRepository встраиваемая реализация EdgeRepository.
// Метрики направлений сериализуются в JSON-текст, как и в PostgreSQL.
type SQLiteEdgeRepository struct {
	db *database.SQLiteDB
}

// NewSQLiteEdgeRepository создаёт новый SQLite репозиторий рёбер
func NewSQLiteEdgeRepository(db *database.SQLiteDB) *SQLiteEdgeRepository {
	return &SQLiteEdgeRepository{db: db}
}

const sqliteEdgeColumns = `edge_id, name, in_node_id, out_node_id, camera_id,
		road_length_m, road_width_m, is_active,
		incoming_traffic, outgoing_traffic, created_at, updated_at`

func (r *SQLiteEdgeRepository) Create(ctx context.Context, edge *domain.Edge) error {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteEdgeRepository.Create")
	defer span.End()

	now := time.Now().UTC()
	edge.CreatedAt = now
	edge.UpdatedAt = now

	incoming, outgoing, err := marshalMetrics(edge)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO edges (edge_id, name, in_node_id, out_node_id, camera_id,
			road_length_m, road_width_m, is_active, incoming_traffic, outgoing_traffic,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err = r.db.ExecContext(ctx, query,
		edge.EdgeID,
		edge.Name,
		edge.InNodeID,
		edge.OutNodeID,
		edge.CameraID,
		edge.RoadLengthM,
		edge.RoadWidthM,
		edge.IsActive,
		string(incoming),
		string(outgoing),
		now.Format(sqliteTimeLayout),
		now.Format(sqliteTimeLayout),
	)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return ErrEdgeAlreadyExists
		}
		return fmt.Errorf("failed to create edge: %w", err)
	}

	return nil
}

func (r *SQLiteEdgeRepository) Get(ctx context.Context, edgeID string) (*domain.Edge, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteEdgeRepository.Get")
	defer span.End()

	query := `SELECT ` + sqliteEdgeColumns + ` FROM edges WHERE edge_id = ?`

	edge, err := scanSQLiteEdge(r.db.QueryRowContext(ctx, query, edgeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEdgeNotFound
		}
		return nil, fmt.Errorf("failed to get edge: %w", err)
	}

	return edge, nil
}

func (r *SQLiteEdgeRepository) List(ctx context.Context) ([]*domain.Edge, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteEdgeRepository.List")
	defer span.End()

	query := `SELECT ` + sqliteEdgeColumns + ` FROM edges ORDER BY edge_id`
	return r.queryEdges(ctx, query)
}

func (r *SQLiteEdgeRepository) ActiveEdges(ctx context.Context) ([]*domain.Edge, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteEdgeRepository.ActiveEdges")
	defer span.End()

	query := `SELECT ` + sqliteEdgeColumns + ` FROM edges WHERE is_active ORDER BY edge_id`
	return r.queryEdges(ctx, query)
}

func (r *SQLiteEdgeRepository) OutgoingEdges(ctx context.Context, nodeID string) ([]*domain.Edge, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteEdgeRepository.OutgoingEdges")
	defer span.End()

	query := `SELECT ` + sqliteEdgeColumns + ` FROM edges WHERE out_node_id = ? AND is_active ORDER BY edge_id`
	return r.queryEdges(ctx, query, nodeID)
}

func (r *SQLiteEdgeRepository) UpdateMetrics(ctx context.Context, edgeID string, direction domain.Direction, patch *domain.MetricsPatch, now int64) (*domain.Edge, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteEdgeRepository.UpdateMetrics")
	defer span.End()

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	query := `SELECT ` + sqliteEdgeColumns + ` FROM edges WHERE edge_id = ?`

	edge, err := scanSQLiteEdge(tx.QueryRowContext(ctx, query, edgeID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEdgeNotFound
		}
		return nil, fmt.Errorf("failed to read edge: %w", err)
	}

	edge.Metrics(direction).Apply(patch, now)
	edge.UpdatedAt = time.Now().UTC()

	incoming, outgoing, err := marshalMetrics(edge)
	if err != nil {
		return nil, err
	}

	update := `
		UPDATE edges
		SET incoming_traffic = ?, outgoing_traffic = ?, updated_at = ?
		WHERE edge_id = ?
	`
	if _, err := tx.ExecContext(ctx, update,
		string(incoming),
		string(outgoing),
		edge.UpdatedAt.Format(sqliteTimeLayout),
		edgeID,
	); err != nil {
		return nil, fmt.Errorf("failed to update edge metrics: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit metrics update: %w", err)
	}

	return edge, nil
}

func (r *SQLiteEdgeRepository) queryEdges(ctx context.Context, query string, args ...any) ([]*domain.Edge, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query edges: %w", err)
	}
	defer rows.Close()

	var edges []*domain.Edge
	for rows.Next() {
		edge, err := scanSQLiteEdge(rows)
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

func scanSQLiteEdge(row sqliteScanner) (*domain.Edge, error) {
	edge := &domain.Edge{}
	var incoming, outgoing, createdAt, updatedAt string

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
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(incoming), &edge.IncomingTraffic); err != nil {
		return nil, fmt.Errorf("failed to decode incoming metrics: %w", err)
	}
	if err := json.Unmarshal([]byte(outgoing), &edge.OutgoingTraffic); err != nil {
		return nil, fmt.Errorf("failed to decode outgoing metrics: %w", err)
	}

	if edge.CreatedAt, err = time.Parse(sqliteTimeLayout, createdAt); err != nil {
		return nil, fmt.Errorf("failed to parse created_at: %w", err)
	}
	if edge.UpdatedAt, err = time.Parse(sqliteTimeLayout, updatedAt); err != nil {
		return nil, fmt.Errorf("failed to parse updated_at: %w", err)
	}

	return edge, nil
}

// SQLiteRoutingRepository встраиваемая реализация RoutingRepository
type SQLiteRoutingRepository struct {
	db *database.SQLiteDB
}

// NewSQLiteRoutingRepository создаёт новый SQLite репозиторий маршрутов
func NewSQLiteRoutingRepository(db *database.SQLiteDB) *SQLiteRoutingRepository {
	return &SQLiteRoutingRepository{db: db}
}

func (r *SQLiteRoutingRepository) FindRoutingEntries(ctx context.Context, filter *domain.RoutingFilter) ([]*domain.RoutingEntry, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteRoutingRepository.FindRoutingEntries")
	defer span.End()

	query := `
		SELECT from_node_id, destination_node_id, next_hop_node_id, cost, last_updated
		FROM routing_table
	`
	where, args := sqliteRoutingFilterClause(filter)
	query += where + ` ORDER BY from_node_id, destination_node_id, next_hop_node_id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query routing entries: %w", err)
	}
	defer rows.Close()

	var entries []*domain.RoutingEntry
	for rows.Next() {
		entry := &domain.RoutingEntry{}
		var lastUpdated string
		err := rows.Scan(
			&entry.FromNodeID,
			&entry.DestinationNodeID,
			&entry.NextHopNodeID,
			&entry.Cost,
			&lastUpdated,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan routing entry: %w", err)
		}
		if entry.LastUpdated, err = time.Parse(sqliteTimeLayout, lastUpdated); err != nil {
			return nil, fmt.Errorf("failed to parse last_updated: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entries, nil
}

func (r *SQLiteRoutingRepository) UpsertRoutingEntry(ctx context.Context, key domain.RoutingKey, cost float64, now time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteRoutingRepository.UpsertRoutingEntry")
	defer span.End()

	query := `
		INSERT INTO routing_table (from_node_id, destination_node_id, next_hop_node_id, cost, last_updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (from_node_id, destination_node_id, next_hop_node_id)
		DO UPDATE SET cost = excluded.cost, last_updated = excluded.last_updated
	`

	_, err := r.db.ExecContext(ctx, query,
		key.FromNodeID,
		key.DestinationNodeID,
		key.NextHopNodeID,
		cost,
		now.UTC().Format(sqliteTimeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert routing entry: %w", err)
	}

	return nil
}

func (r *SQLiteRoutingRepository) DeleteRoutingEntries(ctx context.Context, filter *domain.RoutingFilter) (int64, error) {
	ctx, span := telemetry.StartSpan(ctx, "SQLiteRoutingRepository.DeleteRoutingEntries")
	defer span.End()

	query := `DELETE FROM routing_table`
	where, args := sqliteRoutingFilterClause(filter)
	query += where

	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete routing entries: %w", err)
	}

	return result.RowsAffected()
}

func sqliteRoutingFilterClause(filter *domain.RoutingFilter) (string, []any) {
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
		conds = append(conds, column+" = ?")
	}

	add("from_node_id", filter.FromNodeID)
	add("destination_node_id", filter.DestinationNodeID)
	add("next_hop_node_id", filter.NextHopNodeID)

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// isSQLiteUniqueViolation проверяет нарушение уникальности в SQLite
func isSQLiteUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
