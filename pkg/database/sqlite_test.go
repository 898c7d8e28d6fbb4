package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Ashtsssssh/DiMITO/pkg/config"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

func newTestSQLite(t *testing.T) *SQLiteDB {
	t.Helper()
	logger.Init("error")

	cfg := &config.DatabaseConfig{
		Driver:   "sqlite",
		Database: filepath.Join(t.TempDir(), "test.db"),
	}

	db, err := NewSQLiteDB(context.Background(), cfg)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSQLiteDB_ExecAndQuery(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `CREATE TABLE nodes (node_id TEXT PRIMARY KEY, name TEXT)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	_, err = db.ExecContext(ctx, `INSERT INTO nodes (node_id, name) VALUES (?, ?)`, "n1", "Central")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	var name string
	err = db.QueryRowContext(ctx, `SELECT name FROM nodes WHERE node_id = ?`, "n1").Scan(&name)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if name != "Central" {
		t.Errorf("expected name 'Central', got %s", name)
	}
}

func TestSQLiteDB_HealthCheck(t *testing.T) {
	db := newTestSQLite(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("health check failed: %v", err)
	}
}

func TestSQLiteDB_Transaction(t *testing.T) {
	db := newTestSQLite(t)
	ctx := context.Background()

	_, err := db.ExecContext(ctx, `CREATE TABLE edges (edge_id TEXT PRIMARY KEY)`)
	if err != nil {
		t.Fatalf("create table: %v", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin tx: %v", err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO edges (edge_id) VALUES (?)`, "e1"); err != nil {
		t.Fatalf("insert in tx: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}

	var count int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM edges`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 0 {
		t.Errorf("expected rollback to discard insert, got %d rows", count)
	}
}
