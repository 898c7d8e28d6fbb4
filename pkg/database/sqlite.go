package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/Ashtsssssh/DiMITO/pkg/config"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

// SQLiteDB обёртка над database/sql для встраиваемого хранилища.
// Подходит для одиночного координатора без внешней БД.
type SQLiteDB struct {
	db  *sql.DB
	cfg *config.DatabaseConfig
}

// NewSQLiteDB открывает (или создаёт) файл базы данных
func NewSQLiteDB(ctx context.Context, cfg *config.DatabaseConfig) (*SQLiteDB, error) {
	db, err := sql.Open("sqlite", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// SQLite допускает одного писателя, WAL разрешает параллельных читателей
	db.SetMaxOpenConns(1)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	pragmas := []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA cache_size = -64000", // 64MB cache
		"PRAGMA temp_store = MEMORY",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			logger.Log.Warn("pragma failed", "pragma", pragma, "error", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	logger.Log.Info("Connected to SQLite",
		"path", cfg.Database,
	)

	return &SQLiteDB{
		db:  db,
		cfg: cfg,
	}, nil
}

// ExecContext выполняет запрос без возврата результатов
func (s *SQLiteDB) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, query, args...)
}

// QueryContext выполняет запрос с возвратом строк
func (s *SQLiteDB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}

// QueryRowContext выполняет запрос с возвратом одной строки
func (s *SQLiteDB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, query, args...)
}

// BeginTx начинает транзакцию
func (s *SQLiteDB) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	return s.db.BeginTx(ctx, opts)
}

// Close закрывает базу данных
func (s *SQLiteDB) Close() error {
	err := s.db.Close()
	logger.Log.Info("SQLite database closed")
	return err
}

// Ping проверяет соединение
func (s *SQLiteDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// HealthCheck проверяет здоровье подключения
func (s *SQLiteDB) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var result int
	if err := s.db.QueryRowContext(ctx, "SELECT 1").Scan(&result); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	return nil
}

// Migrate применяет goose-миграции к встраиваемой базе
func (s *SQLiteDB) Migrate(ctx context.Context, migrations embed.FS, dir string) error {
	goose.SetBaseFS(migrations)

	if err := goose.SetDialect("sqlite3"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, s.db, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Log.Info("SQLite migrations applied successfully")
	return nil
}
