package repository

import (
	"context"
	"embed"
	"fmt"

	"github.com/Ashtsssssh/DiMITO/pkg/config"
	"github.com/Ashtsssssh/DiMITO/pkg/database"
	"github.com/Ashtsssssh/DiMITO/pkg/logger"
)

//go:embed migrations
var migrationsFS embed.FS

// RepositoryType тип репозитория
type RepositoryType string

const (
	RepositoryTypeMemory   RepositoryType = "memory"
	RepositoryTypePostgres RepositoryType = "postgres"
	RepositoryTypeSQLite   RepositoryType = "sqlite"
)

// Repositories контейнер репозиториев координатора
type Repositories struct {
	Nodes   NodeRepository
	Edges   EdgeRepository
	Routing RoutingRepository

	pg     *database.PostgresDB // Для закрытия при shutdown
	sqlite *database.SQLiteDB
}

// Close закрывает соединения
func (r *Repositories) Close() {
	if r.pg != nil {
		r.pg.Close()
	}
	if r.sqlite != nil {
		if err := r.sqlite.Close(); err != nil {
			logger.Log.Warn("Failed to close sqlite database", "error", err)
		}
	}
}

// HealthCheck проверяет доступность хранилища
func (r *Repositories) HealthCheck(ctx context.Context) error {
	if r.pg != nil {
		return r.pg.HealthCheck(ctx)
	}
	if r.sqlite != nil {
		return r.sqlite.HealthCheck(ctx)
	}
	return nil
}

// NewRepositories создаёт репозитории на основе конфигурации
func NewRepositories(ctx context.Context, cfg *config.DatabaseConfig) (*Repositories, error) {
	repoType := RepositoryType(cfg.Driver)

	switch repoType {
	case RepositoryTypeMemory, "":
		return newMemoryRepositories(), nil

	case RepositoryTypePostgres, "postgresql":
		return newPostgresRepositories(ctx, cfg)

	case RepositoryTypeSQLite:
		return newSQLiteRepositories(ctx, cfg)

	default:
		return nil, fmt.Errorf("unsupported repository type: %s", cfg.Driver)
	}
}

func newMemoryRepositories() *Repositories {
	return &Repositories{
		Nodes:   NewMemoryNodeRepository(),
		Edges:   NewMemoryEdgeRepository(),
		Routing: NewMemoryRoutingRepository(),
	}
}

func newPostgresRepositories(ctx context.Context, cfg *config.DatabaseConfig) (*Repositories, error) {
	db, err := database.NewPostgresDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := database.RunMigrations(ctx, db.Pool(), cfg, migrationsFS, "migrations/postgres"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate postgres schema: %w", err)
	}

	return &Repositories{
		Nodes:   NewPostgresNodeRepository(db),
		Edges:   NewPostgresEdgeRepository(db),
		Routing: NewPostgresRoutingRepository(db),
		pg:      db,
	}, nil
}

func newSQLiteRepositories(ctx context.Context, cfg *config.DatabaseConfig) (*Repositories, error) {
	db, err := database.NewSQLiteDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.Migrate(ctx, migrationsFS, "migrations/sqlite"); err != nil {
			db.Close() //nolint:errcheck // already failing
			return nil, fmt.Errorf("failed to migrate sqlite schema: %w", err)
		}
	}

	return &Repositories{
		Nodes:   NewSQLiteNodeRepository(db),
		Edges:   NewSQLiteEdgeRepository(db),
		Routing: NewSQLiteRoutingRepository(db),
		sqlite:  db,
	}, nil
}
