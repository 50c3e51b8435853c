// Package store implements Postgres-backed persistence for the scoring
// pipeline: the read-only source snapshots and the versioned score table.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"zipyield/internal/config"
)

// Store wraps the pgx connection pool. It implements scoring.SourceReader
// and scoring.ScoreWriter.
type Store struct {
	pool         *pgxpool.Pool
	logger       *slog.Logger
	batchSize    int
	queryTimeout time.Duration
}

// New creates a connection pool from the configuration, verifies the
// connection, and returns the store.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse database config: %w", err)
	}

	poolConfig.MinConns = cfg.Database.MinConns
	poolConfig.MaxConns = cfg.Database.MaxConns
	poolConfig.MaxConnIdleTime = 30 * time.Second
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	logger.InfoContext(ctx, "database pool ready",
		"host", cfg.Database.Host,
		"database", cfg.Database.Name,
		"min_conns", cfg.Database.MinConns,
		"max_conns", cfg.Database.MaxConns,
	)

	return &Store{
		pool:         pool,
		logger:       logger,
		batchSize:    cfg.Pipeline.UpsertBatchSize,
		queryTimeout: cfg.Database.QueryTimeout,
	}, nil
}

// Ping checks that the database connection is alive
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close waits for outstanding connections and shuts the pool down
func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Stats returns pool statistics for monitoring
func (s *Store) Stats() *pgxpool.Stat {
	if s.pool == nil {
		return nil
	}
	return s.pool.Stat()
}

// queryCtx bounds a single statement with the configured query timeout
func (s *Store) queryCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}
