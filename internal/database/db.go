// Package database provides the engine's Postgres (pgx/v5) persistence:
// lifecycle position snapshots and the trade journal's relational sink.
// The Redis bar-dedup guard lives in internal/cache, not here. Grounded
// on the teacher's internal/database package (db.go's pool setup and
// migration-list idiom, repository_position_snapshots.go's upsert shape,
// redis_position_state.go's Redis-with-in-memory-fallback resilience
// pattern).
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Config holds Postgres connection settings, matching config.DatabaseConfig's
// shape (DSN-based, unlike the teacher's host/port/user/password/database
// split); cmd/engine passes config.DatabaseConfig.DSN through as-is.
type Config struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

// DB wraps the pgx connection pool.
type DB struct {
	Pool   *pgxpool.Pool
	logger zerolog.Logger
}

// NewDB opens a pooled Postgres connection and verifies it with a ping.
func NewDB(ctx context.Context, cfg Config, logger zerolog.Logger) (*DB, error) {
	logger = logger.With().Str("component", "database").Logger()

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("database: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	poolConfig.HealthCheckPeriod = time.Minute

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(pingCtx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("database: create pool: %w", err)
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("database: ping: %w", err)
	}

	logger.Info().Msg("connected to postgres")
	return &DB{Pool: pool, logger: logger}, nil
}

// Close releases the connection pool.
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
		db.logger.Info().Msg("database connection closed")
	}
}

// migrations is the engine's schema, applied in order; idempotent via
// IF NOT EXISTS, matching the teacher's migration-list idiom.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS positions (
		signal_id      UUID PRIMARY KEY,
		symbol         VARCHAR(20) NOT NULL,
		status         VARCHAR(20) NOT NULL,
		side           VARCHAR(4) NOT NULL,
		opened_at      TIMESTAMPTZ NOT NULL,
		closed_at      TIMESTAMPTZ,
		state          JSONB NOT NULL,
		updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_positions_symbol_status ON positions(symbol, status)`,

	`CREATE TABLE IF NOT EXISTS journal_entries (
		id             BIGSERIAL PRIMARY KEY,
		signal_id      UUID NOT NULL,
		symbol         VARCHAR(20) NOT NULL,
		kind           VARCHAR(40) NOT NULL,
		side           VARCHAR(4) NOT NULL,
		entry_price    DECIMAL(20, 8) NOT NULL,
		exit_price     DECIMAL(20, 8),
		quantity       DECIMAL(20, 8) NOT NULL,
		technical_stop DECIMAL(20, 8) NOT NULL,
		pnl            DECIMAL(20, 8),
		reason         VARCHAR(40),
		opened_at      TIMESTAMPTZ NOT NULL,
		closed_at      TIMESTAMPTZ,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_journal_symbol ON journal_entries(symbol)`,
	`CREATE INDEX IF NOT EXISTS idx_journal_signal_id ON journal_entries(signal_id)`,
}

// RunMigrations applies the engine's schema. Safe to call on every startup.
func (db *DB) RunMigrations(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("database: migration failed: %w", err)
		}
	}
	db.logger.Info().Int("count", len(migrations)).Msg("migrations applied")
	return nil
}
