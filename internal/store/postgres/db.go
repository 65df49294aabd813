// Package postgres implements store.Store on PostgreSQL using pgx.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/doculedger/doculedger/internal/config"
)

// Querier supports database operations for both the pool and transactions.
type Querier interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ Querier = (*pgxpool.Pool)(nil)
var _ Querier = (pgx.Tx)(nil)

// DB wraps the pgx connection pool.
type DB struct {
	pool *pgxpool.Pool
	log  zerolog.Logger
}

// NewDB connects to PostgreSQL, verifies the connection and applies the
// schema.
func NewDB(ctx context.Context, log zerolog.Logger, cfg *config.PostgresConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse PostgreSQL connection string: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create PostgreSQL connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping PostgreSQL: %w", err)
	}

	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Info().Msg("Connected to PostgreSQL")

	return &DB{pool: pool, log: log}, nil
}

// Pool exposes the underlying connection pool.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Close shuts down the connection pool.
func (db *DB) Close() {
	db.pool.Close()
	db.log.Info().Msg("Closed PostgreSQL connection")
}

// schemaSQL is idempotent: every statement tolerates an existing object, so
// it runs unconditionally at startup.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
    id                UUID PRIMARY KEY,
    filename          VARCHAR(255) NOT NULL,
    source_currency   VARCHAR(10) NOT NULL DEFAULT '',
    status            VARCHAR(20) NOT NULL DEFAULT 'pending',
    transaction_count INTEGER NOT NULL DEFAULT 0,
    summary           TEXT NOT NULL DEFAULT '',
    error_message     TEXT NOT NULL DEFAULT '',
    uploaded_at       TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS transactions (
    id                UUID PRIMARY KEY,
    document_id       UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    transaction_date  DATE NOT NULL,
    description       VARCHAR(500) NOT NULL DEFAULT '',
    category          VARCHAR(100) NOT NULL DEFAULT 'other',
    transaction_type  VARCHAR(20) NOT NULL,
    amount_original   NUMERIC(12, 2) NOT NULL,
    currency_original VARCHAR(10) NOT NULL,
    amount_base       NUMERIC(14, 2) NOT NULL,
    exchange_rate     NUMERIC(16, 6) NOT NULL,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_transactions_document ON transactions (document_id);
CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions (transaction_date);

CREATE TABLE IF NOT EXISTS budgets (
    id            SERIAL PRIMARY KEY,
    category      VARCHAR(100) UNIQUE NOT NULL,
    monthly_limit NUMERIC(12, 2) NOT NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE OR REPLACE VIEW monthly_summary AS
SELECT
    DATE_TRUNC('month', transaction_date) AS month,
    category,
    transaction_type,
    SUM(amount_base) AS total,
    COUNT(*) AS transaction_count
FROM transactions
GROUP BY 1, 2, 3
ORDER BY 1 DESC, 4 DESC;
`
