// internal/common/database/postgres.go
package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"p2p-lending-workers/internal/common/config"
)

// PostgresClient wraps the SQL database connection
type PostgresClient struct {
	DB *sql.DB
}

// NewPostgres opens a lib/pq pool. The connection is verified by Ping.
func NewPostgres(cfg config.PostgresConfig) (*PostgresClient, error) {
	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxIdle)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(5 * time.Minute)

	return &PostgresClient{DB: db}, nil
}

func (c *PostgresClient) Ping(ctx context.Context) error {
	return c.DB.PingContext(ctx)
}

func (c *PostgresClient) Close() error {
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}

// schema lists the tables the lending workers read and write, in dependency order.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT,
		phone TEXT,
		full_name TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS applicant_profiles (
		application_id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id),
		monthly_income NUMERIC(14,2),
		card_balance NUMERIC(14,2),
		card_rate_pct NUMERIC(7,4),
		tenure_months INTEGER,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS loans (
		id UUID PRIMARY KEY,
		application_id TEXT NOT NULL UNIQUE,
		borrower_id TEXT NOT NULL,
		risk_tier TEXT NOT NULL,
		borrower_rate_pct NUMERIC(7,4) NOT NULL,
		investor_yield_pct NUMERIC(7,4) NOT NULL,
		net_amount NUMERIC(14,2) NOT NULL,
		origination_fee NUMERIC(14,2) NOT NULL,
		gross_principal NUMERIC(14,2) NOT NULL,
		term_months INTEGER NOT NULL,
		annuity_payment NUMERIC(14,2) NOT NULL,
		blended_monthly_payment NUMERIC(14,2) NOT NULL,
		total_credit_cost NUMERIC(14,2) NOT NULL,
		status TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS audit_log (
		id BIGSERIAL PRIMARY KEY,
		event_type TEXT NOT NULL,
		resource_type TEXT NOT NULL,
		resource_id TEXT NOT NULL,
		details JSONB,
		created_at TIMESTAMPTZ NOT NULL
	)`,
}

// EnsureSchema creates the lending tables when they are missing.
func (c *PostgresClient) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := c.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
