// Package postgres opens the shared database handle. Stores receive *sql.DB
// and own their statements; this package owns connection lifecycle and the
// schema bootstrap.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, url string) (*sql.DB, error) {
	db, err := sql.Open("pgx", url)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return db, nil
}

// Migrate applies the schema. Statements are idempotent so startup can run
// them unconditionally.
func Migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS donations (
			id UUID PRIMARY KEY,
			donor_address VARCHAR(64) NOT NULL,
			amount_drops BIGINT NOT NULL,
			currency VARCHAR(10) NOT NULL DEFAULT 'XRP',
			payment_tx_hash VARCHAR(128) UNIQUE NOT NULL,
			batch_id VARCHAR(64),
			batch_status VARCHAR(20) NOT NULL DEFAULT 'pending',
			created_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_donations_donor ON donations (donor_address)`,
		`CREATE INDEX IF NOT EXISTS idx_donations_batch_status ON donations (batch_status)`,
		`CREATE TABLE IF NOT EXISTS batches (
			batch_id VARCHAR(64) PRIMARY KEY,
			escrow_tx_hash VARCHAR(128) UNIQUE,
			finish_tx_hash VARCHAR(128),
			sequence BIGINT NOT NULL DEFAULT 0,
			currency VARCHAR(10) NOT NULL DEFAULT 'XRP',
			total_amount_drops BIGINT NOT NULL,
			donor_count INT NOT NULL,
			status VARCHAR(20) NOT NULL DEFAULT 'pending',
			trigger_type VARCHAR(20),
			finish_after BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_batches_status ON batches (status)`,
		`CREATE TABLE IF NOT EXISTS disasters (
			disaster_id VARCHAR(64) PRIMARY KEY,
			disaster_type VARCHAR(50) NOT NULL,
			location VARCHAR(100) NOT NULL,
			severity INT NOT NULL,
			total_allocated_drops BIGINT NOT NULL DEFAULT 0,
			total_rlusd_allocated_drops BIGINT NOT NULL DEFAULT 0,
			status VARCHAR(20) NOT NULL DEFAULT 'active',
			created_at TIMESTAMPTZ NOT NULL,
			completed_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS org_escrows (
			id UUID PRIMARY KEY,
			disaster_id VARCHAR(64) NOT NULL REFERENCES disasters (disaster_id),
			org_id BIGINT NOT NULL,
			org_address VARCHAR(64) NOT NULL,
			escrow_tx_hash VARCHAR(128) UNIQUE,
			finish_tx_hash VARCHAR(128),
			sequence BIGINT NOT NULL DEFAULT 0,
			amount_drops BIGINT NOT NULL,
			currency VARCHAR(10) NOT NULL DEFAULT 'XRP',
			status VARCHAR(20) NOT NULL DEFAULT 'locked',
			error_message TEXT,
			finish_after BIGINT NOT NULL,
			cancel_after BIGINT,
			created_at TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_org_escrows_disaster ON org_escrows (disaster_id)`,
		`CREATE INDEX IF NOT EXISTS idx_org_escrows_status ON org_escrows (status)`,
		`CREATE TABLE IF NOT EXISTS organizations (
			org_id BIGSERIAL PRIMARY KEY,
			name VARCHAR(100) UNIQUE NOT NULL,
			cause_type VARCHAR(50) NOT NULL,
			wallet_address VARCHAR(64) UNIQUE NOT NULL,
			need_score INT NOT NULL,
			password_hash VARCHAR(100),
			total_received_drops BIGINT NOT NULL DEFAULT 0,
			total_rlusd_received_drops BIGINT NOT NULL DEFAULT 0,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
