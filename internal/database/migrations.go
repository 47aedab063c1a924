package database

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

type migration struct {
	version string
	sql     string
}

// migrations run in order inside individual transactions. Never edit an
// applied migration; append a new one.
var migrations = []migration{
	{
		version: "001_credentials",
		sql: `
			CREATE TABLE IF NOT EXISTS credentials (
				identity VARCHAR(64) PRIMARY KEY,
				username VARCHAR(255) NOT NULL,
				encrypted_secret BYTEA NOT NULL,
				client_code VARCHAR(64) NOT NULL DEFAULT '',
				environment VARCHAR(16) NOT NULL DEFAULT 'production',
				daily_limit NUMERIC(10,2) NOT NULL DEFAULT 0,
				monthly_limit NUMERIC(10,2) NOT NULL DEFAULT 0,
				verification VARCHAR(16) NOT NULL DEFAULT 'pending',
				active BOOLEAN NOT NULL DEFAULT TRUE,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)
		`,
	},
	{
		version: "002_cost_records",
		sql: `
			CREATE TABLE IF NOT EXISTS cost_records (
				id UUID PRIMARY KEY,
				operation VARCHAR(32) NOT NULL,
				cost NUMERIC(10,2) NOT NULL,
				identity VARCHAR(64) NOT NULL,
				case_id VARCHAR(128) NOT NULL DEFAULT '',
				document_id VARCHAR(128) NOT NULL DEFAULT '',
				court VARCHAR(64) NOT NULL DEFAULT '',
				pages INTEGER NOT NULL DEFAULT 0,
				recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_cost_records_identity_time
				ON cost_records (identity, recorded_at DESC)
		`,
	},
	{
		version: "003_search_history",
		sql: `
			CREATE TABLE IF NOT EXISTS search_history (
				id UUID PRIMARY KEY,
				identity VARCHAR(64) NOT NULL,
				search_type VARCHAR(16) NOT NULL,
				criteria TEXT NOT NULL DEFAULT '',
				result_count INTEGER NOT NULL DEFAULT 0,
				cost NUMERIC(10,2) NOT NULL DEFAULT 0,
				searched_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS idx_search_history_identity_time
				ON search_history (identity, searched_at DESC)
		`,
	},
	{
		version: "004_downloaded_documents",
		sql: `
			CREATE TABLE IF NOT EXISTS downloaded_documents (
				document_id VARCHAR(128) PRIMARY KEY,
				case_id VARCHAR(128) NOT NULL,
				court VARCHAR(64) NOT NULL DEFAULT '',
				storage_path TEXT NOT NULL DEFAULT '',
				size_bytes BIGINT NOT NULL,
				page_count INTEGER NOT NULL,
				checksum VARCHAR(64) NOT NULL,
				cost NUMERIC(10,2) NOT NULL,
				fetched_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)
		`,
	},
	{
		version: "005_notification_rules",
		sql: `
			CREATE TABLE IF NOT EXISTS notification_rules (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL UNIQUE,
				filing_types TEXT[] NOT NULL DEFAULT '{}',
				impact_levels TEXT[] NOT NULL DEFAULT '{}',
				urgency_levels TEXT[] NOT NULL DEFAULT '{}',
				keywords TEXT[] NOT NULL DEFAULT '{}',
				roles TEXT[] NOT NULL DEFAULT '{}',
				channels TEXT[] NOT NULL DEFAULT '{}',
				escalation_delay_seconds INTEGER NOT NULL DEFAULT 3600,
				enabled BOOLEAN NOT NULL DEFAULT TRUE,
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)
		`,
	},
	{
		version: "006_acknowledgments",
		sql: `
			CREATE TABLE IF NOT EXISTS acknowledgments (
				filing_id VARCHAR(128) PRIMARY KEY,
				acknowledged_by VARCHAR(255) NOT NULL,
				acknowledged_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			)
		`,
	},
	{
		version: "007_seed_emergency_rule",
		sql: `
			INSERT INTO notification_rules
				(id, name, filing_types, urgency_levels, roles, channels, escalation_delay_seconds, enabled)
			VALUES (
				'c0a5b6ae-1111-4f62-9a46-3f18be2d0001',
				'emergency_filings',
				ARRAY['temporary_restraining_order', 'injunction'],
				ARRAY['emergency'],
				ARRAY['legal', 'operations'],
				ARRAY['email', 'sms', 'push'],
				3600,
				TRUE
			)
			ON CONFLICT (name) DO NOTHING
		`,
	},
	{
		// 007 seeded a filing type the classifier never emits, so the
		// injunction predicate of the default rule could not match.
		version: "008_emergency_rule_injunction_type",
		sql: `
			UPDATE notification_rules
			SET filing_types = array_replace(filing_types, 'injunction', 'preliminary_injunction'),
				updated_at = NOW()
			WHERE name = 'emergency_filings'
		`,
	},
}

// RunMigrations applies all pending schema migrations in order.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	logger.Info("checking for pending database migrations")

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`)
	if err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	applied := make(map[string]bool)
	rows, err := db.QueryContext(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("failed to scan migration version: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to read applied migrations: %w", err)
	}

	pendingCount := 0
	for _, m := range migrations {
		if applied[m.version] {
			continue
		}

		pendingCount++
		logger.Info("applying migration", "version", m.version)

		tx, err := db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction for %s: %w", m.version, err)
		}

		if _, err := tx.ExecContext(ctx, m.sql); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to execute migration %s: %w", m.version, err)
		}

		if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", m.version); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %s: %w", m.version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %s: %w", m.version, err)
		}
	}

	if pendingCount == 0 {
		logger.Info("no pending migrations found")
	} else {
		logger.Info("migrations completed", "count", pendingCount)
	}

	return nil
}
