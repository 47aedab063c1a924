package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docketwatch/docketwatch/internal/models"
)

// PostgresAckRepository persists alert acknowledgments so escalation state
// survives restarts.
type PostgresAckRepository struct {
	db *sql.DB
}

// NewPostgresAckRepository creates a new PostgreSQL acknowledgment repository.
func NewPostgresAckRepository(db *sql.DB) *PostgresAckRepository {
	return &PostgresAckRepository{db: db}
}

// SaveAcknowledgment records the first acknowledgment for a filing. Later
// acknowledgments are no-ops; the first responder wins.
func (r *PostgresAckRepository) SaveAcknowledgment(ctx context.Context, ack models.Acknowledgment) error {
	query := `
		INSERT INTO acknowledgments (filing_id, acknowledged_by, acknowledged_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (filing_id) DO NOTHING
	`

	_, err := r.db.ExecContext(ctx, query, ack.FilingID, ack.AcknowledgedBy, ack.AcknowledgedAt)
	if err != nil {
		return fmt.Errorf("failed to save acknowledgment: %w", err)
	}
	return nil
}

// IsAcknowledged reports whether a filing has been acknowledged.
func (r *PostgresAckRepository) IsAcknowledged(ctx context.Context, filingID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM acknowledgments WHERE filing_id = $1)",
		filingID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check acknowledgment: %w", err)
	}
	return exists, nil
}
