package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/docketwatch/docketwatch/internal/models"
)

// PostgresCostRepository is the append-only billing ledger. Rows are never
// updated or deleted.
type PostgresCostRepository struct {
	db *sql.DB
}

// NewPostgresCostRepository creates a new PostgreSQL cost repository.
func NewPostgresCostRepository(db *sql.DB) *PostgresCostRepository {
	return &PostgresCostRepository{db: db}
}

// AppendCostRecord inserts one ledger row.
func (r *PostgresCostRepository) AppendCostRecord(ctx context.Context, record models.CostRecord) error {
	query := `
		INSERT INTO cost_records
			(id, operation, cost, identity, case_id, document_id, court, pages, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		string(record.Operation),
		record.Cost,
		record.Identity,
		record.CaseID,
		record.DocumentID,
		record.Court,
		record.Pages,
		record.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append cost record: %w", err)
	}
	return nil
}

// SpendSince sums an identity's spend from the given instant onward.
func (r *PostgresCostRepository) SpendSince(ctx context.Context, identity string, since time.Time) (float64, error) {
	var total float64
	err := r.db.QueryRowContext(ctx,
		"SELECT COALESCE(SUM(cost), 0) FROM cost_records WHERE identity = $1 AND recorded_at >= $2",
		identity, since).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("failed to sum spend: %w", err)
	}
	return total, nil
}

// RecordsSince returns an identity's ledger rows from the given instant
// onward, oldest first.
func (r *PostgresCostRepository) RecordsSince(ctx context.Context, identity string, since time.Time) ([]models.CostRecord, error) {
	query := `
		SELECT id, operation, cost, identity, case_id, document_id, court, pages, recorded_at
		FROM cost_records
		WHERE identity = $1 AND recorded_at >= $2
		ORDER BY recorded_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, identity, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query cost records: %w", err)
	}
	defer rows.Close()

	var records []models.CostRecord
	for rows.Next() {
		var record models.CostRecord
		var operation string

		err := rows.Scan(
			&record.ID,
			&operation,
			&record.Cost,
			&record.Identity,
			&record.CaseID,
			&record.DocumentID,
			&record.Court,
			&record.Pages,
			&record.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cost record: %w", err)
		}

		record.Operation = models.OperationKind(operation)
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read cost records: %w", err)
	}

	return records, nil
}
