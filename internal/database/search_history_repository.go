package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docketwatch/docketwatch/internal/models"
)

// PostgresSearchHistoryRepository is the append-only search audit log.
type PostgresSearchHistoryRepository struct {
	db *sql.DB
}

// NewPostgresSearchHistoryRepository creates a new PostgreSQL search history repository.
func NewPostgresSearchHistoryRepository(db *sql.DB) *PostgresSearchHistoryRepository {
	return &PostgresSearchHistoryRepository{db: db}
}

// AppendSearchHistory inserts one audit row.
func (r *PostgresSearchHistoryRepository) AppendSearchHistory(ctx context.Context, entry models.SearchHistoryEntry) error {
	query := `
		INSERT INTO search_history
			(id, identity, search_type, criteria, result_count, cost, searched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.ID,
		entry.Identity,
		entry.SearchType,
		entry.Criteria,
		entry.ResultCount,
		entry.Cost,
		entry.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("failed to append search history: %w", err)
	}
	return nil
}

// Recent returns an identity's most recent searches, newest first.
func (r *PostgresSearchHistoryRepository) Recent(ctx context.Context, identity string, limit int) ([]models.SearchHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, identity, search_type, criteria, result_count, cost, searched_at
		FROM search_history
		WHERE identity = $1
		ORDER BY searched_at DESC
		LIMIT $2
	`

	rows, err := r.db.QueryContext(ctx, query, identity, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query search history: %w", err)
	}
	defer rows.Close()

	var entries []models.SearchHistoryEntry
	for rows.Next() {
		var entry models.SearchHistoryEntry
		err := rows.Scan(
			&entry.ID,
			&entry.Identity,
			&entry.SearchType,
			&entry.Criteria,
			&entry.ResultCount,
			&entry.Cost,
			&entry.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search history entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read search history: %w", err)
	}

	return entries, nil
}
