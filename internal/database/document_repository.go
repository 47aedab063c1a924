package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docketwatch/docketwatch/internal/models"
)

// PostgresDocumentRepository records completed document downloads.
type PostgresDocumentRepository struct {
	db *sql.DB
}

// NewPostgresDocumentRepository creates a new PostgreSQL document repository.
func NewPostgresDocumentRepository(db *sql.DB) *PostgresDocumentRepository {
	return &PostgresDocumentRepository{db: db}
}

// SaveDownloadedDocument upserts the download record. Re-downloading the
// same document replaces the row; the ledger keeps both charges.
func (r *PostgresDocumentRepository) SaveDownloadedDocument(ctx context.Context, doc models.DownloadedDocument) error {
	query := `
		INSERT INTO downloaded_documents
			(document_id, case_id, court, storage_path, size_bytes, page_count, checksum, cost, fetched_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (document_id) DO UPDATE SET
			storage_path = EXCLUDED.storage_path,
			size_bytes = EXCLUDED.size_bytes,
			page_count = EXCLUDED.page_count,
			checksum = EXCLUDED.checksum,
			cost = EXCLUDED.cost,
			fetched_at = EXCLUDED.fetched_at
	`

	_, err := r.db.ExecContext(ctx, query,
		doc.DocumentID,
		doc.CaseID,
		doc.Court,
		doc.StoragePath,
		doc.Size,
		doc.PageCount,
		doc.Checksum,
		doc.Cost,
		doc.FetchedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save downloaded document: %w", err)
	}
	return nil
}

// Get retrieves a download record by document ID. Returns nil when not found.
func (r *PostgresDocumentRepository) Get(ctx context.Context, documentID string) (*models.DownloadedDocument, error) {
	query := `
		SELECT document_id, case_id, court, storage_path, size_bytes, page_count, checksum, cost, fetched_at
		FROM downloaded_documents
		WHERE document_id = $1
	`

	var doc models.DownloadedDocument
	err := r.db.QueryRowContext(ctx, query, documentID).Scan(
		&doc.DocumentID,
		&doc.CaseID,
		&doc.Court,
		&doc.StoragePath,
		&doc.Size,
		&doc.PageCount,
		&doc.Checksum,
		&doc.Cost,
		&doc.FetchedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query downloaded document: %w", err)
	}

	return &doc, nil
}
