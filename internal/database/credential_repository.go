package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/docketwatch/docketwatch/internal/models"
)

// PostgresCredentialRepository stores tenant login material. It also serves
// per-identity budget limits to the cost tracker.
type PostgresCredentialRepository struct {
	db *sql.DB
}

// NewPostgresCredentialRepository creates a new PostgreSQL credential repository.
func NewPostgresCredentialRepository(db *sql.DB) *PostgresCredentialRepository {
	return &PostgresCredentialRepository{db: db}
}

// Save upserts a credential. Re-saving resets verification to pending; the
// caller is responsible for invalidating any cached session token.
func (r *PostgresCredentialRepository) Save(ctx context.Context, cred models.Credential) error {
	query := `
		INSERT INTO credentials
			(identity, username, encrypted_secret, client_code, environment,
			 daily_limit, monthly_limit, verification, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW(), NOW())
		ON CONFLICT (identity) DO UPDATE SET
			username = EXCLUDED.username,
			encrypted_secret = EXCLUDED.encrypted_secret,
			client_code = EXCLUDED.client_code,
			environment = EXCLUDED.environment,
			daily_limit = EXCLUDED.daily_limit,
			monthly_limit = EXCLUDED.monthly_limit,
			verification = 'pending',
			active = EXCLUDED.active,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		cred.Identity,
		cred.Username,
		cred.EncryptedSecret,
		cred.ClientCode,
		string(cred.Environment),
		cred.DailyLimit,
		cred.MonthlyLimit,
		string(models.VerificationPending),
		cred.Active,
	)
	if err != nil {
		return fmt.Errorf("failed to save credential: %w", err)
	}
	return nil
}

// Get retrieves a credential by identity. Returns nil when not found.
func (r *PostgresCredentialRepository) Get(ctx context.Context, identity string) (*models.Credential, error) {
	query := `
		SELECT identity, username, encrypted_secret, client_code, environment,
		       daily_limit, monthly_limit, verification, active, created_at, updated_at
		FROM credentials
		WHERE identity = $1
	`

	var cred models.Credential
	var environment, verification string

	err := r.db.QueryRowContext(ctx, query, identity).Scan(
		&cred.Identity,
		&cred.Username,
		&cred.EncryptedSecret,
		&cred.ClientCode,
		&environment,
		&cred.DailyLimit,
		&cred.MonthlyLimit,
		&verification,
		&cred.Active,
		&cred.CreatedAt,
		&cred.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query credential: %w", err)
	}

	cred.Environment = models.Environment(environment)
	cred.Verification = models.VerificationStatus(verification)
	return &cred, nil
}

// SetVerification records the outcome of a verification attempt.
func (r *PostgresCredentialRepository) SetVerification(ctx context.Context, identity string, status models.VerificationStatus) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE credentials SET verification = $1, updated_at = NOW() WHERE identity = $2",
		string(status), identity)
	if err != nil {
		return fmt.Errorf("failed to update verification: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check verification update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("credential not found: %s", identity)
	}
	return nil
}

// Deactivate disables a credential. Credentials are never deleted; the
// ledger references them.
func (r *PostgresCredentialRepository) Deactivate(ctx context.Context, identity string) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE credentials SET active = FALSE, updated_at = NOW() WHERE identity = $1",
		identity)
	if err != nil {
		return fmt.Errorf("failed to deactivate credential: %w", err)
	}
	return nil
}

// BudgetLimits returns the per-identity spend ceilings. Zero means no
// override; the tracker falls back to the configured defaults.
func (r *PostgresCredentialRepository) BudgetLimits(ctx context.Context, identity string) (float64, float64, error) {
	var daily, monthly float64
	err := r.db.QueryRowContext(ctx,
		"SELECT daily_limit, monthly_limit FROM credentials WHERE identity = $1",
		identity).Scan(&daily, &monthly)
	if err == sql.ErrNoRows {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to query budget limits: %w", err)
	}
	return daily, monthly, nil
}
