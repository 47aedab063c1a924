package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/docketwatch/docketwatch/internal/models"
)

// PostgresRuleRepository stores notification rules. It backs both the
// operator CRUD endpoints and the engine's ActiveRules lookup.
type PostgresRuleRepository struct {
	db *sql.DB
}

// NewPostgresRuleRepository creates a new PostgreSQL rule repository.
func NewPostgresRuleRepository(db *sql.DB) *PostgresRuleRepository {
	return &PostgresRuleRepository{db: db}
}

const ruleColumns = `id, name, filing_types, impact_levels, urgency_levels,
	keywords, roles, channels, escalation_delay_seconds, enabled, updated_at`

// ActiveRules returns all enabled rules.
func (r *PostgresRuleRepository) ActiveRules(ctx context.Context) ([]models.NotificationRule, error) {
	query := "SELECT " + ruleColumns + " FROM notification_rules WHERE enabled = TRUE ORDER BY name"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// List returns all rules, enabled or not.
func (r *PostgresRuleRepository) List(ctx context.Context) ([]models.NotificationRule, error) {
	query := "SELECT " + ruleColumns + " FROM notification_rules ORDER BY name"

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query rules: %w", err)
	}
	defer rows.Close()

	return scanRules(rows)
}

// Get retrieves one rule by ID. Returns nil when not found.
func (r *PostgresRuleRepository) Get(ctx context.Context, id string) (*models.NotificationRule, error) {
	query := "SELECT " + ruleColumns + " FROM notification_rules WHERE id = $1"

	rows, err := r.db.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query rule: %w", err)
	}
	defer rows.Close()

	rules, err := scanRules(rows)
	if err != nil {
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}
	return &rules[0], nil
}

// Save upserts a rule by ID.
func (r *PostgresRuleRepository) Save(ctx context.Context, rule models.NotificationRule) error {
	query := `
		INSERT INTO notification_rules
			(id, name, filing_types, impact_levels, urgency_levels, keywords,
			 roles, channels, escalation_delay_seconds, enabled, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			filing_types = EXCLUDED.filing_types,
			impact_levels = EXCLUDED.impact_levels,
			urgency_levels = EXCLUDED.urgency_levels,
			keywords = EXCLUDED.keywords,
			roles = EXCLUDED.roles,
			channels = EXCLUDED.channels,
			escalation_delay_seconds = EXCLUDED.escalation_delay_seconds,
			enabled = EXCLUDED.enabled,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		rule.ID,
		rule.Name,
		pq.Array(filingTypesToStrings(rule.FilingTypes)),
		pq.Array(impactLevelsToStrings(rule.ImpactLevels)),
		pq.Array(urgencyLevelsToStrings(rule.UrgencyLevels)),
		pq.Array(rule.Keywords),
		pq.Array(rule.Roles),
		pq.Array(channelsToStrings(rule.Channels)),
		int(rule.EscalationDelay/time.Second),
		rule.Enabled,
	)
	if err != nil {
		return fmt.Errorf("failed to save rule: %w", err)
	}
	return nil
}

// Delete removes a rule.
func (r *PostgresRuleRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM notification_rules WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete rule: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rule deletion: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("rule not found: %s", id)
	}
	return nil
}

func scanRules(rows *sql.Rows) ([]models.NotificationRule, error) {
	var rules []models.NotificationRule
	for rows.Next() {
		var (
			rule          models.NotificationRule
			filingTypes   []string
			impactLevels  []string
			urgencyLevels []string
			keywords      []string
			roles         []string
			channels      []string
			delaySeconds  int
		)

		err := rows.Scan(
			&rule.ID,
			&rule.Name,
			pq.Array(&filingTypes),
			pq.Array(&impactLevels),
			pq.Array(&urgencyLevels),
			pq.Array(&keywords),
			pq.Array(&roles),
			pq.Array(&channels),
			&delaySeconds,
			&rule.Enabled,
			&rule.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan rule: %w", err)
		}

		rule.FilingTypes = stringsToFilingTypes(filingTypes)
		rule.ImpactLevels = stringsToImpactLevels(impactLevels)
		rule.UrgencyLevels = stringsToUrgencyLevels(urgencyLevels)
		rule.Keywords = keywords
		rule.Roles = roles
		rule.Channels = stringsToChannels(channels)
		rule.EscalationDelay = time.Duration(delaySeconds) * time.Second
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read rules: %w", err)
	}

	return rules, nil
}

func filingTypesToStrings(in []models.FilingType) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func impactLevelsToStrings(in []models.ImpactLevel) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func urgencyLevelsToStrings(in []models.UrgencyLevel) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func channelsToStrings(in []models.Channel) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = string(v)
	}
	return out
}

func stringsToFilingTypes(in []string) []models.FilingType {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.FilingType, len(in))
	for i, v := range in {
		out[i] = models.FilingType(v)
	}
	return out
}

func stringsToImpactLevels(in []string) []models.ImpactLevel {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.ImpactLevel, len(in))
	for i, v := range in {
		out[i] = models.ImpactLevel(v)
	}
	return out
}

func stringsToUrgencyLevels(in []string) []models.UrgencyLevel {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.UrgencyLevel, len(in))
	for i, v := range in {
		out[i] = models.UrgencyLevel(v)
	}
	return out
}

func stringsToChannels(in []string) []models.Channel {
	if len(in) == 0 {
		return nil
	}
	out := make([]models.Channel, len(in))
	for i, v := range in {
		out[i] = models.Channel(v)
	}
	return out
}
