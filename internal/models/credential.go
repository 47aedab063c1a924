package models

import (
	"time"
)

// Environment selects which PACER deployment a credential targets.
type Environment string

const (
	EnvironmentProduction Environment = "production"
	EnvironmentQA         Environment = "qa"
)

// VerificationStatus tracks whether a stored credential has been proven
// against the live authentication endpoint.
type VerificationStatus string

const (
	VerificationPending  VerificationStatus = "pending"
	VerificationVerified VerificationStatus = "verified"
	VerificationFailed   VerificationStatus = "failed"
)

// Credential is a tenant's PACER login material. The secret is stored
// encrypted; re-saving a credential resets verification and clears any
// cached session token. Credentials are deactivated, never deleted.
type Credential struct {
	Identity        string             `json:"identity"`
	Username        string             `json:"username"`
	EncryptedSecret []byte             `json:"-"`
	ClientCode      string             `json:"client_code,omitempty"`
	Environment     Environment        `json:"environment"`
	DailyLimit      float64            `json:"daily_limit"`
	MonthlyLimit    float64            `json:"monthly_limit"`
	Verification    VerificationStatus `json:"verification"`
	Active          bool               `json:"active"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// SearchHistoryEntry is one row of the append-only search audit log.
type SearchHistoryEntry struct {
	ID          string    `json:"id"`
	Identity    string    `json:"identity"`
	SearchType  string    `json:"search_type"`
	Criteria    string    `json:"criteria"`
	ResultCount int       `json:"result_count"`
	Cost        float64   `json:"cost"`
	Timestamp   time.Time `json:"timestamp"`
}
