package models

import (
	"time"
)

// OperationKind identifies a billable (or free) PACER operation.
type OperationKind string

const (
	OperationCaseSearch       OperationKind = "case_search"
	OperationPartySearch      OperationKind = "party_search"
	OperationDocketView       OperationKind = "docket_view"
	OperationDocumentDownload OperationKind = "document_download"
	OperationMetadata         OperationKind = "metadata"
)

// CostRecord is one row of the append-only financial ledger. Records are
// never mutated or deleted; daily and monthly spend is derived from them.
type CostRecord struct {
	ID         string        `json:"id"`
	Operation  OperationKind `json:"operation"`
	Cost       float64       `json:"cost"`
	Identity   string        `json:"identity"`
	CaseID     string        `json:"case_id,omitempty"`
	DocumentID string        `json:"document_id,omitempty"`
	Court      string        `json:"court,omitempty"`
	Pages      int           `json:"pages"`
	Timestamp  time.Time     `json:"timestamp"`
}

// UsageReport aggregates ledger entries over a lookback window.
type UsageReport struct {
	Identity        string                    `json:"identity"`
	Days            int                       `json:"days"`
	TotalCost       float64                   `json:"total_cost"`
	TotalPages      int                       `json:"total_pages"`
	Operations      int                       `json:"operations"`
	ByOperation     map[OperationKind]float64 `json:"by_operation"`
	ByCourt         map[string]float64        `json:"by_court"`
	DailySpend      float64                   `json:"daily_spend"`
	DailyLimit      float64                   `json:"daily_limit"`
	MonthlySpend    float64                   `json:"monthly_spend"`
	MonthlyLimit    float64                   `json:"monthly_limit"`
	DailyHeadroom   float64                   `json:"daily_headroom"`
	MonthlyHeadroom float64                   `json:"monthly_headroom"`
	GeneratedAt     time.Time                 `json:"generated_at"`
}
