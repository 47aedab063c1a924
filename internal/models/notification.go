package models

import (
	"time"
)

// Channel identifies a notification delivery transport.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelSMS     Channel = "sms"
	ChannelSlack   Channel = "slack"
	ChannelTeams   Channel = "teams"
	ChannelWebhook Channel = "webhook"
	ChannelPush    Channel = "push"
)

// NotificationRule matches filings to recipients. Rules are operator-edited
// configuration; matching at runtime is read-only. Empty predicate slices
// match everything for that dimension.
type NotificationRule struct {
	ID              string         `json:"id"`
	Name            string         `json:"name"`
	FilingTypes     []FilingType   `json:"filing_types,omitempty"`
	ImpactLevels    []ImpactLevel  `json:"impact_levels,omitempty"`
	UrgencyLevels   []UrgencyLevel `json:"urgency_levels,omitempty"`
	Keywords        []string       `json:"keywords,omitempty"`
	Roles           []string       `json:"roles"`
	Channels        []Channel      `json:"channels"`
	EscalationDelay time.Duration  `json:"escalation_delay"`
	Enabled         bool           `json:"enabled"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// DeliveryStatus is the outcome of one send attempt.
type DeliveryStatus string

const (
	DeliverySent   DeliveryStatus = "sent"
	DeliveryFailed DeliveryStatus = "failed"
)

// Delivery is the per-target, per-channel result of a dispatched alert.
type Delivery struct {
	ID       string         `json:"id"`
	FilingID string         `json:"filing_id"`
	RuleID   string         `json:"rule_id"`
	Role     string         `json:"role"`
	Channel  Channel        `json:"channel"`
	Status   DeliveryStatus `json:"status"`
	Error    string         `json:"error,omitempty"`
	SentAt   time.Time      `json:"sent_at"`
}

// Acknowledgment records that a stakeholder has seen an alert, cancelling
// any pending escalation for the filing.
type Acknowledgment struct {
	FilingID       string    `json:"filing_id"`
	AcknowledgedBy string    `json:"acknowledged_by"`
	AcknowledgedAt time.Time `json:"acknowledged_at"`
}
