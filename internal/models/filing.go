package models

import (
	"time"
)

// Filing is an incoming legal document to be classified, scored, and routed.
type Filing struct {
	ID       string    `json:"id"`
	CaseID   string    `json:"case_id,omitempty"`
	Court    string    `json:"court,omitempty"`
	Filename string    `json:"filename"`
	Title    string    `json:"title"`
	Content  string    `json:"content"`
	FiledAt  time.Time `json:"filed_at"`
}

// FilingType is the primary classification of a filing.
type FilingType string

const (
	FilingTypeTRO             FilingType = "temporary_restraining_order"
	FilingTypeInjunction      FilingType = "preliminary_injunction"
	FilingTypeMotionToDismiss FilingType = "motion_to_dismiss"
	FilingTypeSummaryJudgment FilingType = "summary_judgment"
	FilingTypeComplaint       FilingType = "complaint"
	FilingTypeSanctions       FilingType = "sanctions_motion"
	FilingTypeDiscovery       FilingType = "discovery_request"
	FilingTypeSubpoena        FilingType = "subpoena"
	FilingTypeOrder           FilingType = "court_order"
	FilingTypeJudgment        FilingType = "judgment"
	FilingTypeNotice          FilingType = "notice"
	FilingTypeSettlement      FilingType = "settlement"
	FilingTypeBankruptcy      FilingType = "bankruptcy_petition"
	FilingTypeAppeal          FilingType = "appeal"
	FilingTypeOther           FilingType = "other"
)

// ImpactLevel is the combined business impact of a filing.
type ImpactLevel string

const (
	ImpactCritical ImpactLevel = "critical"
	ImpactHigh     ImpactLevel = "high"
	ImpactMedium   ImpactLevel = "medium"
	ImpactLow      ImpactLevel = "low"
)

// UrgencyLevel expresses how quickly a filing demands attention.
type UrgencyLevel string

const (
	UrgencyEmergency UrgencyLevel = "emergency"
	UrgencyUrgent    UrgencyLevel = "urgent"
	UrgencyRoutine   UrgencyLevel = "routine"
)

// ClassificationMethod names a technique that contributed to a classification.
type ClassificationMethod string

const (
	MethodFilename ClassificationMethod = "filename"
	MethodContent  ClassificationMethod = "content"
	MethodKeyword  ClassificationMethod = "keyword"
	MethodAI       ClassificationMethod = "ai"
)

// TypeCandidate is a ranked alternative classification.
type TypeCandidate struct {
	Type  FilingType `json:"type"`
	Score float64    `json:"score"`
}

// Classification is the outcome of weighted voting across methods.
type Classification struct {
	Primary      FilingType             `json:"primary"`
	Confidence   float64                `json:"confidence"`
	Alternatives []TypeCandidate        `json:"alternatives,omitempty"`
	Methods      []ClassificationMethod `json:"methods"`
}

// RiskCategory groups discrete risk factors.
type RiskCategory string

const (
	RiskFinancial    RiskCategory = "financial"
	RiskRegulatory   RiskCategory = "regulatory"
	RiskOperational  RiskCategory = "operational"
	RiskReputational RiskCategory = "reputational"
)

// RiskFactor is one identified risk with severity and likelihood on 0-1 scales.
type RiskFactor struct {
	Category    RiskCategory `json:"category"`
	Description string       `json:"description"`
	Severity    float64      `json:"severity"`
	Likelihood  float64      `json:"likelihood"`
}

// Deadline is a date extracted or implied by a filing.
type Deadline struct {
	Description string    `json:"description"`
	Due         time.Time `json:"due"`
}

// FilingAnalysis is the finalized assessment of a filing. It is created once
// per filing and read-only once finalized.
type FilingAnalysis struct {
	ID              string         `json:"id"`
	FilingID        string         `json:"filing_id"`
	Classification  Classification `json:"classification"`
	Impact          ImpactLevel    `json:"impact"`
	Urgency         UrgencyLevel   `json:"urgency"`
	RiskScore       float64        `json:"risk_score"`
	BusinessImpact  float64        `json:"business_impact"`
	Risks           []RiskFactor   `json:"risks,omitempty"`
	Stakeholders    []string       `json:"stakeholders,omitempty"`
	Deadlines       []Deadline     `json:"deadlines,omitempty"`
	Recommendations []string       `json:"recommendations,omitempty"`
	Warnings        []string       `json:"warnings,omitempty"`
	AnalyzedAt      time.Time      `json:"analyzed_at"`
}

// DeriveImpact maps the combined score onto a discrete impact level.
func DeriveImpact(combined float64) ImpactLevel {
	switch {
	case combined >= 8.0:
		return ImpactCritical
	case combined >= 6.0:
		return ImpactHigh
	case combined >= 3.5:
		return ImpactMedium
	default:
		return ImpactLow
	}
}
