package billing

import (
	"math"

	"github.com/docketwatch/docketwatch/internal/models"
)

// Pricing mirrors the external service's fee schedule: metadata and search
// operations are free, paged operations bill per page up to a per-document
// ceiling.
type Pricing struct {
	PerPageRate    float64
	MaxPerDocument float64
}

// DefaultPricing returns the published PACER fee schedule.
func DefaultPricing() Pricing {
	return Pricing{
		PerPageRate:    0.10,
		MaxPerDocument: 3.00,
	}
}

// billable reports whether an operation incurs page charges.
func billable(op models.OperationKind) bool {
	switch op {
	case models.OperationDocumentDownload, models.OperationDocketView:
		return true
	default:
		return false
	}
}

// Estimate computes the cost of an operation. Monotonically non-decreasing
// in pages and never above the per-document cap.
func (p Pricing) Estimate(op models.OperationKind, pages int) float64 {
	if !billable(op) {
		return 0
	}
	if pages < 0 {
		pages = 0
	}

	cost := float64(pages) * p.PerPageRate
	if cost > p.MaxPerDocument {
		cost = p.MaxPerDocument
	}

	return RoundCents(cost)
}

// RoundCents rounds a dollar amount to the nearest cent.
func RoundCents(amount float64) float64 {
	return math.Round(amount*100) / 100
}
