package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/docketwatch/docketwatch/internal/models"
)

// UsageReport aggregates the ledger over a lookback window: totals, a
// breakdown by operation kind and by court, and current spend against both
// limits. All money values are rounded to cents.
func (t *Tracker) UsageReport(ctx context.Context, identity string, days int) (models.UsageReport, error) {
	if days <= 0 {
		days = 30
	}

	now := time.Now().UTC()
	since := now.AddDate(0, 0, -days)

	records, err := t.ledger.RecordsSince(ctx, identity, since)
	if err != nil {
		return models.UsageReport{}, fmt.Errorf("failed to load cost records: %w", err)
	}

	report := models.UsageReport{
		Identity:    identity,
		Days:        days,
		ByOperation: make(map[models.OperationKind]float64),
		ByCourt:     make(map[string]float64),
		GeneratedAt: now,
	}

	for _, r := range records {
		report.TotalCost += r.Cost
		report.TotalPages += r.Pages
		report.Operations++
		report.ByOperation[r.Operation] += r.Cost
		if r.Court != "" {
			report.ByCourt[r.Court] += r.Cost
		}
	}

	// Spend against the limits covers the whole current day and month even
	// when the lookback window is shorter, same as the CanAfford gate.
	dailySpend, err := t.ledger.SpendSince(ctx, identity, startOfDay(now))
	if err != nil {
		return models.UsageReport{}, fmt.Errorf("failed to load daily spend: %w", err)
	}
	monthlySpend, err := t.ledger.SpendSince(ctx, identity, startOfMonth(now))
	if err != nil {
		return models.UsageReport{}, fmt.Errorf("failed to load monthly spend: %w", err)
	}

	report.DailyLimit, report.MonthlyLimit = t.resolveLimits(ctx, identity)

	report.TotalCost = RoundCents(report.TotalCost)
	report.DailySpend = RoundCents(dailySpend)
	report.MonthlySpend = RoundCents(monthlySpend)
	for k, v := range report.ByOperation {
		report.ByOperation[k] = RoundCents(v)
	}
	for k, v := range report.ByCourt {
		report.ByCourt[k] = RoundCents(v)
	}

	report.DailyHeadroom = RoundCents(report.DailyLimit - report.DailySpend)
	if report.DailyHeadroom < 0 {
		report.DailyHeadroom = 0
	}
	report.MonthlyHeadroom = RoundCents(report.MonthlyLimit - report.MonthlySpend)
	if report.MonthlyHeadroom < 0 {
		report.MonthlyHeadroom = 0
	}

	return report, nil
}
