package billing

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docketwatch/docketwatch/internal/config"
	"github.com/docketwatch/docketwatch/internal/metrics"
	"github.com/docketwatch/docketwatch/internal/models"
)

// Ledger is the durable, append-only cost store. It is the source of truth
// for all budget math; the tracker holds no authoritative state of its own.
type Ledger interface {
	AppendCostRecord(ctx context.Context, record models.CostRecord) error
	SpendSince(ctx context.Context, identity string, since time.Time) (float64, error)
	RecordsSince(ctx context.Context, identity string, since time.Time) ([]models.CostRecord, error)
}

// LimitResolver supplies per-identity budget limits. A zero limit means
// "use the configured default".
type LimitResolver interface {
	BudgetLimits(ctx context.Context, identity string) (daily, monthly float64, err error)
}

// AlertFunc receives threshold-crossing notifications.
type AlertFunc func(identity string, threshold float64, spend, limit float64)

// BudgetExceededError is terminal for the requested operation. It names the
// limit that was hit and the current figures; it is never downgraded to a
// partial operation.
type BudgetExceededError struct {
	Reason string
	Cost   float64
}

func (e *BudgetExceededError) Error() string {
	return e.Reason
}

// Affordability is the budget gate's verdict.
type Affordability struct {
	OK     bool
	Cost   float64
	Reason string
}

// Tracker estimates, authorizes, and records the monetary cost of paid
// operations. Budget checks always run against the ledger before any
// cost-incurring call; a ledger outage fails closed.
type Tracker struct {
	ledger    Ledger
	limits    LimitResolver
	pricing   Pricing
	cfg       config.BudgetConfig
	alert     AlertFunc
	collector *metrics.Collector
	logger    *slog.Logger

	mu            sync.Mutex
	lastAlertedAt map[string]time.Time // identity:threshold -> last alert
}

// NewTracker builds a cost tracker. limits, alert, and collector may be nil.
func NewTracker(ledger Ledger, limits LimitResolver, cfg config.BudgetConfig, alert AlertFunc, collector *metrics.Collector, logger *slog.Logger) *Tracker {
	return &Tracker{
		ledger:        ledger,
		limits:        limits,
		pricing:       DefaultPricing(),
		cfg:           cfg,
		alert:         alert,
		collector:     collector,
		logger:        logger,
		lastAlertedAt: make(map[string]time.Time),
	}
}

// EstimateCost prices an operation without touching the ledger.
func (t *Tracker) EstimateCost(op models.OperationKind, pages int) float64 {
	return t.pricing.Estimate(op, pages)
}

// CanAfford decides whether the estimated cost fits inside today's and this
// month's remaining budget. Spending exactly up to a limit is allowed; one
// cent over is not. A ledger outage blocks the operation.
func (t *Tracker) CanAfford(ctx context.Context, op models.OperationKind, pages int, identity string) (Affordability, error) {
	cost := t.pricing.Estimate(op, pages)
	if cost == 0 {
		return Affordability{OK: true, Cost: 0}, nil
	}

	daily, monthly := t.resolveLimits(ctx, identity)

	dailySpend, err := t.ledger.SpendSince(ctx, identity, startOfDay(time.Now().UTC()))
	if err != nil {
		t.logger.Error("budget store unavailable, blocking paid operation", "error", err)
		return Affordability{OK: false, Cost: cost, Reason: "budget store unavailable"},
			fmt.Errorf("failed to compute daily spend: %w", err)
	}

	monthlySpend, err := t.ledger.SpendSince(ctx, identity, startOfMonth(time.Now().UTC()))
	if err != nil {
		t.logger.Error("budget store unavailable, blocking paid operation", "error", err)
		return Affordability{OK: false, Cost: cost, Reason: "budget store unavailable"},
			fmt.Errorf("failed to compute monthly spend: %w", err)
	}

	if RoundCents(dailySpend+cost) > daily {
		t.observeRejection()
		return Affordability{
			OK:     false,
			Cost:   cost,
			Reason: fmt.Sprintf("Daily limit exceeded ($%.2f/$%.2f)", dailySpend, daily),
		}, nil
	}

	if RoundCents(monthlySpend+cost) > monthly {
		t.observeRejection()
		return Affordability{
			OK:     false,
			Cost:   cost,
			Reason: fmt.Sprintf("Monthly limit exceeded ($%.2f/$%.2f)", monthlySpend, monthly),
		}, nil
	}

	return Affordability{OK: true, Cost: cost}, nil
}

func (t *Tracker) observeRejection() {
	if t.collector != nil {
		t.collector.ObserveBudgetRejection()
	}
}

// RecordCost appends one entry to the ledger. The append must succeed for
// the caller's accounting; threshold alerting afterwards is best-effort.
func (t *Tracker) RecordCost(ctx context.Context, op models.OperationKind, cost float64, identity, caseID, documentID, court string, pages int) (models.CostRecord, error) {
	record := models.CostRecord{
		ID:         uuid.NewString(),
		Operation:  op,
		Cost:       RoundCents(cost),
		Identity:   identity,
		CaseID:     caseID,
		DocumentID: documentID,
		Court:      court,
		Pages:      pages,
		Timestamp:  time.Now().UTC(),
	}

	if err := t.ledger.AppendCostRecord(ctx, record); err != nil {
		return models.CostRecord{}, fmt.Errorf("failed to append cost record: %w", err)
	}

	if t.collector != nil {
		t.collector.ObserveCost(string(op), record.Cost)
	}

	t.checkThresholds(ctx, identity)

	return record, nil
}

// checkThresholds fires debounced alerts when daily spend crosses any of the
// configured fractions of the daily limit. One alert per threshold per
// identity per debounce window.
func (t *Tracker) checkThresholds(ctx context.Context, identity string) {
	if t.alert == nil || len(t.cfg.AlertThresholds) == 0 {
		return
	}

	daily, _ := t.resolveLimits(ctx, identity)
	spend, err := t.ledger.SpendSince(ctx, identity, startOfDay(time.Now().UTC()))
	if err != nil {
		t.logger.Warn("skipping budget alert check", "error", err)
		return
	}

	for _, threshold := range t.cfg.AlertThresholds {
		if spend < daily*threshold {
			continue
		}

		key := fmt.Sprintf("%s:%.2f", identity, threshold)

		t.mu.Lock()
		last, seen := t.lastAlertedAt[key]
		if seen && time.Since(last) < t.cfg.AlertDebounce {
			t.mu.Unlock()
			continue
		}
		t.lastAlertedAt[key] = time.Now()
		t.mu.Unlock()

		t.logger.Warn("budget threshold crossed",
			"threshold", threshold,
			"daily_spend", RoundCents(spend),
			"daily_limit", daily,
		)
		t.alert(identity, threshold, RoundCents(spend), daily)
	}
}

func (t *Tracker) resolveLimits(ctx context.Context, identity string) (float64, float64) {
	daily, monthly := t.cfg.DailyLimit, t.cfg.MonthlyLimit

	if t.limits != nil {
		d, m, err := t.limits.BudgetLimits(ctx, identity)
		if err != nil {
			t.logger.Warn("failed to resolve per-identity limits, using defaults", "error", err)
			return daily, monthly
		}
		if d > 0 {
			daily = d
		}
		if m > 0 {
			monthly = m
		}
	}

	return daily, monthly
}

func startOfDay(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

func startOfMonth(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
}
