package billing

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/docketwatch/docketwatch/internal/config"
	"github.com/docketwatch/docketwatch/internal/models"
)

// memoryLedger is the in-memory Ledger used across the billing tests.
type memoryLedger struct {
	mu      sync.Mutex
	records []models.CostRecord
	fail    bool
}

func (l *memoryLedger) AppendCostRecord(ctx context.Context, record models.CostRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return errors.New("ledger down")
	}
	l.records = append(l.records, record)
	return nil
}

func (l *memoryLedger) SpendSince(ctx context.Context, identity string, since time.Time) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return 0, errors.New("ledger down")
	}
	var total float64
	for _, r := range l.records {
		if r.Identity == identity && !r.Timestamp.Before(since) {
			total += r.Cost
		}
	}
	return total, nil
}

func (l *memoryLedger) RecordsSince(ctx context.Context, identity string, since time.Time) ([]models.CostRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail {
		return nil, errors.New("ledger down")
	}
	var out []models.CostRecord
	for _, r := range l.records {
		if r.Identity == identity && !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func testBudgetConfig() config.BudgetConfig {
	return config.BudgetConfig{
		DailyLimit:      50.0,
		MonthlyLimit:    500.0,
		AlertThresholds: []float64{0.75, 0.90},
		AlertDebounce:   time.Hour,
	}
}

func newTestTracker(ledger Ledger, alert AlertFunc) *Tracker {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTracker(ledger, nil, testBudgetConfig(), alert, nil, logger)
}

func seedSpend(t *testing.T, ledger *memoryLedger, identity string, amount float64) {
	t.Helper()
	ledger.records = append(ledger.records, models.CostRecord{
		ID:        "seed",
		Operation: models.OperationDocumentDownload,
		Cost:      amount,
		Identity:  identity,
		Timestamp: time.Now().UTC(),
	})
}

func TestEstimateCost(t *testing.T) {
	tracker := newTestTracker(&memoryLedger{}, nil)

	tests := []struct {
		name  string
		op    models.OperationKind
		pages int
		want  float64
	}{
		{"search is free", models.OperationCaseSearch, 100, 0},
		{"party search is free", models.OperationPartySearch, 100, 0},
		{"metadata is free", models.OperationMetadata, 10, 0},
		{"one page", models.OperationDocumentDownload, 1, 0.10},
		{"ten pages", models.OperationDocumentDownload, 10, 1.00},
		{"exactly at cap", models.OperationDocumentDownload, 30, 3.00},
		{"capped above thirty pages", models.OperationDocumentDownload, 500, 3.00},
		{"docket view billable", models.OperationDocketView, 5, 0.50},
		{"zero pages", models.OperationDocumentDownload, 0, 0},
		{"negative pages", models.OperationDocumentDownload, -3, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tracker.EstimateCost(tt.op, tt.pages); got != tt.want {
				t.Errorf("EstimateCost(%s, %d) = %v, want %v", tt.op, tt.pages, got, tt.want)
			}
		})
	}
}

func TestEstimateCostMonotonic(t *testing.T) {
	tracker := newTestTracker(&memoryLedger{}, nil)

	prev := 0.0
	for pages := 0; pages <= 100; pages++ {
		cost := tracker.EstimateCost(models.OperationDocumentDownload, pages)
		if cost < prev {
			t.Fatalf("cost decreased at %d pages: %v < %v", pages, cost, prev)
		}
		prev = cost
	}
}

func TestCanAffordExactlyAtLimit(t *testing.T) {
	ledger := &memoryLedger{}
	seedSpend(t, ledger, "tenant-1", 47.00)
	tracker := newTestTracker(ledger, nil)

	// 30 pages caps at $3.00, landing exactly on the $50 daily limit.
	afford, err := tracker.CanAfford(context.Background(), models.OperationDocumentDownload, 30, "tenant-1")
	if err != nil {
		t.Fatalf("CanAfford: %v", err)
	}
	if !afford.OK {
		t.Errorf("spending exactly up to the limit must be allowed, got reason %q", afford.Reason)
	}
}

func TestCanAffordOneCentOver(t *testing.T) {
	ledger := &memoryLedger{}
	seedSpend(t, ledger, "tenant-1", 48.00)
	tracker := newTestTracker(ledger, nil)

	// 21 pages = $2.10; 48.00 + 2.10 = 50.10 > 50.00.
	afford, err := tracker.CanAfford(context.Background(), models.OperationDocumentDownload, 21, "tenant-1")
	if err != nil {
		t.Fatalf("CanAfford: %v", err)
	}
	if afford.OK {
		t.Fatal("going over the daily limit must be rejected")
	}
	if afford.Reason != "Daily limit exceeded ($48.00/$50.00)" {
		t.Errorf("reason = %q, want %q", afford.Reason, "Daily limit exceeded ($48.00/$50.00)")
	}
}

func TestCanAffordMonthlyLimit(t *testing.T) {
	ledger := &memoryLedger{}
	seedSpend(t, ledger, "tenant-1", 499.00)

	// Daily limit lifted out of the way so only the monthly gate can trip.
	cfg := testBudgetConfig()
	cfg.DailyLimit = 1000.0
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tracker := NewTracker(ledger, nil, cfg, nil, nil, logger)

	afford, err := tracker.CanAfford(context.Background(), models.OperationDocumentDownload, 20, "tenant-1")
	if err != nil {
		t.Fatalf("CanAfford: %v", err)
	}
	if afford.OK {
		t.Fatal("monthly limit must also gate spending")
	}
	if afford.Reason != "Monthly limit exceeded ($499.00/$500.00)" {
		t.Errorf("reason = %q", afford.Reason)
	}
}

func TestCanAffordFreeOperationsAlwaysPass(t *testing.T) {
	ledger := &memoryLedger{fail: true}
	tracker := newTestTracker(ledger, nil)

	// Free operations never touch the ledger, so even an outage passes them.
	afford, err := tracker.CanAfford(context.Background(), models.OperationCaseSearch, 100, "tenant-1")
	if err != nil {
		t.Fatalf("CanAfford: %v", err)
	}
	if !afford.OK || afford.Cost != 0 {
		t.Errorf("free operation should pass with zero cost, got %+v", afford)
	}
}

func TestCanAffordFailsClosedOnLedgerOutage(t *testing.T) {
	tracker := newTestTracker(&memoryLedger{fail: true}, nil)

	afford, err := tracker.CanAfford(context.Background(), models.OperationDocumentDownload, 5, "tenant-1")
	if err == nil {
		t.Fatal("ledger outage must surface an error")
	}
	if afford.OK {
		t.Fatal("ledger outage must block paid operations, not wave them through")
	}
	if afford.Reason != "budget store unavailable" {
		t.Errorf("reason = %q", afford.Reason)
	}
}

func TestRecordCostAppendsLedgerEntry(t *testing.T) {
	ledger := &memoryLedger{}
	tracker := newTestTracker(ledger, nil)

	record, err := tracker.RecordCost(context.Background(), models.OperationDocumentDownload, 2.50,
		"tenant-1", "1:24-cv-100", "doc-9", "nysd", 25)
	if err != nil {
		t.Fatalf("RecordCost: %v", err)
	}
	if record.ID == "" {
		t.Error("record should carry a generated ID")
	}
	if record.Cost != 2.50 {
		t.Errorf("cost = %v, want 2.50", record.Cost)
	}
	if len(ledger.records) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(ledger.records))
	}
}

func TestRecordCostFailsWhenLedgerDown(t *testing.T) {
	tracker := newTestTracker(&memoryLedger{fail: true}, nil)

	if _, err := tracker.RecordCost(context.Background(), models.OperationDocumentDownload, 1.00,
		"tenant-1", "", "", "", 10); err == nil {
		t.Fatal("a lost ledger append must be a hard error")
	}
}

func TestThresholdAlertsFireOnceAndDebounce(t *testing.T) {
	ledger := &memoryLedger{}
	var (
		mu     sync.Mutex
		alerts []float64
	)
	tracker := newTestTracker(ledger, func(identity string, threshold float64, spend, limit float64) {
		mu.Lock()
		alerts = append(alerts, threshold)
		mu.Unlock()
	})

	ctx := context.Background()

	// $38 of $50: crosses 75% but not 90%.
	if _, err := tracker.RecordCost(ctx, models.OperationDocumentDownload, 38.00, "tenant-1", "", "", "", 1); err != nil {
		t.Fatalf("RecordCost: %v", err)
	}

	mu.Lock()
	got := append([]float64(nil), alerts...)
	mu.Unlock()
	if len(got) != 1 || got[0] != 0.75 {
		t.Fatalf("alerts = %v, want [0.75]", got)
	}

	// Still above 75%, inside the debounce window: no repeat.
	if _, err := tracker.RecordCost(ctx, models.OperationDocumentDownload, 0.10, "tenant-1", "", "", "", 1); err != nil {
		t.Fatalf("RecordCost: %v", err)
	}

	mu.Lock()
	count := len(alerts)
	mu.Unlock()
	if count != 1 {
		t.Errorf("alerts after debounced crossing = %d, want 1", count)
	}

	// Crossing 90% is a distinct threshold and fires despite the debounce.
	if _, err := tracker.RecordCost(ctx, models.OperationDocumentDownload, 8.00, "tenant-1", "", "", "", 1); err != nil {
		t.Fatalf("RecordCost: %v", err)
	}

	mu.Lock()
	final := append([]float64(nil), alerts...)
	mu.Unlock()
	if len(final) != 2 || final[1] != 0.90 {
		t.Errorf("alerts = %v, want [0.75 0.90]", final)
	}
}

func TestRoundCents(t *testing.T) {
	tests := []struct {
		in   float64
		want float64
	}{
		{0.105, 0.11},
		{0.104, 0.10},
		{2.999999, 3.00},
		{0, 0},
		{47.0 + 3.0, 50.00},
	}

	for _, tt := range tests {
		if got := RoundCents(tt.in); got != tt.want {
			t.Errorf("RoundCents(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
