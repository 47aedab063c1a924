package documents

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/docketwatch/docketwatch/internal/billing"
	"github.com/docketwatch/docketwatch/internal/config"
	"github.com/docketwatch/docketwatch/internal/models"
	"github.com/docketwatch/docketwatch/internal/pacer"
)

type stubLedger struct {
	mu      sync.Mutex
	records []models.CostRecord
	spend   float64
}

func (l *stubLedger) AppendCostRecord(ctx context.Context, record models.CostRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return nil
}

func (l *stubLedger) SpendSince(ctx context.Context, identity string, since time.Time) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := l.spend
	for _, r := range l.records {
		total += r.Cost
	}
	return total, nil
}

func (l *stubLedger) RecordsSince(ctx context.Context, identity string, since time.Time) ([]models.CostRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.CostRecord(nil), l.records...), nil
}

type recordingSaver struct {
	mu   sync.Mutex
	docs []models.DownloadedDocument
}

func (s *recordingSaver) SaveDownloadedDocument(ctx context.Context, doc models.DownloadedDocument) error {
	s.mu.Lock()
	s.docs = append(s.docs, doc)
	s.mu.Unlock()
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestFetcher(t *testing.T, ledger billing.Ledger, saver DocumentSaver, storageRoot string) *Fetcher {
	t.Helper()

	tracker := billing.NewTracker(ledger, nil, config.BudgetConfig{
		DailyLimit:   50.0,
		MonthlyLimit: 500.0,
	}, nil, nil, testLogger())

	f := NewFetcher(config.PACERConfig{RequestTimeout: 5 * time.Second},
		tracker, SizeEstimator{BytesPerPage: 1024}, saver, storageRoot, nil, testLogger())
	f.SetRetryPolicy(pacer.RetryPolicy{MaxRetries: 0, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond, BackoffFactor: 2})
	return f
}

func TestFetchBlocksBeforeNetworkWhenOverBudget(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte("content"))
	}))
	defer srv.Close()

	ledger := &stubLedger{spend: 49.50}
	f := newTestFetcher(t, ledger, nil, "")

	// 10 pages at $0.10 = $1.00 against $0.50 of headroom.
	_, err := f.Fetch(context.Background(), "tok", FetchRequest{
		URL:            srv.URL,
		DocumentID:     "doc-1",
		Identity:       "tenant-1",
		EstimatedPages: 10,
	})

	var exceeded *billing.BudgetExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("err = %v, want BudgetExceededError", err)
	}
	if calls != 0 {
		t.Error("budget gate must run before any network traffic")
	}
}

func TestFetchSuccess(t *testing.T) {
	content := bytes.Repeat([]byte{'x'}, 3*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-NEXT-GEN-CSO") != "tok" {
			t.Error("missing session token header")
		}
		w.Write(content)
	}))
	defer srv.Close()

	ledger := &stubLedger{}
	saver := &recordingSaver{}
	f := newTestFetcher(t, ledger, saver, "")

	result, err := f.Fetch(context.Background(), "tok", FetchRequest{
		URL:            srv.URL,
		CaseID:         "1:24-cv-100",
		DocumentID:     "doc-1",
		Identity:       "tenant-1",
		Court:          "nysd",
		EstimatedPages: 3,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if result.Document.PageCount != 3 {
		t.Errorf("pages = %d, want 3", result.Document.PageCount)
	}
	if result.Document.Cost != 0.30 {
		t.Errorf("cost = %v, want 0.30", result.Document.Cost)
	}
	if len(result.Document.Checksum) != 64 {
		t.Errorf("checksum length = %d, want 64 hex chars", len(result.Document.Checksum))
	}
	if !bytes.Equal(result.Content, content) {
		t.Error("content must round-trip intact")
	}

	if len(ledger.records) != 1 {
		t.Fatalf("ledger rows = %d, want 1", len(ledger.records))
	}
	if ledger.records[0].Court != "nysd" || ledger.records[0].Pages != 3 {
		t.Errorf("ledger record = %+v", ledger.records[0])
	}
	if len(saver.docs) != 1 {
		t.Errorf("saved docs = %d, want 1", len(saver.docs))
	}
}

func TestFetchEmptyBodyIsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	ledger := &stubLedger{}
	f := newTestFetcher(t, ledger, nil, "")

	_, err := f.Fetch(context.Background(), "tok", FetchRequest{URL: srv.URL, DocumentID: "doc-1", EstimatedPages: 1})

	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		t.Fatalf("err = %v, want FetchError", err)
	}
	if len(ledger.records) != 0 {
		t.Error("a failed download must not be charged")
	}
}

func TestFetchUnauthenticated(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	f := newTestFetcher(t, &stubLedger{}, nil, "")

	_, err := f.Fetch(context.Background(), "stale", FetchRequest{URL: srv.URL, DocumentID: "doc-1", EstimatedPages: 1})
	if !errors.Is(err, pacer.ErrUnauthenticated) {
		t.Fatalf("err = %v, want ErrUnauthenticated in the chain", err)
	}
}

func TestFetchSaveToDisk(t *testing.T) {
	content := bytes.Repeat([]byte{'x'}, 2*1024)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(content)
	}))
	defer srv.Close()

	root := t.TempDir()
	f := newTestFetcher(t, &stubLedger{}, nil, root)

	result, err := f.Fetch(context.Background(), "tok", FetchRequest{
		URL:            srv.URL,
		CaseID:         "1:24-cv-100",
		DocumentID:     "doc-1",
		Identity:       "tenant-1",
		EstimatedPages: 2,
		SaveToDisk:     true,
	})
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	if result.Document.StoragePath == "" {
		t.Fatal("storage path not set")
	}
	saved, err := os.ReadFile(result.Document.StoragePath)
	if err != nil {
		t.Fatalf("reading stored document: %v", err)
	}
	if !bytes.Equal(saved, content) {
		t.Error("stored file must match the downloaded content")
	}
}

func TestSanitizePathComponent(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1:24-cv-100", "1_24-cv-100"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"", "unknown"},
		{"doc_9.pdf", "doc_9.pdf"},
	}

	for _, tt := range tests {
		if got := sanitizePathComponent(tt.in); got != tt.want {
			t.Errorf("sanitizePathComponent(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
