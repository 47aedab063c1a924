package documents

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/docketwatch/docketwatch/internal/billing"
	"github.com/docketwatch/docketwatch/internal/config"
	"github.com/docketwatch/docketwatch/internal/metrics"
	"github.com/docketwatch/docketwatch/internal/models"
	"github.com/docketwatch/docketwatch/internal/pacer"
)

// maxDocumentBytes caps a single download. PACER filings are overwhelmingly
// under a few hundred megabytes; anything larger is treated as corrupt.
const maxDocumentBytes = 256 << 20

// FetchError wraps a failed document fetch, preserving the last underlying
// cause after retries are exhausted.
type FetchError struct {
	DocumentID string
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("document fetch failed (%s): %v", e.DocumentID, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// FetchRequest describes one document download.
type FetchRequest struct {
	URL            string
	CaseID         string
	DocumentID     string
	Identity       string
	Court          string
	EstimatedPages int
	SaveToDisk     bool
}

// FetchResult is the outcome of a successful fetch. Content is retained so
// a storage failure never discards an already-paid-for download.
type FetchResult struct {
	Document models.DownloadedDocument
	Content  []byte
	Record   models.CostRecord
}

// DocumentSaver persists download metadata to the collaborator layer.
type DocumentSaver interface {
	SaveDownloadedDocument(ctx context.Context, doc models.DownloadedDocument) error
}

// Fetcher downloads documents through an authenticated session, gated by
// the cost tracker on both sides of the download.
type Fetcher struct {
	client      *http.Client
	tracker     *billing.Tracker
	estimator   PageEstimator
	saver       DocumentSaver
	storageRoot string
	policy      pacer.RetryPolicy
	collector   *metrics.Collector
	logger      *slog.Logger
}

// NewFetcher wires a document fetcher. saver and collector may be nil.
func NewFetcher(cfg config.PACERConfig, tracker *billing.Tracker, estimator PageEstimator, saver DocumentSaver, storageRoot string, collector *metrics.Collector, logger *slog.Logger) *Fetcher {
	if estimator == nil {
		estimator = NewPDFEstimator()
	}
	return &Fetcher{
		client:      &http.Client{Timeout: cfg.RequestTimeout},
		tracker:     tracker,
		estimator:   estimator,
		saver:       saver,
		storageRoot: storageRoot,
		policy:      pacer.DefaultRetryPolicy(),
		collector:   collector,
		logger:      logger,
	}
}

// SetRetryPolicy overrides the default backoff settings.
func (f *Fetcher) SetRetryPolicy(policy pacer.RetryPolicy) {
	f.policy = policy
}

// Fetch downloads one document. The budget gate runs on the page estimate
// before any network call; the recorded cost is reconciled afterwards from
// the realized page count and is the authoritative figure.
func (f *Fetcher) Fetch(ctx context.Context, token string, req FetchRequest) (FetchResult, error) {
	afford, err := f.tracker.CanAfford(ctx, models.OperationDocumentDownload, req.EstimatedPages, req.Identity)
	if err != nil {
		return FetchResult{}, err
	}
	if !afford.OK {
		f.logger.Warn("document fetch blocked by budget",
			"document_id", req.DocumentID,
			"reason", afford.Reason,
		)
		return FetchResult{}, &billing.BudgetExceededError{Reason: afford.Reason, Cost: afford.Cost}
	}

	var content []byte

	err = pacer.Retry(ctx, f.policy, f.onRetry, func() error {
		data, err := f.download(ctx, token, req.URL)
		if err != nil {
			return err
		}
		content = data
		return nil
	})
	if err != nil {
		f.observe("error")
		return FetchResult{}, &FetchError{DocumentID: req.DocumentID, Err: err}
	}

	// A 200 with an empty body is still a failed download.
	if len(content) == 0 {
		f.observe("empty")
		return FetchResult{}, &FetchError{DocumentID: req.DocumentID, Err: errors.New("empty document content")}
	}

	f.observe("success")

	pages := f.estimator.EstimatePages(content)
	cost := f.tracker.EstimateCost(models.OperationDocumentDownload, pages)

	record, err := f.tracker.RecordCost(ctx, models.OperationDocumentDownload, cost,
		req.Identity, req.CaseID, req.DocumentID, req.Court, pages)
	if err != nil {
		// The download already happened; losing the ledger entry is worse
		// than surfacing it, so this is a hard error.
		return FetchResult{}, fmt.Errorf("document downloaded but cost recording failed: %w", err)
	}

	sum := sha256.Sum256(content)

	doc := models.DownloadedDocument{
		DocumentID: req.DocumentID,
		CaseID:     req.CaseID,
		Court:      req.Court,
		Size:       int64(len(content)),
		PageCount:  pages,
		Checksum:   hex.EncodeToString(sum[:]),
		Cost:       cost,
		FetchedAt:  time.Now().UTC(),
	}

	if req.SaveToDisk {
		path, err := f.writeToDisk(req, content)
		if err != nil {
			// Storage failures never discard the content or the ledger entry.
			f.logger.Error("failed to persist document to disk",
				"document_id", req.DocumentID,
				"error", err,
			)
		} else {
			doc.StoragePath = path
		}
	}

	if f.saver != nil {
		if err := f.saver.SaveDownloadedDocument(ctx, doc); err != nil {
			f.logger.Warn("failed to save document metadata",
				"document_id", req.DocumentID,
				"error", err,
			)
		}
	}

	f.logger.Info("document fetched",
		"document_id", req.DocumentID,
		"case_id", req.CaseID,
		"size", doc.Size,
		"pages", pages,
		"cost", cost,
	)

	return FetchResult{Document: doc, Content: content, Record: record}, nil
}

func (f *Fetcher) onRetry() {
	if f.collector != nil {
		f.collector.ObservePACERRetry("document")
	}
}

func (f *Fetcher) observe(status string) {
	if f.collector != nil {
		f.collector.ObservePACERRequest("document", status)
	}
}

// download performs one authenticated GET, streaming the body in chunks.
func (f *Fetcher) download(ctx context.Context, token, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-NEXT-GEN-CSO", token)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, pacer.NewRetryableError(fmt.Errorf("download request failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, pacer.ErrUnauthenticated
	case resp.StatusCode == http.StatusTooManyRequests:
		delay := 30 * time.Second
		return nil, pacer.NewRetryableErrorWithDelay(fmt.Errorf("download rate limited"), delay)
	case resp.StatusCode >= 500:
		return nil, pacer.NewRetryableError(fmt.Errorf("download returned status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, &pacer.APIError{StatusCode: resp.StatusCode, Message: "unexpected download response"}
	}

	var buf []byte
	chunk := make([]byte, 64*1024)
	reader := io.LimitReader(resp.Body, maxDocumentBytes)

	for {
		n, err := reader.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, pacer.NewRetryableError(fmt.Errorf("download interrupted: %w", err))
		}
	}

	return buf, nil
}

// writeToDisk stores content under a per-case subdirectory with a name
// derived from the document id and a timestamp.
func (f *Fetcher) writeToDisk(req FetchRequest, content []byte) (string, error) {
	dir := filepath.Join(f.storageRoot, sanitizePathComponent(req.CaseID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create case directory: %w", err)
	}

	name := fmt.Sprintf("%s_%s.pdf", sanitizePathComponent(req.DocumentID), time.Now().UTC().Format("20060102T150405"))
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, content, 0o644); err != nil {
		return "", fmt.Errorf("failed to write document: %w", err)
	}

	return path, nil
}

func sanitizePathComponent(s string) string {
	if s == "" {
		return "unknown"
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			out = append(out, r)
		default:
			out = append(out, '_')
		}
	}
	return string(out)
}
