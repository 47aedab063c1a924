package documents

import (
	"context"
	"sync"
	"time"
)

// BatchConfig bounds batch downloads. Concurrency stays small on purpose:
// uncontrolled fan-out against the external service risks account lockout.
type BatchConfig struct {
	MaxConcurrent int
	ItemDelay     time.Duration
}

// DefaultBatchConfig returns the batch limits used in production.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		MaxConcurrent: 3,
		ItemDelay:     500 * time.Millisecond,
	}
}

// BatchItem is one entry of a batch fetch result. A failing item carries its
// error instead of aborting the batch.
type BatchItem struct {
	Request FetchRequest
	Result  FetchResult
	Err     error
}

// FetchBatch downloads multiple documents with bounded concurrency and a
// per-item start delay. The returned slice is ordered like the input.
func (f *Fetcher) FetchBatch(ctx context.Context, token string, requests []FetchRequest, cfg BatchConfig) []BatchItem {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 1
	}

	items := make([]BatchItem, len(requests))
	semaphore := make(chan struct{}, cfg.MaxConcurrent)

	var wg sync.WaitGroup

	for i, req := range requests {
		wg.Add(1)

		go func(idx int, r FetchRequest) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			if cfg.ItemDelay > 0 && idx > 0 {
				select {
				case <-ctx.Done():
					items[idx] = BatchItem{Request: r, Err: ctx.Err()}
					return
				case <-time.After(cfg.ItemDelay):
				}
			}

			result, err := f.Fetch(ctx, token, r)
			if err != nil {
				f.logger.Warn("batch fetch item failed",
					"document_id", r.DocumentID,
					"error", err,
				)
				items[idx] = BatchItem{Request: r, Err: err}
				return
			}

			items[idx] = BatchItem{Request: r, Result: result}
		}(i, req)
	}

	wg.Wait()

	return items
}
