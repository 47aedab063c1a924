package pacer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/docketwatch/docketwatch/internal/config"
	"github.com/docketwatch/docketwatch/internal/logging"
	"github.com/docketwatch/docketwatch/internal/metrics"
	"github.com/docketwatch/docketwatch/internal/models"
)

// SearchCriteria is the search payload. Criteria live at the root of the
// request body (not nested) per the external API contract; page and pageSize
// are merged in by the client.
type SearchCriteria map[string]any

// SearchRecord is one result row. The case and party endpoints return
// differently-shaped rows, so records stay schemaless at this layer.
type SearchRecord map[string]any

// SearchResult is one page of results.
type SearchResult struct {
	Records    []SearchRecord `json:"records"`
	TotalCount int            `json:"total_count"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	HasMore    bool           `json:"has_more"`
}

// SearchType selects the endpoint.
type SearchType string

const (
	SearchTypeCases   SearchType = "cases"
	SearchTypeParties SearchType = "parties"
)

// SearchStats are observability counters, not correctness state.
type SearchStats struct {
	TotalRequests      int64 `json:"total_requests"`
	SuccessfulRequests int64 `json:"successful_requests"`
	FailedRequests     int64 `json:"failed_requests"`
	Retries            int64 `json:"retries"`
}

// SearchHistoryAppender records completed searches to the audit log.
type SearchHistoryAppender interface {
	AppendSearchHistory(ctx context.Context, entry models.SearchHistoryEntry) error
}

// SearchClient executes case and party searches against the external
// case-locator API.
type SearchClient struct {
	client    *http.Client
	baseURL   string
	policy    RetryPolicy
	pager     *rate.Limiter
	history   SearchHistoryAppender
	collector *metrics.Collector
	logger    *slog.Logger

	totalRequests      atomic.Int64
	successfulRequests atomic.Int64
	failedRequests     atomic.Int64
	retries            atomic.Int64
}

// NewSearchClient wires a search client. history and collector may be nil.
func NewSearchClient(cfg config.PACERConfig, history SearchHistoryAppender, collector *metrics.Collector, logger *slog.Logger) *SearchClient {
	return &SearchClient{
		client:  &http.Client{Timeout: cfg.RequestTimeout},
		baseURL: cfg.SearchURL,
		policy:  DefaultRetryPolicy(),
		// One page fetch per second keeps multi-page walks under the
		// external service's own rate limits.
		pager:     rate.NewLimiter(rate.Every(time.Second), 1),
		history:   history,
		collector: collector,
		logger:    logger,
	}
}

// SetRetryPolicy overrides the default backoff settings.
func (c *SearchClient) SetRetryPolicy(policy RetryPolicy) {
	c.policy = policy
}

// Stats returns a snapshot of the request counters.
func (c *SearchClient) Stats() SearchStats {
	return SearchStats{
		TotalRequests:      c.totalRequests.Load(),
		SuccessfulRequests: c.successfulRequests.Load(),
		FailedRequests:     c.failedRequests.Load(),
		Retries:            c.retries.Load(),
	}
}

// SearchCases runs one page of a case search.
func (c *SearchClient) SearchCases(ctx context.Context, token string, identity string, criteria SearchCriteria, page, pageSize int) (SearchResult, error) {
	return c.search(ctx, token, identity, SearchTypeCases, criteria, page, pageSize)
}

// SearchParties runs one page of a party search.
func (c *SearchClient) SearchParties(ctx context.Context, token string, identity string, criteria SearchCriteria, page, pageSize int) (SearchResult, error) {
	return c.search(ctx, token, identity, SearchTypeParties, criteria, page, pageSize)
}

func (c *SearchClient) search(ctx context.Context, token, identity string, st SearchType, criteria SearchCriteria, page, pageSize int) (SearchResult, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 54
	}

	var result SearchResult

	err := Retry(ctx, c.policy, c.onRetry, func() error {
		r, err := c.fetchPage(ctx, token, st, criteria, page, pageSize)
		if err != nil {
			return err
		}
		result = r
		return nil
	})

	if err != nil {
		c.logger.Error("search failed",
			"search_type", string(st),
			"page", page,
			"error", err,
		)
		return SearchResult{}, err
	}

	c.appendHistory(ctx, identity, st, criteria, result)

	// Criteria can carry login identifiers; never log them raw.
	c.logger.Debug("search completed",
		"search_type", string(st),
		"page", page,
		"results", len(result.Records),
		"criteria", logging.Sanitize(criteria),
	)

	return result, nil
}

func (c *SearchClient) onRetry() {
	c.retries.Add(1)
	if c.collector != nil {
		c.collector.ObservePACERRetry("search")
	}
}

func (c *SearchClient) fetchPage(ctx context.Context, token string, st SearchType, criteria SearchCriteria, page, pageSize int) (SearchResult, error) {
	c.totalRequests.Add(1)

	payload := make(map[string]any, len(criteria)+2)
	for k, v := range criteria {
		payload[k] = v
	}
	payload["page"] = page
	payload["pageSize"] = pageSize

	body, err := json.Marshal(payload)
	if err != nil {
		c.failedRequests.Add(1)
		return SearchResult{}, err
	}

	url := fmt.Sprintf("%s/%s/find", c.baseURL, st)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		c.failedRequests.Add(1)
		return SearchResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-NEXT-GEN-CSO", token)

	resp, err := c.client.Do(req)
	if err != nil {
		c.failedRequests.Add(1)
		c.observe("search", "error")
		return SearchResult{}, NewRetryableError(fmt.Errorf("search request failed: %w", err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		c.failedRequests.Add(1)
		c.observe("search", "unauthenticated")
		return SearchResult{}, ErrUnauthenticated
	case resp.StatusCode == http.StatusTooManyRequests:
		c.failedRequests.Add(1)
		c.observe("search", "rate_limited")
		delay := parseRetryAfter(resp.Header.Get("Retry-After"))
		return SearchResult{}, &RetryableError{
			Err:        &RateLimitedError{RetryAfter: delay},
			RetryAfter: delay,
		}
	case resp.StatusCode >= 500:
		c.failedRequests.Add(1)
		c.observe("search", "server_error")
		return SearchResult{}, NewRetryableError(fmt.Errorf("search returned status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		c.failedRequests.Add(1)
		c.observe("search", "error")
		return SearchResult{}, &APIError{StatusCode: resp.StatusCode, Message: "unexpected search response"}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		c.failedRequests.Add(1)
		return SearchResult{}, NewRetryableError(fmt.Errorf("failed to read search response: %w", err))
	}

	var parsed searchResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		c.failedRequests.Add(1)
		return SearchResult{}, fmt.Errorf("malformed search response: %w", err)
	}

	c.successfulRequests.Add(1)
	c.observe("search", "success")

	return parsed.toResult(page, pageSize), nil
}

func (c *SearchClient) observe(operation, status string) {
	if c.collector != nil {
		c.collector.ObservePACERRequest(operation, status)
	}
}

func (c *SearchClient) appendHistory(ctx context.Context, identity string, st SearchType, criteria SearchCriteria, result SearchResult) {
	if c.history == nil || identity == "" {
		return
	}

	raw, _ := json.Marshal(criteria)
	entry := models.SearchHistoryEntry{
		ID:          uuid.NewString(),
		Identity:    identity,
		SearchType:  string(st),
		Criteria:    string(raw),
		ResultCount: len(result.Records),
		Cost:        0, // searches are metadata operations, free of charge
		Timestamp:   time.Now(),
	}

	if err := c.history.AppendSearchHistory(ctx, entry); err != nil {
		c.logger.Warn("failed to append search history", "error", err)
	}
}

// searchResponse tolerates the endpoint's shape drift: rows arrive under
// results, cases, or parties, and the total under totalCount or total.
type searchResponse struct {
	Results    []SearchRecord `json:"results"`
	Cases      []SearchRecord `json:"cases"`
	Parties    []SearchRecord `json:"parties"`
	TotalCount *int           `json:"totalCount"`
	Total      *int           `json:"total"`
	HasMore    *bool          `json:"hasMore"`
}

func (r searchResponse) toResult(page, pageSize int) SearchResult {
	records := r.Results
	if records == nil {
		records = r.Cases
	}
	if records == nil {
		records = r.Parties
	}
	if records == nil {
		records = []SearchRecord{}
	}

	total := len(records)
	if r.TotalCount != nil {
		total = *r.TotalCount
	} else if r.Total != nil {
		total = *r.Total
	}

	hasMore := page*pageSize < total
	if r.HasMore != nil {
		hasMore = *r.HasMore
	}

	return SearchResult{
		Records:    records,
		TotalCount: total,
		Page:       page,
		PageSize:   pageSize,
		HasMore:    hasMore,
	}
}

// SearchAllPages walks every page of a search lazily, yielding individual
// records. Page fetches are paced to stay under the external rate limiter.
// The walk is finite: it stops when the server reports no more pages, when
// maxPages is reached (0 means no cap), or on the first error, which is
// yielded once with a nil record.
func (c *SearchClient) SearchAllPages(ctx context.Context, token, identity string, st SearchType, criteria SearchCriteria, pageSize, maxPages int) iter.Seq2[SearchRecord, error] {
	return func(yield func(SearchRecord, error) bool) {
		page := 1
		for {
			if maxPages > 0 && page > maxPages {
				return
			}

			if err := c.pager.Wait(ctx); err != nil {
				yield(nil, err)
				return
			}

			result, err := c.search(ctx, token, identity, st, criteria, page, pageSize)
			if err != nil {
				yield(nil, err)
				return
			}

			for _, record := range result.Records {
				if !yield(record, nil) {
					return
				}
			}

			if !result.HasMore || len(result.Records) == 0 {
				return
			}
			page++
		}
	}
}

// BatchQuery is one entry of a batch search.
type BatchQuery struct {
	Type     SearchType
	Criteria SearchCriteria
}

// BatchSearch executes independent searches sequentially with a fixed delay
// between calls. A failing search contributes an empty placeholder result
// instead of aborting the batch.
func (c *SearchClient) BatchSearch(ctx context.Context, token, identity string, queries []BatchQuery, delay time.Duration) []SearchResult {
	results := make([]SearchResult, 0, len(queries))

	for i, q := range queries {
		if i > 0 {
			select {
			case <-ctx.Done():
				return results
			case <-time.After(delay):
			}
		}

		result, err := c.search(ctx, token, identity, q.Type, q.Criteria, 1, 0)
		if err != nil {
			c.logger.Warn("batch search entry failed",
				"index", i,
				"search_type", string(q.Type),
				"error", err,
			)
			results = append(results, SearchResult{Records: []SearchRecord{}, Page: 1})
			continue
		}

		results = append(results, result)
	}

	return results
}
