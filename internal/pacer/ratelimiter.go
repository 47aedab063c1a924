package pacer

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// AttemptStore counts failed authentication attempts per hashed identity.
// Increment must be atomic with respect to concurrent mutations of the same
// key, and the window expiry is set only by the first failure in a window.
type AttemptStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (count int, expiresAt time.Time, err error)
	Count(ctx context.Context, key string) (count int, expiresAt time.Time, err error)
	Reset(ctx context.Context, key string) error
}

// RateLimiter guards authentication with a sliding window of failed
// attempts. A store outage fails open: locking every user out because the
// counter store is down would invert the priority of the product.
type RateLimiter struct {
	store       AttemptStore
	maxAttempts int
	window      time.Duration
	logger      *slog.Logger
}

// NewRateLimiter builds a limiter allowing maxAttempts failures per window.
func NewRateLimiter(store AttemptStore, maxAttempts int, window time.Duration, logger *slog.Logger) *RateLimiter {
	return &RateLimiter{
		store:       store,
		maxAttempts: maxAttempts,
		window:      window,
		logger:      logger,
	}
}

// Check returns a RateLimitedError when the identity has exhausted its
// failed-attempt budget. The error carries the remaining lockout.
func (l *RateLimiter) Check(ctx context.Context, identity string) error {
	count, expiresAt, err := l.store.Count(ctx, HashIdentity(identity))
	if err != nil {
		l.logger.Warn("rate limit store unavailable, failing open", "error", err)
		return nil
	}

	if count >= l.maxAttempts {
		retryAfter := time.Until(expiresAt)
		if retryAfter <= 0 {
			return nil
		}
		return &RateLimitedError{RetryAfter: retryAfter}
	}

	return nil
}

// Record updates the counter after an attempt. Success resets the counter
// immediately; failure increments it, with the window expiry fixed by the
// first failure.
func (l *RateLimiter) Record(ctx context.Context, identity string, success bool) {
	key := HashIdentity(identity)

	if success {
		if err := l.store.Reset(ctx, key); err != nil {
			l.logger.Warn("failed to reset rate limit counter", "error", err)
		}
		return
	}

	if _, _, err := l.store.Increment(ctx, key, l.window); err != nil {
		l.logger.Warn("failed to record failed attempt", "error", err)
	}
}

// MemoryAttemptStore is the in-process AttemptStore implementation. Each
// mutation holds the lock for the full read-modify-write, so concurrent
// records on one identity never interleave into an inconsistent count.
type MemoryAttemptStore struct {
	mu      sync.Mutex
	entries map[string]attemptEntry
}

type attemptEntry struct {
	count     int
	expiresAt time.Time
}

// NewMemoryAttemptStore creates an empty in-memory attempt store.
func NewMemoryAttemptStore() *MemoryAttemptStore {
	return &MemoryAttemptStore{entries: make(map[string]attemptEntry)}
}

// Increment implements AttemptStore.
func (s *MemoryAttemptStore) Increment(ctx context.Context, key string, window time.Duration) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	entry, ok := s.entries[key]
	if !ok || now.After(entry.expiresAt) {
		entry = attemptEntry{count: 0, expiresAt: now.Add(window)}
	}

	entry.count++
	s.entries[key] = entry

	return entry.count, entry.expiresAt, nil
}

// Count implements AttemptStore.
func (s *MemoryAttemptStore) Count(ctx context.Context, key string) (int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[key]
	if !ok || time.Now().After(entry.expiresAt) {
		return 0, time.Time{}, nil
	}

	return entry.count, entry.expiresAt, nil
}

// Reset implements AttemptStore.
func (s *MemoryAttemptStore) Reset(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}
