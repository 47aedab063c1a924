package pacer

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// TokenStore is the backing store for cached session tokens. Implementations
// may be remote; store failures are tolerated by the cache.
type TokenStore interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// TokenCache keeps encrypted session tokens keyed by hashed identity. The
// TTL is set to 80% of the external session lifetime so the cache never
// serves a token the external system has already expired. A cached hit is
// still no guarantee of validity; callers re-validate opportunistically.
//
// Store outages degrade to cache misses: authentication availability beats
// perfect caching.
type TokenCache struct {
	store  TokenStore
	cipher *Cipher
	ttl    time.Duration
	logger *slog.Logger
}

// NewTokenCache builds a cache over the given store. sessionLifetime is the
// external service's own session duration.
func NewTokenCache(store TokenStore, cipher *Cipher, sessionLifetime time.Duration, logger *slog.Logger) *TokenCache {
	return &TokenCache{
		store:  store,
		cipher: cipher,
		ttl:    sessionLifetime * 8 / 10,
		logger: logger,
	}
}

// Store encrypts and caches a token for the identity.
func (c *TokenCache) Store(ctx context.Context, identity, token string) {
	sealed, err := c.cipher.Encrypt([]byte(token))
	if err != nil {
		c.logger.Error("failed to encrypt token for cache", "error", err)
		return
	}

	if err := c.store.Set(ctx, HashIdentity(identity), sealed, c.ttl); err != nil {
		c.logger.Warn("token cache store unavailable, skipping cache", "error", err)
	}
}

// Get returns the cached token for the identity, if present and decryptable.
func (c *TokenCache) Get(ctx context.Context, identity string) (string, bool) {
	sealed, ok, err := c.store.Get(ctx, HashIdentity(identity))
	if err != nil {
		c.logger.Warn("token cache store unavailable, treating as miss", "error", err)
		return "", false
	}
	if !ok {
		return "", false
	}

	token, err := c.cipher.Decrypt(sealed)
	if err != nil {
		// Undecryptable entries are stale material from a rotated key.
		c.logger.Warn("cached token failed decryption, evicting", "error", err)
		c.Invalidate(ctx, identity)
		return "", false
	}

	return string(token), true
}

// Invalidate removes the cached token for the identity. Calling it for an
// absent entry is a no-op.
func (c *TokenCache) Invalidate(ctx context.Context, identity string) {
	if err := c.store.Delete(ctx, HashIdentity(identity)); err != nil {
		c.logger.Warn("token cache invalidation failed", "error", err)
	}
}

// MemoryTokenStore is the in-process TokenStore implementation.
type MemoryTokenStore struct {
	mu      sync.RWMutex
	entries map[string]memoryTokenEntry
}

type memoryTokenEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryTokenStore creates an empty in-memory token store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{entries: make(map[string]memoryTokenEntry)}
}

// Get implements TokenStore.
func (s *MemoryTokenStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	entry, ok := s.entries[key]
	s.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		return nil, false, nil
	}

	return entry.value, true, nil
}

// Set implements TokenStore.
func (s *MemoryTokenStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	s.entries[key] = memoryTokenEntry{value: value, expiresAt: time.Now().Add(ttl)}
	s.mu.Unlock()
	return nil
}

// Delete implements TokenStore.
func (s *MemoryTokenStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}
