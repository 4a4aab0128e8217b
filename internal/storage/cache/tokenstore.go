package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tinywideclouds/go-carepush-service/pkg/dispatch"
)

// ErrCacheMiss is returned by CacheClient.Get when the key is absent.
var ErrCacheMiss = errors.New("cache miss")

// CacheClient defines the subset of Redis commands we need.
type CacheClient interface {
	// Get returns ErrCacheMiss (or any error) when the value cannot be served.
	Get(ctx context.Context, key string, dest interface{}) error
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	// Del removes the key.
	Del(ctx context.Context, key string) error
}

type cachedToken struct {
	Token string `json:"token"`
}

// CachedTokenStore is a Decorator that adds Read-Aside caching to any TokenRegistry.
type CachedTokenStore struct {
	realStore dispatch.TokenRegistry
	cache     CacheClient
	ttl       time.Duration
	logger    *slog.Logger
}

// NewCachedTokenStore creates the decorator.
func NewCachedTokenStore(realStore dispatch.TokenRegistry, cache CacheClient, ttl time.Duration, logger *slog.Logger) *CachedTokenStore {
	return &CachedTokenStore{
		realStore: realStore,
		cache:     cache,
		ttl:       ttl,
		logger:    logger.With("component", "CachedTokenStore"),
	}
}

// --- READ PATH (Read-Aside) ---

func (s *CachedTokenStore) FetchToken(ctx context.Context, userID string) (string, error) {
	key := s.cacheKey(userID)

	var hit cachedToken
	err := s.cache.Get(ctx, key, &hit)
	if err == nil {
		return hit.Token, nil
	}
	if !errors.Is(err, ErrCacheMiss) {
		s.logger.Warn("Cache read failed, falling back to store", "err", err)
	}

	token, err := s.realStore.FetchToken(ctx, userID)
	if err != nil {
		return "", err
	}

	// Empty lookups are not cached: the booking app may save a token at any time.
	if token == "" {
		return "", nil
	}
	if err := s.cache.Set(ctx, key, cachedToken{Token: token}, s.ttl); err != nil {
		s.logger.Warn("Cache write failed", "err", err)
	}
	return token, nil
}

// --- WRITE PATHS (Invalidate-on-Write) ---

func (s *CachedTokenStore) SaveToken(ctx context.Context, userID, token string) error {
	if err := s.realStore.SaveToken(ctx, userID, token); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

// ClearToken must drop the cache entry so notifications stop immediately.
func (s *CachedTokenStore) ClearToken(ctx context.Context, userID string) error {
	if err := s.realStore.ClearToken(ctx, userID); err != nil {
		return err
	}
	return s.invalidate(ctx, userID)
}

// --- Helpers ---

func (s *CachedTokenStore) invalidate(ctx context.Context, userID string) error {
	return s.cache.Del(ctx, s.cacheKey(userID))
}

func (s *CachedTokenStore) cacheKey(userID string) string {
	return fmt.Sprintf("carepush:token:%s", userID)
}
