// Package ratelimit provides the tiered fixed-window rate limiter
// backing the request pipeline. Two backends implement the same
// service contract: an in-process store for single-replica deployments
// and a redis store for shared counters across replicas.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/greenops/binsight/internal/config"
	"github.com/greenops/binsight/internal/domain/service"
	"github.com/greenops/binsight/pkg/constants"
	"github.com/greenops/binsight/pkg/logger"
)

// bucket is one identity's counter within the current window.
type bucket struct {
	mu          sync.Mutex
	count       int
	windowStart time.Time
}

// MemoryLimiter implements the tiered limiter with in-process
// fixed-window counters. Buckets live in a TTL cache whose janitor
// evicts identities idle for two windows, so the store never grows
// unbounded without a manual sweep.
type MemoryLimiter struct {
	cfg config.RateLimitConfig
	log logger.Logger

	// one store per tier keeps the gates fully parallel
	stores map[constants.RateLimitTier]*gocache.Cache

	// creationMu serializes first-seen bucket creation per tier
	creationMu sync.Mutex

	now func() time.Time
}

var _ service.RateLimitService = (*MemoryLimiter)(nil)

// NewMemoryLimiter creates the in-process limiter backend.
func NewMemoryLimiter(cfg config.RateLimitConfig, log logger.Logger) *MemoryLimiter {
	stores := make(map[constants.RateLimitTier]*gocache.Cache)
	for _, tier := range []constants.RateLimitTier{
		constants.TierGeneral, constants.TierStrict, constants.TierIoT,
	} {
		ttl := cfg.Tier(tier).Window * constants.BucketEvictionFactor
		stores[tier] = gocache.New(ttl, ttl)
	}
	return &MemoryLimiter{
		cfg:    cfg,
		log:    log.WithComponent("ratelimit-memory"),
		stores: stores,
		now:    time.Now,
	}
}

// Allow records one request for key on the given tier.
func (l *MemoryLimiter) Allow(ctx context.Context, tier constants.RateLimitTier, key string) (service.Decision, error) {
	tierCfg := l.cfg.Tier(tier)
	b := l.getOrCreate(tier, key, tierCfg.Window)

	b.mu.Lock()
	defer b.mu.Unlock()

	now := l.now()
	if now.Sub(b.windowStart) >= tierCfg.Window {
		// The window elapsed: reset exactly once, atomically under the
		// bucket lock.
		b.count = 0
		b.windowStart = now
	}

	resetAt := b.windowStart.Add(tierCfg.Window)
	if b.count >= tierCfg.Limit {
		return service.Decision{
			Allowed:    false,
			Limit:      tierCfg.Limit,
			Remaining:  0,
			RetryAfter: resetAt.Sub(now),
			ResetAt:    resetAt,
		}, nil
	}

	b.count++
	return service.Decision{
		Allowed:   true,
		Limit:     tierCfg.Limit,
		Remaining: tierCfg.Limit - b.count,
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the counter for key on the given tier.
func (l *MemoryLimiter) Reset(ctx context.Context, tier constants.RateLimitTier, key string) error {
	l.stores[tier].Delete(bucketKey(tier, key))
	return nil
}

// getOrCreate fetches the bucket for key, creating and registering it
// with the tier's eviction TTL when the identity is first seen. The
// cache refreshes the TTL on every hit, so only genuinely idle
// identities are evicted.
func (l *MemoryLimiter) getOrCreate(tier constants.RateLimitTier, key string, window time.Duration) *bucket {
	store := l.stores[tier]
	ck := bucketKey(tier, key)

	if v, ok := store.Get(ck); ok {
		store.SetDefault(ck, v)
		return v.(*bucket)
	}

	l.creationMu.Lock()
	defer l.creationMu.Unlock()
	if v, ok := store.Get(ck); ok {
		return v.(*bucket)
	}
	b := &bucket{windowStart: l.now()}
	store.SetDefault(ck, b)
	return b
}

func bucketKey(tier constants.RateLimitTier, key string) string {
	return fmt.Sprintf("%s:%s", tier, key)
}
