package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/greenops/binsight/internal/config"
	"github.com/greenops/binsight/internal/domain/service"
	"github.com/greenops/binsight/pkg/constants"
	"github.com/greenops/binsight/pkg/logger"
)

// fixedWindowScript increments the window counter and stamps the TTL
// on first hit. Returns {count, pttl} so the caller computes the
// reset without a second round trip.
var fixedWindowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if count == 1 then
    redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local pttl = redis.call('PTTL', KEYS[1])
return {count, pttl}
`)

// RedisLimiter implements the tiered limiter on shared redis counters
// so replicas enforce one combined budget per identity. Backend
// failures fail open: an unreachable counter store degrades limiting,
// it never takes the service down with it.
type RedisLimiter struct {
	client redis.UniversalClient
	cfg    config.RateLimitConfig
	log    logger.Logger
	now    func() time.Time
}

var _ service.RateLimitService = (*RedisLimiter)(nil)

// NewRedisLimiter creates the redis-backed limiter.
func NewRedisLimiter(client redis.UniversalClient, cfg config.RateLimitConfig, log logger.Logger) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		cfg:    cfg,
		log:    log.WithComponent("ratelimit-redis"),
		now:    time.Now,
	}
}

// Allow records one request for key on the given tier.
func (l *RedisLimiter) Allow(ctx context.Context, tier constants.RateLimitTier, key string) (service.Decision, error) {
	tierCfg := l.cfg.Tier(tier)
	rk := redisBucketKey(tier, key)

	res, err := fixedWindowScript.Run(ctx, l.client, []string{rk}, tierCfg.Window.Milliseconds()).Slice()
	if err != nil {
		l.log.Warn(ctx, "rate limit backend unavailable, failing open",
			logger.String("tier", string(tier)),
			logger.String("error", err.Error()))
		return service.Decision{
			Allowed:   true,
			Limit:     tierCfg.Limit,
			Remaining: tierCfg.Limit,
			ResetAt:   l.now().Add(tierCfg.Window),
		}, nil
	}

	count, pttl, err := parseScriptReply(res)
	if err != nil {
		l.log.Warn(ctx, "rate limit script returned malformed reply, failing open",
			logger.String("tier", string(tier)),
			logger.String("error", err.Error()))
		return service.Decision{
			Allowed:   true,
			Limit:     tierCfg.Limit,
			Remaining: tierCfg.Limit,
			ResetAt:   l.now().Add(tierCfg.Window),
		}, nil
	}

	ttl := time.Duration(pttl) * time.Millisecond
	if ttl < 0 {
		ttl = tierCfg.Window
	}
	resetAt := l.now().Add(ttl)

	if count > int64(tierCfg.Limit) {
		return service.Decision{
			Allowed:    false,
			Limit:      tierCfg.Limit,
			Remaining:  0,
			RetryAfter: ttl,
			ResetAt:    resetAt,
		}, nil
	}

	return service.Decision{
		Allowed:   true,
		Limit:     tierCfg.Limit,
		Remaining: tierCfg.Limit - int(count),
		ResetAt:   resetAt,
	}, nil
}

// Reset clears the counter for key on the given tier.
func (l *RedisLimiter) Reset(ctx context.Context, tier constants.RateLimitTier, key string) error {
	return l.client.Del(ctx, redisBucketKey(tier, key)).Err()
}

func parseScriptReply(res []interface{}) (count, pttl int64, err error) {
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("expected 2 reply elements, got %d", len(res))
	}
	var ok bool
	if count, ok = res[0].(int64); !ok {
		return 0, 0, fmt.Errorf("unexpected count type %T", res[0])
	}
	if pttl, ok = res[1].(int64); !ok {
		return 0, 0, fmt.Errorf("unexpected pttl type %T", res[1])
	}
	return count, pttl, nil
}

func redisBucketKey(tier constants.RateLimitTier, key string) string {
	return fmt.Sprintf("binsight:ratelimit:%s:%s", tier, key)
}
