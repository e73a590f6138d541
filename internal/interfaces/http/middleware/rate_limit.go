package middleware

import (
	"encoding/json"
	"math"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/greenops/binsight/internal/config"
	"github.com/greenops/binsight/internal/domain/service"
	"github.com/greenops/binsight/pkg/constants"
	"github.com/greenops/binsight/pkg/errors"
	"github.com/greenops/binsight/pkg/logger"
)

// RateLimit enforces one limiter tier on a route group. General and
// strict tiers key on client IP; the iot tier keys on the device
// identity so one NATed gateway does not starve its neighbors.
// Every response carries the counter headers, and a rejection carries
// Retry-After.
func RateLimit(
	limiter service.RateLimitService,
	cfg config.RateLimitConfig,
	tier constants.RateLimitTier,
	metrics service.Metrics,
	log logger.Logger,
) gin.HandlerFunc {
	mwLog := log.WithComponent("ratelimit")

	return func(c *gin.Context) {
		if !cfg.Enabled {
			c.Next()
			return
		}

		key := limiterKey(c, tier)
		decision, err := limiter.Allow(c.Request.Context(), tier, key)
		if err != nil {
			// Backends fail open internally; an error here is a
			// programming fault, not a backend outage.
			mwLog.Error(c.Request.Context(), "Rate limiter failed", err,
				logger.String("tier", string(tier)))
			c.Next()
			return
		}

		c.Header(constants.HeaderRateLimitLimit, strconv.Itoa(decision.Limit))
		c.Header(constants.HeaderRateLimitRemaining, strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			retryAfter := int(math.Ceil(decision.RetryAfter.Seconds()))
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header(constants.HeaderRetryAfter, strconv.Itoa(retryAfter))

			metrics.RecordRateLimitHit(tier)
			mwLog.Warn(c.Request.Context(), "Rate limit exceeded",
				logger.String("tier", string(tier)),
				logger.String("key", key),
				logger.Int("retry_after_s", retryAfter))

			AbortWithError(c, errors.ErrRateLimited(string(tier), decision.RetryAfter))
			return
		}

		c.Next()
	}
}

// limiterKey picks the identity a tier counts by. The iot tier prefers
// the device identity header, then the deviceId field of the sanitized
// body; devices that present neither fall back to IP so they are still
// limited, just coarsely.
func limiterKey(c *gin.Context, tier constants.RateLimitTier) string {
	if tier == constants.TierIoT {
		if deviceID := c.GetHeader(constants.HeaderDeviceID); deviceID != "" {
			return deviceID
		}
		if deviceID := bodyDeviceID(c); deviceID != "" {
			return deviceID
		}
	}
	return c.ClientIP()
}

// bodyDeviceID extracts deviceId from the body the Sanitizer stored.
// NATed devices share an IP, so the in-band identity must key the
// counter even when the header is missing.
func bodyDeviceID(c *gin.Context) string {
	raw, exists := c.Get(string(constants.ContextKeySanitizedBody))
	if !exists {
		return ""
	}
	body, ok := raw.([]byte)
	if !ok {
		return ""
	}
	var payload struct {
		DeviceID string `json:"deviceId"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return ""
	}
	return payload.DeviceID
}
