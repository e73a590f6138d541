// Package service holds the domain services of the binsight core: the
// bin state engine, the alert feed, and the contracts the surrounding
// infrastructure implements for them.
package service

import (
	"context"
	"time"

	"github.com/greenops/binsight/internal/domain/models"
	"github.com/greenops/binsight/pkg/constants"
)

// Decision is the outcome of a rate limit check.
type Decision struct {
	// Allowed reports whether the request may proceed.
	Allowed bool

	// Limit is the configured cap for the tier.
	Limit int

	// Remaining is the number of requests left in the current window.
	Remaining int

	// RetryAfter is how long a rejected caller should wait. Zero when
	// the request is allowed.
	RetryAfter time.Duration

	// ResetAt is when the current window elapses.
	ResetAt time.Time
}

// RateLimitService checks requests against the three parallel limiter
// tiers. Tiers never share counters: throttling a key on one tier has
// no effect on the same key's allowance on another.
type RateLimitService interface {
	// Allow records one request for key on the given tier and reports
	// whether it is within the window limit.
	Allow(ctx context.Context, tier constants.RateLimitTier, key string) (Decision, error)

	// Reset clears the counter for key on the given tier.
	Reset(ctx context.Context, tier constants.RateLimitTier, key string) error
}

// EventPublisher streams applied telemetry and generated alerts to
// downstream consumers. Publication is best-effort: failures are logged
// and never fail the originating request.
type EventPublisher interface {
	PublishTelemetry(ctx context.Context, reading models.TelemetryReading) error
	PublishAlert(ctx context.Context, alert models.Alert) error
	Close() error
}

// Metrics records business metrics. The abstraction keeps the domain
// layer independent of the prometheus client.
type Metrics interface {
	// RecordTelemetry counts a telemetry application attempt by result
	// (applied, stale, unknown_bin, invalid).
	RecordTelemetry(result string)

	// RecordAlert counts an emitted alert by severity.
	RecordAlert(severity constants.AlertSeverity)

	// RecordRateLimitHit counts a rejection on the given tier.
	RecordRateLimitHit(tier constants.RateLimitTier)

	// SetBinFillLevel exports the current fill level of a bin.
	SetBinFillLevel(binID string, category constants.WasteCategory, level float64)

	// SetBinStatus exports the current status of a bin.
	SetBinStatus(binID string, status constants.BinStatus)
}
