// Package constants defines system-wide constants for the binsight service.
// This package provides type-safe constant definitions used across all modules.
package constants

import "time"

// ================================================================================
// Bin Status Constants
// ================================================================================

// BinStatus represents the lifecycle state of a waste bin.
type BinStatus string

const (
	// BinStatusActive indicates the bin is in service and below the full threshold
	BinStatusActive BinStatus = "active"

	// BinStatusFull indicates the reported fill level has crossed the full threshold
	BinStatusFull BinStatus = "full"

	// BinStatusMaintenanceDue indicates the scheduled maintenance date has passed
	BinStatusMaintenanceDue BinStatus = "maintenance-due"

	// BinStatusOffline indicates no telemetry was received within the heartbeat timeout
	BinStatusOffline BinStatus = "offline"
)

// ================================================================================
// Waste Category Constants
// ================================================================================

// WasteCategory represents the class of waste a bin collects.
type WasteCategory string

const (
	CategoryMetal            WasteCategory = "metal"
	CategoryBiodegradable    WasteCategory = "biodegradable"
	CategoryNonBiodegradable WasteCategory = "non-biodegradable"
	CategoryPlastic          WasteCategory = "plastic"
	CategoryOrganic          WasteCategory = "organic"
	CategoryEWaste           WasteCategory = "e-waste"
)

// ValidCategories lists every accepted waste category.
var ValidCategories = []WasteCategory{
	CategoryMetal,
	CategoryBiodegradable,
	CategoryNonBiodegradable,
	CategoryPlastic,
	CategoryOrganic,
	CategoryEWaste,
}

// IsValidCategory reports whether c is a recognized waste category.
func IsValidCategory(c WasteCategory) bool {
	for _, v := range ValidCategories {
		if v == c {
			return true
		}
	}
	return false
}

// ================================================================================
// Maintenance Frequency Constants
// ================================================================================

// MaintenanceFrequency represents how often a bin is scheduled for maintenance.
type MaintenanceFrequency string

const (
	FrequencyDaily    MaintenanceFrequency = "daily"
	FrequencyWeekly   MaintenanceFrequency = "weekly"
	FrequencyBiweekly MaintenanceFrequency = "biweekly"
	FrequencyMonthly  MaintenanceFrequency = "monthly"
)

// Interval returns the duration between maintenance actions for the frequency.
// Monthly is treated as 30 days.
func (f MaintenanceFrequency) Interval() time.Duration {
	switch f {
	case FrequencyDaily:
		return 24 * time.Hour
	case FrequencyWeekly:
		return 7 * 24 * time.Hour
	case FrequencyBiweekly:
		return 14 * 24 * time.Hour
	case FrequencyMonthly:
		return 30 * 24 * time.Hour
	default:
		return 0
	}
}

// IsValid reports whether f is a recognized maintenance frequency.
func (f MaintenanceFrequency) IsValid() bool {
	return f.Interval() > 0
}

// ================================================================================
// Alert Constants
// ================================================================================

// AlertSeverity represents the severity class of a dashboard alert.
type AlertSeverity string

const (
	// SeverityWarning marks anomaly conditions needing operator attention
	SeverityWarning AlertSeverity = "warning"

	// SeverityInfo marks routine notifications such as scheduled maintenance
	SeverityInfo AlertSeverity = "info"
)

// DefaultAlertFeedCapacity bounds the in-memory alert feed. The feed
// retains the most recent entries and drops the oldest past this cap.
const DefaultAlertFeedCapacity = 256

// ================================================================================
// Rate Limit Constants
// ================================================================================

// RateLimitTier identifies one of the parallel rate limiting policies.
type RateLimitTier string

const (
	// TierGeneral applies to all routes by default, keyed by client IP
	TierGeneral RateLimitTier = "general"

	// TierStrict applies to sensitive mutation routes, keyed by client IP
	TierStrict RateLimitTier = "strict"

	// TierIoT applies to device telemetry routes, keyed by device ID
	TierIoT RateLimitTier = "iot"
)

const (
	// DefaultGeneralLimit is the default request cap per general window
	DefaultGeneralLimit = 100

	// DefaultGeneralWindow is the default general tier window
	DefaultGeneralWindow = 1 * time.Minute

	// DefaultStrictLimit is the default request cap per strict window
	DefaultStrictLimit = 10

	// DefaultStrictWindow is the default strict tier window
	DefaultStrictWindow = 15 * time.Minute

	// DefaultIoTLimit is the default request cap per device window,
	// tuned for periodic telemetry push cadence
	DefaultIoTLimit = 120

	// DefaultIoTWindow is the default iot tier window
	DefaultIoTWindow = 1 * time.Minute

	// BucketEvictionFactor scales a tier window into the idle TTL after
	// which its counters are evicted
	BucketEvictionFactor = 2
)

// ================================================================================
// Bin State Engine Constants
// ================================================================================

const (
	// DefaultFullThreshold is the fill level percentage at and above which
	// a bin is considered full
	DefaultFullThreshold = 90

	// DefaultAnomalyThreshold is the fill level at and above which an
	// already-full bin triggers an overflow anomaly alert
	DefaultAnomalyThreshold = 95

	// DefaultHeartbeatTimeout is how long a bin may stay silent before it
	// is marked offline
	DefaultHeartbeatTimeout = 10 * time.Minute

	// DefaultHeartbeatSweepInterval is how often the offline sweep runs
	DefaultHeartbeatSweepInterval = 1 * time.Minute

	// DefaultMaintenanceFrequency is assigned to bins provisioned without
	// an explicit schedule
	DefaultMaintenanceFrequency = FrequencyWeekly

	// MinFillLevel and MaxFillLevel bound the accepted telemetry range
	MinFillLevel = 0
	MaxFillLevel = 100
)

// ================================================================================
// HTTP Constants
// ================================================================================

const (
	// DefaultMaxBodyBytes bounds inbound request bodies (10 MiB, matching
	// the dashboard's image upload limit)
	DefaultMaxBodyBytes = 10 << 20

	// HeaderDeviceID carries the device identity used by the iot limiter
	HeaderDeviceID = "X-Device-ID"

	// HeaderRequestID carries the per-request correlation ID
	HeaderRequestID = "X-Request-ID"

	// HeaderRetryAfter carries the rate limit retry hint in seconds
	HeaderRetryAfter = "Retry-After"

	// HeaderRateLimitLimit and HeaderRateLimitRemaining expose counter state
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"

	// MaxCORSMaxAge caps the preflight cache duration echoed to browsers
	MaxCORSMaxAge = 24 * time.Hour
)

// ================================================================================
// Context Keys
// ================================================================================

// ContextKey represents keys used in context.Context and gin.Context.
type ContextKey string

const (
	// ContextKeyRequestID is the key for the request correlation ID
	ContextKeyRequestID ContextKey = "request_id"

	// ContextKeyTraceID is the key for the distributed trace ID
	ContextKeyTraceID ContextKey = "trace_id"

	// ContextKeySanitizedBody is the key under which the sanitizer stores
	// the cleaned request payload for handlers
	ContextKeySanitizedBody ContextKey = "sanitized_body"

	// ContextKeyAdminSubject is the key for the verified admin identity
	ContextKeyAdminSubject ContextKey = "admin_subject"
)

// ================================================================================
// Logging Constants
// ================================================================================

// LogLevel represents the severity level of log messages.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)
