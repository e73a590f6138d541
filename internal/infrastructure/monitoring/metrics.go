// Package monitoring exports business metrics and distributed tracing.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/greenops/binsight/internal/domain/service"
	"github.com/greenops/binsight/pkg/constants"
)

// Metrics manages the Prometheus metrics.
type Metrics struct {
	TelemetryApplied *prometheus.CounterVec
	AlertsEmitted    *prometheus.CounterVec
	RateLimitHits    *prometheus.CounterVec
	BinFillLevel     *prometheus.GaugeVec
	BinStatus        *prometheus.GaugeVec
	HTTPRequests     *prometheus.CounterVec
	HTTPLatency      *prometheus.HistogramVec
}

var _ service.Metrics = (*Metrics)(nil)

// NewMetrics creates and registers the Prometheus metrics on the
// default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		TelemetryApplied: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "binsight_telemetry_readings_total",
				Help: "Total number of telemetry readings by processing result.",
			},
			[]string{"result"},
		),
		AlertsEmitted: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "binsight_alerts_emitted_total",
				Help: "Total number of alerts emitted by severity.",
			},
			[]string{"severity"},
		),
		RateLimitHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "binsight_rate_limit_hits_total",
				Help: "Total number of rate-limited requests by tier.",
			},
			[]string{"tier"},
		),
		BinFillLevel: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "binsight_bin_fill_level_percent",
				Help: "Last reported fill level per bin.",
			},
			[]string{"bin_id", "category"},
		),
		BinStatus: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "binsight_bin_status",
				Help: "Current bin status; 1 for the active status label, 0 otherwise.",
			},
			[]string{"bin_id", "status"},
		),
		HTTPRequests: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "binsight_http_requests_total",
				Help: "Total number of HTTP requests.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "binsight_http_request_duration_seconds",
				Help:    "HTTP request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}
}

// RecordTelemetry counts a telemetry application attempt.
func (m *Metrics) RecordTelemetry(result string) {
	m.TelemetryApplied.WithLabelValues(result).Inc()
}

// RecordAlert counts an emitted alert.
func (m *Metrics) RecordAlert(severity constants.AlertSeverity) {
	m.AlertsEmitted.WithLabelValues(string(severity)).Inc()
}

// RecordRateLimitHit counts a rejection on the given tier.
func (m *Metrics) RecordRateLimitHit(tier constants.RateLimitTier) {
	m.RateLimitHits.WithLabelValues(string(tier)).Inc()
}

// SetBinFillLevel exports the current fill level of a bin.
func (m *Metrics) SetBinFillLevel(binID string, category constants.WasteCategory, level float64) {
	m.BinFillLevel.WithLabelValues(binID, string(category)).Set(level)
}

// SetBinStatus exports the current status of a bin as a one-hot gauge
// across the known statuses.
func (m *Metrics) SetBinStatus(binID string, status constants.BinStatus) {
	for _, s := range []constants.BinStatus{
		constants.BinStatusActive,
		constants.BinStatusFull,
		constants.BinStatusMaintenanceDue,
		constants.BinStatusOffline,
	} {
		value := 0.0
		if s == status {
			value = 1.0
		}
		m.BinStatus.WithLabelValues(binID, string(s)).Set(value)
	}
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, seconds float64) {
	m.HTTPRequests.WithLabelValues(method, path, status).Inc()
	m.HTTPLatency.WithLabelValues(method, path).Observe(seconds)
}
