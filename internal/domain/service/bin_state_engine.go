package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/greenops/binsight/internal/config"
	"github.com/greenops/binsight/internal/domain/models"
	"github.com/greenops/binsight/internal/domain/repository"
	"github.com/greenops/binsight/pkg/constants"
	"github.com/greenops/binsight/pkg/errors"
	"github.com/greenops/binsight/pkg/logger"
)

// BinStateEngine turns raw telemetry into bin status, maintenance
// schedules, and alerts. It is the single writer for bin state: every
// mutation goes through a per-bin lock, so two concurrent pushes for
// the same bin serialize instead of racing a read-modify-write.
//
// The engine holds the authoritative state in memory and persists each
// accepted transition through the repository afterwards, outside the
// per-bin critical section. A failed persistence write is logged and
// retried implicitly by the next accepted update; it never rolls back
// an applied transition.
type BinStateEngine struct {
	cfg     config.EngineConfig
	repo    repository.BinRepository
	feed    *AlertFeed
	events  EventPublisher
	metrics Metrics
	log     logger.Logger

	mu   sync.RWMutex
	bins map[string]*binEntry
}

// binEntry pairs a bin with its write lock.
type binEntry struct {
	mu  sync.Mutex
	bin *models.Bin
}

// NewBinStateEngine creates an engine over the given repository.
// events and metrics may be nil.
func NewBinStateEngine(
	cfg config.EngineConfig,
	repo repository.BinRepository,
	feed *AlertFeed,
	events EventPublisher,
	metrics Metrics,
	log logger.Logger,
) *BinStateEngine {
	return &BinStateEngine{
		cfg:     cfg,
		repo:    repo,
		feed:    feed,
		events:  events,
		metrics: metrics,
		log:     log.WithComponent("bin-state-engine"),
		bins:    make(map[string]*binEntry),
	}
}

// LoadBins primes the in-memory state from the repository. Called once
// during startup before the server accepts traffic.
func (e *BinStateEngine) LoadBins(ctx context.Context) error {
	bins, err := e.repo.FindAll(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	for _, bin := range bins {
		b := *bin
		e.bins[b.BinID] = &binEntry{bin: &b}
	}
	e.log.Info(ctx, "bin state loaded", logger.Int("bins", len(bins)))
	return nil
}

// Provision registers a new bin and persists it.
func (e *BinStateEngine) Provision(ctx context.Context, bin *models.Bin) error {
	e.mu.Lock()
	if _, exists := e.bins[bin.BinID]; exists {
		e.mu.Unlock()
		return errors.New(errors.CodeValidationFailed, 422, "bin already provisioned").
			WithMetadata("bin_id", bin.BinID)
	}
	b := *bin
	e.bins[bin.BinID] = &binEntry{bin: &b}
	e.mu.Unlock()

	if err := e.repo.Save(ctx, bin); err != nil {
		// Roll back the registration so a retry is not rejected as a
		// duplicate of a bin that was never persisted.
		e.mu.Lock()
		delete(e.bins, bin.BinID)
		e.mu.Unlock()
		return err
	}
	e.exportGauges(&b)
	return nil
}

// ApplyTelemetry applies one reading in arrival order for its bin.
// A reading whose device timestamp is strictly older than the last
// applied one is rejected as stale and leaves the state untouched.
func (e *BinStateEngine) ApplyTelemetry(ctx context.Context, reading models.TelemetryReading) (*models.Bin, []models.Alert, error) {
	if fields := reading.Validate(); len(fields) > 0 {
		e.recordResult("invalid")
		return nil, nil, errors.ErrValidationFailed(fields...)
	}

	entry, ok := e.lookup(reading.BinID)
	if !ok {
		e.recordResult("unknown_bin")
		return nil, nil, errors.ErrUnknownBin(reading.BinID)
	}

	entry.mu.Lock()
	bin := entry.bin

	if reading.Timestamp.Before(bin.LastTelemetryAt) {
		lastApplied := bin.LastTelemetryAt
		entry.mu.Unlock()
		e.recordResult("stale")
		return nil, nil, errors.ErrStaleTelemetry(reading.BinID, reading.Timestamp, lastApplied)
	}

	now := time.Now().UTC()
	alerts := e.transition(bin, reading, now)

	bin.FillLevel = reading.FillLevel
	bin.LastSeenAt = now
	bin.LastTelemetryAt = reading.Timestamp
	bin.UpdatedAt = now

	snapshot := *bin
	entry.mu.Unlock()

	e.recordResult("applied")
	e.exportGauges(&snapshot)
	e.persist(ctx, &snapshot)
	e.emit(ctx, alerts)

	if e.events != nil {
		if err := e.events.PublishTelemetry(ctx, reading); err != nil {
			e.log.Warn(ctx, "telemetry event publish failed",
				logger.String("bin_id", reading.BinID))
		}
	}
	return &snapshot, alerts, nil
}

// transition computes status changes and edge alerts for a reading.
// Must be called with the entry lock held. The bin's FillLevel still
// holds the previous value when this runs.
func (e *BinStateEngine) transition(bin *models.Bin, reading models.TelemetryReading, now time.Time) []models.Alert {
	var alerts []models.Alert
	prevFill := bin.FillLevel
	fill := reading.FillLevel

	// Fresh telemetry revives a silent bin.
	if bin.Status == constants.BinStatusOffline {
		bin.Status = constants.BinStatusActive
	}

	switch bin.Status {
	case constants.BinStatusActive:
		if fill >= e.cfg.FullThreshold {
			// Upward crossing: exactly one alert per edge, not one per
			// update while still above the threshold.
			bin.Status = constants.BinStatusFull
			alerts = append(alerts, models.NewFullAlert(bin.BinID, bin.Zone(), fill))
			if fill >= e.cfg.AnomalyThreshold {
				// A single jump can cross both edges at once.
				alerts = append(alerts, models.NewAnomalyAlert(bin.BinID, bin.Zone(), fill))
			}
		}

	case constants.BinStatusFull:
		if fill < e.cfg.FullThreshold {
			// Emptying event: the level dropped back under the threshold.
			bin.Status = constants.BinStatusActive
			bin.LastEmptied = now
		} else if fill >= e.cfg.AnomalyThreshold && prevFill < e.cfg.AnomalyThreshold {
			// Still full and climbing past the anomaly threshold.
			alerts = append(alerts, models.NewAnomalyAlert(bin.BinID, bin.Zone(), fill))
		}

	case constants.BinStatusMaintenanceDue:
		// Status holds until a maintenance action clears it; fill is
		// still tracked through the field updates in the caller.
	}

	// Edge into maintenance-due from active or full.
	if bin.MaintenanceDue(now) &&
		(bin.Status == constants.BinStatusActive || bin.Status == constants.BinStatusFull) {
		bin.Status = constants.BinStatusMaintenanceDue
		alerts = append(alerts, models.NewMaintenanceDueAlert(bin.BinID, bin.Zone(), bin.Maintenance.NextMaintenanceDate))
	}

	return alerts
}

// Heartbeat records device liveness without a fill reading. An offline
// bin returns to active.
func (e *BinStateEngine) Heartbeat(ctx context.Context, binID string) error {
	entry, ok := e.lookup(binID)
	if !ok {
		return errors.ErrUnknownBin(binID)
	}

	entry.mu.Lock()
	now := time.Now().UTC()
	entry.bin.LastSeenAt = now
	if entry.bin.Status == constants.BinStatusOffline {
		entry.bin.Status = constants.BinStatusActive
	}
	snapshot := *entry.bin
	entry.mu.Unlock()

	e.persist(ctx, &snapshot)
	return nil
}

// RecordMaintenance applies a maintenance-performed event: the schedule
// advances, the derived next date is recomputed, and a maintenance-due
// bin returns to active (or full, if its level still warrants it).
func (e *BinStateEngine) RecordMaintenance(ctx context.Context, binID string, at time.Time) (*models.Bin, error) {
	entry, ok := e.lookup(binID)
	if !ok {
		return nil, errors.ErrUnknownBin(binID)
	}

	entry.mu.Lock()
	bin := entry.bin
	bin.RecordMaintenance(at)
	if bin.Status == constants.BinStatusMaintenanceDue {
		if bin.FillLevel >= e.cfg.FullThreshold {
			bin.Status = constants.BinStatusFull
		} else {
			bin.Status = constants.BinStatusActive
		}
	}
	bin.UpdatedAt = time.Now().UTC()
	snapshot := *bin
	entry.mu.Unlock()

	e.exportGauges(&snapshot)
	e.persist(ctx, &snapshot)
	return &snapshot, nil
}

// SweepOffline marks every bin silent past the heartbeat timeout as
// offline, emitting one alert per transition edge.
func (e *BinStateEngine) SweepOffline(ctx context.Context, now time.Time) int {
	e.mu.RLock()
	entries := make([]*binEntry, 0, len(e.bins))
	for _, entry := range e.bins {
		entries = append(entries, entry)
	}
	e.mu.RUnlock()

	marked := 0
	for _, entry := range entries {
		entry.mu.Lock()
		bin := entry.bin
		if bin.Status != constants.BinStatusOffline && bin.Silent(now, e.cfg.HeartbeatTimeout) {
			bin.Status = constants.BinStatusOffline
			snapshot := *bin
			entry.mu.Unlock()

			marked++
			e.exportGauges(&snapshot)
			e.persist(ctx, &snapshot)
			e.emit(ctx, []models.Alert{
				models.NewOfflineAlert(snapshot.BinID, snapshot.Zone(), snapshot.LastSeenAt),
			})
			continue
		}
		entry.mu.Unlock()
	}
	return marked
}

// Run drives the periodic offline sweep until the context is canceled.
func (e *BinStateEngine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			if n := e.SweepOffline(ctx, now.UTC()); n > 0 {
				e.log.Info(ctx, "offline sweep marked bins", logger.Int("count", n))
			}
		}
	}
}

// GetBin returns a snapshot of one bin.
func (e *BinStateEngine) GetBin(binID string) (*models.Bin, error) {
	entry, ok := e.lookup(binID)
	if !ok {
		return nil, errors.ErrUnknownBin(binID)
	}
	entry.mu.Lock()
	snapshot := *entry.bin
	entry.mu.Unlock()
	return &snapshot, nil
}

// ListBins returns snapshots of all bins ordered by bin ID.
func (e *BinStateEngine) ListBins() []*models.Bin {
	e.mu.RLock()
	entries := make([]*binEntry, 0, len(e.bins))
	for _, entry := range e.bins {
		entries = append(entries, entry)
	}
	e.mu.RUnlock()

	out := make([]*models.Bin, 0, len(entries))
	for _, entry := range entries {
		entry.mu.Lock()
		snapshot := *entry.bin
		entry.mu.Unlock()
		out = append(out, &snapshot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BinID < out[j].BinID })
	return out
}

func (e *BinStateEngine) lookup(binID string) (*binEntry, bool) {
	e.mu.RLock()
	entry, ok := e.bins[binID]
	e.mu.RUnlock()
	return entry, ok
}

func (e *BinStateEngine) persist(ctx context.Context, bin *models.Bin) {
	if err := e.repo.Update(ctx, bin); err != nil {
		e.log.Error(ctx, "bin persistence failed", err,
			logger.String("bin_id", bin.BinID))
	}
}

func (e *BinStateEngine) emit(ctx context.Context, alerts []models.Alert) {
	for _, alert := range alerts {
		e.feed.Append(alert)
		if e.metrics != nil {
			e.metrics.RecordAlert(alert.Severity)
		}
		if e.events != nil {
			if err := e.events.PublishAlert(ctx, alert); err != nil {
				e.log.Warn(ctx, "alert event publish failed",
					logger.String("alert_id", alert.ID),
					logger.String("bin_id", alert.BinID))
			}
		}
		e.log.Info(ctx, "alert emitted",
			logger.String("alert_id", alert.ID),
			logger.String("bin_id", alert.BinID),
			logger.String("severity", string(alert.Severity)),
			logger.String("message", alert.Message))
	}
}

func (e *BinStateEngine) recordResult(result string) {
	if e.metrics != nil {
		e.metrics.RecordTelemetry(result)
	}
}

func (e *BinStateEngine) exportGauges(bin *models.Bin) {
	if e.metrics != nil {
		e.metrics.SetBinFillLevel(bin.BinID, bin.Category, float64(bin.FillLevel))
		e.metrics.SetBinStatus(bin.BinID, bin.Status)
	}
}
