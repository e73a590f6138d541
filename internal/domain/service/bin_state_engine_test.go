package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenops/binsight/internal/config"
	"github.com/greenops/binsight/internal/domain/models"
	"github.com/greenops/binsight/internal/domain/repository"
	"github.com/greenops/binsight/pkg/constants"
	"github.com/greenops/binsight/pkg/errors"
	"github.com/greenops/binsight/pkg/logger"
)

// fakeBinRepo is an in-memory BinRepository for engine tests.
type fakeBinRepo struct {
	mu      sync.Mutex
	bins    map[string]*models.Bin
	updates int

	// saveErr makes Save fail when set.
	saveErr error
}

func newFakeBinRepo() *fakeBinRepo {
	return &fakeBinRepo{bins: make(map[string]*models.Bin)}
}

func (r *fakeBinRepo) Save(ctx context.Context, bin *models.Bin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	b := *bin
	r.bins[bin.BinID] = &b
	return nil
}

func (r *fakeBinRepo) Update(ctx context.Context, bin *models.Bin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.bins[bin.BinID]; !ok {
		return errors.ErrUnknownBin(bin.BinID)
	}
	b := *bin
	r.bins[bin.BinID] = &b
	r.updates++
	return nil
}

func (r *fakeBinRepo) FindByBinID(ctx context.Context, binID string) (*models.Bin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bin, ok := r.bins[binID]
	if !ok {
		return nil, errors.ErrUnknownBin(binID)
	}
	b := *bin
	return &b, nil
}

func (r *fakeBinRepo) FindAll(ctx context.Context) ([]*models.Bin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Bin, 0, len(r.bins))
	for _, bin := range r.bins {
		b := *bin
		out = append(out, &b)
	}
	return out, nil
}

func (r *fakeBinRepo) FillAveragesByCategory(ctx context.Context) ([]repository.CategoryFillAverage, error) {
	return nil, nil
}

func (r *fakeBinRepo) persisted(t *testing.T, binID string) *models.Bin {
	t.Helper()
	bin, err := r.FindByBinID(context.Background(), binID)
	require.NoError(t, err)
	return bin
}

func engineConfig() config.EngineConfig {
	return config.EngineConfig{
		FullThreshold:     90,
		AnomalyThreshold:  95,
		HeartbeatTimeout:  10 * time.Minute,
		SweepInterval:     time.Minute,
		DefaultFrequency:  constants.FrequencyWeekly,
		AlertFeedCapacity: 256,
	}
}

func newTestEngine(t *testing.T, cfg config.EngineConfig) (*BinStateEngine, *fakeBinRepo, *AlertFeed) {
	t.Helper()
	repo := newFakeBinRepo()
	feed := NewAlertFeed(cfg.AlertFeedCapacity)
	engine := NewBinStateEngine(cfg, repo, feed, nil, nil, logger.NewNoop())
	return engine, repo, feed
}

func provisionBin(t *testing.T, engine *BinStateEngine, binID string) {
	t.Helper()
	bin := models.NewBin(binID, constants.CategoryPlastic, models.Location{
		Address: "Central Plaza",
	}, 100, constants.FrequencyWeekly)
	require.NoError(t, engine.Provision(context.Background(), bin))
}

func reading(binID string, fill int, ts time.Time) models.TelemetryReading {
	return models.TelemetryReading{
		DeviceID:     "sensor-" + binID,
		BinID:        binID,
		FillLevel:    fill,
		Timestamp:    ts,
		BatteryLevel: -1,
	}
}

func TestEngine_RisingFillEmitsOneFullAlert(t *testing.T) {
	cfg := engineConfig()
	cfg.AnomalyThreshold = 101 // isolate the full edge
	engine, _, feed := newTestEngine(t, cfg)
	provisionBin(t, engine, "BIN-001")
	ctx := context.Background()

	base := time.Now().UTC()
	for i, fill := range []int{70, 85, 92, 95} {
		_, _, err := engine.ApplyTelemetry(ctx, reading("BIN-001", fill, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	alerts := feed.List(AlertFilter{})
	require.Len(t, alerts, 1)
	assert.Equal(t, constants.SeverityWarning, alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "BIN-001")
	assert.Contains(t, alerts[0].Message, "full")

	bin, err := engine.GetBin("BIN-001")
	require.NoError(t, err)
	assert.Equal(t, constants.BinStatusFull, bin.Status)
	assert.Equal(t, 95, bin.FillLevel)
}

func TestEngine_AnomalyAlertOnOverfillEdge(t *testing.T) {
	engine, _, feed := newTestEngine(t, engineConfig())
	provisionBin(t, engine, "BIN-001")
	ctx := context.Background()

	base := time.Now().UTC()
	// 92 crosses full, 96 crosses the anomaly threshold, 97 stays above
	// it without a second anomaly alert.
	for i, fill := range []int{92, 96, 97} {
		_, _, err := engine.ApplyTelemetry(ctx, reading("BIN-001", fill, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	alerts := feed.List(AlertFilter{})
	require.Len(t, alerts, 2)
	// Newest first.
	assert.Contains(t, alerts[0].Message, "Anomaly")
	assert.Contains(t, alerts[1].Message, "full")
}

func TestEngine_SingleJumpCrossesBothThresholds(t *testing.T) {
	engine, _, feed := newTestEngine(t, engineConfig())
	provisionBin(t, engine, "BIN-001")
	ctx := context.Background()

	base := time.Now().UTC()
	_, _, err := engine.ApplyTelemetry(ctx, reading("BIN-001", 50, base))
	require.NoError(t, err)

	// One reading jumps over both the full and the anomaly threshold.
	_, alerts, err := engine.ApplyTelemetry(ctx, reading("BIN-001", 97, base.Add(time.Minute)))
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Contains(t, alerts[0].Message, "full")
	assert.Contains(t, alerts[1].Message, "Anomaly")

	require.Len(t, feed.List(AlertFilter{}), 2)

	// The anomaly edge was already consumed; staying above it stays quiet.
	_, alerts, err = engine.ApplyTelemetry(ctx, reading("BIN-001", 98, base.Add(2*time.Minute)))
	require.NoError(t, err)
	assert.Empty(t, alerts)
}

func TestEngine_EmptyingReturnsToActive(t *testing.T) {
	engine, repo, _ := newTestEngine(t, engineConfig())
	provisionBin(t, engine, "BIN-001")
	ctx := context.Background()

	base := time.Now().UTC()
	_, _, err := engine.ApplyTelemetry(ctx, reading("BIN-001", 93, base))
	require.NoError(t, err)

	bin, _, err := engine.ApplyTelemetry(ctx, reading("BIN-001", 5, base.Add(time.Minute)))
	require.NoError(t, err)

	assert.Equal(t, constants.BinStatusActive, bin.Status)
	assert.Equal(t, 5, bin.FillLevel)
	assert.False(t, bin.LastEmptied.IsZero())
	assert.Equal(t, constants.BinStatusActive, repo.persisted(t, "BIN-001").Status)
}

func TestEngine_StaleTelemetryRejected(t *testing.T) {
	engine, _, feed := newTestEngine(t, engineConfig())
	provisionBin(t, engine, "BIN-001")
	ctx := context.Background()

	base := time.Now().UTC()
	_, _, err := engine.ApplyTelemetry(ctx, reading("BIN-001", 40, base))
	require.NoError(t, err)
	_, _, err = engine.ApplyTelemetry(ctx, reading("BIN-001", 50, base.Add(5*time.Minute)))
	require.NoError(t, err)

	// A reading from T+2 arrives after T+5 was applied.
	_, _, err = engine.ApplyTelemetry(ctx, reading("BIN-001", 45, base.Add(2*time.Minute)))
	require.Error(t, err)
	assert.True(t, errors.IsStaleTelemetry(err))

	bin, err := engine.GetBin("BIN-001")
	require.NoError(t, err)
	assert.Equal(t, 50, bin.FillLevel)
	assert.True(t, bin.LastTelemetryAt.Equal(base.Add(5*time.Minute)))
	assert.Empty(t, feed.List(AlertFilter{}))
}

func TestEngine_EqualTimestampAccepted(t *testing.T) {
	engine, _, _ := newTestEngine(t, engineConfig())
	provisionBin(t, engine, "BIN-001")
	ctx := context.Background()

	ts := time.Now().UTC()
	_, _, err := engine.ApplyTelemetry(ctx, reading("BIN-001", 40, ts))
	require.NoError(t, err)

	// Same device timestamp is not strictly older; it must apply.
	bin, _, err := engine.ApplyTelemetry(ctx, reading("BIN-001", 42, ts))
	require.NoError(t, err)
	assert.Equal(t, 42, bin.FillLevel)
}

func TestEngine_UnknownBinRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t, engineConfig())

	_, _, err := engine.ApplyTelemetry(context.Background(), reading("BIN-404", 40, time.Now().UTC()))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeUnknownBin))
}

func TestEngine_InvalidReadingRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t, engineConfig())
	provisionBin(t, engine, "BIN-001")

	r := reading("BIN-001", 140, time.Now().UTC())
	_, _, err := engine.ApplyTelemetry(context.Background(), r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeValidationFailed))

	r = reading("BIN-001", 40, time.Time{})
	_, _, err = engine.ApplyTelemetry(context.Background(), r)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeValidationFailed))
}

func TestEngine_MaintenanceDueEdge(t *testing.T) {
	engine, _, feed := newTestEngine(t, engineConfig())
	provisionBin(t, engine, "BIN-001")
	ctx := context.Background()

	// Backdate the schedule so the next date is already in the past.
	entry, ok := engine.lookup("BIN-001")
	require.True(t, ok)
	entry.mu.Lock()
	entry.bin.Maintenance.LastMaintenanceDate = time.Now().UTC().Add(-8 * 24 * time.Hour)
	entry.bin.Maintenance.Recompute()
	entry.mu.Unlock()

	base := time.Now().UTC()
	bin, alerts, err := engine.ApplyTelemetry(ctx, reading("BIN-001", 30, base))
	require.NoError(t, err)
	assert.Equal(t, constants.BinStatusMaintenanceDue, bin.Status)
	require.Len(t, alerts, 1)
	assert.Equal(t, constants.SeverityInfo, alerts[0].Severity)

	// Further telemetry holds the status and stays quiet.
	bin, alerts, err = engine.ApplyTelemetry(ctx, reading("BIN-001", 93, base.Add(time.Minute)))
	require.NoError(t, err)
	assert.Equal(t, constants.BinStatusMaintenanceDue, bin.Status)
	assert.Empty(t, alerts)
	assert.Equal(t, 93, bin.FillLevel)
	assert.Len(t, feed.List(AlertFilter{}), 1)
}

func TestEngine_RecordMaintenanceClearsStatus(t *testing.T) {
	engine, repo, _ := newTestEngine(t, engineConfig())
	provisionBin(t, engine, "BIN-001")
	ctx := context.Background()

	entry, ok := engine.lookup("BIN-001")
	require.True(t, ok)
	entry.mu.Lock()
	entry.bin.Status = constants.BinStatusMaintenanceDue
	entry.mu.Unlock()

	performedAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	bin, err := engine.RecordMaintenance(ctx, "BIN-001", performedAt)
	require.NoError(t, err)

	assert.Equal(t, constants.BinStatusActive, bin.Status)
	assert.True(t, bin.Maintenance.LastMaintenanceDate.Equal(performedAt))
	// Weekly cadence: next due exactly seven days later.
	assert.True(t, bin.Maintenance.NextMaintenanceDate.Equal(performedAt.Add(7*24*time.Hour)))
	assert.Equal(t, constants.BinStatusActive, repo.persisted(t, "BIN-001").Status)
}

func TestEngine_RecordMaintenanceKeepsFullWhenStillFull(t *testing.T) {
	engine, _, _ := newTestEngine(t, engineConfig())
	provisionBin(t, engine, "BIN-001")
	ctx := context.Background()

	entry, ok := engine.lookup("BIN-001")
	require.True(t, ok)
	entry.mu.Lock()
	entry.bin.Status = constants.BinStatusMaintenanceDue
	entry.bin.FillLevel = 94
	entry.mu.Unlock()

	bin, err := engine.RecordMaintenance(ctx, "BIN-001", time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, constants.BinStatusFull, bin.Status)
}

func TestEngine_SweepMarksSilentBinsOffline(t *testing.T) {
	engine, repo, feed := newTestEngine(t, engineConfig())
	provisionBin(t, engine, "BIN-001")
	provisionBin(t, engine, "BIN-002")
	ctx := context.Background()

	now := time.Now().UTC()
	// BIN-001 went silent; BIN-002 reported recently.
	entry, _ := engine.lookup("BIN-001")
	entry.mu.Lock()
	entry.bin.LastSeenAt = now.Add(-11 * time.Minute)
	entry.mu.Unlock()

	marked := engine.SweepOffline(ctx, now)
	assert.Equal(t, 1, marked)

	bin, err := engine.GetBin("BIN-001")
	require.NoError(t, err)
	assert.Equal(t, constants.BinStatusOffline, bin.Status)
	assert.Equal(t, constants.BinStatusOffline, repo.persisted(t, "BIN-001").Status)

	other, err := engine.GetBin("BIN-002")
	require.NoError(t, err)
	assert.Equal(t, constants.BinStatusActive, other.Status)

	// A second sweep finds nothing new and emits no duplicate alert.
	assert.Equal(t, 0, engine.SweepOffline(ctx, now.Add(time.Minute)))
	assert.Len(t, feed.List(AlertFilter{}), 1)
}

func TestEngine_TelemetryRevivesOfflineBin(t *testing.T) {
	engine, _, _ := newTestEngine(t, engineConfig())
	provisionBin(t, engine, "BIN-001")
	ctx := context.Background()

	entry, _ := engine.lookup("BIN-001")
	entry.mu.Lock()
	entry.bin.Status = constants.BinStatusOffline
	entry.mu.Unlock()

	bin, _, err := engine.ApplyTelemetry(ctx, reading("BIN-001", 20, time.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, constants.BinStatusActive, bin.Status)
}

func TestEngine_HeartbeatRevivesOfflineBin(t *testing.T) {
	engine, _, _ := newTestEngine(t, engineConfig())
	provisionBin(t, engine, "BIN-001")
	ctx := context.Background()

	entry, _ := engine.lookup("BIN-001")
	entry.mu.Lock()
	entry.bin.Status = constants.BinStatusOffline
	entry.bin.LastSeenAt = time.Now().UTC().Add(-time.Hour)
	entry.mu.Unlock()

	require.NoError(t, engine.Heartbeat(ctx, "BIN-001"))

	bin, err := engine.GetBin("BIN-001")
	require.NoError(t, err)
	assert.Equal(t, constants.BinStatusActive, bin.Status)
	assert.WithinDuration(t, time.Now().UTC(), bin.LastSeenAt, 5*time.Second)

	require.Error(t, engine.Heartbeat(ctx, "BIN-404"))
}

func TestEngine_ProvisionRejectsDuplicate(t *testing.T) {
	engine, _, _ := newTestEngine(t, engineConfig())
	provisionBin(t, engine, "BIN-001")

	dup := models.NewBin("BIN-001", constants.CategoryMetal, models.Location{}, 100, constants.FrequencyWeekly)
	err := engine.Provision(context.Background(), dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.CodeValidationFailed))
}

func TestEngine_ProvisionRollsBackOnSaveFailure(t *testing.T) {
	engine, repo, _ := newTestEngine(t, engineConfig())
	ctx := context.Background()

	repo.saveErr = errors.ErrUnavailable("database is unreachable")
	bin := models.NewBin("BIN-001", constants.CategoryMetal, models.Location{}, 100, constants.FrequencyWeekly)
	require.Error(t, engine.Provision(ctx, bin))

	// The failed registration leaves no ghost bin behind.
	_, _, err := engine.ApplyTelemetry(ctx, reading("BIN-001", 40, time.Now().UTC()))
	assert.True(t, errors.Is(err, errors.CodeUnknownBin))

	// A retry is not rejected as a duplicate once the store recovers.
	repo.saveErr = nil
	retry := models.NewBin("BIN-001", constants.CategoryMetal, models.Location{}, 100, constants.FrequencyWeekly)
	require.NoError(t, engine.Provision(ctx, retry))
	repo.persisted(t, "BIN-001")
}

func TestEngine_LoadBinsPrimesState(t *testing.T) {
	repo := newFakeBinRepo()
	bin := models.NewBin("BIN-001", constants.CategoryMetal, models.Location{}, 100, constants.FrequencyWeekly)
	bin.FillLevel = 60
	require.NoError(t, repo.Save(context.Background(), bin))

	feed := NewAlertFeed(16)
	engine := NewBinStateEngine(engineConfig(), repo, feed, nil, nil, logger.NewNoop())
	require.NoError(t, engine.LoadBins(context.Background()))

	got, err := engine.GetBin("BIN-001")
	require.NoError(t, err)
	assert.Equal(t, 60, got.FillLevel)
}

func TestEngine_ConcurrentTelemetrySerializes(t *testing.T) {
	engine, _, _ := newTestEngine(t, engineConfig())
	provisionBin(t, engine, "BIN-001")
	ctx := context.Background()

	base := time.Now().UTC()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			// Same timestamp for all writers: none is stale, every
			// application must serialize cleanly.
			_, _, _ = engine.ApplyTelemetry(ctx, reading("BIN-001", 10+i%50, base))
		}(i)
	}
	wg.Wait()

	bin, err := engine.GetBin("BIN-001")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, bin.FillLevel, 10)
	assert.LessOrEqual(t, bin.FillLevel, 59)
}
