package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenops/binsight/internal/config"
	"github.com/greenops/binsight/internal/domain/models"
	"github.com/greenops/binsight/internal/domain/repository"
	"github.com/greenops/binsight/internal/domain/service"
	"github.com/greenops/binsight/internal/interfaces/http/middleware"
	"github.com/greenops/binsight/pkg/constants"
	"github.com/greenops/binsight/pkg/errors"
	"github.com/greenops/binsight/pkg/logger"
)

type memoryRepo struct {
	mu   sync.Mutex
	bins map[string]*models.Bin
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{bins: make(map[string]*models.Bin)}
}

func (r *memoryRepo) Save(ctx context.Context, bin *models.Bin) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	b := *bin
	r.bins[bin.BinID] = &b
	return nil
}

func (r *memoryRepo) Update(ctx context.Context, bin *models.Bin) error {
	return r.Save(ctx, bin)
}

func (r *memoryRepo) FindByBinID(ctx context.Context, binID string) (*models.Bin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	bin, ok := r.bins[binID]
	if !ok {
		return nil, errors.ErrUnknownBin(binID)
	}
	b := *bin
	return &b, nil
}

func (r *memoryRepo) FindAll(ctx context.Context) ([]*models.Bin, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Bin, 0, len(r.bins))
	for _, bin := range r.bins {
		b := *bin
		out = append(out, &b)
	}
	return out, nil
}

func (r *memoryRepo) FillAveragesByCategory(ctx context.Context) ([]repository.CategoryFillAverage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sums := make(map[constants.WasteCategory]struct {
		total int
		count int64
	})
	for _, bin := range r.bins {
		agg := sums[bin.Category]
		agg.total += bin.FillLevel
		agg.count++
		sums[bin.Category] = agg
	}
	out := make([]repository.CategoryFillAverage, 0, len(sums))
	for category, agg := range sums {
		out = append(out, repository.CategoryFillAverage{
			Category:    category,
			AverageFill: float64(agg.total) / float64(agg.count),
			BinCount:    agg.count,
		})
	}
	return out, nil
}

type testStack struct {
	router *gin.Engine
	engine *service.BinStateEngine
	feed   *service.AlertFeed
	repo   *memoryRepo
}

func newTestStack(t *testing.T) *testStack {
	t.Helper()
	gin.SetMode(gin.TestMode)

	repo := newMemoryRepo()
	feed := service.NewAlertFeed(64)
	engine := service.NewBinStateEngine(config.EngineConfig{
		FullThreshold:     90,
		AnomalyThreshold:  95,
		HeartbeatTimeout:  10 * time.Minute,
		SweepInterval:     time.Minute,
		DefaultFrequency:  constants.FrequencyWeekly,
		AlertFeedCapacity: 64,
	}, repo, feed, nil, nil, logger.NewNoop())

	log := logger.NewNoop()
	telemetryHandler := NewTelemetryHandler(engine, log)
	binHandler := NewBinHandler(engine, log)
	alertHandler := NewAlertHandler(feed, log)
	analyticsHandler := NewAnalyticsHandler(repo, log)

	e := gin.New()
	e.Use(middleware.RequestID())
	api := e.Group("/api")
	api.POST("/iot/telemetry", telemetryHandler.IngestTelemetry)
	api.POST("/iot/heartbeat", telemetryHandler.Heartbeat)
	api.GET("/bins", binHandler.ListBins)
	api.GET("/bins/:binId", binHandler.GetBin)
	api.POST("/bins", binHandler.ProvisionBin)
	api.POST("/maintenance/:binId", binHandler.RecordMaintenance)
	api.GET("/alerts", alertHandler.ListAlerts)
	api.POST("/alerts/:id/dismiss", alertHandler.DismissAlert)
	api.GET("/analytics/fill-levels", analyticsHandler.FillLevels)

	return &testStack{router: e, engine: engine, feed: feed, repo: repo}
}

func (s *testStack) provision(t *testing.T, binID string, category constants.WasteCategory) {
	t.Helper()
	bin := models.NewBin(binID, category, models.Location{Address: "Test St"}, 100, constants.FrequencyWeekly)
	require.NoError(t, s.engine.Provision(context.Background(), bin))
}

func (s *testStack) do(method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	errBody, ok := resp["error"].(map[string]interface{})
	require.True(t, ok, "expected error envelope, got %s", w.Body.String())
	return errBody["code"].(string)
}

func TestTelemetryEndpoint_AppliesReading(t *testing.T) {
	s := newTestStack(t)
	s.provision(t, "BIN-001", constants.CategoryPlastic)

	w := s.do(http.MethodPost, "/api/iot/telemetry", gin.H{
		"deviceId":  "sensor-1",
		"binId":     "BIN-001",
		"fillLevel": 92,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Success bool `json:"success"`
		Data    struct {
			Bin    models.Bin     `json:"bin"`
			Alerts []models.Alert `json:"alerts"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 92, resp.Data.Bin.FillLevel)
	assert.Equal(t, constants.BinStatusFull, resp.Data.Bin.Status)
	require.Len(t, resp.Data.Alerts, 1)
}

func TestTelemetryEndpoint_StaleConflict(t *testing.T) {
	s := newTestStack(t)
	s.provision(t, "BIN-001", constants.CategoryPlastic)

	base := time.Now().UTC()
	w := s.do(http.MethodPost, "/api/iot/telemetry", gin.H{
		"deviceId": "sensor-1", "binId": "BIN-001", "fillLevel": 40,
		"timestamp": base.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/iot/telemetry", gin.H{
		"deviceId": "sensor-1", "binId": "BIN-001", "fillLevel": 35,
		"timestamp": base.Add(-time.Minute).Format(time.RFC3339),
	})
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "stale_telemetry", errorCode(t, w))
}

func TestTelemetryEndpoint_UnknownBin(t *testing.T) {
	s := newTestStack(t)

	w := s.do(http.MethodPost, "/api/iot/telemetry", gin.H{
		"deviceId": "sensor-1", "binId": "BIN-404", "fillLevel": 40,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "unknown_bin", errorCode(t, w))
}

func TestTelemetryEndpoint_MissingFields(t *testing.T) {
	s := newTestStack(t)
	s.provision(t, "BIN-001", constants.CategoryPlastic)

	w := s.do(http.MethodPost, "/api/iot/telemetry", gin.H{
		"binId": "BIN-001",
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "validation_failed", errorCode(t, w))
}

func TestHeartbeatEndpoint(t *testing.T) {
	s := newTestStack(t)
	s.provision(t, "BIN-001", constants.CategoryPlastic)

	w := s.do(http.MethodPost, "/api/iot/heartbeat", gin.H{
		"deviceId": "sensor-1", "binId": "BIN-001",
	})
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/iot/heartbeat", gin.H{"deviceId": "sensor-1"})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "validation_failed", errorCode(t, w))
}

func TestBinEndpoints_ListAndGet(t *testing.T) {
	s := newTestStack(t)
	s.provision(t, "BIN-001", constants.CategoryPlastic)
	s.provision(t, "BIN-002", constants.CategoryMetal)

	w := s.do(http.MethodGet, "/api/bins", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listResp struct {
		Data struct {
			Bins  []models.Bin `json:"bins"`
			Count int          `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	assert.Equal(t, 2, listResp.Data.Count)
	assert.Equal(t, "BIN-001", listResp.Data.Bins[0].BinID)

	w = s.do(http.MethodGet, "/api/bins?category=metal", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	require.Equal(t, 1, listResp.Data.Count)
	assert.Equal(t, "BIN-002", listResp.Data.Bins[0].BinID)

	w = s.do(http.MethodGet, "/api/bins/BIN-001", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/bins/BIN-404", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "unknown_bin", errorCode(t, w))
}

func TestProvisionEndpoint(t *testing.T) {
	s := newTestStack(t)

	w := s.do(http.MethodPost, "/api/bins", gin.H{
		"binId":    "BIN-010",
		"category": "plastic",
		"location": gin.H{"latitude": 14.6, "longitude": 121.0, "address": "North Ave"},
		"capacity": 120,
	})
	require.Equal(t, http.StatusCreated, w.Code)

	// Duplicate identifier is rejected.
	w = s.do(http.MethodPost, "/api/bins", gin.H{
		"binId":    "BIN-010",
		"category": "plastic",
		"location": gin.H{"latitude": 14.6, "longitude": 121.0},
		"capacity": 120,
	})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	// Unrecognized category is rejected.
	w = s.do(http.MethodPost, "/api/bins", gin.H{
		"binId":    "BIN-011",
		"category": "antimatter",
		"location": gin.H{"latitude": 14.6, "longitude": 121.0},
		"capacity": 120,
	})
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, "validation_failed", errorCode(t, w))
}

func TestMaintenanceEndpoint(t *testing.T) {
	s := newTestStack(t)
	s.provision(t, "BIN-001", constants.CategoryPlastic)

	performedAt := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	w := s.do(http.MethodPost, "/api/maintenance/BIN-001", gin.H{
		"performedAt": performedAt.Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data models.Bin `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Data.Maintenance.LastMaintenanceDate.Equal(performedAt))
	assert.True(t, resp.Data.Maintenance.NextMaintenanceDate.Equal(performedAt.Add(7*24*time.Hour)))

	w = s.do(http.MethodPost, "/api/maintenance/BIN-404", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAlertEndpoints(t *testing.T) {
	s := newTestStack(t)
	s.provision(t, "BIN-001", constants.CategoryPlastic)

	// Drive a full alert through telemetry.
	w := s.do(http.MethodPost, "/api/iot/telemetry", gin.H{
		"deviceId": "sensor-1", "binId": "BIN-001", "fillLevel": 93,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodGet, "/api/alerts", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listResp struct {
		Data struct {
			Alerts []models.Alert `json:"alerts"`
			Count  int            `json:"count"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &listResp))
	require.Equal(t, 1, listResp.Data.Count)
	alertID := listResp.Data.Alerts[0].ID

	w = s.do(http.MethodPost, fmt.Sprintf("/api/alerts/%s/dismiss", alertID), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = s.do(http.MethodPost, "/api/alerts/nonexistent/dismiss", nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "not_found", errorCode(t, w))
}

func TestAnalyticsEndpoint(t *testing.T) {
	s := newTestStack(t)
	s.provision(t, "BIN-001", constants.CategoryPlastic)
	s.provision(t, "BIN-002", constants.CategoryPlastic)

	base := time.Now().UTC()
	for binID, fill := range map[string]int{"BIN-001": 40, "BIN-002": 60} {
		w := s.do(http.MethodPost, "/api/iot/telemetry", gin.H{
			"deviceId": "sensor", "binId": binID, "fillLevel": fill,
			"timestamp": base.Format(time.RFC3339),
		})
		require.Equal(t, http.StatusOK, w.Code)
	}

	w := s.do(http.MethodGet, "/api/analytics/fill-levels", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Data struct {
			Categories []repository.CategoryFillAverage `json:"categories"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Data.Categories, 1)
	assert.Equal(t, constants.CategoryPlastic, resp.Data.Categories[0].Category)
	assert.InDelta(t, 50, resp.Data.Categories[0].AverageFill, 1e-9)
	assert.Equal(t, int64(2), resp.Data.Categories[0].BinCount)
}
