// Package handlers exposes the HTTP API surface: device ingestion,
// bin management, the alert feed, analytics, and health.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/greenops/binsight/internal/application/dto"
	"github.com/greenops/binsight/internal/domain/service"
	"github.com/greenops/binsight/internal/interfaces/http/middleware"
	"github.com/greenops/binsight/pkg/errors"
	"github.com/greenops/binsight/pkg/logger"
)

// TelemetryHandler serves the device ingestion routes.
type TelemetryHandler struct {
	engine *service.BinStateEngine
	log    logger.Logger
}

// NewTelemetryHandler creates a new TelemetryHandler.
func NewTelemetryHandler(engine *service.BinStateEngine, log logger.Logger) *TelemetryHandler {
	return &TelemetryHandler{
		engine: engine,
		log:    log.WithComponent("telemetry-handler"),
	}
}

// IngestTelemetry applies a sensor reading.
// POST /api/iot/telemetry
func (h *TelemetryHandler) IngestTelemetry(c *gin.Context) {
	var req dto.TelemetryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.ErrMalformedPayload("request body is not valid JSON"))
		return
	}

	bin, alerts, err := h.engine.ApplyTelemetry(c.Request.Context(), req.ToReading())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	h.log.Info(c.Request.Context(), "Telemetry applied",
		logger.String("bin_id", bin.BinID),
		logger.Int("fill_level", bin.FillLevel),
		logger.String("status", string(bin.Status)),
		logger.Int("alerts", len(alerts)))

	c.JSON(http.StatusOK, dto.SuccessResponse(gin.H{
		"bin":    bin,
		"alerts": alerts,
	}, middleware.RequestIDFrom(c)))
}

// Heartbeat records device liveness without a fill reading.
// POST /api/iot/heartbeat
func (h *TelemetryHandler) Heartbeat(c *gin.Context) {
	var req dto.HeartbeatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.ErrMalformedPayload("request body is not valid JSON"))
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		middleware.AbortWithError(c, errors.ErrValidationFailed(fields...))
		return
	}

	if err := h.engine.Heartbeat(c.Request.Context(), req.BinID); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse(gin.H{
		"binId": req.BinID,
	}, middleware.RequestIDFrom(c)))
}
