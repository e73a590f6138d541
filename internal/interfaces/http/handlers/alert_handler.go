package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/greenops/binsight/internal/application/dto"
	"github.com/greenops/binsight/internal/domain/service"
	"github.com/greenops/binsight/internal/interfaces/http/middleware"
	"github.com/greenops/binsight/pkg/constants"
	"github.com/greenops/binsight/pkg/logger"
)

// AlertHandler serves the alert feed routes.
type AlertHandler struct {
	feed *service.AlertFeed
	log  logger.Logger
}

// NewAlertHandler creates a new AlertHandler.
func NewAlertHandler(feed *service.AlertFeed, log logger.Logger) *AlertHandler {
	return &AlertHandler{
		feed: feed,
		log:  log.WithComponent("alert-handler"),
	}
}

// ListAlerts returns retained alerts, newest first.
// GET /api/alerts
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	filter := service.AlertFilter{
		Severity: constants.AlertSeverity(c.Query("severity")),
		BinID:    c.Query("binId"),
	}

	alerts := h.feed.List(filter)
	c.JSON(http.StatusOK, dto.SuccessResponse(gin.H{
		"alerts": alerts,
		"count":  len(alerts),
	}, middleware.RequestIDFrom(c)))
}

// DismissAlert marks one alert as handled. Admin only.
// POST /api/alerts/:id/dismiss
func (h *AlertHandler) DismissAlert(c *gin.Context) {
	id := c.Param("id")
	if err := h.feed.Dismiss(id); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	h.log.Info(c.Request.Context(), "Alert dismissed",
		logger.String("alert_id", id))

	c.JSON(http.StatusOK, dto.SuccessResponse(gin.H{
		"id":        id,
		"dismissed": true,
	}, middleware.RequestIDFrom(c)))
}
