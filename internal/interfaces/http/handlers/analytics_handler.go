package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/greenops/binsight/internal/application/dto"
	"github.com/greenops/binsight/internal/domain/repository"
	"github.com/greenops/binsight/internal/interfaces/http/middleware"
	"github.com/greenops/binsight/pkg/logger"
)

// AnalyticsHandler serves dashboard aggregation routes.
type AnalyticsHandler struct {
	repo repository.BinRepository
	log  logger.Logger
}

// NewAnalyticsHandler creates a new AnalyticsHandler.
func NewAnalyticsHandler(repo repository.BinRepository, log logger.Logger) *AnalyticsHandler {
	return &AnalyticsHandler{
		repo: repo,
		log:  log.WithComponent("analytics-handler"),
	}
}

// FillLevels returns average fill per waste category.
// GET /api/analytics/fill-levels
func (h *AnalyticsHandler) FillLevels(c *gin.Context) {
	rows, err := h.repo.FillAveragesByCategory(c.Request.Context())
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SuccessResponse(gin.H{
		"categories": rows,
	}, middleware.RequestIDFrom(c)))
}
