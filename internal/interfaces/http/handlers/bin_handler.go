package handlers

import (
	stderrors "errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/greenops/binsight/internal/application/dto"
	"github.com/greenops/binsight/internal/domain/service"
	"github.com/greenops/binsight/internal/interfaces/http/middleware"
	"github.com/greenops/binsight/pkg/constants"
	"github.com/greenops/binsight/pkg/errors"
	"github.com/greenops/binsight/pkg/logger"
)

// BinHandler serves bin management and maintenance routes.
type BinHandler struct {
	engine *service.BinStateEngine
	log    logger.Logger
}

// NewBinHandler creates a new BinHandler.
func NewBinHandler(engine *service.BinStateEngine, log logger.Logger) *BinHandler {
	return &BinHandler{
		engine: engine,
		log:    log.WithComponent("bin-handler"),
	}
}

// ListBins returns every bin, optionally filtered by status or category.
// GET /api/bins
func (h *BinHandler) ListBins(c *gin.Context) {
	status := constants.BinStatus(c.Query("status"))
	category := constants.WasteCategory(c.Query("category"))

	bins := h.engine.ListBins()
	if status != "" || category != "" {
		filtered := bins[:0]
		for _, bin := range bins {
			if status != "" && bin.Status != status {
				continue
			}
			if category != "" && bin.Category != category {
				continue
			}
			filtered = append(filtered, bin)
		}
		bins = filtered
	}

	c.JSON(http.StatusOK, dto.SuccessResponse(gin.H{
		"bins":  bins,
		"count": len(bins),
	}, middleware.RequestIDFrom(c)))
}

// GetBin returns a single bin by its public identifier.
// GET /api/bins/:binId
func (h *BinHandler) GetBin(c *gin.Context) {
	bin, err := h.engine.GetBin(c.Param("binId"))
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SuccessResponse(bin, middleware.RequestIDFrom(c)))
}

// ProvisionBin registers a new bin. Admin only.
// POST /api/bins
func (h *BinHandler) ProvisionBin(c *gin.Context) {
	var req dto.ProvisionBinRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.AbortWithError(c, errors.ErrMalformedPayload("request body is not valid JSON"))
		return
	}
	if fields := req.Validate(); len(fields) > 0 {
		middleware.AbortWithError(c, errors.ErrValidationFailed(fields...))
		return
	}

	bin := req.ToBin()
	if err := h.engine.Provision(c.Request.Context(), bin); err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	h.log.Info(c.Request.Context(), "Bin provisioned",
		logger.String("bin_id", bin.BinID),
		logger.String("category", string(bin.Category)),
		logger.String("admin", c.GetString(string(constants.ContextKeyAdminSubject))))

	c.JSON(http.StatusCreated, dto.SuccessResponse(bin, middleware.RequestIDFrom(c)))
}

// RecordMaintenance marks a maintenance visit as completed. Admin only.
// POST /api/maintenance/:binId
func (h *BinHandler) RecordMaintenance(c *gin.Context) {
	// The body is optional; an empty one means "performed now".
	var req dto.MaintenanceRequest
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) {
		middleware.AbortWithError(c, errors.ErrMalformedPayload("request body is not valid JSON"))
		return
	}

	performedAt := time.Now()
	if req.PerformedAt != nil {
		performedAt = *req.PerformedAt
	}

	bin, err := h.engine.RecordMaintenance(c.Request.Context(), c.Param("binId"), performedAt)
	if err != nil {
		middleware.AbortWithError(c, err)
		return
	}

	h.log.Info(c.Request.Context(), "Maintenance recorded",
		logger.String("bin_id", bin.BinID),
		logger.Time("performed_at", performedAt),
		logger.Time("next_due", bin.Maintenance.NextMaintenanceDate))

	c.JSON(http.StatusOK, dto.SuccessResponse(bin, middleware.RequestIDFrom(c)))
}
