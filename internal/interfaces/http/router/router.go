// Package router assembles the gin engine, the gatekeeping pipeline,
// and the HTTP server lifecycle.
package router

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/greenops/binsight/internal/application/dto"
	"github.com/greenops/binsight/internal/config"
	"github.com/greenops/binsight/internal/domain/service"
	"github.com/greenops/binsight/internal/infrastructure/monitoring"
	"github.com/greenops/binsight/internal/interfaces/http/handlers"
	"github.com/greenops/binsight/internal/interfaces/http/middleware"
	"github.com/greenops/binsight/pkg/constants"
	"github.com/greenops/binsight/pkg/errors"
	"github.com/greenops/binsight/pkg/logger"
)

// Handlers groups the route handlers wired into the router.
type Handlers struct {
	Telemetry *handlers.TelemetryHandler
	Bin       *handlers.BinHandler
	Alert     *handlers.AlertHandler
	Analytics *handlers.AnalyticsHandler
	Health    *handlers.HealthHandler
}

// Router owns the gin engine and the HTTP server lifecycle.
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	log      logger.Logger
	handlers Handlers
	limiter  service.RateLimitService
	metrics  *monitoring.Metrics
	tracer   trace.Tracer
	server   *http.Server
}

// NewRouter creates the router and wires every route behind the
// gatekeeping pipeline.
func NewRouter(
	cfg *config.Config,
	log logger.Logger,
	h Handlers,
	limiter service.RateLimitService,
	metrics *monitoring.Metrics,
	tracer trace.Tracer,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		log:      log.WithComponent("router"),
		handlers: h,
		limiter:  limiter,
		metrics:  metrics,
		tracer:   tracer,
	}
	r.setupRoutes()
	return r
}

// setupRoutes installs the pipeline and the route tree. The shared
// stages run in a fixed order: cheap identity and header work first,
// then the origin gate, then the body bound, then sanitization. Rate
// limiting binds per route group so the iot and strict tiers replace
// the general tier instead of stacking on it.
func (r *Router) setupRoutes() {
	e := r.engine

	e.Use(gin.Recovery())
	e.Use(middleware.RequestID())
	e.Use(middleware.SecurityHeaders())
	e.Use(middleware.Observability(r.tracer, r.metrics, r.log))
	e.Use(middleware.OriginGate(r.cfg.CORS, r.log))
	e.Use(middleware.BodyLimit(r.cfg.Server.MaxBodyBytes))
	e.Use(middleware.Sanitizer())

	generalLimit := middleware.RateLimit(r.limiter, r.cfg.RateLimit, constants.TierGeneral, r.metrics, r.log)
	strictLimit := middleware.RateLimit(r.limiter, r.cfg.RateLimit, constants.TierStrict, r.metrics, r.log)
	iotLimit := middleware.RateLimit(r.limiter, r.cfg.RateLimit, constants.TierIoT, r.metrics, r.log)
	requireAdmin := middleware.RequireAdmin(r.cfg.Admin.JWTSecret, r.log)

	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	if r.cfg.Pprof.Enabled {
		pprof.Register(e)
	}

	api := e.Group("/api")
	{
		api.GET("/health", generalLimit, r.handlers.Health.HealthCheck)

		iot := api.Group("/iot", iotLimit)
		{
			iot.POST("/telemetry", r.handlers.Telemetry.IngestTelemetry)
			iot.POST("/heartbeat", r.handlers.Telemetry.Heartbeat)
		}

		bins := api.Group("/bins")
		{
			bins.GET("", generalLimit, r.handlers.Bin.ListBins)
			bins.GET("/:binId", generalLimit, r.handlers.Bin.GetBin)
			bins.POST("", strictLimit, requireAdmin, r.handlers.Bin.ProvisionBin)
		}

		api.POST("/maintenance/:binId", strictLimit, requireAdmin, r.handlers.Bin.RecordMaintenance)

		alerts := api.Group("/alerts")
		{
			alerts.GET("", generalLimit, r.handlers.Alert.ListAlerts)
			alerts.POST("/:id/dismiss", strictLimit, requireAdmin, r.handlers.Alert.DismissAlert)
		}

		api.GET("/analytics/fill-levels", generalLimit, r.handlers.Analytics.FillLevels)
	}

	e.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, dto.ErrorResponse(errors.ErrNotFound("route"), middleware.RequestIDFrom(c)))
	})
}

// Start runs the HTTP server until ctx is cancelled, then drains it.
func (r *Router) Start(ctx context.Context) error {
	r.server = &http.Server{
		Addr:           r.cfg.Server.Addr(),
		Handler:        r.engine,
		ReadTimeout:    r.cfg.Server.ReadTimeout,
		WriteTimeout:   r.cfg.Server.WriteTimeout,
		IdleTimeout:    r.cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	errCh := make(chan error, 1)
	go func() {
		r.log.Info(ctx, "Starting HTTP server",
			logger.String("address", r.server.Addr))
		if err := r.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	r.log.Info(context.Background(), "Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := r.server.Shutdown(shutdownCtx); err != nil {
		r.log.Error(context.Background(), "Server forced to shutdown", err)
		return err
	}
	r.log.Info(context.Background(), "HTTP server stopped")
	return <-errCh
}

// Engine exposes the gin engine for tests.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}
