package handlers

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/greenops/binsight/pkg/logger"
)

// Pinger is a dependency that can report liveness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports service and dependency health.
type HealthHandler struct {
	checks map[string]Pinger
	log    logger.Logger
}

// NewHealthHandler creates a HealthHandler over the given named
// dependencies. Nil pingers are skipped so optional backends (redis,
// kafka) do not fail the check when disabled.
func NewHealthHandler(checks map[string]Pinger, log logger.Logger) *HealthHandler {
	active := make(map[string]Pinger)
	for name, p := range checks {
		if p != nil {
			active[name] = p
		}
	}
	return &HealthHandler{
		checks: active,
		log:    log.WithComponent("health"),
	}
}

// HealthCheck pings every dependency concurrently.
// GET /api/health
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	var mu sync.Mutex
	var wg sync.WaitGroup

	for name, pinger := range h.checks {
		wg.Add(1)
		go func(name string, pinger Pinger) {
			defer wg.Done()
			status := "ok"
			if err := pinger.Ping(ctx); err != nil {
				status = err.Error()
			}
			mu.Lock()
			results[name] = status
			mu.Unlock()
		}(name, pinger)
	}
	wg.Wait()

	overall := "healthy"
	httpStatus := http.StatusOK
	for _, status := range results {
		if status != "ok" {
			overall = "unhealthy"
			httpStatus = http.StatusServiceUnavailable
			break
		}
	}

	c.JSON(httpStatus, gin.H{
		"status":    overall,
		"timestamp": time.Now().UTC(),
		"checks":    results,
	})
}
