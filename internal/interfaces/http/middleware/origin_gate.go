package middleware

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/greenops/binsight/internal/config"
	"github.com/greenops/binsight/pkg/constants"
	"github.com/greenops/binsight/pkg/errors"
	"github.com/greenops/binsight/pkg/logger"
)

// OriginGate rejects browser requests from origins outside the
// configured allowlist with a uniform error body: no header echo, no
// hint of what the allowlist contains. Requests without an Origin
// header (device firmware, server-to-server callers) pass through
// untouched. Allowed origins continue into the CORS handler, which
// emits the response headers and answers preflights.
func OriginGate(cfg config.CORSConfig, log logger.Logger) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(cfg.AllowedOrigins))
	allowAll := false
	for _, origin := range cfg.AllowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = struct{}{}
	}

	maxAge := cfg.MaxAge
	if maxAge <= 0 || maxAge > constants.MaxCORSMaxAge {
		maxAge = constants.MaxCORSMaxAge
	}

	corsHandler := cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			if allowAll {
				return true
			}
			_, ok := allowed[origin]
			return ok
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Authorization", "X-API-Key", constants.HeaderDeviceID},
		AllowCredentials: true,
		MaxAge:           maxAge,
	})

	gateLog := log.WithComponent("origin-gate")

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		if origin == "" {
			c.Next()
			return
		}

		if _, ok := allowed[origin]; !ok && !allowAll {
			gateLog.Warn(c.Request.Context(), "Rejected request from unlisted origin",
				logger.String("origin", origin),
				logger.String("path", c.Request.URL.Path))
			AbortWithError(c, errors.ErrOriginRejected())
			return
		}

		corsHandler(c)
	}
}
