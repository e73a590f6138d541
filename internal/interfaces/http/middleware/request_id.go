// Package middleware implements the request gatekeeping pipeline:
// request identity, security headers, the origin gate, the body bound,
// payload sanitization, tiered rate limiting, and admin token checks.
// Ordering matters; the router wires these in the documented sequence.
package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/greenops/binsight/internal/application/dto"
	"github.com/greenops/binsight/pkg/constants"
	"github.com/greenops/binsight/pkg/errors"
)

// RequestID assigns every request a correlation ID, honoring one the
// client already sent.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(constants.HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		c.Set(string(constants.ContextKeyRequestID), requestID)
		ctx := context.WithValue(c.Request.Context(), constants.ContextKeyRequestID, requestID)
		c.Request = c.Request.WithContext(ctx)

		c.Header(constants.HeaderRequestID, requestID)
		c.Next()
	}
}

// RequestIDFrom returns the correlation ID assigned to this request.
func RequestIDFrom(c *gin.Context) string {
	return c.GetString(string(constants.ContextKeyRequestID))
}

// AbortWithError terminates the request with the enveloped form of err.
func AbortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if appErr, ok := errors.AsAppError(err); ok {
		status = appErr.HTTPStatus()
	}
	c.AbortWithStatusJSON(status, dto.ErrorResponse(err, RequestIDFrom(c)))
}
