package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/greenops/binsight/pkg/errors"
)

// BodyLimit rejects oversized payloads before any parsing happens. A
// declared Content-Length over the bound is refused outright; bodies
// without a declared length are capped mid-read by MaxBytesReader so a
// streaming client cannot sidestep the check.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			AbortWithError(c, errors.ErrPayloadTooLarge(maxBytes))
			return
		}
		if c.Request.Body != nil {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		}
		c.Next()
	}
}
