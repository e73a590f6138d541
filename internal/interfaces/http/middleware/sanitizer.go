package middleware

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"html"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/greenops/binsight/pkg/constants"
	"github.com/greenops/binsight/pkg/errors"
)

// Sanitizer neutralizes injection vectors before any handler parses
// the request:
//
//   - JSON object keys starting with '$' or containing '.' are dropped
//     at every nesting depth, closing the operator-injection hole.
//   - String values are HTML-escaped, in the body and in query
//     parameters.
//   - Duplicate query parameters collapse to their first occurrence so
//     parameter-pollution tricks cannot smuggle a second value past
//     validation.
//
// The sanitized body replaces the request body and is also stored in
// the context for handlers that want the raw bytes. Malformed JSON is
// rejected here with a 400 rather than deep in a handler.
func Sanitizer() gin.HandlerFunc {
	return func(c *gin.Context) {
		sanitizeQuery(c)

		if !hasJSONBody(c.Request) {
			c.Next()
			return
		}

		raw, err := io.ReadAll(c.Request.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if stderrors.As(err, &maxErr) {
				AbortWithError(c, errors.ErrPayloadTooLarge(maxErr.Limit))
				return
			}
			AbortWithError(c, errors.ErrMalformedPayload("unreadable request body"))
			return
		}

		if len(bytes.TrimSpace(raw)) == 0 {
			c.Next()
			return
		}

		var payload interface{}
		decoder := json.NewDecoder(bytes.NewReader(raw))
		decoder.UseNumber()
		if err := decoder.Decode(&payload); err != nil {
			AbortWithError(c, errors.ErrMalformedPayload("request body is not valid JSON"))
			return
		}

		sanitized, err := json.Marshal(sanitizeValue(payload))
		if err != nil {
			AbortWithError(c, errors.ErrMalformedPayload("request body could not be sanitized"))
			return
		}

		c.Set(string(constants.ContextKeySanitizedBody), sanitized)
		c.Request.Body = io.NopCloser(bytes.NewReader(sanitized))
		c.Request.ContentLength = int64(len(sanitized))
		c.Next()
	}
}

func hasJSONBody(r *http.Request) bool {
	switch r.Method {
	case http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return false
	}
	contentType := r.Header.Get("Content-Type")
	return contentType == "" || strings.Contains(contentType, "application/json")
}

// sanitizeValue walks the decoded payload, dropping dangerous keys and
// escaping strings at every depth.
func sanitizeValue(v interface{}) interface{} {
	switch value := v.(type) {
	case map[string]interface{}:
		cleaned := make(map[string]interface{}, len(value))
		for key, nested := range value {
			if dangerousKey(key) {
				continue
			}
			cleaned[key] = sanitizeValue(nested)
		}
		return cleaned
	case []interface{}:
		for i, nested := range value {
			value[i] = sanitizeValue(nested)
		}
		return value
	case string:
		return html.EscapeString(value)
	default:
		return value
	}
}

func dangerousKey(key string) bool {
	return strings.HasPrefix(key, "$") || strings.Contains(key, ".")
}

// sanitizeQuery collapses duplicate parameters to their first value and
// escapes what remains.
func sanitizeQuery(c *gin.Context) {
	query := c.Request.URL.Query()
	if len(query) == 0 {
		return
	}
	cleaned := make(url.Values, len(query))
	for key, values := range query {
		if dangerousKey(key) || len(values) == 0 {
			continue
		}
		cleaned.Set(key, html.EscapeString(values[0]))
	}
	c.Request.URL.RawQuery = cleaned.Encode()
}
