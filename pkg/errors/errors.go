// Package errors defines the structured error taxonomy for the binsight
// service. Every request-scoped failure maps to a machine-readable code
// and an HTTP status; no error in this package is fatal to the process.
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Code is the machine-readable error classifier returned to clients.
type Code string

const (
	CodeOriginRejected   Code = "origin_rejected"
	CodeRateLimited      Code = "rate_limited"
	CodePayloadTooLarge  Code = "payload_too_large"
	CodeMalformedPayload Code = "malformed_payload"
	CodeStaleTelemetry   Code = "stale_telemetry"
	CodeUnknownBin       Code = "unknown_bin"
	CodeValidationFailed Code = "validation_failed"
	CodeUnauthorized     Code = "unauthorized"
	CodeNotFound         Code = "not_found"
	CodeInternal         Code = "internal_error"
	CodeUnavailable      Code = "service_unavailable"
)

// FieldError describes a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// AppError is the structured error carried through the service. It
// satisfies the error interface and supports errors.Is/As matching on
// its code.
type AppError struct {
	code       Code
	httpStatus int
	message    string
	cause      error

	// RetryAfter is populated for rate_limited errors.
	RetryAfter time.Duration

	// Fields is populated for validation_failed errors.
	Fields []FieldError

	metadata map[string]interface{}
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the machine-readable error code.
func (e *AppError) Code() Code {
	return e.code
}

// HTTPStatus returns the HTTP status the error maps to.
func (e *AppError) HTTPStatus() int {
	return e.httpStatus
}

// Message returns the client-safe message.
func (e *AppError) Message() string {
	return e.message
}

// Unwrap returns the underlying cause for error chain support.
func (e *AppError) Unwrap() error {
	return e.cause
}

// Is matches two AppErrors by code, so sentinels created by the same
// constructor compare equal under errors.Is.
func (e *AppError) Is(target error) bool {
	var appErr *AppError
	if errors.As(target, &appErr) {
		return e.code == appErr.code
	}
	return false
}

// WithCause attaches an underlying error.
func (e *AppError) WithCause(cause error) *AppError {
	e.cause = cause
	return e
}

// WithMetadata attaches context metadata surfaced in the error response.
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.metadata == nil {
		e.metadata = make(map[string]interface{})
	}
	e.metadata[key] = value
	return e
}

// Metadata returns all attached metadata.
func (e *AppError) Metadata() map[string]interface{} {
	return e.metadata
}

// New creates an AppError with an explicit code and status.
func New(code Code, httpStatus int, message string) *AppError {
	return &AppError{code: code, httpStatus: httpStatus, message: message}
}

// ================================================================================
// Taxonomy Constructors
// ================================================================================

// ErrOriginRejected reports a request from an origin outside the
// allowlist. The message is deliberately generic: it must not reveal
// which origins are permitted.
func ErrOriginRejected() *AppError {
	return New(CodeOriginRejected, http.StatusForbidden,
		"request origin is not allowed by the access policy")
}

// ErrRateLimited reports a rejected request on the given tier with a
// retry-after hint.
func ErrRateLimited(tier string, retryAfter time.Duration) *AppError {
	e := New(CodeRateLimited, http.StatusTooManyRequests,
		fmt.Sprintf("rate limit exceeded for %s tier", tier))
	e.RetryAfter = retryAfter
	return e.WithMetadata("tier", tier)
}

// ErrPayloadTooLarge reports a body exceeding the configured bound.
func ErrPayloadTooLarge(limit int64) *AppError {
	return New(CodePayloadTooLarge, http.StatusRequestEntityTooLarge,
		"request body exceeds the permitted size").
		WithMetadata("limit_bytes", limit)
}

// ErrMalformedPayload reports a body that could not be decoded.
func ErrMalformedPayload(reason string) *AppError {
	return New(CodeMalformedPayload, http.StatusBadRequest,
		fmt.Sprintf("malformed request payload: %s", reason))
}

// ErrStaleTelemetry reports a telemetry update older than the last
// applied reading for the same bin.
func ErrStaleTelemetry(binID string, reported, lastApplied time.Time) *AppError {
	return New(CodeStaleTelemetry, http.StatusConflict,
		fmt.Sprintf("telemetry for %s is older than the last applied reading", binID)).
		WithMetadata("reported", reported.UTC().Format(time.RFC3339)).
		WithMetadata("last_applied", lastApplied.UTC().Format(time.RFC3339))
}

// ErrUnknownBin reports a reference to a bin that is not provisioned.
func ErrUnknownBin(binID string) *AppError {
	return New(CodeUnknownBin, http.StatusNotFound,
		fmt.Sprintf("bin %s is not provisioned", binID)).
		WithMetadata("bin_id", binID)
}

// ErrValidationFailed reports field-level validation failures.
func ErrValidationFailed(fields ...FieldError) *AppError {
	e := New(CodeValidationFailed, http.StatusUnprocessableEntity,
		"one or more fields failed validation")
	e.Fields = fields
	return e
}

// ErrUnauthorized reports a missing or invalid admin credential.
func ErrUnauthorized(reason string) *AppError {
	return New(CodeUnauthorized, http.StatusUnauthorized, reason)
}

// ErrNotFound reports a missing resource other than a bin.
func ErrNotFound(resource string) *AppError {
	return New(CodeNotFound, http.StatusNotFound,
		fmt.Sprintf("%s not found", resource))
}

// ErrInternal reports an unexpected server-side failure.
func ErrInternal(message string) *AppError {
	return New(CodeInternal, http.StatusInternalServerError, message)
}

// ErrUnavailable reports a dependency outage.
func ErrUnavailable(message string) *AppError {
	return New(CodeUnavailable, http.StatusServiceUnavailable, message)
}

// ================================================================================
// Inspection Utilities
// ================================================================================

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.code == code
	}
	return false
}

// AsAppError attempts to cast an error to *AppError.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	ok := errors.As(err, &appErr)
	return appErr, ok
}

// IsRateLimited reports whether err is a rate limit rejection.
func IsRateLimited(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.code == CodeRateLimited
	}
	return false
}

// IsStaleTelemetry reports whether err is a stale telemetry rejection.
func IsStaleTelemetry(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		return appErr.code == CodeStaleTelemetry
	}
	return false
}

// ShouldLog reports whether the error warrants a log entry. Client
// errors are noise except rate limit hits, which feed capacity tuning.
func ShouldLog(err error) bool {
	if appErr, ok := AsAppError(err); ok {
		status := appErr.HTTPStatus()
		return status >= 500 || status == http.StatusTooManyRequests
	}
	return true
}
