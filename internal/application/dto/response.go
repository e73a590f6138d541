// Package dto defines the request and response shapes of the HTTP API.
package dto

import (
	"time"

	"github.com/greenops/binsight/pkg/errors"
)

// APIResponse is the common envelope for every JSON response.
type APIResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     *ErrorDTO   `json:"error,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// ErrorDTO carries the machine-readable error body.
type ErrorDTO struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []errors.FieldError `json:"fields,omitempty"`
}

// SuccessResponse wraps data in the standard envelope.
func SuccessResponse(data interface{}, requestID string) *APIResponse {
	return &APIResponse{
		Success:   true,
		Data:      data,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}

// ErrorResponse wraps err in the standard envelope. Unclassified errors
// collapse to an internal error code so internals never leak to
// clients.
func ErrorResponse(err error, requestID string) *APIResponse {
	var errorDTO *ErrorDTO
	if appErr, ok := errors.AsAppError(err); ok {
		errorDTO = &ErrorDTO{
			Code:    string(appErr.Code()),
			Message: appErr.Message(),
			Fields:  appErr.Fields,
		}
	} else {
		errorDTO = &ErrorDTO{
			Code:    string(errors.CodeInternal),
			Message: "Internal server error",
		}
	}

	return &APIResponse{
		Success:   false,
		Error:     errorDTO,
		RequestID: requestID,
		Timestamp: time.Now().Unix(),
	}
}
