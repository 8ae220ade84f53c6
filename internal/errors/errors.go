// Package errors provides the typed API error taxonomy used across handlers.
package errors

import "net/http"

// APIError represents a structured error with an HTTP status, a machine
// readable code and a human readable message.
type APIError struct {
	HTTPStatus int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Predefined API errors
var (
	ErrBadRequest     = &APIError{HTTPStatus: http.StatusBadRequest, Code: "BAD_REQUEST", Message: "Invalid request parameters"}
	ErrInvalidJSON    = &APIError{HTTPStatus: http.StatusBadRequest, Code: "INVALID_JSON", Message: "Invalid JSON format"}
	ErrValidation     = &APIError{HTTPStatus: http.StatusBadRequest, Code: "VALIDATION_FAILED", Message: "Validation failed"}
	ErrUnauthorized   = &APIError{HTTPStatus: http.StatusUnauthorized, Code: "UNAUTHORIZED", Message: "Authentication required"}
	ErrForbidden      = &APIError{HTTPStatus: http.StatusForbidden, Code: "FORBIDDEN", Message: "Access denied"}
	ErrInternalServer = &APIError{HTTPStatus: http.StatusInternalServerError, Code: "INTERNAL_SERVER_ERROR", Message: "Internal server error"}
	ErrBadGateway     = &APIError{HTTPStatus: http.StatusBadGateway, Code: "BAD_GATEWAY", Message: "Upstream service error"}
	ErrUpstreamClosed = &APIError{HTTPStatus: http.StatusBadGateway, Code: "UPSTREAM_CLOSED", Message: "Upstream connection closed unexpectedly"}
	ErrTooManyReqs    = &APIError{HTTPStatus: http.StatusTooManyRequests, Code: "TOO_MANY_REQUESTS", Message: "Too many concurrent requests"}
)

// NewAPIError creates a new APIError based on a predefined error with a
// custom message.
func NewAPIError(base *APIError, message string) *APIError {
	return &APIError{
		HTTPStatus: base.HTTPStatus,
		Code:       base.Code,
		Message:    message,
	}
}

// NewAPIErrorWithUpstream creates an APIError carrying an upstream status.
func NewAPIErrorWithUpstream(statusCode int, code string, message string) *APIError {
	return &APIError{
		HTTPStatus: statusCode,
		Code:       code,
		Message:    message,
	}
}

// NewValidationError creates a validation error with a custom message.
func NewValidationError(message string) *APIError {
	return NewAPIError(ErrValidation, message)
}
