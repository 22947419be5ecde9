// Package core provides shared errors, validation and HTTP helpers for greenroute.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrorCode is a machine-readable error category.
type ErrorCode string

// Standard error codes
const (
	// Input errors
	ErrValidation  ErrorCode = "VALIDATION_ERROR"
	ErrUnknownMode ErrorCode = "UNKNOWN_MODE"

	// Provider errors
	ErrProviderUnavailable ErrorCode = "PROVIDER_UNAVAILABLE"
	ErrProviderRejected    ErrorCode = "PROVIDER_REJECTED"
	ErrNoRoute             ErrorCode = "NO_ROUTE"
	ErrParseError          ErrorCode = "PARSE_ERROR"

	// Server errors
	ErrRateLimited   ErrorCode = "RATE_LIMITED"
	ErrUnauthorized  ErrorCode = "UNAUTHORIZED"
	ErrNotFound      ErrorCode = "NOT_FOUND"
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
)

// Error is the structured error returned by every greenroute operation.
type Error struct {
	Code      ErrorCode `json:"code"`
	Message   string    `json:"message"`
	Field     string    `json:"field,omitempty"`
	Guidance  string    `json:"guidance,omitempty"`
	Retryable bool      `json:"retryable"`

	cause error
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.cause
}

// NewError creates a new Error with the given code and message
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// WithField records the offending input field.
func (e *Error) WithField(field string) *Error {
	e.Field = field
	return e
}

// WithGuidance adds guidance information to the error
func (e *Error) WithGuidance(guidance string) *Error {
	e.Guidance = guidance
	return e
}

// WithCause attaches the underlying error.
func (e *Error) WithCause(err error) *Error {
	e.cause = err
	return e
}

// HTTPStatus maps the error code to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case ErrValidation, ErrUnknownMode:
		return http.StatusBadRequest
	case ErrProviderUnavailable:
		return http.StatusServiceUnavailable
	case ErrProviderRejected, ErrParseError:
		return http.StatusBadGateway
	case ErrNoRoute, ErrNotFound:
		return http.StatusNotFound
	case ErrRateLimited:
		return http.StatusTooManyRequests
	case ErrUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// ToMCPResult converts the error to an MCP tool result
func (e *Error) ToMCPResult() *mcp.CallToolResult {
	errorJSON, err := json.Marshal(e)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ERROR: %s - %s", e.Code, e.Message))
	}

	return mcp.NewToolResultError(string(errorJSON))
}

// NewValidationError creates an error for malformed input.
func NewValidationError(field, message string) *Error {
	return NewError(ErrValidation, message).
		WithField(field).
		WithGuidance("Please correct the parameters and try again")
}

// NewUnknownModeError reports a transport mode outside the supported set.
func NewUnknownModeError(mode string) *Error {
	return NewError(ErrUnknownMode, fmt.Sprintf("unknown transport mode %q", mode)).
		WithField("mode").
		WithGuidance("Use one of: walking, cycling, driving, transit")
}

// NewProviderUnavailableError reports a failed or timed out provider call.
func NewProviderUnavailableError(service string, cause error) *Error {
	e := NewError(ErrProviderUnavailable, fmt.Sprintf("%s provider is unavailable", service)).
		WithGuidance("The request can be retried in a few moments").
		WithCause(cause)
	e.Retryable = true
	return e
}

// ServiceError creates an error for a non-success provider status.
func ServiceError(service string, statusCode int, message string) *Error {
	switch {
	case statusCode == http.StatusTooManyRequests,
		statusCode == http.StatusRequestTimeout,
		statusCode >= http.StatusInternalServerError:
		e := NewError(ErrProviderUnavailable, fmt.Sprintf("%s service error: %s", service, message)).
			WithGuidance("The service is temporarily unavailable. Please try again later")
		e.Retryable = true
		return e
	default:
		return NewError(ErrProviderRejected, fmt.Sprintf("%s service error: %s", service, message)).
			WithGuidance("The request was refused. Check your parameters and access token")
	}
}

// AsError extracts a *Error from err, wrapping unknown errors as internal.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(ErrInternalError, err.Error()).WithCause(err)
}

// HasCode reports whether err carries the given code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// IsRetryable reports whether err is worth retrying.
func IsRetryable(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.Retryable
}
