// Package apperror provides the structured error type carried across the
// HTTP facade, trimmed to the taxonomy this core actually needs: 400
// (malformed body / missing field / unconfigured API key), 404 (no route),
// 413 (body too large), 5xx (upstream transport failure). WebSocket-side
// errors never use AppError — those are plain self-delivered text lines
// instead.
package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a standardized application error with HTTP context.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details,omitempty"`
	StatusCode int    `json:"-"`
}

func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s - %s", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// ErrorResponse is the JSON shape written to the client.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// ToResponse converts an AppError to its wire representation.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{Error: e.Code, Message: e.Message, Code: e.Code, Details: e.Details}
}

// Error codes used by this core.
const (
	CodeBadRequest          = "BAD_REQUEST"
	CodeNotFound            = "NOT_FOUND"
	CodeRequestTooLarge     = "REQUEST_TOO_LARGE"
	CodeUpstreamUnavailable = "UPSTREAM_UNAVAILABLE"
	CodeInternal            = "INTERNAL_ERROR"
)

func New(code, message string) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusFor(code)}
}

func NewWithDetails(code, message, details string) *AppError {
	return &AppError{Code: code, Message: message, Details: details, StatusCode: statusFor(code)}
}

func statusFor(code string) int {
	switch code {
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeNotFound:
		return http.StatusNotFound
	case CodeRequestTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// BadRequest builds the 400 case: malformed JSON body, missing required
// field, or an unconfigured upstream API key.
func BadRequest(message string) *AppError { return New(CodeBadRequest, message) }

// NotFound builds the 404 case for an unrecognized route.
func NotFound(resource string) *AppError {
	return New(CodeNotFound, fmt.Sprintf("%s not found", resource))
}

// TooLarge builds the 413 case for an oversized request body.
func TooLarge(message string) *AppError { return New(CodeRequestTooLarge, message) }

// UpstreamUnavailable builds a 5xx for a Places transport failure (connect,
// TLS handshake, or read failure) that could not be forwarded verbatim
// because no upstream response was ever received.
func UpstreamUnavailable(err error) *AppError {
	details := ""
	if err != nil {
		details = err.Error()
	}
	return NewWithDetails(CodeUpstreamUnavailable, "upstream Places service unavailable", details)
}

// Internal builds a generic 500.
func Internal(message string) *AppError { return New(CodeInternal, message) }
