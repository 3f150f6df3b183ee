package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/palompy/gatekeeper/internal/models"
)

// ErrorResponse represents a standard API error response
type ErrorResponse struct {
	Error   string `json:"error"`             // Machine-readable error code
	Message string `json:"message"`           // Human-readable message
	Details string `json:"details,omitempty"` // Optional additional context
}

// ErrorMapping is the HTTP rendering of a domain error
type ErrorMapping struct {
	Status  int
	Code    string
	Message string
}

// errorMappings is checked in order; wrapped causes come after their wrappers
var errorMappings = []struct {
	err     error
	mapping ErrorMapping
}{
	{models.ErrMissingCredentials, ErrorMapping{http.StatusUnauthorized, "unauthorized", "Missing bearer token"}},
	{models.ErrAuthenticationFailed, ErrorMapping{http.StatusUnauthorized, "unauthorized", "Invalid token"}},
	{models.ErrTokenExpired, ErrorMapping{http.StatusUnauthorized, "unauthorized", "Invalid token"}},
	{models.ErrInvalidSignature, ErrorMapping{http.StatusUnauthorized, "unauthorized", "Invalid token"}},
	{models.ErrMalformedToken, ErrorMapping{http.StatusUnauthorized, "unauthorized", "Invalid token"}},
	{models.ErrInvalidCredentials, ErrorMapping{http.StatusUnauthorized, "unauthorized", "Invalid token"}},
	{models.ErrForbidden, ErrorMapping{http.StatusForbidden, "forbidden", "Insufficient permissions"}},
	{models.ErrMissingSession, ErrorMapping{http.StatusBadRequest, "missing_session", "Missing session id"}},
	{models.ErrMissingCSRFToken, ErrorMapping{http.StatusForbidden, "csrf_required", "Missing CSRF token"}},
	{models.ErrCSRFTokenExpired, ErrorMapping{http.StatusForbidden, "csrf_expired", "CSRF token expired"}},
	{models.ErrCSRFTokenMismatch, ErrorMapping{http.StatusForbidden, "csrf_invalid", "Invalid CSRF token"}},
	{models.ErrMissingIdentifier, ErrorMapping{http.StatusBadRequest, "bad_request", "Missing rate limit identifier"}},
	{models.ErrRateLimitExceeded, ErrorMapping{http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests"}},
	{models.ErrMFAAlreadyEnabled, ErrorMapping{http.StatusBadRequest, "two_factor_enabled", "Two-factor authentication already enabled"}},
	{models.ErrMFASetupRequired, ErrorMapping{http.StatusBadRequest, "two_factor_setup_required", "Two-factor setup not started"}},
	{models.ErrMFAInvalidCode, ErrorMapping{http.StatusBadRequest, "invalid_code", "Invalid two-factor code"}},
	{models.ErrBadRequest, ErrorMapping{http.StatusBadRequest, "bad_request", "Invalid request"}},
	{models.ErrNotFound, ErrorMapping{http.StatusNotFound, "not_found", "Resource not found"}},
	{models.ErrServiceUnavailable, ErrorMapping{http.StatusServiceUnavailable, "service_unavailable", "Service temporarily unavailable"}},
}

var internalErrorMapping = ErrorMapping{http.StatusInternalServerError, "internal_error", "Internal server error"}

// StatusFor maps an error to its HTTP rendering. Unknown errors (including
// decryption failures) map to a generic 500.
func StatusFor(err error) ErrorMapping {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			return m.mapping
		}
	}
	return internalErrorMapping
}

// WriteErrorFrom writes the JSON error response mapped from err
func WriteErrorFrom(w http.ResponseWriter, err error) {
	m := StatusFor(err)
	WriteError(w, m.Status, m.Code, m.Message)
}

// WriteError writes a JSON error response with the given status code
func WriteError(w http.ResponseWriter, statusCode int, errorCode, message string) {
	WriteErrorWithDetails(w, statusCode, errorCode, message, "")
}

// WriteErrorWithDetails writes a JSON error response with additional details
func WriteErrorWithDetails(w http.ResponseWriter, statusCode int, errorCode, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Error:   errorCode,
		Message: message,
		Details: details,
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// WriteJSON writes v as a JSON body with the given status code
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// Common error writers for consistency
func WriteBadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, "bad_request", message)
}

func WriteInternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, "internal_error", message)
}
