package models

import "errors"

// Sentinel errors for common failure conditions
var (
	ErrNotFound           = errors.New("resource not found")
	ErrForbidden          = errors.New("forbidden")
	ErrBadRequest         = errors.New("bad request")
	ErrInternalServer     = errors.New("internal server error")
	ErrServiceUnavailable = errors.New("service unavailable")
)

// Bearer token errors
var (
	ErrMalformedToken       = errors.New("malformed token")
	ErrInvalidSignature     = errors.New("invalid token signature")
	ErrTokenExpired         = errors.New("token expired")
	ErrMissingCredentials   = errors.New("missing bearer credentials")
	ErrInvalidCredentials   = errors.New("invalid token claims")
	ErrAuthenticationFailed = errors.New("authentication failed")
)

// CSRF errors
var (
	ErrMissingSession    = errors.New("session id is required")
	ErrMissingCSRFToken  = errors.New("csrf token is required")
	ErrCSRFTokenExpired  = errors.New("csrf token expired")
	ErrCSRFTokenMismatch = errors.New("csrf token mismatch")
)

// Rate limiting errors
var (
	ErrMissingIdentifier = errors.New("rate limit identifier is required")
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// Two-factor errors
var (
	ErrMFAAlreadyEnabled = errors.New("two-factor authentication is already enabled")
	ErrMFASetupRequired  = errors.New("two-factor setup must be requested first")
	ErrMFAInvalidCode    = errors.New("invalid one-time code")
	ErrDecryptionFailed  = errors.New("secret decryption failed")
)
