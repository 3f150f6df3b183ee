package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/palompy/gatekeeper/internal/models"
	pkghttp "github.com/palompy/gatekeeper/pkg/http"
	"github.com/palompy/gatekeeper/pkg/logger"
)

// contextKey is a custom type for context keys
type contextKey string

const (
	// UserContextKey is the key for storing the authenticated user in context
	UserContextKey contextKey = "user"
)

// AuthMiddleware authenticates the bearer token and injects the user into context.
// Failures are logged with their cause; clients only get a generic 401.
func AuthMiddleware(authn *BearerAuthenticator, log *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := authn.Authenticate(r.Header)
			if err != nil {
				if !errors.Is(err, models.ErrMissingCredentials) {
					log.Warn("bearer authentication failed",
						slog.String("path", r.URL.Path),
						slog.String("reason", err.Error()),
						slog.String("token", logger.MaskToken(bearerToken(r))),
					)
				}
				pkghttp.WriteErrorFrom(w, err)
				return
			}

			ctx := context.WithValue(r.Context(), UserContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRoles enforces that the authenticated user holds at least one of roles.
// Must be used after AuthMiddleware.
func RequireRoles(authz *RoleAuthorizer, audit *logger.AuditLogger, log *slog.Logger, roles ...string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := GetUserFromContext(r)
			if user == nil {
				pkghttp.WriteErrorFrom(w, models.ErrMissingCredentials)
				return
			}

			err := authz.RequireRoles(r.Context(), user.UserID, roles...)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, models.ErrForbidden):
				audit.LogRejection(r.Context(), logger.EventAccessDenied,
					strconv.FormatInt(user.UserID, 10), "", "missing required role")
				pkghttp.WriteErrorFrom(w, err)
			default:
				log.Error("role lookup failed",
					slog.Int64("user_id", user.UserID),
					slog.String("error", err.Error()),
				)
				pkghttp.WriteInternalError(w, "Internal server error")
			}
		})
	}
}

// GetUserFromContext extracts the authenticated user from request context
func GetUserFromContext(r *http.Request) *models.AuthenticatedUser {
	user, ok := r.Context().Value(UserContextKey).(*models.AuthenticatedUser)
	if !ok {
		return nil
	}
	return user
}

func bearerToken(r *http.Request) string {
	header := authorizationHeader(r.Header)
	if len(header) > len(bearerPrefix) {
		return header[len(bearerPrefix):]
	}
	return ""
}
