package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/palompy/gatekeeper/internal/auth"
	pkghttp "github.com/palompy/gatekeeper/pkg/http"
	"github.com/palompy/gatekeeper/pkg/logger"
)

// CSRFProtection requires a valid X-CSRF-Token for the X-Session-Id session
// on state-changing requests. Safe methods pass through untouched.
func CSRFProtection(store *auth.CSRFTokenStore, audit *logger.AuditLogger, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !isStateChangingMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			token := pkghttp.CSRFToken(r)
			if err := store.Require(pkghttp.SessionID(r), token); err != nil {
				var userID string
				if user := auth.GetUserFromContext(r); user != nil {
					userID = strconv.FormatInt(user.UserID, 10)
				}

				log.Warn("CSRF validation failed",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("reason", err.Error()),
					slog.String("token", logger.MaskToken(token)),
				)
				audit.LogRejection(r.Context(), logger.EventCSRFRejected, userID, "", err.Error())
				pkghttp.WriteErrorFrom(w, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isStateChangingMethod checks if the HTTP method modifies state
func isStateChangingMethod(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch:
		return true
	default:
		return false
	}
}
