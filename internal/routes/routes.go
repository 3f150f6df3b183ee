package routes

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/palompy/gatekeeper/internal/auth"
	"github.com/palompy/gatekeeper/internal/handlers"
	"github.com/palompy/gatekeeper/internal/middleware"
	"github.com/palompy/gatekeeper/internal/services"
	pkghttp "github.com/palompy/gatekeeper/pkg/http"
	"github.com/palompy/gatekeeper/pkg/logger"
)

// TwoFactorRoles may manage two-factor authentication
var TwoFactorRoles = []string{"admin", "owner"}

// Dependencies are the components the routes are built from
type Dependencies struct {
	Health        *handlers.HealthHandler
	Security      *handlers.SecurityHandler
	Authenticator *auth.BearerAuthenticator
	Authorizer    *auth.RoleAuthorizer
	RateLimiter   *services.RateLimitService
	CSRF          *auth.CSRFTokenStore
	IPConfig      *pkghttp.IPConfig
	Audit         *logger.AuditLogger
	Logger        *slog.Logger
}

// RegisterRoutes registers all application routes
func RegisterRoutes(router chi.Router, deps Dependencies) {
	router.Get("/health", deps.Health.Check)

	router.Route("/api/security", func(r chi.Router) {
		// Public: a session fetches its CSRF token before any state change
		r.With(middleware.RateLimitByIP(middleware.DefaultPublicRateLimit(), deps.IPConfig)).
			Get("/csrf", deps.Security.IssueCSRF)

		r.Route("/2fa", func(r chi.Router) {
			r.Use(auth.AuthMiddleware(deps.Authenticator, deps.Logger))
			r.Use(auth.RequireRoles(deps.Authorizer, deps.Audit, deps.Logger, TwoFactorRoles...))
			r.Use(middleware.RateLimit(deps.RateLimiter, deps.IPConfig, deps.Audit, deps.Logger))

			r.Post("/setup", deps.Security.SetupTwoFactor)
			r.Post("/enable", deps.Security.EnableTwoFactor)
			r.With(middleware.CSRFProtection(deps.CSRF, deps.Audit, deps.Logger)).
				Post("/verify", deps.Security.VerifyTwoFactor)
		})
	})
}
