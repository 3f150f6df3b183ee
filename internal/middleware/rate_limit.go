package middleware

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/palompy/gatekeeper/internal/auth"
	"github.com/palompy/gatekeeper/internal/models"
	"github.com/palompy/gatekeeper/internal/services"
	pkghttp "github.com/palompy/gatekeeper/pkg/http"
	"github.com/palompy/gatekeeper/pkg/logger"
)

// IPRateLimitConfig configures the coarse per-IP limiter used on public endpoints
type IPRateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// DefaultPublicRateLimit allows 30 requests per minute per client IP
func DefaultPublicRateLimit() IPRateLimitConfig {
	return IPRateLimitConfig{
		Requests: 30,
		Window:   time.Minute,
	}
}

// RateLimitByIP limits requests per client IP in process using httprate.
// The client IP honours the trusted proxy list in ipCfg.
func RateLimitByIP(config IPRateLimitConfig, ipCfg *pkghttp.IPConfig) func(next http.Handler) http.Handler {
	return httprate.Limit(
		config.Requests,
		config.Window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, ipCfg), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteErrorFrom(w, models.ErrRateLimitExceeded)
		}),
	)
}

// RateLimit enforces the fixed-window budget of svc per caller.
// Authenticated requests are keyed by user id, anonymous ones by client IP.
func RateLimit(svc *services.RateLimitService, ipCfg *pkghttp.IPConfig, audit *logger.AuditLogger, log *slog.Logger) func(next http.Handler) http.Handler {
	retryAfter := strconv.Itoa(int(math.Ceil(svc.Window().Seconds())))

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := pkghttp.ExtractClientIP(r, ipCfg)

			var userID, identifier string
			if user := auth.GetUserFromContext(r); user != nil {
				userID = strconv.FormatInt(user.UserID, 10)
				identifier = "user:" + userID
			} else {
				identifier = "ip:" + ip
			}

			err := svc.Enforce(r.Context(), identifier)
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, models.ErrRateLimitExceeded):
				audit.LogRejection(r.Context(), logger.EventRateLimitExceeded, userID, ip, "rate limit exceeded")
				w.Header().Set("Retry-After", retryAfter)
				pkghttp.WriteErrorFrom(w, err)
			default:
				log.Error("rate limit check failed",
					slog.String("identifier", identifier),
					slog.String("error", err.Error()),
				)
				pkghttp.WriteErrorFrom(w, err)
			}
		})
	}
}
