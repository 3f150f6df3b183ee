package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/palompy/gatekeeper/internal/counter"
	"github.com/palompy/gatekeeper/internal/services"
	pkghttp "github.com/palompy/gatekeeper/pkg/http"
)

type failingBackend struct{}

func (failingBackend) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	return 0, errors.New("disk on fire")
}

func newLimiter(max int64, window time.Duration) *services.RateLimitService {
	return services.NewRateLimitService(nil, counter.NewLocalStore(), services.RateLimitConfig{
		Window:      window,
		MaxRequests: max,
		KeyPrefix:   "test:",
	}, discardLogger())
}

// ============================================================================
// RateLimit
// ============================================================================

func TestRateLimit_KeysByUser(t *testing.T) {
	mw := RateLimit(newLimiter(2, time.Minute), nil, discardAudit(), discardLogger())
	h := mw(okHandler)

	for i := 0; i < 2; i++ {
		rec := serve(h, withUser(httptest.NewRequest(http.MethodPost, "/", nil), 1))
		assert.Equal(t, http.StatusOK, rec.Code)
	}

	rec := serve(h, withUser(httptest.NewRequest(http.MethodPost, "/", nil), 1))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")

	// a different user has its own budget
	rec = serve(h, withUser(httptest.NewRequest(http.MethodPost, "/", nil), 2))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRateLimit_FallsBackToClientIP(t *testing.T) {
	mw := RateLimit(newLimiter(1, time.Minute), nil, discardAudit(), discardLogger())
	h := mw(okHandler)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:8080"
	assert.Equal(t, http.StatusOK, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.1:9090"
	assert.Equal(t, http.StatusTooManyRequests, serve(h, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.2:8080"
	assert.Equal(t, http.StatusOK, serve(h, req).Code)
}

func TestRateLimit_SpoofedForwardedForIgnored(t *testing.T) {
	mw := RateLimit(newLimiter(1, time.Minute), pkghttp.NewIPConfig(nil), discardAudit(), discardLogger())
	h := mw(okHandler)

	for i, spoofed := range []string{"1.1.1.1", "2.2.2.2"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "203.0.113.5:1234"
		req.Header.Set("X-Forwarded-For", spoofed)
		rec := serve(h, req)
		if i == 0 {
			assert.Equal(t, http.StatusOK, rec.Code)
		} else {
			assert.Equal(t, http.StatusTooManyRequests, rec.Code)
		}
	}
}

func TestRateLimit_RetryAfterRoundsUp(t *testing.T) {
	mw := RateLimit(newLimiter(1, 1500*time.Millisecond), nil, discardAudit(), discardLogger())
	h := mw(okHandler)

	serve(h, withUser(httptest.NewRequest(http.MethodGet, "/", nil), 5))
	rec := serve(h, withUser(httptest.NewRequest(http.MethodGet, "/", nil), 5))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "2", rec.Header().Get("Retry-After"))
}

func TestRateLimit_BackendFailureIs503(t *testing.T) {
	svc := services.NewRateLimitService(failingBackend{}, failingBackend{}, services.RateLimitConfig{
		Window:      time.Minute,
		MaxRequests: 10,
	}, discardLogger())
	h := RateLimit(svc, nil, discardAudit(), discardLogger())(okHandler)

	rec := serve(h, withUser(httptest.NewRequest(http.MethodGet, "/", nil), 1))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.NotContains(t, rec.Body.String(), "disk on fire")
}

// ============================================================================
// RateLimitByIP
// ============================================================================

func TestRateLimitByIP_EnforcesLimit(t *testing.T) {
	h := RateLimitByIP(IPRateLimitConfig{Requests: 2, Window: time.Minute}, nil)(okHandler)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.1.1.1:1000"
		assert.Equal(t, http.StatusOK, serve(h, req).Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.1.1.1:1000"
	rec := serve(h, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}
