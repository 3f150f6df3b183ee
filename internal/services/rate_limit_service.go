package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/palompy/gatekeeper/internal/counter"
	"github.com/palompy/gatekeeper/internal/models"
)

// RateLimitConfig holds configuration for the fixed-window limiter
type RateLimitConfig struct {
	Window      time.Duration
	MaxRequests int64
	KeyPrefix   string
}

// RateLimitService enforces a fixed-window request budget per identifier.
// The primary backend may be remote; when it is unavailable the same check
// runs against an in-process fallback, so limiting degrades instead of stopping.
type RateLimitService struct {
	primary  counter.Backend
	fallback counter.Backend
	config   RateLimitConfig
	logger   *slog.Logger
}

// NewRateLimitService creates a new RateLimitService
func NewRateLimitService(primary, fallback counter.Backend, config RateLimitConfig, logger *slog.Logger) *RateLimitService {
	if fallback == nil {
		fallback = counter.NewLocalStore()
	}
	if primary == nil {
		primary = fallback
	}
	return &RateLimitService{
		primary:  primary,
		fallback: fallback,
		config:   config,
		logger:   logger,
	}
}

// Window returns the configured window length
func (s *RateLimitService) Window() time.Duration {
	return s.config.Window
}

// Enforce counts one request for identifier.
// Returns models.ErrRateLimitExceeded once the count passes MaxRequests.
func (s *RateLimitService) Enforce(ctx context.Context, identifier string) error {
	if identifier == "" {
		return models.ErrMissingIdentifier
	}
	key := s.config.KeyPrefix + identifier

	count, err := s.primary.Increment(ctx, key, s.config.Window)
	if err != nil {
		if !errors.Is(err, counter.ErrBackendUnavailable) || s.primary == s.fallback {
			return fmt.Errorf("%w: %v", models.ErrServiceUnavailable, err)
		}

		s.logger.Warn("rate limit backend unavailable, using local counters",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)

		count, err = s.fallback.Increment(ctx, key, s.config.Window)
		if err != nil {
			s.logger.Error("fallback rate limit backend failed",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("%w: %v", models.ErrServiceUnavailable, err)
		}
	}

	if count > s.config.MaxRequests {
		return models.ErrRateLimitExceeded
	}
	return nil
}
