// Package counter provides fixed-window hit counters for rate limiting:
// an in-process store, a hand-rolled RESP client and a pooled go-redis backend.
package counter

import (
	"context"
	"errors"
	"time"
)

// ErrBackendUnavailable is returned when a counter store cannot be reached or
// answers with an error. Callers are expected to fall back, never to surface it.
var ErrBackendUnavailable = errors.New("counter backend unavailable")

// Backend increments fixed-window counters.
// The first increment of a window starts it; the counter resets once window elapses.
type Backend interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
}
