package background

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Sweeper drops expired in-memory entries and reports how many it removed
type Sweeper interface {
	Sweep() int
}

// CleanupManager periodically sweeps in-process stores (CSRF tokens, local
// rate limit counters). Those stores also sweep lazily on use; this keeps an
// idle process from holding expired entries indefinitely.
type CleanupManager struct {
	sweepers map[string]Sweeper
	logger   *slog.Logger
	interval time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewCleanupManager creates a new cleanup manager
func NewCleanupManager(logger *slog.Logger, interval time.Duration) *CleanupManager {
	return &CleanupManager{
		sweepers: make(map[string]Sweeper),
		logger:   logger,
		interval: interval,
		stopCh:   make(chan struct{}),
	}
}

// Register adds a store under name; call before Start
func (cm *CleanupManager) Register(name string, s Sweeper) {
	cm.sweepers[name] = s
}

// Start runs the periodic sweep until Stop is called or ctx is done
func (cm *CleanupManager) Start(ctx context.Context) {
	ticker := time.NewTicker(cm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cm.runCleanup()
		case <-cm.stopCh:
			cm.logger.Info("cleanup manager stopped")
			return
		case <-ctx.Done():
			cm.logger.Info("cleanup manager context cancelled")
			return
		}
	}
}

func (cm *CleanupManager) runCleanup() {
	for name, s := range cm.sweepers {
		if removed := s.Sweep(); removed > 0 {
			cm.logger.Debug("expired entries swept",
				slog.String("store", name),
				slog.Int("removed", removed),
			)
		}
	}
}

// Stop signals the cleanup manager to stop; safe to call more than once
func (cm *CleanupManager) Stop() {
	cm.stopOnce.Do(func() { close(cm.stopCh) })
}
