package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/palompy/gatekeeper/internal/counter"
	"github.com/palompy/gatekeeper/internal/models"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// MockTwoFactorRepository implements TwoFactorRepository for testing.
// Without overrides it behaves like an in-memory table.
type MockTwoFactorRepository struct {
	GetFunc                func(ctx context.Context, userID int64) (*models.TwoFactorSettings, error)
	UpsertFunc             func(ctx context.Context, settings *models.TwoFactorSettings) error
	RemoveRecoveryCodeFunc func(ctx context.Context, userID int64, code string) (bool, error)

	mu      sync.Mutex
	rows    map[int64]models.TwoFactorSettings
	upserts int
}

func (m *MockTwoFactorRepository) Get(ctx context.Context, userID int64) (*models.TwoFactorSettings, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, userID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[userID]
	if !ok {
		return nil, models.ErrNotFound
	}
	row.RecoveryCodes = append([]string(nil), row.RecoveryCodes...)
	return &row, nil
}

func (m *MockTwoFactorRepository) Upsert(ctx context.Context, settings *models.TwoFactorSettings) error {
	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, settings)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.rows == nil {
		m.rows = make(map[int64]models.TwoFactorSettings)
	}
	row := *settings
	row.RecoveryCodes = append([]string(nil), settings.RecoveryCodes...)
	row.UpdatedAt = time.Now()
	m.rows[settings.UserID] = row
	m.upserts++
	return nil
}

func (m *MockTwoFactorRepository) RemoveRecoveryCode(ctx context.Context, userID int64, code string) (bool, error) {
	if m.RemoveRecoveryCodeFunc != nil {
		return m.RemoveRecoveryCodeFunc(ctx, userID, code)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[userID]
	if !ok {
		return false, nil
	}
	for i, c := range row.RecoveryCodes {
		if c == code {
			row.RecoveryCodes = append(row.RecoveryCodes[:i:i], row.RecoveryCodes[i+1:]...)
			m.rows[userID] = row
			return true, nil
		}
	}
	return false, nil
}

// row returns a copy of the stored settings
func (m *MockTwoFactorRepository) row(userID int64) (models.TwoFactorSettings, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[userID]
	return row, ok
}

// MockCounterBackend implements counter.Backend for testing
type MockCounterBackend struct {
	IncrementFunc func(ctx context.Context, key string, window time.Duration) (int64, error)
	calls         int
}

func (m *MockCounterBackend) Increment(ctx context.Context, key string, window time.Duration) (int64, error) {
	m.calls++
	if m.IncrementFunc != nil {
		return m.IncrementFunc(ctx, key, window)
	}
	return 0, counter.ErrBackendUnavailable
}
