package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palompy/gatekeeper/internal/models"
)

// MockRoleLookup is a hand-written RoleLookup
type MockRoleLookup struct {
	GetRolesFunc func(ctx context.Context, userID int64) ([]string, error)
	calls        int
}

func (m *MockRoleLookup) GetRoles(ctx context.Context, userID int64) ([]string, error) {
	m.calls++
	if m.GetRolesFunc != nil {
		return m.GetRolesFunc(ctx, userID)
	}
	return nil, nil
}

func TestRoleAuthorizer_RequireRoles_Allowed(t *testing.T) {
	lookup := &MockRoleLookup{GetRolesFunc: func(ctx context.Context, userID int64) ([]string, error) {
		return []string{"owner"}, nil
	}}
	authz, err := NewRoleAuthorizer(lookup, time.Minute, 10)
	require.NoError(t, err)

	assert.NoError(t, authz.RequireRoles(context.Background(), 1, "admin", "owner"))
}

func TestRoleAuthorizer_RequireRoles_Forbidden(t *testing.T) {
	lookup := &MockRoleLookup{GetRolesFunc: func(ctx context.Context, userID int64) ([]string, error) {
		return []string{"viewer"}, nil
	}}
	authz, err := NewRoleAuthorizer(lookup, time.Minute, 10)
	require.NoError(t, err)

	err = authz.RequireRoles(context.Background(), 1, "admin", "owner")
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestRoleAuthorizer_RequireRoles_NoRoles(t *testing.T) {
	authz, err := NewRoleAuthorizer(&MockRoleLookup{}, time.Minute, 10)
	require.NoError(t, err)

	err = authz.RequireRoles(context.Background(), 1, "admin")
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestRoleAuthorizer_GetRoles_CachedWithinTTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	roles := []string{"admin"}
	lookup := &MockRoleLookup{GetRolesFunc: func(ctx context.Context, userID int64) ([]string, error) {
		return roles, nil
	}}
	authz, err := NewRoleAuthorizer(lookup, 60*time.Second, 10)
	require.NoError(t, err)
	authz.SetClock(func() time.Time { return now })

	require.NoError(t, authz.RequireRoles(context.Background(), 1, "admin"))

	// role revoked at the source; stale cache still grants until the TTL passes
	roles = []string{}
	now = now.Add(59 * time.Second)
	assert.NoError(t, authz.RequireRoles(context.Background(), 1, "admin"))
	assert.Equal(t, 1, lookup.calls)

	now = now.Add(time.Second)
	assert.ErrorIs(t, authz.RequireRoles(context.Background(), 1, "admin"), models.ErrForbidden)
	assert.Equal(t, 2, lookup.calls)
}

func TestRoleAuthorizer_GetRoles_PerUser(t *testing.T) {
	lookup := &MockRoleLookup{GetRolesFunc: func(ctx context.Context, userID int64) ([]string, error) {
		if userID == 1 {
			return []string{"admin"}, nil
		}
		return []string{"viewer"}, nil
	}}
	authz, err := NewRoleAuthorizer(lookup, time.Minute, 10)
	require.NoError(t, err)

	r1, err := authz.GetRoles(context.Background(), 1)
	require.NoError(t, err)
	r2, err := authz.GetRoles(context.Background(), 2)
	require.NoError(t, err)

	assert.Contains(t, r1, "admin")
	assert.Contains(t, r2, "viewer")
	assert.NotContains(t, r2, "admin")
}

func TestRoleAuthorizer_GetRoles_LookupError(t *testing.T) {
	lookupErr := errors.New("db down")
	lookup := &MockRoleLookup{GetRolesFunc: func(ctx context.Context, userID int64) ([]string, error) {
		return nil, lookupErr
	}}
	authz, err := NewRoleAuthorizer(lookup, time.Minute, 10)
	require.NoError(t, err)

	err = authz.RequireRoles(context.Background(), 1, "admin")
	assert.ErrorIs(t, err, lookupErr)
	assert.NotErrorIs(t, err, models.ErrForbidden)
}

func TestRoleAuthorizer_Invalidate(t *testing.T) {
	lookup := &MockRoleLookup{GetRolesFunc: func(ctx context.Context, userID int64) ([]string, error) {
		return []string{"admin"}, nil
	}}
	authz, err := NewRoleAuthorizer(lookup, time.Minute, 10)
	require.NoError(t, err)

	_, _ = authz.GetRoles(context.Background(), 1)
	authz.Invalidate(1)
	_, _ = authz.GetRoles(context.Background(), 1)
	assert.Equal(t, 2, lookup.calls)
}
