package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/palompy/gatekeeper/internal/models"
)

const (
	DefaultRoleCacheTTL  = 60 * time.Second
	DefaultRoleCacheSize = 10000
)

// RoleLookup loads the authoritative role list for a user
type RoleLookup interface {
	GetRoles(ctx context.Context, userID int64) ([]string, error)
}

type roleCacheEntry struct {
	roles    map[string]struct{}
	loadedAt time.Time
}

// RoleAuthorizer answers role checks from a per-process cache.
// Entries are replaced lazily once older than the TTL, so a revoked role can
// keep working for up to one TTL.
type RoleAuthorizer struct {
	lookup RoleLookup
	cache  *lru.Cache[int64, roleCacheEntry]
	ttl    time.Duration
	now    func() time.Time
	mu     sync.Mutex // guards now
}

// NewRoleAuthorizer creates a RoleAuthorizer; non-positive ttl/size fall back to defaults
func NewRoleAuthorizer(lookup RoleLookup, ttl time.Duration, size int) (*RoleAuthorizer, error) {
	if ttl <= 0 {
		ttl = DefaultRoleCacheTTL
	}
	if size <= 0 {
		size = DefaultRoleCacheSize
	}

	cache, err := lru.New[int64, roleCacheEntry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create role cache: %w", err)
	}

	return &RoleAuthorizer{
		lookup: lookup,
		cache:  cache,
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// SetClock overrides the time source (tests)
func (a *RoleAuthorizer) SetClock(now func() time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.now = now
}

func (a *RoleAuthorizer) clock() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.now()
}

// GetRoles returns the user's role set, from cache when fresh
func (a *RoleAuthorizer) GetRoles(ctx context.Context, userID int64) (map[string]struct{}, error) {
	now := a.clock()
	if entry, ok := a.cache.Get(userID); ok && now.Sub(entry.loadedAt) < a.ttl {
		return entry.roles, nil
	}

	list, err := a.lookup.GetRoles(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}

	roles := make(map[string]struct{}, len(list))
	for _, r := range list {
		roles[r] = struct{}{}
	}
	a.cache.Add(userID, roleCacheEntry{roles: roles, loadedAt: now})
	return roles, nil
}

// RequireRoles returns models.ErrForbidden unless the user holds one of allowed
func (a *RoleAuthorizer) RequireRoles(ctx context.Context, userID int64, allowed ...string) error {
	roles, err := a.GetRoles(ctx, userID)
	if err != nil {
		return err
	}
	for _, r := range allowed {
		if _, ok := roles[r]; ok {
			return nil
		}
	}
	return models.ErrForbidden
}

// Invalidate drops a cached entry so the next check reloads it
func (a *RoleAuthorizer) Invalidate(userID int64) {
	a.cache.Remove(userID)
}
