package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/palompy/gatekeeper/internal/models"
)

const (
	// DefaultCSRFTokenTTL is how long an issued token stays valid
	DefaultCSRFTokenTTL = 15 * time.Minute
	csrfSweepInterval   = 5 * time.Minute
)

// csrfTokenEntry stores token metadata
type csrfTokenEntry struct {
	token     string
	expiresAt time.Time
}

// CSRFTokenStore keeps one anti-forgery token per session id.
// Expired entries are swept lazily, at most once per sweep interval.
type CSRFTokenStore struct {
	tokens    map[string]csrfTokenEntry // sessionID -> entry
	mu        sync.Mutex
	tokenTTL  time.Duration
	lastSweep time.Time
	now       func() time.Time
}

// NewCSRFTokenStore creates a store whose tokens live for ttl (DefaultCSRFTokenTTL if <= 0)
func NewCSRFTokenStore(ttl time.Duration) *CSRFTokenStore {
	if ttl <= 0 {
		ttl = DefaultCSRFTokenTTL
	}
	return &CSRFTokenStore{
		tokens:    make(map[string]csrfTokenEntry),
		tokenTTL:  ttl,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

// SetClock overrides the time source (tests)
func (s *CSRFTokenStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	s.lastSweep = now()
}

// Issue creates a token for sessionID, replacing any previous one
func (s *CSRFTokenStore) Issue(sessionID string) (models.CSRFToken, error) {
	if sessionID == "" {
		return models.CSRFToken{}, models.ErrMissingSession
	}

	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return models.CSRFToken{}, fmt.Errorf("failed to generate CSRF token: %w", err)
	}
	token := hex.EncodeToString(randomBytes)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	entry := csrfTokenEntry{token: token, expiresAt: now.Add(s.tokenTTL)}
	s.tokens[sessionID] = entry

	return models.CSRFToken{Token: entry.token, ExpiresAt: entry.expiresAt}, nil
}

// Require checks token against the one issued for sessionID
func (s *CSRFTokenStore) Require(sessionID, token string) error {
	if sessionID == "" {
		return models.ErrMissingSession
	}
	if token == "" {
		return models.ErrMissingCSRFToken
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	entry, ok := s.tokens[sessionID]
	if !ok || !entry.expiresAt.After(now) {
		return models.ErrCSRFTokenExpired
	}
	if subtle.ConstantTimeCompare([]byte(entry.token), []byte(token)) != 1 {
		return models.ErrCSRFTokenMismatch
	}
	return nil
}

// Len returns the number of stored entries, expired ones included
func (s *CSRFTokenStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}

// Sweep drops every expired entry now and reports how many were removed
func (s *CSRFTokenStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.lastSweep = now
	return s.removeExpiredLocked(now)
}

func (s *CSRFTokenStore) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < csrfSweepInterval {
		return
	}
	s.removeExpiredLocked(now)
	s.lastSweep = now
}

func (s *CSRFTokenStore) removeExpiredLocked(now time.Time) int {
	removed := 0
	for sessionID, entry := range s.tokens {
		if !entry.expiresAt.After(now) {
			delete(s.tokens, sessionID)
			removed++
		}
	}
	return removed
}
