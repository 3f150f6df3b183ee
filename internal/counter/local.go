package counter

import (
	"context"
	"sync"
	"time"
)

const defaultLocalSweepInterval = time.Minute

type localBucket struct {
	count     int64
	expiresAt time.Time
}

// LocalStore is an in-process Backend. Counts are per process and are lost on restart.
type LocalStore struct {
	mu            sync.Mutex
	buckets       map[string]*localBucket
	now           func() time.Time
	lastSweep     time.Time
	sweepInterval time.Duration
}

// NewLocalStore creates an empty LocalStore
func NewLocalStore() *LocalStore {
	return &LocalStore{
		buckets:       make(map[string]*localBucket),
		now:           time.Now,
		lastSweep:     time.Now(),
		sweepInterval: defaultLocalSweepInterval,
	}
}

// SetClock overrides the time source (tests)
func (s *LocalStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
	s.lastSweep = now()
}

// Increment never fails
func (s *LocalStore) Increment(_ context.Context, key string, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweepLocked(now)

	b, ok := s.buckets[key]
	if !ok || !b.expiresAt.After(now) {
		b = &localBucket{expiresAt: now.Add(window)}
		s.buckets[key] = b
	}
	b.count++
	return b.count, nil
}

// Len returns the number of tracked keys
func (s *LocalStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buckets)
}

// Sweep drops every expired bucket now and reports how many were removed
func (s *LocalStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.lastSweep = now
	return s.removeExpiredLocked(now)
}

func (s *LocalStore) sweepLocked(now time.Time) {
	if now.Sub(s.lastSweep) < s.sweepInterval {
		return
	}
	s.removeExpiredLocked(now)
	s.lastSweep = now
}

func (s *LocalStore) removeExpiredLocked(now time.Time) int {
	removed := 0
	for key, b := range s.buckets {
		if !b.expiresAt.After(now) {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed
}
