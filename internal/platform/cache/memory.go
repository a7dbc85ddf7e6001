package cache

import (
	"context"
	"strconv"
	"sync"
	"time"
)

// entry holds a cached value and its expiration time. A zero expiresAt means
// the entry never expires (used for version counters).
type entry struct {
	data      []byte
	expiresAt time.Time
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// Memory is a thread-safe in-memory Store with lazy expiration. It backs
// tests and single-instance deployments without a Redis server.
type Memory struct {
	entries map[string]*entry
	mu      sync.RWMutex
}

// NewMemory creates a new in-memory store.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string]*entry)}
}

// Get retrieves a value. Performs lazy expiration: deletes the entry and
// returns a miss if it has expired.
func (s *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.RLock()
	e, ok := s.entries[key]
	s.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if e.expired(time.Now()) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return e.data, true, nil
}

// Set stores a value with the given TTL. A non-positive TTL stores the value
// without expiry.
func (s *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := &entry{data: value}
	if ttl > 0 {
		e.expiresAt = time.Now().Add(ttl)
	}
	s.mu.Lock()
	s.entries[key] = e
	s.mu.Unlock()
	return nil
}

// Delete removes a single entry.
func (s *Memory) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

// Incr increments the integer counter at key without expiry.
func (s *Memory) Incr(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	if e, ok := s.entries[key]; ok && !e.expired(time.Now()) {
		n, _ = strconv.ParseInt(string(e.data), 10, 64)
	}
	n++
	s.entries[key] = &entry{data: []byte(strconv.FormatInt(n, 10))}
	return n, nil
}

// GetInt reads an integer counter.
func (s *Memory) GetInt(ctx context.Context, key string) (int64, bool, error) {
	data, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, false, nil
	}
	return n, true, nil
}

// StartCleanup runs a background goroutine that periodically removes expired
// entries. It stops when the context is cancelled.
func (s *Memory) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				now := time.Now()
				for k, e := range s.entries {
					if e.expired(now) {
						delete(s.entries, k)
					}
				}
				s.mu.Unlock()
			}
		}
	}()
}
