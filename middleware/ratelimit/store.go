package ratelimit

import (
	"sync"
	"time"
)

// Store counts hits per key inside a fixed window.
type Store interface {
	// Hit records one hit and returns the count so far and when the window closes.
	Hit(key string, window time.Duration) (count int, resetAt time.Time)
}

type MemoryStore struct {
	mu   sync.Mutex
	data map[string]*entry
	now  func() time.Time
	done chan struct{}
	once sync.Once
}

type entry struct {
	count   int
	resetAt time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		data: make(map[string]*entry),
		now:  time.Now,
		done: make(chan struct{}),
	}
}

func (s *MemoryStore) Hit(key string, window time.Duration) (int, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	e, ok := s.data[key]
	if !ok || !now.Before(e.resetAt) {
		e = &entry{resetAt: now.Add(window)}
		s.data[key] = e
	}
	e.count++
	return e.count, e.resetAt
}

// StartCleanup evicts closed windows every interval until Stop is called.
func (s *MemoryStore) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.evict()
			case <-s.done:
				return
			}
		}
	}()
}

func (s *MemoryStore) evict() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.data {
		if !now.Before(e.resetAt) {
			delete(s.data, key)
		}
	}
}

func (s *MemoryStore) Stop() {
	s.once.Do(func() { close(s.done) })
}
