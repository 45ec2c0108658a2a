package cache

import (
	"sync"
	"time"

	"github.com/ryzm/terminal/internal/model"
)

// Store is the in-memory series cache. One writer (the refresh scheduler)
// owns all mutation; any goroutine may read. Readers always get the last
// good value plus its age and decide staleness tolerance themselves.
// Staleness is never an error.
type Store struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

type entry struct {
	value         model.SeriesValue
	lastRefreshed time.Time
	ttl           time.Duration
}

// Reading is one consumer-visible cache read.
type Reading struct {
	Value         model.SeriesValue
	LastRefreshed time.Time
	Age           time.Duration
}

// New creates an empty Store.
func New() *Store {
	return &Store{entries: make(map[string]*entry), now: time.Now}
}

// Register declares a series and its TTL. A registered series starts with
// no value and a zero lastRefreshed, meaning "never fetched".
func (s *Store) Register(key string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[key]; !ok {
		s.entries[key] = &entry{ttl: ttl}
	}
}

// Put overwrites the series value and refresh time. Scheduler only.
func (s *Store) Put(key string, value model.SeriesValue, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok {
		e = &entry{}
		s.entries[key] = e
	}
	e.value = value
	e.lastRefreshed = at
}

// Get returns the current reading for a series. ok is false only for
// unknown keys; a registered-but-never-fetched series returns ok with a
// nil Value and zero LastRefreshed.
func (s *Store) Get(key string) (Reading, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return Reading{}, false
	}
	r := Reading{Value: e.value, LastRefreshed: e.lastRefreshed}
	if !e.lastRefreshed.IsZero() {
		r.Age = s.now().Sub(e.lastRefreshed)
	}
	return r, true
}

// Stale reports whether the series needs a refresh at the given instant.
// Never-fetched series are always stale.
func (s *Store) Stale(key string, now time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[key]
	if !ok {
		return false
	}
	if e.lastRefreshed.IsZero() {
		return true
	}
	return now.Sub(e.lastRefreshed) > e.ttl
}

// Keys returns all registered series keys.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries))
	for k := range s.entries {
		keys = append(keys, k)
	}
	return keys
}
