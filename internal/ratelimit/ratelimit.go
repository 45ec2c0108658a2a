package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Registry tracks one token-bucket limiter per caller key. Entries are
// created on first use and garbage-collected once idle, so the map never
// grows past the set of recently active callers.
type Registry struct {
	mu      sync.Mutex
	clients map[string]*client

	limit   rate.Limit
	burst   int
	idleTTL time.Duration
}

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// New creates a Registry allowing requestsPerWindow calls per window with
// the same burst; entries idle past idleTTL are eligible for Cleanup.
// requestsPerWindow is floored at 1.
func New(requestsPerWindow int, window, idleTTL time.Duration) *Registry {
	if requestsPerWindow < 1 {
		requestsPerWindow = 1
	}
	return &Registry{
		clients: make(map[string]*client),
		limit:   rate.Every(window / time.Duration(requestsPerWindow)),
		burst:   requestsPerWindow,
		idleTTL: idleTTL,
	}
}

// Allow reports whether the caller identified by key may proceed now.
func (r *Registry) Allow(key string) bool {
	return r.AllowAt(key, time.Now())
}

// AllowAt is Allow at an explicit instant.
func (r *Registry) AllowAt(key string, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[key]
	if !ok {
		c = &client{limiter: rate.NewLimiter(r.limit, r.burst)}
		r.clients[key] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// Cleanup drops entries idle past the TTL and returns how many were
// removed. Invoked by the scheduler on a slow cadence.
func (r *Registry) Cleanup(now time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for key, c := range r.clients {
		if now.Sub(c.lastSeen) > r.idleTTL {
			delete(r.clients, key)
			removed++
		}
	}
	return removed
}

// Size returns the number of tracked callers.
func (r *Registry) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.clients)
}
