package server

import (
	"sync"
	"time"
)

// RateLimiter applies a sliding-window message cap per connection.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	requests    map[string][]time.Time
	mu          sync.Mutex
}

func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    make(map[string][]time.Time),
	}
}

// Allow records one request and reports whether the connection is within its
// window budget.
func (r *RateLimiter) Allow(connectionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-r.window)

	recent := r.requests[connectionID][:0]
	for _, ts := range r.requests[connectionID] {
		if ts.After(cutoff) {
			recent = append(recent, ts)
		}
	}

	if len(recent) >= r.maxRequests {
		r.requests[connectionID] = recent
		return false
	}

	r.requests[connectionID] = append(recent, now)
	return true
}

// RemoveConnection drops rate-limit state for a closed connection.
func (r *RateLimiter) RemoveConnection(connectionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.requests, connectionID)
}

// ConnectionHealth tracks last-activity time per connection so idle sockets
// can be found and reaped.
type ConnectionHealth struct {
	lastActivity map[string]time.Time
	mu           sync.RWMutex
}

func NewConnectionHealth() *ConnectionHealth {
	return &ConnectionHealth{
		lastActivity: make(map[string]time.Time),
	}
}

// UpdateActivity records a message from the connection.
func (h *ConnectionHealth) UpdateActivity(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastActivity[connectionID] = time.Now()
}

// InactiveConnections returns connections idle longer than the timeout.
func (h *ConnectionHealth) InactiveConnections(timeout time.Duration) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	var inactive []string
	now := time.Now()
	for connID, last := range h.lastActivity {
		if now.Sub(last) > timeout {
			inactive = append(inactive, connID)
		}
	}
	return inactive
}

// RemoveConnection drops tracking for a closed connection.
func (h *ConnectionHealth) RemoveConnection(connectionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.lastActivity, connectionID)
}
