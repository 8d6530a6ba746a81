package ai

import (
	"sync"

	"golang.org/x/time/rate"
)

// ClientLimiter rate-limits generation requests per client IP. It is an
// injected component with explicit scope, not process-wide state; each
// handler owns its own limiter.
type ClientLimiter struct {
	mu      sync.Mutex
	clients map[string]*rate.Limiter
	rps     rate.Limit
	burst   int
}

// NewClientLimiter creates a limiter allowing rps requests per second with
// the given burst per client
func NewClientLimiter(rps float64, burst int) *ClientLimiter {
	return &ClientLimiter{
		clients: make(map[string]*rate.Limiter),
		rps:     rate.Limit(rps),
		burst:   burst,
	}
}

// Allow reports whether the client may proceed right now
func (l *ClientLimiter) Allow(clientIP string) bool {
	l.mu.Lock()
	lim, ok := l.clients[clientIP]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.clients[clientIP] = lim
	}
	l.mu.Unlock()
	return lim.Allow()
}
