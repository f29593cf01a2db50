// Package ratelimit provides token bucket rate limiting for tool execution.
// The guard uses it as a soft pacing signal: a depleted bucket is logged and
// audited but never blocks the call.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Config holds rate limiter configuration.
type Config struct {
	Enabled                 bool
	ToolExecutionsPerMinute int
	Burst                   int
}

// DefaultConfig returns the default rate limiting configuration.
func DefaultConfig() Config {
	return Config{
		Enabled:                 false, // Off by default for single-run use
		ToolExecutionsPerMinute: 30,
		Burst:                   10,
	}
}

// Limiter keeps one token bucket per session.
type Limiter struct {
	config  Config
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	now     func() time.Time
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config Config) *Limiter {
	if config.ToolExecutionsPerMinute <= 0 {
		config.ToolExecutionsPerMinute = DefaultConfig().ToolExecutionsPerMinute
	}
	if config.Burst <= 0 {
		config.Burst = DefaultConfig().Burst
	}
	return &Limiter{
		config:  config,
		buckets: make(map[string]*rate.Limiter),
		now:     time.Now,
	}
}

// SetClock replaces the limiter's time source. Tests only.
func (l *Limiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// AllowTool reports whether the session's bucket has a token for one more
// tool execution. Always true when disabled.
func (l *Limiter) AllowTool(sessionKey string) bool {
	if !l.config.Enabled {
		return true
	}

	l.mu.Lock()
	b, ok := l.buckets[sessionKey]
	if !ok {
		b = rate.NewLimiter(rate.Limit(float64(l.config.ToolExecutionsPerMinute)/60.0), l.config.Burst)
		l.buckets[sessionKey] = b
	}
	now := l.now()
	l.mu.Unlock()

	return b.AllowN(now, 1)
}

// Forget drops the session's bucket. Called when a session ends.
func (l *Limiter) Forget(sessionKey string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, sessionKey)
}

// Len returns the number of live buckets.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}
