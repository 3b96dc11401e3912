// Package ratelimit provides keyed token-bucket limiting for observer
// injections and login attempts.
package ratelimit

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Default rate limit constants
const (
	DefaultPerSecond = 10
	DefaultBurst     = 20
)

// Config holds configuration for a keyed limiter.
type Config struct {
	PerSecond float64 `yaml:"per_second"`
	Burst     int     `yaml:"burst"`
	Enabled   bool    `yaml:"enabled"`
}

// Limiter keeps one token bucket per key (an observer id, a client IP).
type Limiter struct {
	mu       sync.Mutex
	limiters map[string]*keyLimiter
	config   Config
	now      func() time.Time
}

// keyLimiter wraps a rate limiter with last access time for cleanup.
type keyLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// New creates a limiter with the given config.
// If config has zero values, defaults are used.
func New(cfg Config) *Limiter {
	if cfg.PerSecond == 0 {
		cfg.PerSecond = DefaultPerSecond
	}
	if cfg.Burst == 0 {
		cfg.Burst = DefaultBurst
	}

	return &Limiter{
		limiters: make(map[string]*keyLimiter),
		config:   cfg,
		now:      time.Now,
	}
}

// Allow checks whether one more event for key is allowed.
// Returns nil if allowed, or an *Error if rate limited.
func (l *Limiter) Allow(key string) error {
	if l == nil || !l.config.Enabled {
		return nil
	}

	if !l.get(key).AllowN(l.now(), 1) {
		return &Error{
			Code:    http.StatusTooManyRequests,
			Message: "rate limit exceeded",
			Key:     key,
		}
	}
	return nil
}

// Forget drops the bucket for key, e.g. when an observer disconnects.
func (l *Limiter) Forget(key string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.limiters, key)
}

// CleanupStale removes limiters for keys not seen in the given duration.
// Returns the number of limiters removed.
func (l *Limiter) CleanupStale(maxAge time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-maxAge)
	removed := 0

	for key, kl := range l.limiters {
		if kl.lastAccess.Before(cutoff) {
			delete(l.limiters, key)
			removed++
		}
	}

	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.limiters)
}

// get returns or creates the bucket for key.
func (l *Limiter) get(key string) *rate.Limiter {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if kl, ok := l.limiters[key]; ok {
		kl.lastAccess = now
		return kl.limiter
	}

	limiter := rate.NewLimiter(rate.Limit(l.config.PerSecond), l.config.Burst)
	l.limiters[key] = &keyLimiter{
		limiter:    limiter,
		lastAccess: now,
	}

	return limiter
}

// Error reports a rejected event.
type Error struct {
	Code    int
	Message string
	Key     string
}

func (e *Error) Error() string {
	return fmt.Sprintf("rate limit error (code %d) for %s: %s", e.Code, e.Key, e.Message)
}
