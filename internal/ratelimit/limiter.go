package ratelimit

import (
	"sync"
	"time"
)

// Result reports the outcome of one admission check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

type bucket struct {
	count   int
	resetAt time.Time
}

// Limiter is a per-key windowed admission counter. The window resets when its
// expiry is reached, not on a fixed clock boundary. State is process-local
// only; this is soft abuse mitigation, not a security boundary.
type Limiter struct {
	mu          sync.Mutex
	buckets     map[string]*bucket
	interval    time.Duration
	maxRequests int
	now         func() time.Time
}

// NewLimiter creates an isolated limiter instance.
func NewLimiter(interval time.Duration, maxRequests int) *Limiter {
	return &Limiter{
		buckets:     make(map[string]*bucket),
		interval:    interval,
		maxRequests: maxRequests,
		now:         time.Now,
	}
}

// Limit returns the configured per-window maximum.
func (l *Limiter) Limit() int {
	return l.maxRequests
}

// Check performs an atomic check-and-increment for key. The first request in
// a window (or after the previous window expired) opens a fresh bucket.
func (l *Limiter) Check(key string) Result {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	b, ok := l.buckets[key]
	if !ok || !now.Before(b.resetAt) {
		b = &bucket{count: 1, resetAt: now.Add(l.interval)}
		l.buckets[key] = b
		return Result{Allowed: true, Remaining: l.maxRequests - 1, ResetAt: b.resetAt}
	}

	if b.count < l.maxRequests {
		b.count++
		return Result{Allowed: true, Remaining: l.maxRequests - b.count, ResetAt: b.resetAt}
	}

	return Result{Allowed: false, Remaining: 0, ResetAt: b.resetAt}
}
