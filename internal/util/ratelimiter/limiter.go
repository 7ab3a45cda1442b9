// Package ratelimiter throttles repeated actions such as terminal redraws.
package ratelimiter

import (
	"sync"
	"time"
)

// Limiter allows one action per interval. It is safe for concurrent use.
type Limiter struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	now      func() time.Time
}

// New creates a limiter. A non-positive interval allows every action.
func New(interval time.Duration) *Limiter {
	return &Limiter{
		interval: interval,
		now:      time.Now,
	}
}

// Allow reports whether an action may run now and, if so, records it
func (l *Limiter) Allow() bool {
	if l.interval <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if !l.last.IsZero() && now.Sub(l.last) < l.interval {
		return false
	}
	l.last = now
	return true
}

// Reset lets the next action through immediately
func (l *Limiter) Reset() {
	l.mu.Lock()
	l.last = time.Time{}
	l.mu.Unlock()
}

// Interval returns the configured interval
func (l *Limiter) Interval() time.Duration {
	return l.interval
}
