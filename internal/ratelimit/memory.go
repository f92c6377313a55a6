package ratelimit

import (
	"context"
	"sync"
	"time"
)

// sweep expired windows once the map grows past this size
const sweepThreshold = 10000

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is single instance limiter
type MemoryLimiter struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
}

// NewMemoryLimiter creates new MemoryLimiter, now defaults to time.Now
func NewMemoryLimiter(now func() time.Time) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		now:     now,
		windows: make(map[string]*window),
	}
}

// Allow counts attempt in current window of key
func (l *MemoryLimiter) Allow(ctx context.Context, key Key, policy Policy) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	id := key.String()

	w, ok := l.windows[id]
	if !ok || !now.Before(w.resetAt) {
		if len(l.windows) >= sweepThreshold {
			l.sweep(now)
		}
		w = &window{resetAt: now.Add(policy.Window)}
		l.windows[id] = w
	}
	w.count++

	return result(w.count, policy, w.resetAt.Sub(now)), nil
}

func (l *MemoryLimiter) sweep(now time.Time) {
	for id, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, id)
		}
	}
}
