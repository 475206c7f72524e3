package middleware

import (
	"context"
	"math"
	"strings"
	"sync"
	"time"
)

// MemoryRateLimiter is a per-process fixed-window limiter with the same
// semantics as RedisRateLimiter. It is used when no Redis is configured, so
// limits only hold per replica.
type MemoryRateLimiter struct {
	mu          sync.Mutex
	windows     map[string]*window
	limit       int
	window      time.Duration
	now         func() time.Time
	stopCleanup chan struct{}
	stopOnce    sync.Once
}

type window struct {
	count   int
	resetAt time.Time
}

// NewMemoryRateLimiter starts a limiter and its cleanup goroutine; call Stop to end it.
func NewMemoryRateLimiter(limit int, windowSize time.Duration) *MemoryRateLimiter {
	l := &MemoryRateLimiter{
		windows:     make(map[string]*window),
		limit:       limit,
		window:      windowSize,
		now:         time.Now,
		stopCleanup: make(chan struct{}),
	}
	if windowSize > 0 {
		go l.cleanupExpiredWindows(windowSize)
	}
	return l
}

func (l *MemoryRateLimiter) Limit() int {
	return l.limit
}

func (l *MemoryRateLimiter) Consume(ctx context.Context, scope, subject string) (int, int, error) {
	if l.limit <= 0 || l.window <= 0 {
		return 0, 0, nil
	}
	scope, subject = strings.TrimSpace(scope), strings.TrimSpace(subject)
	if scope == "" || subject == "" {
		return 0, 0, nil
	}
	key := scope + ":" + subject

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.window)}
		l.windows[key] = w
	}
	w.count++

	retryAfter := int(math.Ceil(w.resetAt.Sub(now).Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	return w.count, retryAfter, nil
}

// Stop ends the cleanup goroutine.
func (l *MemoryRateLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCleanup) })
}

// cleanupExpiredWindows drops windows that have ended to keep the map bounded.
func (l *MemoryRateLimiter) cleanupExpiredWindows(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stopCleanup:
			return
		}
	}
}

func (l *MemoryRateLimiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}
