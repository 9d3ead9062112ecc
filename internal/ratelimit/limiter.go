package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Limiter admits at most a fixed number of actions per key inside a sliding window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Key scopes submissions to a client origin within one session.
func Key(origin, sessionID string) string {
	return origin + ":" + sessionID
}

// MemoryLimiter keeps the timestamps of recent actions per key in process memory.
type MemoryLimiter struct {
	limit   int
	window  time.Duration
	now     func() time.Time
	actions map[string][]time.Time
	mu      sync.Mutex
	stop    chan struct{}
	once    sync.Once
}

func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:   limit,
		window:  window,
		now:     time.Now,
		actions: make(map[string][]time.Time),
		stop:    make(chan struct{}),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	windowStart := now.Add(-l.window)

	valid := l.actions[key][:0]
	for _, t := range l.actions[key] {
		if t.After(windowStart) {
			valid = append(valid, t)
		}
	}

	if len(valid) >= l.limit {
		l.actions[key] = valid
		return false, nil
	}

	l.actions[key] = append(valid, now)
	return true, nil
}

// StartCleanup drops idle keys every interval until Stop is called.
func (l *MemoryLimiter) StartCleanup(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.cleanup()
			case <-l.stop:
				return
			}
		}
	}()
}

func (l *MemoryLimiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}

func (l *MemoryLimiter) cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().Add(-l.window)
	for key, times := range l.actions {
		valid := times[:0]
		for _, t := range times {
			if t.After(cutoff) {
				valid = append(valid, t)
			}
		}
		if len(valid) == 0 {
			delete(l.actions, key)
		} else {
			l.actions[key] = valid
		}
	}
}

func (l *MemoryLimiter) keys() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.actions)
}
