// Package ratelimit bounds how often a caller identity may perform an
// action within a time window.
package ratelimit

import (
	"sync"
	"time"
)

// Limiter decides whether a caller identity may proceed. Implementations
// backed by a shared store can replace the in-memory one under
// multi-instance deployment.
type Limiter interface {
	Allow(identity string) bool
}

// Window is an in-memory sliding window counter keyed by identity. Counts
// reset when the window elapses. Scoped to a single process: under multiple
// instances the quota is approximate.
type Window struct {
	quota  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	entries map[string]*entry
}

type entry struct {
	count   int
	resetAt time.Time
}

func NewWindow(quota int, window time.Duration) *Window {
	return &Window{
		quota:   quota,
		window:  window,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// SetClock overrides the time source. Test hook.
func (w *Window) SetClock(now func() time.Time) {
	if now != nil {
		w.now = now
	}
}

// Allow reports whether the identity is under quota and counts the attempt.
func (w *Window) Allow(identity string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	ts := w.now()
	e, ok := w.entries[identity]
	if !ok || ts.After(e.resetAt) {
		w.entries[identity] = &entry{count: 1, resetAt: ts.Add(w.window)}
		return true
	}

	if e.count >= w.quota {
		return false
	}
	e.count++
	return true
}
