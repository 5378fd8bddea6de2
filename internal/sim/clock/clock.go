// Package clock holds the simulation time source and the cooperative timers
// that stand in for animations (path preparation, banking).
package clock

import (
	"sync"
	"time"
)

type Clock interface {
	Now() time.Time
}

// Manual is advanced explicitly by the tick driver. Reads are safe from other
// goroutines (observer, snapshot writer); only the tick goroutine advances it.
type Manual struct {
	mu  sync.RWMutex
	now time.Time
}

func NewManual(start time.Time) *Manual {
	return &Manual{now: start}
}

func (m *Manual) Now() time.Time {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.now
}

func (m *Manual) Advance(d time.Duration) time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	if d > 0 {
		m.now = m.now.Add(d)
	}
	return m.now
}

// Timer counts down simulated time. It never fires on its own; the owner calls
// Advance once per tick.
type Timer struct {
	remaining time.Duration
	active    bool
}

func (t *Timer) Start(d time.Duration) {
	t.remaining = d
	t.active = true
}

func (t *Timer) Stop() {
	t.remaining = 0
	t.active = false
}

func (t *Timer) Active() bool { return t.active }

func (t *Timer) Remaining() time.Duration {
	if !t.active {
		return 0
	}
	return t.remaining
}

// Advance consumes dt and reports whether the timer fired during this call.
// A fired timer becomes inactive.
func (t *Timer) Advance(dt time.Duration) bool {
	if !t.active {
		return false
	}
	t.remaining -= dt
	if t.remaining > 0 {
		return false
	}
	t.remaining = 0
	t.active = false
	return true
}
