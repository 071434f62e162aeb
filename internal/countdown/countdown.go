// Package countdown derives the remaining time of a reservation hold from its
// absolute expiry instant and fires a one-shot expiry signal.
package countdown

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/avelora/storefront/pkg/clock"
)

// DefaultTickInterval is frequent enough for UI display without excessive
// wake-ups.
const DefaultTickInterval = 500 * time.Millisecond

// Timer recomputes the remaining time against an absolute expiry at a fixed
// cadence and invokes the expiry callback the first time remaining reaches
// zero or below. A timer with no expiry instant is inert.
type Timer struct {
	expiresAt *time.Time
	clock     clock.Clock
	interval  time.Duration
	onExpiry  func()

	expired atomic.Bool
	stopped atomic.Bool

	mu   sync.Mutex
	done chan struct{}
}

// New creates a timer for the given expiry instant. A nil expiresAt yields an
// inert timer: no ticking, no expiry callback, remaining time unknown.
func New(expiresAt *time.Time, clk clock.Clock, interval time.Duration, onExpiry func()) *Timer {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Timer{
		expiresAt: expiresAt,
		clock:     clk,
		interval:  interval,
		onExpiry:  onExpiry,
	}
}

// Start begins the tick loop. Starting an inert or already stopped timer is a
// no-op.
func (t *Timer) Start() {
	if t.expiresAt == nil {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != nil || t.stopped.Load() {
		return
	}
	t.done = make(chan struct{})
	go t.run(t.done)
}

func (t *Timer) run(done chan struct{}) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if remaining, ok := t.Remaining(); ok && remaining <= 0 {
				t.fireExpiry()
				return
			}
		}
	}
}

// fireExpiry invokes the callback at most once, even if ticking continued
// briefly past the deadline.
func (t *Timer) fireExpiry() {
	if !t.expired.CompareAndSwap(false, true) {
		return
	}
	if t.stopped.Load() {
		return
	}
	if t.onExpiry != nil {
		t.onExpiry()
	}
}

// Remaining returns the time left until expiry, clamped to zero. The second
// return value is false for an inert timer.
func (t *Timer) Remaining() (time.Duration, bool) {
	if t.expiresAt == nil {
		return 0, false
	}
	d := t.expiresAt.Sub(t.clock.Now())
	if d < 0 {
		d = 0
	}
	return d, true
}

// Stop tears down the tick loop. It must be called whenever the session the
// timer is attached to ends, so no interval keeps running against a stale
// session. Safe to call multiple times.
func (t *Timer) Stop() {
	t.stopped.Store(true)

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done != nil {
		close(t.done)
		t.done = nil
	}
}
