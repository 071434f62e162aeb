// Package guard provides the at-most-once cancellation guard for a
// reservation session. Every exit path (explicit close, timer expiry,
// hosted-page cancel navigation) must consume the cancel intent before calling
// the gateway's cancel operation; only the caller that observes true proceeds.
package guard

import "sync/atomic"

// Guard holds the cancellation intent for a single reservation session.
// A fresh Guard is created per session; the zero value has no pending intent.
type Guard struct {
	cancelOnExit atomic.Bool
	expiryFired  atomic.Bool
}

// New returns a guard with no pending cancel intent.
func New() *Guard {
	return &Guard{}
}

// MarkActive records that a reservation is live and must be released if the
// user exits without paying.
func (g *Guard) MarkActive() {
	g.cancelOnExit.Store(true)
}

// MarkSettledSuccess clears the cancel intent so a later teardown never
// cancels a session that already settled successfully.
func (g *Guard) MarkSettledSuccess() {
	g.cancelOnExit.Store(false)
}

// ConsumeCancelIntent atomically returns whether a cancellation should be
// issued and clears the flag, so a second caller in the same instant gets
// false. This is the mechanism that serializes competing exit paths.
func (g *Guard) ConsumeCancelIntent() bool {
	return g.cancelOnExit.CompareAndSwap(true, false)
}

// PendingCancel reports the current intent without consuming it.
func (g *Guard) PendingCancel() bool {
	return g.cancelOnExit.Load()
}

// ConsumeExpiry latches the timer's expiry so its action runs at most once
// even if ticking continues briefly past the deadline.
func (g *Guard) ConsumeExpiry() bool {
	return g.expiryFired.CompareAndSwap(false, true)
}
