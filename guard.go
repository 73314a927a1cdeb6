package authstate

import (
	"sync"
	"time"
)

// GuardState is the initialization guard's lifecycle state
type GuardState string

const (
	GuardUninitialized GuardState = "uninitialized"
	GuardInitializing  GuardState = "initializing"
	GuardInitialized   GuardState = "initialized"
)

// DefaultInitTimeout bounds worst-case time-to-ready regardless of backend
// responsiveness.
const DefaultInitTimeout = 2000 * time.Millisecond

// InitGuard guarantees the "ready" signal is emitted exactly once, bounded by
// a timeout. Transitions are monotonic: once Initialized the guard never
// reverts.
type InitGuard struct {
	mu       sync.Mutex
	state    GuardState
	timeout  time.Duration
	timer    *time.Timer
	ready    chan struct{}
	timedOut bool
}

// NewInitGuard creates a guard in the Uninitialized state. A zero or negative
// timeout falls back to DefaultInitTimeout.
func NewInitGuard(timeout time.Duration) *InitGuard {
	if timeout <= 0 {
		timeout = DefaultInitTimeout
	}
	return &InitGuard{
		state:   GuardUninitialized,
		timeout: timeout,
		ready:   make(chan struct{}),
	}
}

// Begin marks the start of the first session check and arms the liveness
// timeout. Calling Begin more than once, or after Signal, is a no-op.
func (g *InitGuard) Begin() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state != GuardUninitialized {
		return
	}

	g.state = GuardInitializing
	g.timer = time.AfterFunc(g.timeout, g.onTimeout)
}

// Signal marks initialization complete. Idempotent.
func (g *InitGuard) Signal() {
	g.complete(false)
}

func (g *InitGuard) onTimeout() {
	g.complete(true)
}

func (g *InitGuard) complete(timedOut bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.state == GuardInitialized {
		return
	}

	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}

	g.state = GuardInitialized
	g.timedOut = timedOut
	close(g.ready)
}

// Ready returns a channel closed once the guard reaches Initialized
func (g *InitGuard) Ready() <-chan struct{} {
	return g.ready
}

// State returns the current guard state
func (g *InitGuard) State() GuardState {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Initialized reports whether the guard reached its terminal state
func (g *InitGuard) Initialized() bool {
	return g.State() == GuardInitialized
}

// TimedOut reports whether readiness came from the liveness timeout rather
// than a processed auth event (degraded confidence).
func (g *InitGuard) TimedOut() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.timedOut
}

// Stop cancels the pending timeout without completing the guard. Used on
// engine teardown before readiness was reached.
func (g *InitGuard) Stop() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.timer != nil {
		g.timer.Stop()
		g.timer = nil
	}
}
