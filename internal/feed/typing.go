package feed

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// TypingState is the state of the local typing indicator.
type TypingState int

const (
	Idle TypingState = iota
	Typing
)

func (s TypingState) String() string {
	if s == Typing {
		return "typing"
	}
	return "idle"
}

// TypingTracker is a two state machine driven by keystrokes. Every keystroke
// enters Typing and restarts a single expiry timer; when the timer fires the
// tracker returns to Idle. A generation number invalidates callbacks from
// timers that were replaced or stopped, so at most one timer can ever act.
type TypingTracker struct {
	clock   clockwork.Clock
	timeout time.Duration
	onIdle  func()

	mu    sync.Mutex
	state TypingState
	timer clockwork.Timer
	gen   uint64
}

// NewTypingTracker returns an idle tracker. onIdle is called, without any
// lock held, when the timer moves the tracker back to Idle.
func NewTypingTracker(clock clockwork.Clock, timeout time.Duration, onIdle func()) *TypingTracker {
	if onIdle == nil {
		onIdle = func() {}
	}
	return &TypingTracker{clock: clock, timeout: timeout, onIdle: onIdle}
}

// Keystroke handles idle->typing and typing->typing, restarting the timer.
func (t *TypingTracker) Keystroke() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	t.state = Typing
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.timeout, func() { t.expire(gen) })
}

// Reset cancels the timer and returns to Idle. It reports whether the state
// changed.
func (t *TypingTracker) Reset() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.stopLocked()
	changed := t.state == Typing
	t.state = Idle
	return changed
}

// State returns the current state.
func (t *TypingTracker) State() TypingState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Active reports whether the tracker is in Typing.
func (t *TypingTracker) Active() bool {
	return t.State() == Typing
}

func (t *TypingTracker) pending() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timer != nil
}

func (t *TypingTracker) stopLocked() {
	t.gen++
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

func (t *TypingTracker) expire(gen uint64) {
	t.mu.Lock()
	if gen != t.gen || t.state != Typing {
		t.mu.Unlock()
		return
	}
	t.state = Idle
	t.timer = nil
	t.mu.Unlock()

	t.onIdle()
}
