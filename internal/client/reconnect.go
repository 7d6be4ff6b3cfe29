package client

import (
	"sync"
	"time"
)

// State is the reconnection manager's position in its lifecycle.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateReconnecting State = "reconnecting"
	StateFailed       State = "failed"
)

// Backoff bounds reconnection delays. Delays double from Floor up to Ceiling;
// after MaxAttempts consecutive failures the manager gives up.
type Backoff struct {
	Floor       time.Duration
	Ceiling     time.Duration
	MaxAttempts int
}

// DefaultBackoff matches the dashboard clients: 1s floor, 10s ceiling,
// ten attempts before giving up.
func DefaultBackoff() Backoff {
	return Backoff{
		Floor:       1 * time.Second,
		Ceiling:     10 * time.Second,
		MaxAttempts: 10,
	}
}

// Reconnector is the client-side finite state machine
// disconnected -> connecting -> connected -> reconnecting -> failed.
// It only decides state and delay; the Client owns the actual dialing.
type Reconnector struct {
	mu       sync.Mutex
	state    State
	attempts int
	backoff  Backoff

	// onChange observes every transition. Called with the lock held, so it
	// must not call back into the Reconnector.
	onChange func(State)
}

// NewReconnector creates a reconnector in the disconnected state.
func NewReconnector(backoff Backoff, onChange func(State)) *Reconnector {
	if backoff.Floor <= 0 {
		backoff.Floor = DefaultBackoff().Floor
	}
	if backoff.Ceiling < backoff.Floor {
		backoff.Ceiling = backoff.Floor
	}
	if backoff.MaxAttempts <= 0 {
		backoff.MaxAttempts = DefaultBackoff().MaxAttempts
	}
	return &Reconnector{
		state:    StateDisconnected,
		backoff:  backoff,
		onChange: onChange,
	}
}

// State returns the current state.
func (r *Reconnector) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Attempts returns the number of consecutive failed attempts.
func (r *Reconnector) Attempts() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts
}

func (r *Reconnector) transition(next State) {
	if r.state == next {
		return
	}
	r.state = next
	if r.onChange != nil {
		r.onChange(next)
	}
}

// Connecting records the start of a dial attempt. Returns false when the
// machine is in a state that does not permit connecting (connected, or failed
// without a reset).
func (r *Reconnector) Connecting() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch r.state {
	case StateDisconnected:
		r.transition(StateConnecting)
		return true
	case StateReconnecting:
		return true
	default:
		return false
	}
}

// Connected records a successful dial and resets the attempt counter.
func (r *Reconnector) Connected() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts = 0
	r.transition(StateConnected)
}

// Dropped records a lost or failed connection and schedules the next attempt.
// It returns the delay before redialing, or ok=false once the attempt budget
// is exhausted and the machine has moved to failed.
func (r *Reconnector) Dropped() (delay time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateDisconnected || r.state == StateFailed {
		return 0, false
	}

	r.attempts++
	if r.attempts > r.backoff.MaxAttempts {
		r.transition(StateFailed)
		return 0, false
	}

	r.transition(StateReconnecting)
	return r.delayFor(r.attempts), true
}

// ServerClosed records a server-initiated close. The server asked us to go
// away on purpose, so the next attempt is immediate and the backoff counter
// restarts.
func (r *Reconnector) ServerClosed() (delay time.Duration, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state == StateDisconnected || r.state == StateFailed {
		return 0, false
	}

	r.attempts = 1
	r.transition(StateReconnecting)
	return 0, true
}

// Cancel records an explicit disconnect. Terminal until the next Connecting.
func (r *Reconnector) Cancel() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.attempts = 0
	r.transition(StateDisconnected)
}

// delayFor computes the backoff for the given attempt: floor doubling per
// attempt, capped at the ceiling. Attempt 1 waits the floor.
func (r *Reconnector) delayFor(attempt int) time.Duration {
	delay := r.backoff.Floor
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= r.backoff.Ceiling {
			return r.backoff.Ceiling
		}
	}
	if delay > r.backoff.Ceiling {
		return r.backoff.Ceiling
	}
	return delay
}
