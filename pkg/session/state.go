// Package session implements the inactivity lock that gates credential
// access behind an optional 4-digit PIN.
//
// The state machine itself is the pure Transition function. Lock wraps it
// with the PIN, the inactivity deadline, and notifications, and is safe for
// use from a UI goroutine and its own timer goroutine at once.
package session

// State is the lock state.
type State int

const (
	// Unlocked permits guarded operations.
	Unlocked State = iota
	// Locked rejects guarded operations until the PIN is submitted.
	Locked
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case Unlocked:
		return "unlocked"
	case Locked:
		return "locked"
	default:
		return "unknown"
	}
}

// Event drives a state transition.
type Event int

const (
	// EventTimeout fires when the inactivity deadline passes.
	EventTimeout Event = iota
	// EventLockNow is an explicit lock request.
	EventLockNow
	// EventPINAccepted follows a correct PIN submission.
	EventPINAccepted
	// EventPINCleared follows disabling the PIN feature.
	EventPINCleared
)

// String returns the event name used in logs.
func (e Event) String() string {
	switch e {
	case EventTimeout:
		return "timeout"
	case EventLockNow:
		return "lock_now"
	case EventPINAccepted:
		return "pin_accepted"
	case EventPINCleared:
		return "pin_cleared"
	default:
		return "unknown"
	}
}

// Transition returns the state after ev. Locking only happens while a PIN is
// configured; without one the lock is inert and stays Unlocked.
func Transition(s State, pinSet bool, ev Event) State {
	switch ev {
	case EventTimeout, EventLockNow:
		if pinSet {
			return Locked
		}
		return Unlocked
	case EventPINAccepted, EventPINCleared:
		return Unlocked
	default:
		return s
	}
}
