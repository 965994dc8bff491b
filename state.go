package runloop

import (
	"sync/atomic"
)

// LoopState represents the current state of a run loop.
//
// State Machine:
//
//	StateCreated (0) → StateWaiting (1)     [Run()]
//	StateWaiting (1) ⇄ StateExecuting (2)   [per cycle, via CAS]
//	any running state → StateStopping (3)   [Quit()]
//	StateStopping (3) → StateStopped (4)    [final flush complete]
//	StateStopped (4) → (terminal)
//
// State Transition Rules:
//   - Use transition() (CAS) for the reversible Waiting/Executing pair
//   - Use store() for the irreversible tail states (Stopping, Stopped)
type LoopState uint32

const (
	// StateCreated indicates the loop has been constructed but Run has not
	// been called.
	StateCreated LoopState = iota
	// StateWaiting indicates the owning goroutine is reconciling pending
	// work and/or waiting for the next trigger time.
	StateWaiting
	// StateExecuting indicates the owning goroutine is running due actions,
	// with no lock held.
	StateExecuting
	// StateStopping indicates Quit has been observed but the final flush has
	// not yet completed.
	StateStopping
	// StateStopped indicates the loop has fully stopped.
	StateStopped
)

// String returns a human-readable representation of the state.
func (s LoopState) String() string {
	switch s {
	case StateCreated:
		return "Created"
	case StateWaiting:
		return "Waiting"
	case StateExecuting:
		return "Executing"
	case StateStopping:
		return "Stopping"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// loopState is a lock-free holder for a LoopState value.
type loopState struct {
	v atomic.Uint32
}

// load returns the current state atomically.
func (x *loopState) load() LoopState {
	return LoopState(x.v.Load())
}

// store atomically stores a new state, without transition validation.
func (x *loopState) store(state LoopState) {
	x.v.Store(uint32(state))
}

// transition attempts to atomically transition from one state to another,
// returning true on success. Pure CAS, no validation of transition validity.
func (x *loopState) transition(from, to LoopState) bool {
	return x.v.CompareAndSwap(uint32(from), uint32(to))
}
