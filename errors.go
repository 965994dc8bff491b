package runloop

import (
	"errors"
	"fmt"
)

// Standard errors.
var (
	// ErrAlreadyRunning is returned when Run is called on a loop that is
	// already running.
	ErrAlreadyRunning = errors.New("runloop: loop is already running")

	// ErrStopped is returned when Run is called on a loop that has already
	// run to completion. A Loop is single-use.
	ErrStopped = errors.New("runloop: loop has been stopped")

	// ErrReentrantRun is returned when Run is called from within the loop
	// itself, i.e. from a running action.
	ErrReentrantRun = errors.New("runloop: cannot call Run from within the loop")

	// ErrNoDefault is returned by Default when no default loop has been set.
	ErrNoDefault = errors.New("runloop: default loop not set")
)

// ContractError is the panic value used for contract violations, such as
// calling an owner-only method (Quit, Cancel, CancelAll) from outside the
// owning goroutine, or calling Run from within a running action.
//
// These conditions indicate a bug in the caller, not a recoverable runtime
// failure, which is why they are surfaced as a panic rather than an error
// return. The type is exported so that test harnesses and crash reporters
// can recognize it.
type ContractError struct {
	// Op is the offending operation, e.g. "Quit".
	Op string
	// Message describes the violated contract.
	Message string
}

// Error implements the error interface.
func (e *ContractError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("runloop: contract violation in %s", e.Op)
	}
	return fmt.Sprintf("runloop: %s: %s", e.Op, e.Message)
}

// ActionError wraps an error returned by an action body. Run logs the
// failure and returns an ActionError; the loop does not survive a failing
// action.
type ActionError struct {
	// Cause is the error returned by the action body.
	Cause error
	// Ticket identifies the failed action.
	Ticket Ticket
}

// Error implements the error interface.
func (e *ActionError) Error() string {
	return fmt.Sprintf("runloop: action %d failed: %v", e.Ticket, e.Cause)
}

// Unwrap returns the underlying cause for use with [errors.Is] and
// [errors.As].
func (e *ActionError) Unwrap() error {
	return e.Cause
}
