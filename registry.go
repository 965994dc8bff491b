package runloop

import (
	"time"
)

type (
	// Ticket is an opaque handle identifying one scheduled action for later
	// cancellation. Tickets are unique per Loop and strictly increasing; the
	// zero value is never issued.
	Ticket uint64

	// Action is one unit of deferred work. Returning repeat == true
	// reschedules the action per its interval and catch-up policy; returning
	// false retires it. A non-nil error stops the loop: Run logs it and
	// returns it wrapped in an [ActionError].
	Action func() (repeat bool, err error)

	// scheduledAction is an owned entry in one of the two registry
	// sequences. An entry is never referenced from both sequences at once.
	scheduledAction struct {
		triggerTime time.Time
		body        Action
		interval    time.Duration
		ticket      Ticket
		catchUp     bool
		cancelled   bool
	}

	// actionRegistry owns the two action sequences. queued is touched only
	// by the owning goroutine while the loop runs, and requires no locking;
	// pending is the cross-goroutine inbox and is always accessed with the
	// loop mutex held. Methods are annotated accordingly.
	actionRegistry struct {
		queued        []*scheduledAction
		pending       []*scheduledAction
		ticketCounter Ticket
	}
)

// ticketReserved is the reserved ticket range; the first issued ticket is
// ticketReserved + 1, leaving room for sentinel values below it.
const ticketReserved Ticket = 100

func newActionRegistry() *actionRegistry {
	return &actionRegistry{ticketCounter: ticketReserved}
}

// schedule issues a new ticket and appends the action to pending.
// Caller must hold the lock.
func (x *actionRegistry) schedule(body Action, triggerTime time.Time, interval time.Duration, catchUp bool) Ticket {
	x.ticketCounter++
	x.pending = append(x.pending, &scheduledAction{
		ticket:      x.ticketCounter,
		body:        body,
		interval:    interval,
		catchUp:     catchUp,
		triggerTime: triggerTime,
	})
	return x.ticketCounter
}

// reconcile discards cancelled queued entries, moves every pending entry
// into queued (pending never holds cancelled entries, they are removed
// eagerly by the cancellation paths), and leaves pending empty. It returns
// the earliest trigger time among the queued actions, or ok == false if
// nothing remains queued. Caller must hold the lock.
func (x *actionRegistry) reconcile() (wake time.Time, ok bool) {
	live := x.queued[:0]
	for _, action := range x.queued {
		if !action.cancelled {
			live = append(live, action)
		}
	}
	for i := len(live); i < len(x.queued); i++ {
		x.queued[i] = nil
	}

	x.queued = append(live, x.pending...)
	for i := range x.pending {
		x.pending[i] = nil
	}
	x.pending = x.pending[:0]

	for _, action := range x.queued {
		if !ok || action.triggerTime.Before(wake) {
			wake, ok = action.triggerTime, true
		}
	}
	return
}

// hasPending reports whether new work has arrived since the last reconcile.
// Caller must hold the lock.
func (x *actionRegistry) hasPending() bool {
	return len(x.pending) > 0
}

// runDue executes every due, non-cancelled queued action in insertion order.
// Repeaters are rescheduled per their catch-up policy; non-repeaters are
// marked cancelled, to be discarded at the next reconcile. The pass stops
// early if quit becomes true, as running an action may trigger Quit.
//
// Owning goroutine only; caller must NOT hold the lock.
func (x *actionRegistry) runDue(now func() time.Time, quit *bool) *ActionError {
	current := now()

	for _, action := range x.queued {
		if action.cancelled || action.triggerTime.After(current) {
			continue
		}

		repeat, err := action.body()
		if err != nil {
			action.cancelled = true
			return &ActionError{Ticket: action.ticket, Cause: err}
		}

		if repeat {
			if action.catchUp {
				action.triggerTime = action.triggerTime.Add(action.interval)
			} else {
				action.triggerTime = current.Add(action.interval)
			}
		} else {
			action.cancelled = true
		}

		if *quit {
			break
		}
	}

	return nil
}

// tryCancelQueued marks a queued action cancelled in place, returning false
// if the ticket is unknown or the action is already cancelled.
// Owning goroutine only, no lock needed.
func (x *actionRegistry) tryCancelQueued(ticket Ticket) bool {
	for _, action := range x.queued {
		if action.ticket == ticket {
			if action.cancelled {
				return false
			}
			action.cancelled = true
			return true
		}
	}
	return false
}

// tryCancelPending removes a pending action outright; it has never been
// observed by the loop, so it can be freed immediately rather than merely
// flagged. Caller must hold the lock.
func (x *actionRegistry) tryCancelPending(ticket Ticket) bool {
	for i, action := range x.pending {
		if action.ticket == ticket {
			copy(x.pending[i:], x.pending[i+1:])
			x.pending[len(x.pending)-1] = nil
			x.pending = x.pending[:len(x.pending)-1]
			return true
		}
	}
	return false
}

// cancelAllQueued marks every queued action cancelled in place.
// Owning goroutine only, no lock needed.
func (x *actionRegistry) cancelAllQueued() {
	for _, action := range x.queued {
		action.cancelled = true
	}
}

// cancelAllPending clears pending outright. Caller must hold the lock.
func (x *actionRegistry) cancelAllPending() {
	for i := range x.pending {
		x.pending[i] = nil
	}
	x.pending = x.pending[:0]
}
