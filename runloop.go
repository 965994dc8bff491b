package runloop

import (
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joeycumines/logiface"
)

// DefaultSpinThreshold is the remaining-time boundary below which the loop
// busy-waits (release lock, yield, relock, re-check) instead of performing a
// single bounded wait on the wake signal. See WithSpinThreshold.
const DefaultSpinThreshold = 2 * time.Millisecond

// Loop is a single-goroutine run loop. It executes scheduled actions at
// their trigger times on the goroutine that calls Run, while any goroutine
// may schedule new actions concurrently.
//
// Instances must be created via New. A Loop is single-use: once Run returns,
// the loop is stopped for good.
type Loop struct {
	// Prevent copying
	_ [0]func()

	registry *actionRegistry

	logger *logiface.Logger[logiface.Event]

	now           func() time.Time // configurable
	yield         func()           // configurable
	spinThreshold time.Duration    // configurable

	metrics *metrics // nil unless enabled

	// wake carries "check again" only, never data readiness. Buffered to 1;
	// notify is a non-blocking send, so a signal is never lost and at most
	// one token is ever outstanding.
	wake chan struct{}

	name string

	// mu guards exactly registry.pending; registry.queued is exclusive to
	// the owning goroutine while the loop runs.
	mu sync.Mutex

	state loopState

	// ownerID is the goroutine id of the owning goroutine, non-zero only
	// while Run is executing.
	ownerID atomic.Uint64

	// quit is the terminal flag, touched only by the owning goroutine.
	quit bool
}

// New creates a new run loop.
func New(options ...LoopOption) (*Loop, error) {
	cfg, err := resolveLoopOptions(options)
	if err != nil {
		return nil, err
	}

	loop := &Loop{
		name:          cfg.name,
		logger:        cfg.logger,
		now:           cfg.clock,
		yield:         cfg.yield,
		spinThreshold: cfg.spinThreshold,
		registry:      newActionRegistry(),
		wake:          make(chan struct{}, 1),
	}

	if cfg.metricsEnabled {
		loop.metrics = &metrics{}
	}

	if loop.name != "" {
		if c := loop.logger.Clone(); c != nil {
			loop.logger = c.Str(`runloop`, loop.name).Logger()
		}
	}

	return loop, nil
}

// Name returns the diagnostic name of the loop, which may be empty.
// See WithName.
func (x *Loop) Name() string {
	return x.name
}

// State returns the current loop state. Safe from any goroutine.
func (x *Loop) State() LoopState {
	return x.state.load()
}

// Run executes the loop on the calling goroutine, blocking until Quit is
// observed, and records the calling goroutine as the loop's owner for the
// duration.
//
// Each cycle reconciles newly scheduled actions into the working set,
// computes the earliest trigger time, waits until it is due (busy-waiting
// below the spin threshold, bounded-waiting above it), then executes all
// due actions in scheduling order.
//
// Run returns nil after Quit, ErrAlreadyRunning if the loop is running on
// another goroutine, ErrStopped if the loop already ran to completion, and
// ErrReentrantRun when called from within a running action. If an action
// body returns an error, Run logs it and returns it wrapped in an
// [ActionError], without executing the remainder of the pass.
func (x *Loop) Run() error {
	if x.isOwner() {
		return ErrReentrantRun
	}

	if !x.state.transition(StateCreated, StateWaiting) {
		if x.state.load() == StateStopped {
			return ErrStopped
		}
		return ErrAlreadyRunning
	}

	x.ownerID.Store(goroutineID())
	defer x.ownerID.Store(0)

	x.logger.Debug().Log(`runloop: loop started`)

	for {
		x.await()

		x.state.transition(StateWaiting, StateExecuting)

		if actionErr := x.registry.runDue(x.now, &x.quit); actionErr != nil {
			x.logger.Err().
				Err(actionErr.Cause).
				Uint64(`ticket`, uint64(actionErr.Ticket)).
				Log(`runloop: uncaught error while running loop action`)
			x.state.store(StateStopped)
			return actionErr
		}

		x.metrics.addCycle()
		x.yield()

		if x.quit {
			break
		}

		x.state.transition(StateExecuting, StateWaiting)
	}

	// Quit cancelled every outstanding action; one last reconcile discards
	// the cancelled entries.
	x.mu.Lock()
	x.registry.reconcile()
	x.mu.Unlock()

	x.state.store(StateStopped)
	x.logger.Debug().Log(`runloop: loop stopped`)

	return nil
}

// await blocks until the earliest queued trigger time is due, waking early
// to re-evaluate whenever new pending work arrives.
func (x *Loop) await() {
	x.mu.Lock()
	defer x.mu.Unlock()

	for {
		wakeAt, ok := x.registry.reconcile()
		if !ok {
			// Nothing scheduled: sleep until a schedule signal arrives.
			// Quit is owner-only, so it cannot be requested while the
			// owner sits here, same as waiting on an empty loop in any
			// other state.
			x.mu.Unlock()
			<-x.wake
			x.metrics.addWakeup()
			x.mu.Lock()
			continue
		}

		now := x.now()
		if !wakeAt.After(now) {
			return
		}

		if remaining := wakeAt.Sub(now); remaining < x.spinThreshold {
			for {
				x.mu.Unlock()
				x.metrics.addSpin()
				x.yield()
				x.mu.Lock()
				if !x.now().Before(wakeAt) || x.registry.hasPending() {
					break
				}
			}
		} else {
			x.mu.Unlock()
			x.timedWait(remaining)
			x.mu.Lock()
		}
	}
}

// timedWait blocks for at most d, returning early on a wake signal.
func (x *Loop) timedWait(d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-x.wake:
		x.metrics.addWakeup()
	case <-timer.C:
	}
}

// notify performs a non-blocking send on the wake channel. Every schedule
// notifies, even when the new trigger time is later than the current
// earliest; a stale token just causes one extra (cheap) re-evaluation.
func (x *Loop) notify() {
	select {
	case x.wake <- struct{}{}:
	default:
	}
}

// ScheduleAt schedules body to run at triggerTime. Safe to call from any
// goroutine, including from within a running action. The returned Ticket
// may be passed to Cancel.
//
// interval and catchUp only apply if body reports repeat == true: with
// catchUp the next trigger time advances by exactly interval per firing
// (missed repetitions burst on resume), without it the next trigger time is
// reset to now plus interval after each firing.
func (x *Loop) ScheduleAt(body Action, triggerTime time.Time, interval time.Duration, catchUp bool) Ticket {
	if body == nil {
		panic(`runloop: nil action`)
	}

	x.mu.Lock()
	ticket := x.registry.schedule(body, triggerTime, interval, catchUp)
	x.mu.Unlock()

	x.notify()
	x.metrics.addScheduled()

	x.logger.Trace().
		Uint64(`ticket`, uint64(ticket)).
		Time(`trigger`, triggerTime).
		Log(`runloop: action scheduled`)

	return ticket
}

// ScheduleOnce schedules body to run once, delay from now. Safe to call
// from any goroutine.
func (x *Loop) ScheduleOnce(body func() error, delay time.Duration) Ticket {
	if body == nil {
		panic(`runloop: nil action`)
	}
	return x.ScheduleAt(func() (bool, error) {
		return false, body()
	}, x.now().Add(delay), 0, false)
}

// ScheduleRepeating schedules body to run every interval, starting interval
// from now, until it reports repeat == false or is cancelled. Safe to call
// from any goroutine. See ScheduleAt for the catchUp policy.
func (x *Loop) ScheduleRepeating(body Action, interval time.Duration, catchUp bool) Ticket {
	if body == nil {
		panic(`runloop: nil action`)
	}
	return x.ScheduleAt(body, x.now().Add(interval), interval, catchUp)
}

// Quit cancels all outstanding actions and stops the loop: the current
// execution pass ends immediately after the calling action, and Run returns
// once the final flush completes.
//
// Owner-only: Quit must be called on the goroutine running the loop, in
// practice from within an action. Calling it elsewhere panics with a
// ContractError.
func (x *Loop) Quit() {
	x.assertOwner(`Quit`)

	x.CancelAll()
	x.quit = true
	x.state.store(StateStopping)

	x.logger.Debug().Log(`runloop: quit requested`)
}

// Cancel cancels the action identified by ticket, reporting whether a live
// action was found. Once Cancel returns true, the action's body will never
// be invoked again, even if it was about to fire in the same cycle.
// Cancelling an unknown or already-cancelled ticket returns false and is
// not an error.
//
// Owner-only: see Quit.
func (x *Loop) Cancel(ticket Ticket) bool {
	x.assertOwner(`Cancel`)

	// Queued first: cheap, no lock needed on the owning goroutine.
	didCancel := x.registry.tryCancelQueued(ticket)

	if !didCancel {
		x.mu.Lock()
		didCancel = x.registry.tryCancelPending(ticket)
		x.mu.Unlock()
	}

	if didCancel {
		x.metrics.addCancelled()
		x.logger.Trace().
			Uint64(`ticket`, uint64(ticket)).
			Log(`runloop: action cancelled`)
	}

	return didCancel
}

// CancelAll cancels every outstanding action. Queued actions are marked
// cancelled in place; pending actions have not yet been observed by the
// loop, so they are discarded outright.
//
// Owner-only: see Quit.
func (x *Loop) CancelAll() {
	x.assertOwner(`CancelAll`)

	x.registry.cancelAllQueued()

	x.mu.Lock()
	x.registry.cancelAllPending()
	x.mu.Unlock()
}

// assertOwner panics with a ContractError unless called on the owning
// goroutine while the loop is running.
func (x *Loop) assertOwner(op string) {
	if !x.isOwner() {
		panic(&ContractError{
			Op:      op,
			Message: op + ` called from outside the loop goroutine`,
		})
	}
}

// isOwner checks if we're on the loop goroutine.
func (x *Loop) isOwner() bool {
	id := x.ownerID.Load()
	return id != 0 && id == goroutineID()
}

// goroutineID returns the current goroutine's ID.
func goroutineID() uint64 {
	var buf [64]byte
	n := runtime.Stack(buf[:], false)
	var id uint64
	for i := len("goroutine "); i < n; i++ {
		if buf[i] >= '0' && buf[i] <= '9' {
			id = id*10 + uint64(buf[i]-'0')
		} else {
			break
		}
	}
	return id
}
