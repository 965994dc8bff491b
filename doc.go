// Package runloop provides a single-goroutine run loop that executes
// deferred and repeating actions at precise future times, while allowing any
// other goroutine to schedule new work concurrently.
//
// # Architecture
//
// A [Loop] is owned by exactly one goroutine, the one that calls [Loop.Run].
// Producers anywhere in the process hand work to the loop via
// [Loop.ScheduleAt], [Loop.ScheduleOnce], and [Loop.ScheduleRepeating], which
// append to a mutex-guarded pending sequence and signal the loop. Once per
// cycle the loop reconciles the pending sequence into its own queued
// sequence, which it then iterates and executes entirely lock-free. This
// move-then-iterate design is the core trick: data crosses from the
// concurrently-accessed structure into a goroutine-exclusive one once per
// cycle, rather than taking a lock on every element access.
//
// # Wake Strategy
//
// When the earliest trigger time is not yet due, the loop either busy-waits
// (release lock, yield, relock, re-check) when the remaining time is below
// the spin threshold (2ms by default, see [WithSpinThreshold]), or performs a
// single bounded wait on its wake signal otherwise. Every schedule call
// signals the loop, even when the new trigger time is later than the current
// earliest; early wake-ups simply re-evaluate.
//
// # Thread Safety
//
//   - [Loop.ScheduleAt], [Loop.ScheduleOnce], and [Loop.ScheduleRepeating]
//     are safe to call from any goroutine, including from within a running
//     action.
//   - [Loop.Quit], [Loop.Cancel], and [Loop.CancelAll] may only be called on
//     the owning goroutine, in practice from within a running action.
//     Violations are programming errors, and panic with a [ContractError].
//   - [Loop.State] and [Loop.Metrics] are safe from any goroutine.
//
// Actions fire in the order they were scheduled, not sorted by trigger time:
// among actions simultaneously due, scheduling order wins. An action whose
// trigger time has not yet arrived is skipped and revisited next cycle.
//
// # Repeating Actions
//
// A repeating action's next trigger time is governed by its catch-up policy.
// With catch-up enabled the trigger time advances by exactly the interval
// each firing, so a stalled loop compresses the missed repetitions into
// back-to-back firings on resume. With catch-up disabled the trigger time is
// reset to now plus the interval after each firing, tolerating drift but
// never bursting.
//
// # Errors
//
// An action body that returns a non-nil error stops the loop: the error is
// logged, wrapped in [ActionError], and returned from [Loop.Run]. Callers
// needing resilience must handle errors inside their own action bodies. An
// action body that blocks indefinitely stalls the entire loop; that is a
// documented caller responsibility, not something the loop guards against.
//
// # Usage
//
//	loop, err := runloop.New()
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	loop.ScheduleRepeating(func() (bool, error) {
//		fmt.Println("tick")
//		return true, nil
//	}, time.Second, false)
//
//	loop.ScheduleOnce(func() error {
//		loop.Quit()
//		return nil
//	}, 5*time.Second)
//
//	if err := loop.Run(); err != nil {
//		log.Fatal(err)
//	}
package runloop
