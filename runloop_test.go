package runloop

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoop_onceActionFiresExactlyOnce(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	var fired int
	loop.ScheduleOnce(func() error {
		fired++
		return nil
	}, 0)

	// keep the loop alive for a few cycles before quitting
	var passes int
	loop.ScheduleRepeating(func() (bool, error) {
		passes++
		if passes == 3 {
			loop.Quit()
		}
		return true, nil
	}, time.Millisecond, false)

	require.NoError(t, loop.Run())
	assert.Equal(t, 1, fired)
	assert.Equal(t, StateStopped, loop.State())
}

func TestLoop_cancelBeforeFire(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	var fired bool
	var target Ticket
	loop.ScheduleOnce(func() error {
		// target is due in this very pass, but cancellation wins
		if !loop.Cancel(target) {
			t.Error(`expected cancel to succeed`)
		}
		if loop.Cancel(target) {
			t.Error(`second cancel should report false`)
		}
		if loop.Cancel(Ticket(1)) {
			t.Error(`unknown ticket should report false`)
		}
		loop.Quit()
		return nil
	}, 0)
	target = loop.ScheduleOnce(func() error {
		fired = true
		return nil
	}, 0)

	require.NoError(t, loop.Run())
	assert.False(t, fired, `cancelled action must never fire`)
}

func TestLoop_cancelPendingFromAction(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	var fired bool
	loop.ScheduleOnce(func() error {
		// scheduled from within an action, so it sits in pending until the
		// next reconcile, and cancellation takes the locked pending path
		ticket := loop.ScheduleOnce(func() error {
			fired = true
			return nil
		}, 0)
		if !loop.Cancel(ticket) {
			t.Error(`expected pending cancel to succeed`)
		}
		loop.Quit()
		return nil
	}, 0)

	require.NoError(t, loop.Run())
	assert.False(t, fired)
}

func TestLoop_scheduleFromWithinAction(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	var followUp bool
	loop.ScheduleOnce(func() error {
		loop.ScheduleOnce(func() error {
			followUp = true
			loop.Quit()
			return nil
		}, 0)
		return nil
	}, 0)

	require.NoError(t, loop.Run())
	assert.True(t, followUp, `action scheduled from an action should run`)
}

func TestLoop_fifoTieBreak(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	now := time.Now()
	var order []string
	loop.ScheduleAt(func() (bool, error) {
		order = append(order, `a`)
		return false, nil
	}, now, 0, false)
	loop.ScheduleAt(func() (bool, error) {
		order = append(order, `b`)
		return false, nil
	}, now, 0, false)
	loop.ScheduleAt(func() (bool, error) {
		loop.Quit()
		return false, nil
	}, now, 0, false)

	require.NoError(t, loop.Run())
	assert.Equal(t, []string{`a`, `b`}, order)
}

func TestLoop_quitStopsExecutionPassImmediately(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	var fired bool
	loop.ScheduleOnce(func() error {
		loop.Quit()
		return nil
	}, 0)
	loop.ScheduleOnce(func() error {
		fired = true
		return nil
	}, 0)

	require.NoError(t, loop.Run())
	assert.False(t, fired, `actions later in the same pass must not run after Quit`)
}

func TestLoop_cancelAll(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	var fired bool
	loop.ScheduleOnce(func() error {
		// one action in pending, one queued, both must die
		loop.ScheduleOnce(func() error {
			fired = true
			return nil
		}, 0)
		loop.CancelAll()

		// the loop itself keeps running; quit on a later pass
		loop.ScheduleOnce(func() error {
			loop.Quit()
			return nil
		}, 0)
		return nil
	}, 0)
	loop.ScheduleOnce(func() error {
		fired = true
		return nil
	}, time.Millisecond)

	require.NoError(t, loop.Run())
	assert.False(t, fired, `no action outstanding at CancelAll may fire`)
}

func TestLoop_scheduleFromOtherGoroutine(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	const n = 10
	var count int
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < n; i++ {
			loop.ScheduleOnce(func() error {
				count++
				return nil
			}, 0)
			time.Sleep(time.Millisecond)
		}
		loop.ScheduleOnce(func() error {
			loop.Quit()
			return nil
		}, 10*time.Millisecond)
	}()

	require.NoError(t, loop.Run())
	<-done
	assert.Equal(t, n, count)
}

func TestLoop_runStates(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)
	assert.Equal(t, StateCreated, loop.State())

	started := make(chan struct{})
	results := make(chan error, 1)
	loop.ScheduleOnce(func() error {
		close(started)
		return nil
	}, 0)

	go func() {
		results <- loop.Run()
	}()
	<-started

	// concurrent Run is rejected while the loop is live
	require.ErrorIs(t, loop.Run(), ErrAlreadyRunning)

	loop.ScheduleOnce(func() error {
		loop.Quit()
		return nil
	}, 0)

	require.NoError(t, <-results)
	assert.Equal(t, StateStopped, loop.State())

	// a stopped loop is single-use
	require.ErrorIs(t, loop.Run(), ErrStopped)
}

func TestLoop_reentrantRun(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	var reentrant error
	loop.ScheduleOnce(func() error {
		reentrant = loop.Run()
		loop.Quit()
		return nil
	}, 0)

	require.NoError(t, loop.Run())
	assert.ErrorIs(t, reentrant, ErrReentrantRun)
}

func TestLoop_actionErrorStopsLoop(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	sentinel := errors.New(`boom`)
	bad := loop.ScheduleOnce(func() error {
		return sentinel
	}, 0)
	var fired bool
	loop.ScheduleOnce(func() error {
		fired = true
		return nil
	}, 0)

	runErr := loop.Run()
	require.Error(t, runErr)

	var actionErr *ActionError
	require.ErrorAs(t, runErr, &actionErr)
	assert.Equal(t, bad, actionErr.Ticket)
	assert.ErrorIs(t, runErr, sentinel)
	assert.False(t, fired, `remainder of the pass must not run after a failure`)
	assert.Equal(t, StateStopped, loop.State())
}

func TestLoop_ticketsUniqueAndIncreasing(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	seen := make(map[Ticket]struct{})
	var prev Ticket
	for i := 0; i < 1000; i++ {
		ticket := loop.ScheduleOnce(func() error { return nil }, time.Hour)
		if _, dup := seen[ticket]; dup {
			t.Fatalf(`duplicate ticket %d`, ticket)
		}
		seen[ticket] = struct{}{}
		if ticket <= prev {
			t.Fatalf(`ticket %d not strictly increasing after %d`, ticket, prev)
		}
		prev = ticket
	}
}

func TestLoop_nilActionPanics(t *testing.T) {
	loop, err := New()
	require.NoError(t, err)

	assert.PanicsWithValue(t, `runloop: nil action`, func() {
		loop.ScheduleOnce(nil, 0)
	})
	assert.PanicsWithValue(t, `runloop: nil action`, func() {
		loop.ScheduleAt(nil, time.Now(), 0, false)
	})
	assert.PanicsWithValue(t, `runloop: nil action`, func() {
		loop.ScheduleRepeating(nil, time.Second, false)
	})
}

func TestLoop_name(t *testing.T) {
	loop, err := New(WithName(`ticker`))
	require.NoError(t, err)
	assert.Equal(t, `ticker`, loop.Name())
}
