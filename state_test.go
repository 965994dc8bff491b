package runloop

import (
	"testing"
)

func TestLoopState_String(t *testing.T) {
	for _, tc := range [...]struct {
		state LoopState
		want  string
	}{
		{StateCreated, `Created`},
		{StateWaiting, `Waiting`},
		{StateExecuting, `Executing`},
		{StateStopping, `Stopping`},
		{StateStopped, `Stopped`},
		{LoopState(255), `Unknown`},
	} {
		if got := tc.state.String(); got != tc.want {
			t.Errorf(`got %q, want %q`, got, tc.want)
		}
	}
}

func TestLoopState_transitions(t *testing.T) {
	var state loopState

	if state.load() != StateCreated {
		t.Fatal(`zero value should be Created`)
	}
	if !state.transition(StateCreated, StateWaiting) {
		t.Fatal(`CAS from the current state should succeed`)
	}
	if state.transition(StateCreated, StateWaiting) {
		t.Fatal(`CAS from a stale state should fail`)
	}
	if state.load() != StateWaiting {
		t.Fatalf(`unexpected state %v`, state.load())
	}

	state.store(StateStopped)
	if state.load() != StateStopped {
		t.Fatalf(`unexpected state %v`, state.load())
	}
}

func TestLoop_stateObservableMidExecution(t *testing.T) {
	loop, err := New()
	if err != nil {
		t.Fatal(err)
	}

	var observed LoopState
	loop.ScheduleOnce(func() error {
		observed = loop.State()
		loop.Quit()
		return nil
	}, 0)

	if err := loop.Run(); err != nil {
		t.Fatal(err)
	}
	if observed != StateExecuting {
		t.Errorf(`actions should observe StateExecuting, got %v`, observed)
	}
	if loop.State() != StateStopped {
		t.Errorf(`expected StateStopped after Run, got %v`, loop.State())
	}
}
