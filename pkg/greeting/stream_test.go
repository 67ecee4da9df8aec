package greeting

import "testing"

func TestStreamStateMachine(t *testing.T) {
	s := newStream([]string{"a", "b"})
	if s.state != stateNotStarted {
		t.Fatalf("initial state = %s, want not_started", s.state)
	}

	wantMsgs := []string{"", "", "a", "ab"}
	wantPause := []bool{false, true, true, true}
	for i, want := range wantMsgs {
		ev, pause, ok := s.next()
		if !ok {
			t.Fatalf("next() #%d returned !ok", i)
		}
		if ev.Signals.Message != want {
			t.Errorf("emission %d = %q, want %q", i, ev.Signals.Message, want)
		}
		if pause != wantPause[i] {
			t.Errorf("emission %d pause = %v, want %v", i, pause, wantPause[i])
		}
	}
	if !s.complete() {
		t.Errorf("complete() = false after %d emissions", s.emitted)
	}

	if _, _, ok := s.next(); ok {
		t.Fatal("next() after last emission returned ok")
	}
	if s.state != stateDone {
		t.Errorf("state = %s, want done", s.state)
	}

	// Done is terminal.
	if _, _, ok := s.next(); ok {
		t.Error("next() in done state returned ok")
	}
	if s.emitted != 4 {
		t.Errorf("emitted = %d, want 4", s.emitted)
	}
}

func TestStreamStateString(t *testing.T) {
	tests := map[streamState]string{
		stateNotStarted: "not_started",
		stateResetting:  "resetting",
		stateEmitting:   "emitting",
		stateDone:       "done",
		streamState(42): "unknown",
	}
	for st, want := range tests {
		if got := st.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", int(st), got, want)
		}
	}
}
