package greeting

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rhuss/greetings/pkg/api"
	"github.com/rhuss/greetings/pkg/storage/memory"
)

// mockWriter records emitted events. onWrite, when set, runs after each
// recorded event.
type mockWriter struct {
	mu      sync.Mutex
	events  []api.StreamEvent
	onWrite func(n int)
	failAt  int // 1-based write index that fails; 0 never fails
}

func (w *mockWriter) WriteEvent(_ context.Context, ev api.StreamEvent) error {
	w.mu.Lock()
	if w.failAt > 0 && len(w.events)+1 == w.failAt {
		w.mu.Unlock()
		return errors.New("broken pipe")
	}
	w.events = append(w.events, ev)
	n := len(w.events)
	w.mu.Unlock()
	if w.onWrite != nil {
		w.onWrite(n)
	}
	return nil
}

func (w *mockWriter) Flush() error { return nil }

func (w *mockWriter) messages() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	msgs := make([]string, len(w.events))
	for i, ev := range w.events {
		msgs[i] = ev.Signals.Message
	}
	return msgs
}

// newTestResponder returns a Responder whose pauses are recorded instead
// of slept.
func newTestResponder(store *memory.Store) (*Responder, *[]time.Duration) {
	var pauses []time.Duration
	var r *Responder
	if store != nil {
		r = New(store, Config{})
	} else {
		r = New(nil, Config{})
	}
	r.sleep = func(ctx context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return ctx.Err()
	}
	return r, &pauses
}

func TestStreamGreetingSequence(t *testing.T) {
	r, pauses := newTestResponder(nil)
	w := &mockWriter{}
	req := &api.GreetingRequest{Delay: 25, Title: titlePtr(api.TitleDr), FirstName: "Ada", LastName: "Lovelace"}

	if err := r.StreamGreeting(context.Background(), req, w); err != nil {
		t.Fatalf("StreamGreeting() error = %v", err)
	}

	want := []string{
		"",
		"",
		"Greetings, ",
		"Greetings, Dr. ",
		"Greetings, Dr. Ada ",
		"Greetings, Dr. Ada Lovelace",
		"Greetings, Dr. Ada Lovelace!",
	}
	got := w.messages()
	if len(got) != len(want) {
		t.Fatalf("got %d emissions %q, want %d", len(got), got, len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("emission %d = %q, want %q", i, got[i], want[i])
		}
	}

	// One pause per prefix, including after the last; none after reset.
	if len(*pauses) != len(want)-1 {
		t.Errorf("pauses = %d, want %d", len(*pauses), len(want)-1)
	}
	for _, p := range *pauses {
		if p != 25*time.Millisecond {
			t.Errorf("pause = %v, want 25ms", p)
		}
	}

	for _, ev := range w.events {
		if ev.Type != api.EventPatchSignals {
			t.Errorf("event type = %q, want %q", ev.Type, api.EventPatchSignals)
		}
	}
}

func TestStreamGreetingFullRequest(t *testing.T) {
	r, _ := newTestResponder(nil)
	w := &mockWriter{}
	req := &api.GreetingRequest{
		Title:      titlePtr(api.TitleJedi),
		FirstName:  "Luke",
		MiddleName: strPtr("Skywalker"),
		LastName:   "Skywalker",
		Suffix:     strPtr("Knight"),
	}

	if err := r.StreamGreeting(context.Background(), req, w); err != nil {
		t.Fatalf("StreamGreeting() error = %v", err)
	}

	got := w.messages()
	if len(got) != 8 {
		t.Fatalf("emissions = %d, want 8", len(got))
	}
	if last := got[len(got)-1]; last != "Greetings, Jedi Luke Skywalker Skywalker Knight!" {
		t.Errorf("final message = %q", last)
	}
}

func TestStreamGreetingProperties(t *testing.T) {
	requests := []*api.GreetingRequest{
		{FirstName: "A", LastName: "B"},
		{Title: titlePtr(api.TitleSir), FirstName: "Isaac", LastName: "Newton", Suffix: strPtr("PRS")},
		{FirstName: "  spaced ", MiddleName: strPtr("m"), LastName: "x"},
	}

	for _, req := range requests {
		r, _ := newTestResponder(nil)
		w := &mockWriter{}
		if err := r.StreamGreeting(context.Background(), req, w); err != nil {
			t.Fatalf("StreamGreeting() error = %v", err)
		}

		fragments := Fragments(req)
		got := w.messages()

		if len(got) != len(fragments)+2 {
			t.Errorf("emissions = %d, want %d", len(got), len(fragments)+2)
		}
		if got[0] != "" || got[1] != "" {
			t.Errorf("first two emissions = %q, %q, want empty", got[0], got[1])
		}
		full := Message(fragments)
		if got[len(got)-1] != full {
			t.Errorf("final = %q, want %q", got[len(got)-1], full)
		}
		for i := 1; i < len(got); i++ {
			if !strings.HasPrefix(got[i], got[i-1]) {
				t.Errorf("emission %d %q does not extend %q", i, got[i], got[i-1])
			}
			if !strings.HasPrefix(full, got[i]) {
				t.Errorf("emission %d %q is not a prefix of %q", i, got[i], full)
			}
		}
	}
}

func TestStreamGreetingCancelAfterEmission(t *testing.T) {
	for k := 1; k <= 6; k++ {
		r, _ := newTestResponder(nil)
		ctx, cancel := context.WithCancel(context.Background())
		w := &mockWriter{onWrite: func(n int) {
			if n == k {
				cancel()
			}
		}}
		req := &api.GreetingRequest{FirstName: "Ada", LastName: "Lovelace"}

		if err := r.StreamGreeting(ctx, req, w); err != nil {
			t.Errorf("k=%d: StreamGreeting() error = %v, want nil", k, err)
		}
		if got := len(w.messages()); got != k {
			t.Errorf("k=%d: emissions = %d, want %d", k, got, k)
		}
		cancel()
	}
}

func TestStreamGreetingCancelledBeforeStart(t *testing.T) {
	r, _ := newTestResponder(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := &mockWriter{}
	if err := r.StreamGreeting(ctx, &api.GreetingRequest{FirstName: "A", LastName: "B"}, w); err != nil {
		t.Fatalf("StreamGreeting() error = %v", err)
	}
	if got := len(w.messages()); got != 0 {
		t.Errorf("emissions = %d, want 0", got)
	}
}

func TestStreamGreetingCancelDuringPause(t *testing.T) {
	r := New(nil, Config{})
	ctx, cancel := context.WithCancel(context.Background())
	w := &mockWriter{onWrite: func(n int) {
		if n == 3 {
			go func() {
				time.Sleep(20 * time.Millisecond)
				cancel()
			}()
		}
	}}
	req := &api.GreetingRequest{Delay: 10_000, FirstName: "Ada", LastName: "Lovelace"}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = r.StreamGreeting(ctx, req, w)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("StreamGreeting did not stop after cancellation during pause")
	}
	if got := len(w.messages()); got != 3 {
		t.Errorf("emissions = %d, want 3", got)
	}
}

func TestStreamGreetingWriteError(t *testing.T) {
	r, _ := newTestResponder(nil)
	w := &mockWriter{failAt: 3}
	req := &api.GreetingRequest{FirstName: "Ada", LastName: "Lovelace"}

	if err := r.StreamGreeting(context.Background(), req, w); err != nil {
		t.Fatalf("StreamGreeting() error = %v, want nil", err)
	}
	if got := len(w.messages()); got != 2 {
		t.Errorf("emissions = %d, want 2", got)
	}
}

func TestStreamGreetingZeroDelay(t *testing.T) {
	r := New(nil, Config{})
	w := &mockWriter{}
	req := &api.GreetingRequest{Title: titlePtr(api.TitleMr), FirstName: "A", MiddleName: strPtr("M"), LastName: "B", Suffix: strPtr("III")}

	start := time.Now()
	if err := r.StreamGreeting(context.Background(), req, w); err != nil {
		t.Fatalf("StreamGreeting() error = %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("zero-delay stream took %v", elapsed)
	}
	if got := len(w.messages()); got != 8 {
		t.Errorf("emissions = %d, want 8", got)
	}
}

func TestStreamGreetingRecordsHistory(t *testing.T) {
	store := memory.New(0)
	r, _ := newTestResponder(store)
	req := &api.GreetingRequest{ID: api.NewStreamID(), Delay: 5, FirstName: "Ada", LastName: "Lovelace"}

	if err := r.StreamGreeting(context.Background(), req, &mockWriter{}); err != nil {
		t.Fatalf("StreamGreeting() error = %v", err)
	}

	rec, err := store.GetGreeting(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("GetGreeting() error = %v", err)
	}
	if rec.Status != api.GreetingStatusCompleted {
		t.Errorf("status = %q, want completed", rec.Status)
	}
	if rec.Message != "Greetings, Ada Lovelace!" {
		t.Errorf("message = %q", rec.Message)
	}
	if rec.Emissions != 6 {
		t.Errorf("emissions = %d, want 6", rec.Emissions)
	}
	if rec.DelayMS != 5 {
		t.Errorf("delay_ms = %d, want 5", rec.DelayMS)
	}
}

func TestStreamGreetingRecordsCancelled(t *testing.T) {
	store := memory.New(0)
	r, _ := newTestResponder(store)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := &mockWriter{onWrite: func(n int) {
		if n == 4 {
			cancel()
		}
	}}
	req := &api.GreetingRequest{ID: api.NewStreamID(), FirstName: "Ada", LastName: "Lovelace"}

	if err := r.StreamGreeting(ctx, req, w); err != nil {
		t.Fatalf("StreamGreeting() error = %v", err)
	}

	rec, err := store.GetGreeting(context.Background(), req.ID)
	if err != nil {
		t.Fatalf("GetGreeting() error = %v", err)
	}
	if rec.Status != api.GreetingStatusCancelled {
		t.Errorf("status = %q, want cancelled", rec.Status)
	}
	if rec.Message != "Greetings, Ada " {
		t.Errorf("message = %q, want last revealed prefix", rec.Message)
	}
	if rec.Emissions != 4 {
		t.Errorf("emissions = %d, want 4", rec.Emissions)
	}
}

func TestSleepContext(t *testing.T) {
	if err := sleepContext(context.Background(), 0); err != nil {
		t.Errorf("sleepContext(0) = %v", err)
	}
	if err := sleepContext(context.Background(), time.Millisecond); err != nil {
		t.Errorf("sleepContext(1ms) = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleepContext(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("sleepContext(cancelled) = %v, want context.Canceled", err)
	}
}
