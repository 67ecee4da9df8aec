package transport

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Cancellation causes attached to a stream's context. Read them with
// context.Cause.
var (
	ErrStreamCancelled = errors.New("greeting stream cancelled by request")
	ErrServerStopping  = errors.New("server is shutting down")
)

// InFlightRegistry tracks greeting streams that are still emitting, so a
// DELETE /greetings/{id} on another connection can stop them. Safe for
// concurrent use.
type InFlightRegistry struct {
	mu      sync.Mutex
	streams map[string]inflightStream
	running sync.WaitGroup
}

type inflightStream struct {
	cancel  context.CancelCauseFunc
	started time.Time
}

// NewInFlightRegistry creates an empty registry.
func NewInFlightRegistry() *InFlightRegistry {
	return &InFlightRegistry{streams: make(map[string]inflightStream)}
}

// Track registers stream id and returns a context derived from ctx that
// is cancelled by Cancel or CancelAll. The release func must be called
// when the stream ends; it unregisters the stream and releases the
// context. A stream counts as running for Wait until it is released,
// even after Cancel.
func (r *InFlightRegistry) Track(ctx context.Context, id string) (context.Context, func()) {
	ctx, cancel := context.WithCancelCause(ctx)

	r.mu.Lock()
	r.streams[id] = inflightStream{cancel: cancel, started: time.Now()}
	r.mu.Unlock()
	r.running.Add(1)

	var once sync.Once
	return ctx, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.streams, id)
			r.mu.Unlock()
			cancel(nil)
			r.running.Done()
		})
	}
}

// Wait blocks until every tracked stream has been released or ctx is
// done, in which case it returns ctx.Err().
func (r *InFlightRegistry) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Cancel stops stream id with ErrStreamCancelled. It reports false when
// the stream is unknown or already finished.
func (r *InFlightRegistry) Cancel(id string) bool {
	r.mu.Lock()
	s, ok := r.streams[id]
	delete(r.streams, id)
	r.mu.Unlock()

	if ok {
		s.cancel(ErrStreamCancelled)
	}
	return ok
}

// CancelAll stops every tracked stream with cause and returns how many
// were stopped.
func (r *InFlightRegistry) CancelAll(cause error) int {
	r.mu.Lock()
	streams := r.streams
	r.streams = make(map[string]inflightStream)
	r.mu.Unlock()

	for _, s := range streams {
		s.cancel(cause)
	}
	return len(streams)
}

// Age returns how long stream id has been running.
func (r *InFlightRegistry) Age(id string) (time.Duration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.streams[id]
	if !ok {
		return 0, false
	}
	return time.Since(s.started), true
}

// Len returns the number of tracked streams.
func (r *InFlightRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.streams)
}
