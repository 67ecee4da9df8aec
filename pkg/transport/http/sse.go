package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/rhuss/greetings/pkg/api"
	"github.com/rhuss/greetings/pkg/transport"
)

// errWriterClosed is returned by WriteEvent after the writer is closed.
var errWriterClosed = errors.New("cannot write event: writer is closed")

// writerState tracks the state of an SSE event writer.
type writerState int

const (
	writerIdle      writerState = iota // Initial state, no writes yet
	writerStreaming                    // WriteEvent has been called at least once
	writerClosed                       // Handler returned; no further writes
)

// sseEventWriter implements transport.EventWriter for datastar SSE
// responses. Each event is written as
//
//	event: datastar-patch-signals
//	data: signals {"message":"..."}
//
// followed by a blank line, and flushed immediately.
type sseEventWriter struct {
	w  http.ResponseWriter
	rc *http.ResponseController

	mu     sync.Mutex
	state  writerState
	events int
}

var _ transport.EventWriter = (*sseEventWriter)(nil)

// newSSEEventWriter creates an EventWriter wrapping an http.ResponseWriter.
func newSSEEventWriter(w http.ResponseWriter) *sseEventWriter {
	return &sseEventWriter{
		w:  w,
		rc: http.NewResponseController(w),
	}
}

// WriteEvent sends a single SSE event and flushes it. SSE headers are set
// on the first event.
func (s *sseEventWriter) WriteEvent(ctx context.Context, event api.StreamEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == writerClosed {
		return errWriterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	if s.state == writerIdle {
		h := s.w.Header()
		h.Set("Content-Type", "text/event-stream")
		h.Set("Cache-Control", "no-cache")
		h.Set("Connection", "keep-alive")
		s.state = writerStreaming
	}

	signals, err := json.Marshal(event.Signals)
	if err != nil {
		return fmt.Errorf("failed to marshal signals: %w", err)
	}

	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: signals %s\n\n", event.Type, signals); err != nil {
		return fmt.Errorf("failed to write event: %w", err)
	}
	if err := s.rc.Flush(); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	s.events++
	return nil
}

// Flush ensures buffered data is sent to the client.
func (s *sseEventWriter) Flush() error {
	return s.rc.Flush()
}

// close marks the writer as closed. The http.ResponseWriter must not be
// used once the handler returns.
func (s *sseEventWriter) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = writerClosed
}

// hasStartedStreaming returns true if at least one event has been written.
func (s *sseEventWriter) hasStartedStreaming() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events > 0
}
