package greeting

import (
	"context"
	"log/slog"
	"time"

	"github.com/rhuss/greetings/pkg/api"
	"github.com/rhuss/greetings/pkg/debug"
	"github.com/rhuss/greetings/pkg/observability"
	"github.com/rhuss/greetings/pkg/transport"
)

// Responder streams the progressive reveal of a greeting. It implements
// transport.GreetingStreamer and holds no per-stream state, so one
// Responder serves any number of concurrent streams.
type Responder struct {
	store transport.HistoryStore
	cfg   Config

	// sleep pauses between emissions; replaced in tests.
	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time
}

// Ensure Responder implements transport.GreetingStreamer at compile time.
var _ transport.GreetingStreamer = (*Responder)(nil)

// New creates a Responder. The store can be nil, in which case finished
// streams are not recorded.
func New(store transport.HistoryStore, cfg Config) *Responder {
	return &Responder{
		store: store,
		cfg:   cfg,
		sleep: sleepContext,
		now:   time.Now,
	}
}

// StreamGreeting emits the reset snapshot, then every prefix of the
// greeting, pausing req.Delay milliseconds after each prefix. If ctx is
// cancelled or a write fails, the stream stops before the next emission
// and StreamGreeting returns nil.
func (r *Responder) StreamGreeting(ctx context.Context, req *api.GreetingRequest, w transport.EventWriter) error {
	fragments := Fragments(req)
	if req.Suffix != nil {
		debug.Log("streaming", "suffix present", "stream_id", req.ID, "suffix", *req.Suffix)
	}

	s := newStream(fragments)
	delay := time.Duration(req.Delay) * time.Millisecond
	started := r.now()
	out := outcome{}

	for ctx.Err() == nil {
		event, pause, ok := s.next()
		if !ok {
			break
		}

		if err := w.WriteEvent(ctx, event); err != nil {
			debug.Log("streaming", "write failed, stopping stream",
				"stream_id", req.ID, "delivered", out.delivered, "error", err)
			break
		}
		out.delivered++
		out.message = event.Signals.Message
		observability.EmissionsTotal.Inc()
		debug.Trace("streaming", "emission", "stream_id", req.ID,
			"state", s.state.String(), "message", event.Signals.Message)

		if pause {
			if err := r.sleep(ctx, delay); err != nil {
				break
			}
		}
	}

	out.status = api.GreetingStatusCompleted
	if out.delivered != s.total() {
		out.status = api.GreetingStatusCancelled
		if cause := context.Cause(ctx); cause != nil {
			debug.Log("streaming", "stream stopped early", "stream_id", req.ID,
				"delivered", out.delivered, "cause", cause)
		}
	}
	observability.StreamsTotal.WithLabelValues(string(out.status)).Inc()

	r.record(ctx, req, out, started)
	return nil
}

// outcome is what the client actually received.
type outcome struct {
	status    api.GreetingStatus
	delivered int
	message   string
}

// record saves the stream outcome to the history store. Failures are
// logged and never reach the client.
func (r *Responder) record(ctx context.Context, req *api.GreetingRequest, out outcome, started time.Time) {
	if r.store == nil || req.ID == "" {
		return
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.cfg.saveTimeout())
	defer cancel()

	rec := &api.GreetingRecord{
		ID:          req.ID,
		Object:      "greeting",
		Status:      out.status,
		Message:     out.message,
		Emissions:   out.delivered,
		DelayMS:     req.Delay,
		CreatedAt:   started.Unix(),
		CompletedAt: r.now().Unix(),
	}
	if err := r.store.SaveGreeting(saveCtx, rec); err != nil {
		slog.Warn("failed to record greeting", "stream_id", req.ID, "error", err)
	}
}

// sleepContext waits for d or until ctx is done, whichever comes first.
func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
