package transport

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/rhuss/greetings/pkg/api"
)

// Middleware decorates a GreetingStreamer.
type Middleware func(GreetingStreamer) GreetingStreamer

// Chain composes middlewares so that Chain(a, b)(s) runs a, then b, then
// s. Nil entries are skipped.
func Chain(middlewares ...Middleware) Middleware {
	return func(s GreetingStreamer) GreetingStreamer {
		for i := len(middlewares) - 1; i >= 0; i-- {
			if mw := middlewares[i]; mw != nil {
				s = mw(s)
			}
		}
		return s
	}
}

type requestIDKey struct{}

// ContextWithRequestID attaches a request ID to ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFromContext returns the request ID on ctx, or "".
func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// RequestID makes sure every stream runs with a request ID, generating a
// UUID when the adapter did not forward an X-Request-ID.
func RequestID() Middleware {
	return func(next GreetingStreamer) GreetingStreamer {
		return GreetingStreamerFunc(func(ctx context.Context, req *api.GreetingRequest, w EventWriter) error {
			if RequestIDFromContext(ctx) == "" {
				ctx = ContextWithRequestID(ctx, uuid.NewString())
			}
			return next.StreamGreeting(ctx, req, w)
		})
	}
}

// Recovery turns a panic in the streamer into a server_error APIError and
// logs the stack.
func Recovery() Middleware {
	return func(next GreetingStreamer) GreetingStreamer {
		return GreetingStreamerFunc(func(ctx context.Context, req *api.GreetingRequest, w EventWriter) (err error) {
			defer func() {
				if p := recover(); p != nil {
					slog.ErrorContext(ctx, "panic in greeting stream",
						"stream_id", req.ID,
						"panic", p,
						"stack", string(debug.Stack()))
					err = api.NewServerError(fmt.Sprintf("internal server error: %v", p))
				}
			}()
			return next.StreamGreeting(ctx, req, w)
		})
	}
}

// Logging writes one record per stream once it ends: INFO when it ran to
// the end or was stopped by cancellation or a failed write, ERROR when
// the streamer failed. A nil logger
// means slog.Default().
func Logging(logger *slog.Logger) Middleware {
	return func(next GreetingStreamer) GreetingStreamer {
		return GreetingStreamerFunc(func(ctx context.Context, req *api.GreetingRequest, w EventWriter) error {
			l := logger
			if l == nil {
				l = slog.Default()
			}
			start := time.Now()
			cw := &countingWriter{EventWriter: w}

			err := next.StreamGreeting(ctx, req, cw)

			attrs := []slog.Attr{
				slog.String("request_id", RequestIDFromContext(ctx)),
				slog.String("stream_id", req.ID),
				slog.Uint64("delay_ms", req.Delay),
				slog.Int("events", cw.n),
				slog.Duration("duration", time.Since(start)),
			}
			if cause := context.Cause(ctx); cause != nil {
				attrs = append(attrs, slog.Bool("cancelled", true), slog.String("cause", cause.Error()))
			}
			if cw.writeErr != nil {
				attrs = append(attrs, slog.String("write_error", cw.writeErr.Error()))
			}

			switch {
			case err != nil:
				attrs = append(attrs, slog.String("error", err.Error()))
				l.LogAttrs(ctx, slog.LevelError, "stream failed", attrs...)
			case ctx.Err() != nil, cw.writeErr != nil:
				l.LogAttrs(ctx, slog.LevelInfo, "stream stopped", attrs...)
			default:
				l.LogAttrs(ctx, slog.LevelInfo, "stream completed", attrs...)
			}
			return err
		})
	}
}

// countingWriter counts events that reached the underlying writer and
// keeps the first write failure. The streamer stops at that failure.
type countingWriter struct {
	EventWriter
	n        int
	writeErr error
}

func (c *countingWriter) WriteEvent(ctx context.Context, event api.StreamEvent) error {
	if err := c.EventWriter.WriteEvent(ctx, event); err != nil {
		if c.writeErr == nil {
			c.writeErr = err
		}
		return err
	}
	c.n++
	return nil
}
