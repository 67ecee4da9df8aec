// Package transport defines the handler interfaces and middleware chain for
// the greetings HTTP/SSE transport layer.
//
// The transport layer decodes incoming greeting requests into the types
// defined in pkg/api, dispatches them to a GreetingStreamer, and serializes
// the resulting signal patches back to the client as server-sent events.
//
// # Handler Interfaces
//
//   - GreetingStreamer drives one greeting stream for one decoded request.
//   - HistoryStore persists and retrieves records of finished streams. It is
//     optional; deployments without history pass nil.
//
// The EventWriter interface abstracts the outbound event stream so the
// streamer never sees the wire encoding.
//
// # Middleware
//
// The middleware chain wraps GreetingStreamer with cross-cutting concerns.
// Built-in middleware provides panic recovery, request ID assignment
// (X-Request-ID), and structured logging via log/slog.
package transport
