package transport

import (
	"context"

	"github.com/rhuss/greetings/pkg/api"
)

// GreetingStreamer drives a single greeting stream. The implementation
// receives a decoded request and writes every emission to the EventWriter.
// It returns once the stream has terminated.
type GreetingStreamer interface {
	StreamGreeting(ctx context.Context, req *api.GreetingRequest, w EventWriter) error
}

// GreetingStreamerFunc is an adapter that allows using an ordinary function
// as a GreetingStreamer.
type GreetingStreamerFunc func(ctx context.Context, req *api.GreetingRequest, w EventWriter) error

// StreamGreeting calls f(ctx, req, w).
func (f GreetingStreamerFunc) StreamGreeting(ctx context.Context, req *api.GreetingRequest, w EventWriter) error {
	return f(ctx, req, w)
}

// EventWriter abstracts the outbound server-push stream. Events are
// delivered in the order WriteEvent is called. A write error means the
// client is gone.
type EventWriter interface {
	// WriteEvent sends and flushes a single event.
	WriteEvent(ctx context.Context, event api.StreamEvent) error

	// Flush ensures buffered data is sent to the client.
	Flush() error
}

// ListOptions controls pagination and ordering for history listing.
type ListOptions struct {
	After string // Cursor: return records after this ID.
	Limit int    // Maximum number of records to return (default 20, max 100).
	Order string // Sort order: "asc" or "desc" (default "desc").
}

// GreetingList holds a paginated list of history records.
type GreetingList struct {
	Object  string                `json:"object"`
	Data    []*api.GreetingRecord `json:"data"`
	HasMore bool                  `json:"has_more"`
	FirstID string                `json:"first_id"`
	LastID  string                `json:"last_id"`
}

// HistoryStore persists records of finished greeting streams.
type HistoryStore interface {
	// SaveGreeting persists a finished stream's record.
	SaveGreeting(ctx context.Context, rec *api.GreetingRecord) error

	// GetGreeting retrieves a record by stream ID. Returns storage.ErrNotFound
	// if the record does not exist.
	GetGreeting(ctx context.Context, id string) (*api.GreetingRecord, error)

	// ListGreetings returns a paginated list of records, scoped by tenant
	// when one is present in the context.
	ListGreetings(ctx context.Context, opts ListOptions) (*GreetingList, error)

	// DeleteGreeting removes a record by stream ID.
	DeleteGreeting(ctx context.Context, id string) error

	// HealthCheck verifies the store is usable.
	HealthCheck(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// NormalizeListOptions applies defaults and bounds to opts.
func NormalizeListOptions(opts ListOptions) ListOptions {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	if opts.Limit > 100 {
		opts.Limit = 100
	}
	if opts.Order != "asc" {
		opts.Order = "desc"
	}
	return opts
}
