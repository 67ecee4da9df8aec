package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/rhuss/greetings/pkg/api"
	"github.com/rhuss/greetings/pkg/debug"
	"github.com/rhuss/greetings/pkg/observability"
	"github.com/rhuss/greetings/pkg/storage"
	"github.com/rhuss/greetings/pkg/transport"
)

// HeaderGreetingID carries the stream ID of a greeting stream. Clients use
// it with DELETE /greetings/{id} to cancel the stream.
const HeaderGreetingID = "X-Greeting-ID"

// datastarParam is the query parameter datastar uses for signals on GET.
const datastarParam = "datastar"

// Adapter serves the greeting page and the greeting stream over HTTP.
// It decodes requests, dispatches them to the GreetingStreamer and
// serves the optional history endpoints.
type Adapter struct {
	streamer transport.GreetingStreamer
	store    transport.HistoryStore // nil if history is disabled
	inflight *transport.InFlightRegistry
	mux      *http.ServeMux
	config   Config
}

// Config holds configuration for the HTTP adapter.
type Config struct {
	// MaxBodySize bounds POST bodies in bytes.
	MaxBodySize int64

	// MaxDelay is the largest accepted per-step delay. Zero means unlimited.
	MaxDelay time.Duration
}

// DefaultConfig returns the default adapter configuration.
func DefaultConfig() Config {
	return Config{
		MaxBodySize: 1 << 20, // 1 MiB
		MaxDelay:    10 * time.Second,
	}
}

// NewAdapter creates an HTTP adapter for the given streamer. The store is
// optional; when nil, the history endpoints respond 501.
// Middleware is applied to the streamer in the given order.
func NewAdapter(streamer transport.GreetingStreamer, store transport.HistoryStore, cfg Config, middlewares ...transport.Middleware) *Adapter {
	if len(middlewares) > 0 {
		streamer = transport.Chain(middlewares...)(streamer)
	}

	a := &Adapter{
		streamer: streamer,
		store:    store,
		inflight: transport.NewInFlightRegistry(),
		mux:      http.NewServeMux(),
		config:   cfg,
	}

	a.mux.HandleFunc("GET /{$}", a.handlePage)
	a.mux.HandleFunc("GET /greetings", a.handleStreamQuery)
	a.mux.HandleFunc("POST /greetings", a.handleStreamBody)
	a.mux.HandleFunc("DELETE /greetings/{id}", a.handleDelete)
	a.mux.HandleFunc("GET /greetings/history", a.handleListHistory)
	a.mux.HandleFunc("GET /greetings/history/{id}", a.handleGetHistory)

	return a
}

// Handler returns the http.Handler for this adapter. Use this to integrate
// with an http.Server or test with httptest. The returned handler includes
// HTTP-level middleware for request ID propagation.
func (a *Adapter) Handler() http.Handler {
	return httpRequestIDMiddleware(a.mux)
}

// InFlight returns the number of streams currently emitting.
func (a *Adapter) InFlight() int {
	return a.inflight.Len()
}

// CancelStreams stops every in-flight stream with cause and returns how
// many were stopped.
func (a *Adapter) CancelStreams(cause error) int {
	return a.inflight.CancelAll(cause)
}

// WaitStreams blocks until every stream handler has returned, history
// writes included, or ctx is done.
func (a *Adapter) WaitStreams(ctx context.Context) error {
	return a.inflight.Wait(ctx)
}

// httpRequestIDMiddleware is HTTP-level middleware that propagates the
// X-Request-ID header. If present in the request, it is forwarded into the
// context. Before the first write, the request ID from the context (set
// here or by the transport-level RequestID middleware) is added to the
// response headers.
func httpRequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Request-ID"); id != "" {
			r = r.WithContext(transport.ContextWithRequestID(r.Context(), id))
		}
		rw := &requestIDResponseWriter{ResponseWriter: w, r: r}
		next.ServeHTTP(rw, r)
	})
}

// requestIDResponseWriter wraps http.ResponseWriter to inject the
// X-Request-ID header before the first write.
type requestIDResponseWriter struct {
	http.ResponseWriter
	r           *http.Request
	headersSent bool
}

func (w *requestIDResponseWriter) WriteHeader(statusCode int) {
	w.ensureRequestIDHeader()
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *requestIDResponseWriter) Write(b []byte) (int, error) {
	w.ensureRequestIDHeader()
	return w.ResponseWriter.Write(b)
}

func (w *requestIDResponseWriter) Flush() {
	w.ensureRequestIDHeader()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap returns the underlying ResponseWriter for http.NewResponseController.
func (w *requestIDResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *requestIDResponseWriter) ensureRequestIDHeader() {
	if w.headersSent {
		return
	}
	w.headersSent = true
	if id := transport.RequestIDFromContext(w.r.Context()); id != "" {
		w.ResponseWriter.Header().Set("X-Request-ID", id)
	}
}

// handleStreamQuery handles GET /greetings. Fields come from the datastar
// query parameter when present, otherwise from plain query parameters.
func (a *Adapter) handleStreamQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var fields api.Fields
	if q.Has(datastarParam) {
		raw := q.Get(datastarParam)
		debug.Log("transport", "datastar signals", "signals", debug.Truncate(raw, 256))

		var err error
		fields, err = api.FieldsFromJSON([]byte(raw))
		if err != nil {
			a.writeFieldsError(w, datastarParam, err)
			return
		}
	} else {
		fields = api.FieldsFromValues(q)
	}

	a.stream(w, r, fields)
}

// handleStreamBody handles POST /greetings with a JSON signals body or a
// form body.
func (a *Adapter) handleStreamBody(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, a.config.MaxBodySize)

	mediaType := "application/json"
	if ct := r.Header.Get("Content-Type"); ct != "" {
		mt, _, err := mime.ParseMediaType(ct)
		if err != nil {
			transport.WriteAPIError(w,
				api.NewInvalidRequestError("content_type", "malformed Content-Type").WithCode(api.CodeUnsupportedMediaType))
			return
		}
		mediaType = mt
	}

	var fields api.Fields
	switch mediaType {
	case "application/json":
		body, err := io.ReadAll(r.Body)
		if err != nil {
			a.writeBodyError(w, err)
			return
		}
		fields, err = api.FieldsFromJSON(body)
		if err != nil {
			a.writeFieldsError(w, "body", err)
			return
		}
	case "application/x-www-form-urlencoded", "multipart/form-data":
		if err := r.ParseMultipartForm(a.config.MaxBodySize); err != nil && !errors.Is(err, http.ErrNotMultipart) {
			a.writeBodyError(w, err)
			return
		}
		fields = api.FieldsFromValues(r.PostForm)
	default:
		transport.WriteAPIError(w,
			api.NewInvalidRequestError("content_type", "Content-Type must be application/json or a form encoding").WithCode(api.CodeUnsupportedMediaType))
		return
	}

	a.stream(w, r, fields)
}

// stream decodes fields and runs the greeting stream. Invalid input is
// rejected before any event is written.
func (a *Adapter) stream(w http.ResponseWriter, r *http.Request, fields api.Fields) {
	req, err := api.DecodeWithLimit(fields, a.config.MaxDelay)
	if err != nil {
		var decErr *api.DecodeError
		if errors.As(err, &decErr) {
			observability.DecodeErrorsTotal.WithLabelValues(string(decErr.Kind)).Inc()
			debug.Log("transport", "rejected greeting request", "kind", decErr.Kind, "field", decErr.Field)
			transport.WriteAPIError(w, decErr.APIError())
			return
		}
		transport.WriteAPIError(w, api.NewInvalidRequestError("", err.Error()))
		return
	}
	req.ID = api.NewStreamID()

	ctx, release := a.inflight.Track(r.Context(), req.ID)
	defer release()

	w.Header().Set(HeaderGreetingID, req.ID)

	ew := newSSEEventWriter(w)
	defer ew.close()

	if err := a.streamer.StreamGreeting(ctx, req, ew); err != nil {
		a.writeHandlerError(w, ew, err)
	}
}

// handleDelete handles DELETE /greetings/{id}. It first checks the
// in-flight registry (for cancelling active streams), then falls through
// to the history store.
func (a *Adapter) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}

	age, _ := a.inflight.Age(id)
	if a.inflight.Cancel(id) {
		debug.Log("transport", "cancelled in-flight stream", "stream_id", id, "age", age)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if a.store == nil {
		transport.WriteAPIError(w, api.NewNotFoundError("greeting "+id+" not found"))
		return
	}

	if err := a.store.DeleteGreeting(r.Context(), id); err != nil {
		writeStoreError(w, id, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleGetHistory handles GET /greetings/history/{id}.
func (a *Adapter) handleGetHistory(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}
	id, ok := a.pathID(w, r)
	if !ok {
		return
	}

	rec, err := a.store.GetGreeting(r.Context(), id)
	if err != nil {
		writeStoreError(w, id, err)
		return
	}

	writeJSON(w, rec)
}

// handleListHistory handles GET /greetings/history.
func (a *Adapter) handleListHistory(w http.ResponseWriter, r *http.Request) {
	if !a.requireStore(w) {
		return
	}

	opts, apiErr := parseListOptions(r)
	if apiErr != nil {
		transport.WriteAPIError(w, apiErr)
		return
	}

	result, err := a.store.ListGreetings(r.Context(), opts)
	if err != nil {
		writeStoreError(w, "", err)
		return
	}

	writeJSON(w, result)
}

func (a *Adapter) requireStore(w http.ResponseWriter) bool {
	if a.store != nil {
		return true
	}
	transport.WriteAPIError(w,
		api.NewInvalidRequestError("", "greeting history is not available (no store configured)").WithCode(api.CodeHistoryDisabled))
	return false
}

func (a *Adapter) pathID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.PathValue("id")
	if !api.ValidateStreamID(id) {
		transport.WriteAPIError(w, api.NewInvalidRequestError("id", "malformed greeting ID").WithCode(api.CodeMalformedID))
		return "", false
	}
	return id, true
}

// parseListOptions extracts pagination parameters from the query string.
func parseListOptions(r *http.Request) (transport.ListOptions, *api.APIError) {
	q := r.URL.Query()
	opts := transport.ListOptions{
		After: q.Get("after"),
		Order: q.Get("order"),
	}

	if opts.Order != "" && opts.Order != "asc" && opts.Order != "desc" {
		return opts, api.NewInvalidRequestError("order", "order must be 'asc' or 'desc'")
	}

	if limitStr := q.Get("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return opts, api.NewInvalidRequestError("limit", "limit must be a positive integer")
		}
		opts.Limit = limit
	}

	return transport.NormalizeListOptions(opts), nil
}

// writeFieldsError reports signals that could not be turned into Fields.
func (a *Adapter) writeFieldsError(w http.ResponseWriter, param string, err error) {
	var decErr *api.DecodeError
	if errors.As(err, &decErr) {
		observability.DecodeErrorsTotal.WithLabelValues(string(decErr.Kind)).Inc()
		transport.WriteAPIError(w, decErr.APIError())
		return
	}
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		a.writeBodyError(w, err)
		return
	}
	transport.WriteAPIError(w, api.NewInvalidRequestError(param, err.Error()))
}

func (a *Adapter) writeBodyError(w http.ResponseWriter, err error) {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		transport.WriteAPIError(w,
			api.NewInvalidRequestError("body", fmt.Sprintf("request body too large (max %d bytes)", a.config.MaxBodySize)).WithCode(api.CodeBodyTooLarge))
		return
	}
	transport.WriteAPIError(w, api.NewInvalidRequestError("body", "unreadable request body: "+err.Error()))
}

// writeHandlerError writes an error returned by the streamer. If the
// stream has already started, headers are gone and the error is only
// logged; otherwise a JSON error response is written.
func (a *Adapter) writeHandlerError(w http.ResponseWriter, ew *sseEventWriter, err error) {
	var apiErr *api.APIError
	if !errors.As(err, &apiErr) {
		apiErr = api.NewServerError(err.Error())
	}

	if ew.hasStartedStreaming() {
		slog.Error("greeting stream aborted", "error", apiErr.Message)
		return
	}

	w.Header().Del(HeaderGreetingID)
	transport.WriteAPIError(w, apiErr)
}

func writeStoreError(w http.ResponseWriter, id string, err error) {
	if errors.Is(err, storage.ErrNotFound) {
		transport.WriteAPIError(w, api.NewNotFoundError("greeting "+id+" not found"))
		return
	}
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		transport.WriteAPIError(w, apiErr)
		return
	}
	transport.WriteAPIError(w, api.NewServerError(err.Error()))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("failed to write JSON response", "error", err)
	}
}
