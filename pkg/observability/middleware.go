package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// Route labels. Paths are collapsed to a small fixed set so greeting IDs
// never become label values.
const (
	RoutePage    = "page"
	RouteStream  = "stream"
	RouteHistory = "history"
	RouteCancel  = "cancel"
	RouteHealth  = "health"
	RouteMetrics = "metrics"
	RouteOther   = "other"
)

// Route classifies a request into one of the Route* labels.
func Route(r *http.Request) string {
	p := r.URL.Path
	switch {
	case p == "/":
		return RoutePage
	case p == "/healthz" || p == "/readyz":
		return RouteHealth
	case p == "/metrics":
		return RouteMetrics
	case p == "/greetings":
		return RouteStream
	case p == "/greetings/history" || strings.HasPrefix(p, "/greetings/history/"):
		return RouteHistory
	case strings.HasPrefix(p, "/greetings/") && r.Method == http.MethodDelete:
		return RouteCancel
	}
	return RouteOther
}

// MetricsMiddleware records greetings_requests_total and
// greetings_request_duration_seconds for every request. While a response
// carrying Content-Type text/event-stream is open it also holds
// greetings_streaming_connections_active up by one.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := Route(r)

		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			if sw.streaming {
				StreamingConnections.Dec()
			}
		}()
		next.ServeHTTP(sw, r)

		class := strconv.Itoa(sw.status/100) + "xx"
		RequestsTotal.WithLabelValues(r.Method, route, class).Inc()
		RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// statusWriter captures the response status and notices when the
// response turns into an event stream.
type statusWriter struct {
	http.ResponseWriter
	status    int
	started   bool
	streaming bool
}

// start runs once, when headers are about to go out.
func (w *statusWriter) start(status int) {
	if w.started {
		return
	}
	w.started = true
	w.status = status
	if strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream") {
		w.streaming = true
		StreamingConnections.Inc()
	}
}

func (w *statusWriter) WriteHeader(status int) {
	w.start(status)
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	w.start(http.StatusOK)
	return w.ResponseWriter.Write(b)
}

// Flush commits the headers like net/http does for a flush before any
// write.
func (w *statusWriter) Flush() {
	w.start(http.StatusOK)
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the wrapped writer.
func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
