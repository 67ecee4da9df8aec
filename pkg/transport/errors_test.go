package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rhuss/greetings/pkg/api"
)

func TestHTTPStatusFromError(t *testing.T) {
	tests := []struct {
		name string
		err  *api.APIError
		want int
	}{
		{"invalid request", api.NewInvalidRequestError("delay", "bad"), http.StatusBadRequest},
		{"decode error", (&api.DecodeError{Kind: api.InvalidEnum, Field: "title"}).APIError(), http.StatusBadRequest},
		{"not found", api.NewNotFoundError("gone"), http.StatusNotFound},
		{"rate limited", api.NewTooManyRequestsError("slow down"), http.StatusTooManyRequests},
		{"server error", api.NewServerError("boom"), http.StatusInternalServerError},
		{"unknown type", &api.APIError{Type: "mystery"}, http.StatusInternalServerError},
		{"unauthenticated code", api.NewInvalidRequestError("", "who").WithCode(api.CodeUnauthenticated), http.StatusUnauthorized},
		{"body too large code", api.NewInvalidRequestError("body", "big").WithCode(api.CodeBodyTooLarge), http.StatusRequestEntityTooLarge},
		{"media type code", api.NewInvalidRequestError("content_type", "xml").WithCode(api.CodeUnsupportedMediaType), http.StatusUnsupportedMediaType},
		{"history disabled code", api.NewInvalidRequestError("", "off").WithCode(api.CodeHistoryDisabled), http.StatusNotImplemented},
		{"malformed id keeps type status", api.NewInvalidRequestError("id", "bad").WithCode(api.CodeMalformedID), http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatusFromError(tt.err); got != tt.want {
				t.Errorf("HTTPStatusFromError(%s/%s) = %d, want %d", tt.err.Type, tt.err.Code, got, tt.want)
			}
		})
	}
}

func TestWriteAPIError(t *testing.T) {
	apiErr := (&api.DecodeError{Kind: api.MissingField, Field: "first_name"}).APIError()
	rec := httptest.NewRecorder()

	WriteAPIError(rec, apiErr)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if got := rec.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}

	var resp api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Type != api.ErrorTypeInvalidRequest || resp.Error.Code != "missing_field" || resp.Error.Param != "first_name" {
		t.Errorf("error = %+v", resp.Error)
	}
}

func TestWriteAPIErrorCarriesCode(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteAPIError(rec, api.NewInvalidRequestError("", "authentication required").WithCode(api.CodeUnauthenticated))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	var resp api.ErrorResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Error.Code != api.CodeUnauthenticated {
		t.Errorf("code = %q, want %q", resp.Error.Code, api.CodeUnauthenticated)
	}
}

// brokenWriter is a ResponseWriter whose connection is gone.
type brokenWriter struct {
	*httptest.ResponseRecorder
}

func (w *brokenWriter) Write([]byte) (int, error) {
	return 0, errors.New("connection reset by peer")
}

func TestWriteAPIErrorLogsWriteFailure(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	defer slog.SetDefault(prev)

	w := &brokenWriter{ResponseRecorder: httptest.NewRecorder()}
	WriteAPIError(w, api.NewNotFoundError("greeting grt_x not found"))

	out := buf.String()
	if !strings.Contains(out, "failed to write error response") || !strings.Contains(out, "connection reset by peer") {
		t.Errorf("log = %q", out)
	}
}
