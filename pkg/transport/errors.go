package transport

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/rhuss/greetings/pkg/api"
)

// codeStatus lists error codes whose HTTP status differs from the one
// implied by their error type.
var codeStatus = map[string]int{
	api.CodeUnauthenticated:      http.StatusUnauthorized,
	api.CodeBodyTooLarge:         http.StatusRequestEntityTooLarge,
	api.CodeUnsupportedMediaType: http.StatusUnsupportedMediaType,
	api.CodeHistoryDisabled:      http.StatusNotImplemented,
}

// HTTPStatusFromError returns the HTTP status for an APIError. The error
// code takes precedence over the error type.
func HTTPStatusFromError(err *api.APIError) int {
	if status, ok := codeStatus[err.Code]; ok {
		return status
	}
	switch err.Type {
	case api.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case api.ErrorTypeNotFound:
		return http.StatusNotFound
	case api.ErrorTypeTooManyRequests:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// WriteAPIError writes apiErr as a JSON ErrorResponse with the status
// derived from HTTPStatusFromError.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(HTTPStatusFromError(apiErr))
	if err := json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr}); err != nil {
		slog.Debug("failed to write error response", "code", apiErr.Code, "error", err)
	}
}
