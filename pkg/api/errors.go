package api

import "fmt"

// ErrorType represents the category of an API error.
type ErrorType string

const (
	ErrorTypeServerError     ErrorType = "server_error"
	ErrorTypeInvalidRequest  ErrorType = "invalid_request"
	ErrorTypeNotFound        ErrorType = "not_found"
	ErrorTypeTooManyRequests ErrorType = "too_many_requests"
)

// Error codes that refine an error type. Transport maps some of them to a
// more specific HTTP status than the type alone would give.
const (
	CodeUnauthenticated      = "unauthenticated"
	CodeBodyTooLarge         = "body_too_large"
	CodeUnsupportedMediaType = "unsupported_media_type"
	CodeHistoryDisabled      = "history_disabled"
	CodeMalformedID          = "malformed_id"
)

// APIError represents a structured API error with type, code, param, and message.
type APIError struct {
	Type    ErrorType `json:"type"`
	Code    string    `json:"code,omitempty"`
	Param   string    `json:"param,omitempty"`
	Message string    `json:"message"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s: %s (param: %s)", e.Type, e.Message, e.Param)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// ErrorResponse wraps an APIError for JSON serialization as the top-level error response.
type ErrorResponse struct {
	Error *APIError `json:"error"`
}

// NewInvalidRequestError creates an APIError for invalid request parameters.
func NewInvalidRequestError(param, message string) *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Param:   param,
		Message: message,
	}
}

// WithCode returns e with its Code set.
func (e *APIError) WithCode(code string) *APIError {
	e.Code = code
	return e
}

// NewNotFoundError creates an APIError for resources that cannot be found.
func NewNotFoundError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeNotFound,
		Message: message,
	}
}

// NewServerError creates an APIError for internal server errors.
func NewServerError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeServerError,
		Message: message,
	}
}

// NewTooManyRequestsError creates an APIError for rate limiting.
func NewTooManyRequestsError(message string) *APIError {
	return &APIError{
		Type:    ErrorTypeTooManyRequests,
		Message: message,
	}
}

// DecodeErrorKind classifies why a set of fields could not be decoded.
type DecodeErrorKind string

const (
	// MissingField means a required text field is absent or blank.
	MissingField DecodeErrorKind = "missing_field"

	// InvalidField means a field is absent or malformed where a typed
	// value is required.
	InvalidField DecodeErrorKind = "invalid_field"

	// InvalidEnum means a field holds a value outside its enumeration.
	InvalidEnum DecodeErrorKind = "invalid_enum"
)

// DecodeError reports a rejected greeting request. It is returned before
// any emission takes place.
type DecodeError struct {
	Kind  DecodeErrorKind
	Field string
	Value string
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("missing required field %q", e.Field)
	case InvalidEnum:
		return fmt.Sprintf("field %q: %q is not one of the allowed values", e.Field, e.Value)
	default:
		if e.Value == "" {
			return fmt.Sprintf("field %q is missing or malformed", e.Field)
		}
		return fmt.Sprintf("field %q: invalid value %q", e.Field, e.Value)
	}
}

// APIError converts the decode failure to the transport error envelope.
func (e *DecodeError) APIError() *APIError {
	return &APIError{
		Type:    ErrorTypeInvalidRequest,
		Code:    string(e.Kind),
		Param:   e.Field,
		Message: e.Error(),
	}
}
