package types

import (
	"encoding/json"
	"net/http"
)

// Client-facing error messages.
const (
	ErrMsgNoAPIKey       = "OpenAI API key not configured on server"
	ErrMsgUpstreamFailed = "OpenAI API request failed"
	ErrMsgInternal       = "Internal server error"
	ErrMsgInvalidBody    = "Invalid JSON body"
	ErrMsgBodyTooLarge   = "Request body too large"
)

// ErrorResponse is the relay's error body.
// Details carries the upstream error value verbatim; Message carries local error text.
type ErrorResponse struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
	Message string          `json:"message,omitempty"`
}

// NewErrorResponse creates an error body with only the error field set.
func NewErrorResponse(message string) *ErrorResponse {
	return &ErrorResponse{Error: message}
}

// NewUpstreamErrorResponse wraps an upstream error body.
func NewUpstreamErrorResponse(details json.RawMessage) *ErrorResponse {
	return &ErrorResponse{Error: ErrMsgUpstreamFailed, Details: details}
}

// NewInternalErrorResponse reports a local failure with its error text.
func NewInternalErrorResponse(err error) *ErrorResponse {
	return &ErrorResponse{Error: ErrMsgInternal, Message: err.Error()}
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError writes an error body with the given status code.
func WriteError(w http.ResponseWriter, statusCode int, err *ErrorResponse) {
	WriteJSON(w, statusCode, err)
}
