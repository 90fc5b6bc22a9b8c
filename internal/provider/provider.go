// Package provider defines the upstream chat-completion contract used by the relay.
package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mandalnilabja/chatrelay/internal/types"
)

// ErrNoAPIKey is returned when no upstream credential is configured.
// No network call is made in that case.
var ErrNoAPIKey = errors.New("no API key configured")

// ErrNoChoices is returned when a successful upstream response carries no
// usable text in its first choice.
var ErrNoChoices = errors.New("upstream response has no message content")

// Provider performs a single chat-completion call against an upstream API.
type Provider interface {
	// Name returns the provider identifier
	Name() string

	// HasAPIKey reports whether a credential is configured
	HasAPIKey() bool

	// Complete sends req upstream once and returns the first choice.
	// Non-2xx responses are returned as *UpstreamError.
	Complete(ctx context.Context, req *types.ChatCompletionRequest) (*Result, error)
}

// Result contains the outcome of a successful upstream call.
type Result struct {
	// Content is the first choice's message text with surrounding whitespace trimmed
	Content string

	// Model reported by upstream (falls back to the requested model)
	Model string

	FinishReason string
	Usage        *types.Usage

	// Duration of the upstream round trip
	Duration time.Duration
}

// UpstreamError is a non-2xx upstream response whose body was valid JSON.
type UpstreamError struct {
	StatusCode int
	Body       json.RawMessage
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d: %s", e.StatusCode, e.Body)
}

// Message extracts the OpenAI-style error.message from the body, if any.
func (e *UpstreamError) Message() string {
	var body struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(e.Body, &body); err != nil {
		return ""
	}
	return body.Error.Message
}
