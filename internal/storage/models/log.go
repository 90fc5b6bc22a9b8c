// Package models holds the records persisted by the storage layer.
package models

import "time"

// RequestLog is the audit record of one relay call. It holds metadata
// only; message content is never stored.
type RequestLog struct {
	ID               string    `json:"id"`
	RequestID        string    `json:"request_id"`
	Model            string    `json:"model"`
	Provider         string    `json:"provider"`
	Outcome          string    `json:"outcome"`
	StatusCode       int       `json:"status_code"`
	UseVision        bool      `json:"use_vision"`
	MaxTokens        int       `json:"max_tokens"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	TotalTokens      int       `json:"total_tokens"`
	ErrorMessage     string    `json:"error_message,omitempty"`
	DurationMs       int64     `json:"duration_ms"`
	CreatedAt        time.Time `json:"created_at"`
}
