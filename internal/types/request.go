package types

import "encoding/json"

// Token caps applied when the client does not send maxTokens.
const (
	DefaultMaxTokens       = 150
	DefaultVisionMaxTokens = 300
)

// DefaultTemperature is used when the client does not send temperature.
const DefaultTemperature = 1.2

// RelayRequest is the body accepted on POST /api/openai.
// Optional numeric fields use pointers to distinguish between unset and zero values.
type RelayRequest struct {
	// Messages is forwarded to the upstream API without inspection.
	Messages    json.RawMessage `json:"messages,omitempty"`
	UseVision   bool            `json:"useVision,omitempty"`
	Temperature *float64        `json:"temperature,omitempty"`
	MaxTokens   *int            `json:"maxTokens,omitempty"`
}

// ResolveMaxTokens returns the explicit maxTokens, or the default for the
// vision/non-vision mode.
func (r *RelayRequest) ResolveMaxTokens() int {
	if r.MaxTokens != nil {
		return *r.MaxTokens
	}
	if r.UseVision {
		return DefaultVisionMaxTokens
	}
	return DefaultMaxTokens
}

// ResolveTemperature returns the explicit temperature or DefaultTemperature.
func (r *RelayRequest) ResolveTemperature() float64 {
	if r.Temperature != nil {
		return *r.Temperature
	}
	return DefaultTemperature
}

// ChatCompletionRequest is the upstream chat-completions request body.
type ChatCompletionRequest struct {
	Model       string          `json:"model"`
	Messages    json.RawMessage `json:"messages,omitempty"`
	MaxTokens   int             `json:"max_tokens"`
	Temperature float64         `json:"temperature"`
}

// NewChatCompletionRequest shapes a relay request into an upstream request for model.
func NewChatCompletionRequest(model string, req *RelayRequest) *ChatCompletionRequest {
	return &ChatCompletionRequest{
		Model:       model,
		Messages:    req.Messages,
		MaxTokens:   req.ResolveMaxTokens(),
		Temperature: req.ResolveTemperature(),
	}
}

// DecodeMessages parses the raw messages for token estimation.
// Returns nil when messages are absent or not an array of message objects.
func (r *ChatCompletionRequest) DecodeMessages() []Message {
	if len(r.Messages) == 0 {
		return nil
	}
	var msgs []Message
	if err := json.Unmarshal(r.Messages, &msgs); err != nil {
		return nil
	}
	return msgs
}
