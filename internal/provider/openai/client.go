// Package openai implements the OpenAI chat-completions upstream.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mandalnilabja/chatrelay/internal/provider"
	"github.com/mandalnilabja/chatrelay/internal/types"
)

// maxResponseBytes caps how much of an upstream body is read.
const maxResponseBytes = 16 << 20

// Options configures a Client.
type Options struct {
	APIKey  string
	BaseURL string

	// Timeout bounds the whole upstream call. Zero means no timeout.
	Timeout time.Duration

	// HTTPClient overrides the default client (tests).
	HTTPClient *http.Client
}

// Client implements provider.Provider for the OpenAI chat-completions API.
// The API key is held by the client and injected on every request.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// New creates a new OpenAI client.
func New(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: http.DefaultTransport.(*http.Transport).Clone(),
			Timeout:   opts.Timeout,
		}
	}
	return &Client{
		apiKey:     opts.APIKey,
		baseURL:    opts.BaseURL,
		httpClient: httpClient,
	}
}

// Name returns the provider identifier
func (c *Client) Name() string {
	return "openai"
}

// HasAPIKey reports whether the client holds a credential.
func (c *Client) HasAPIKey() bool {
	return c.apiKey != ""
}

// prepareRequest sets the JSON content type and the bearer credential.
func (c *Client) prepareRequest(req *http.Request) error {
	if c.apiKey == "" {
		return provider.ErrNoAPIKey
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	return nil
}

// Complete performs exactly one POST to the upstream endpoint. There are no retries.
func (c *Client) Complete(ctx context.Context, req *types.ChatCompletionRequest) (*provider.Result, error) {
	if c.apiKey == "" {
		return nil, provider.ErrNoAPIKey
	}

	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode upstream request: %w", err)
	}

	upstreamReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream request: %w", err)
	}
	if err := c.prepareRequest(upstreamReq); err != nil {
		return nil, err
	}

	startTime := time.Now()
	resp, err := c.httpClient.Do(upstreamReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}
	duration := time.Since(startTime)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, handleErrorResponse(resp.StatusCode, body)
	}
	return handleJSONResponse(body, req.Model, duration)
}

// handleErrorResponse surfaces the upstream error body. A body that is not
// JSON cannot be relayed as details and becomes a local failure.
func handleErrorResponse(statusCode int, body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if !json.Valid(trimmed) {
		return fmt.Errorf("failed to decode upstream error response (status %d): %q", statusCode, truncate(string(body), 200))
	}
	return &provider.UpstreamError{StatusCode: statusCode, Body: json.RawMessage(trimmed)}
}

// handleJSONResponse extracts the first choice from a 2xx body.
func handleJSONResponse(body []byte, model string, duration time.Duration) (*provider.Result, error) {
	var completion types.ChatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return nil, fmt.Errorf("failed to decode upstream response: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, provider.ErrNoChoices
	}

	first := completion.Choices[0]
	text, ok := first.Message.Text()
	if !ok {
		return nil, fmt.Errorf("%w (finish_reason %q)", provider.ErrNoChoices, first.FinishReason)
	}

	result := &provider.Result{
		Content:      strings.TrimSpace(text),
		Model:        model,
		FinishReason: first.FinishReason,
		Usage:        completion.Usage,
		Duration:     duration,
	}
	if completion.Model != "" {
		result.Model = completion.Model
	}
	return result, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
