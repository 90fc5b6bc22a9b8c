package openai

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mandalnilabja/chatrelay/internal/provider"
	"github.com/mandalnilabja/chatrelay/internal/types"
)

func newTestRequest() *types.ChatCompletionRequest {
	return &types.ChatCompletionRequest{
		Model:       "gpt-4o",
		Messages:    json.RawMessage(`[{"role":"user","content":"hi"}]`),
		MaxTokens:   150,
		Temperature: 1.2,
	}
}

func TestClient_Complete_Success(t *testing.T) {
	var gotAuth, gotContentType, gotMethod string
	var gotBody map[string]json.RawMessage

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-1","model":"gpt-4o-2024-08-06","choices":[{"index":0,"message":{"role":"assistant","content":"  hi there \n"},"finish_reason":"stop"}],"usage":{"prompt_tokens":9,"completion_tokens":3,"total_tokens":12}}`))
	}))
	defer server.Close()

	client := New(Options{APIKey: "sk-test", BaseURL: server.URL})
	result, err := client.Complete(context.Background(), newTestRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotMethod != http.MethodPost {
		t.Errorf("expected POST, got %s", gotMethod)
	}
	if gotAuth != "Bearer sk-test" {
		t.Errorf("expected bearer credential, got %q", gotAuth)
	}
	if gotContentType != "application/json" {
		t.Errorf("expected JSON content type, got %q", gotContentType)
	}
	if string(gotBody["model"]) != `"gpt-4o"` {
		t.Errorf("unexpected model %s", gotBody["model"])
	}
	if string(gotBody["max_tokens"]) != "150" || string(gotBody["temperature"]) != "1.2" {
		t.Errorf("unexpected sampling params: max_tokens=%s temperature=%s", gotBody["max_tokens"], gotBody["temperature"])
	}
	if string(gotBody["messages"]) != `[{"role":"user","content":"hi"}]` {
		t.Errorf("messages not forwarded verbatim: %s", gotBody["messages"])
	}

	if result.Content != "hi there" {
		t.Errorf("expected trimmed content, got %q", result.Content)
	}
	if result.Model != "gpt-4o-2024-08-06" {
		t.Errorf("expected upstream model, got %q", result.Model)
	}
	if result.FinishReason != "stop" {
		t.Errorf("expected finish reason stop, got %q", result.FinishReason)
	}
	if result.Usage == nil || result.Usage.TotalTokens != 12 {
		t.Errorf("expected usage to be parsed, got %+v", result.Usage)
	}
}

func TestClient_Complete_NoAPIKey(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL})
	_, err := client.Complete(context.Background(), newTestRequest())
	if !errors.Is(err, provider.ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}
	if calls.Load() != 0 {
		t.Errorf("expected no upstream call, got %d", calls.Load())
	}
}

func TestClient_Complete_UpstreamError(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
	}{
		{
			name:        "unauthorized",
			status:      http.StatusUnauthorized,
			body:        `{"error":{"message":"Incorrect API key provided","type":"invalid_request_error","code":"invalid_api_key"}}`,
			wantMessage: "Incorrect API key provided",
		},
		{
			name:        "rate limited",
			status:      http.StatusTooManyRequests,
			body:        `{"error":{"message":"Rate limit reached","type":"requests"}}`,
			wantMessage: "Rate limit reached",
		},
		{
			name:   "non-object JSON body",
			status: http.StatusBadGateway,
			body:   `"upstream unavailable"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := New(Options{APIKey: "sk-test", BaseURL: server.URL})
			_, err := client.Complete(context.Background(), newTestRequest())

			var upErr *provider.UpstreamError
			if !errors.As(err, &upErr) {
				t.Fatalf("expected *UpstreamError, got %v", err)
			}
			if upErr.StatusCode != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, upErr.StatusCode)
			}
			if string(upErr.Body) != tt.body {
				t.Errorf("expected body %s, got %s", tt.body, upErr.Body)
			}
			if upErr.Message() != tt.wantMessage {
				t.Errorf("expected message %q, got %q", tt.wantMessage, upErr.Message())
			}
		})
	}
}

func TestClient_Complete_LocalFailures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantErrIs error
		wantText  string
	}{
		{
			name:     "non-JSON error body",
			status:   http.StatusServiceUnavailable,
			body:     "<html>Service Unavailable</html>",
			wantText: "failed to decode upstream error response",
		},
		{
			name:     "malformed success body",
			status:   http.StatusOK,
			body:     `{"choices":[`,
			wantText: "failed to decode upstream response",
		},
		{
			name:      "empty choices",
			status:    http.StatusOK,
			body:      `{"choices":[]}`,
			wantErrIs: provider.ErrNoChoices,
		},
		{
			name:      "null content",
			status:    http.StatusOK,
			body:      `{"choices":[{"message":{"role":"assistant","content":null},"finish_reason":"tool_calls"}]}`,
			wantErrIs: provider.ErrNoChoices,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := New(Options{APIKey: "sk-test", BaseURL: server.URL})
			_, err := client.Complete(context.Background(), newTestRequest())
			if err == nil {
				t.Fatal("expected error")
			}

			var upErr *provider.UpstreamError
			if errors.As(err, &upErr) {
				t.Fatalf("expected local failure, got upstream error %v", upErr)
			}
			if tt.wantErrIs != nil && !errors.Is(err, tt.wantErrIs) {
				t.Errorf("expected %v, got %v", tt.wantErrIs, err)
			}
			if tt.wantText != "" && !strings.Contains(err.Error(), tt.wantText) {
				t.Errorf("expected error containing %q, got %q", tt.wantText, err.Error())
			}
		})
	}
}

func TestClient_Complete_NetworkFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client := New(Options{APIKey: "sk-test", BaseURL: url})
	_, err := client.Complete(context.Background(), newTestRequest())
	if err == nil {
		t.Fatal("expected network error")
	}
}

func TestClient_Complete_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	client := New(Options{APIKey: "sk-test", BaseURL: server.URL, Timeout: 50 * time.Millisecond})

	start := time.Now()
	_, err := client.Complete(context.Background(), newTestRequest())
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if elapsed := time.Since(start); elapsed > 5*time.Second {
		t.Errorf("timeout not enforced, took %s", elapsed)
	}
}

func TestClient_Metadata(t *testing.T) {
	client := New(Options{APIKey: "sk-test", BaseURL: "https://example.test/v1/chat/completions"})
	if client.Name() != "openai" {
		t.Errorf("unexpected name %q", client.Name())
	}
	if !client.HasAPIKey() {
		t.Error("expected HasAPIKey to be true")
	}
	if New(Options{}).HasAPIKey() {
		t.Error("expected HasAPIKey to be false without a key")
	}

	var _ provider.Provider = client
}
