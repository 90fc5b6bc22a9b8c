package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/mandalnilabja/chatrelay/internal/metrics"
	"github.com/mandalnilabja/chatrelay/internal/provider"
	"github.com/mandalnilabja/chatrelay/internal/storage"
	"github.com/mandalnilabja/chatrelay/internal/transport/http/middleware"
	"github.com/mandalnilabja/chatrelay/internal/types"
)

// auditTimeout bounds one audit-log write after the response is sent.
const auditTimeout = 5 * time.Second

// tokenCountTimeout is the maximum time to wait for token counting after
// the upstream call has returned.
const tokenCountTimeout = 100 * time.Millisecond

// relayCall collects what is known about one relay request for logging,
// metrics and the audit log.
type relayCall struct {
	requestID    string
	startTime    time.Time
	outcome      string
	statusCode   int
	useVision    bool
	maxTokens    int
	promptTokens int
	result       *provider.Result
	err          error
}

// Relay handles POST /api/openai: it shapes the client body into an upstream
// chat-completion request, injects the server credential and relays the
// first choice's content back.
func (h *Repo) Relay(w http.ResponseWriter, r *http.Request) {
	call := &relayCall{
		requestID:  middleware.GetRequestID(r.Context()),
		startTime:  time.Now(),
		outcome:    metrics.OutcomeInternalError,
		statusCode: http.StatusInternalServerError,
	}
	defer h.finish(call)

	// The body is not inspected without a credential.
	if !h.Provider.HasAPIKey() {
		call.outcome = metrics.OutcomeNoCredential
		call.statusCode = http.StatusInternalServerError
		call.err = provider.ErrNoAPIKey
		h.Logger.Error("OpenAI API key not configured",
			"request_id", call.requestID,
			"provider", h.Provider.Name(),
		)
		types.WriteError(w, http.StatusInternalServerError, types.NewErrorResponse(types.ErrMsgNoAPIKey))
		return
	}

	req, err := decodeRelayRequest(r.Body)
	if err != nil {
		h.writeDecodeError(w, call, err)
		return
	}
	call.useVision = req.UseVision

	upstreamReq := types.NewChatCompletionRequest(h.Model, req)
	call.maxTokens = upstreamReq.MaxTokens
	// Token counting may load an encoding, so it runs beside the upstream call.
	tokensCh := h.countPromptTokens(upstreamReq, call.requestID)

	upstreamStart := time.Now()
	result, err := h.Provider.Complete(r.Context(), upstreamReq)
	call.promptTokens = awaitTokens(tokensCh)
	if err != nil {
		h.writeUpstreamError(w, call, err, time.Since(upstreamStart))
		return
	}

	call.result = result
	call.outcome = metrics.OutcomeSuccess
	call.statusCode = http.StatusOK
	h.Metrics.RecordUpstream(h.Model, http.StatusOK, result.Duration)
	types.WriteJSON(w, http.StatusOK, types.RelayResponse{Content: result.Content})
}

// decodeRelayRequest parses the client body. An empty body is treated as an
// empty object.
func decodeRelayRequest(body io.Reader) (*types.RelayRequest, error) {
	var req types.RelayRequest
	if err := json.NewDecoder(body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return &req, nil
}

func (h *Repo) writeDecodeError(w http.ResponseWriter, call *relayCall, err error) {
	call.outcome = metrics.OutcomeBadRequest
	call.err = err

	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		call.statusCode = http.StatusRequestEntityTooLarge
		h.Logger.Warn("request body too large",
			"request_id", call.requestID,
			"limit", maxErr.Limit,
		)
		types.WriteError(w, http.StatusRequestEntityTooLarge, &types.ErrorResponse{
			Error:   types.ErrMsgBodyTooLarge,
			Message: err.Error(),
		})
		return
	}

	call.statusCode = http.StatusBadRequest
	h.Logger.Warn("invalid request body",
		"request_id", call.requestID,
		"error", err,
	)
	types.WriteError(w, http.StatusBadRequest, &types.ErrorResponse{
		Error:   types.ErrMsgInvalidBody,
		Message: err.Error(),
	})
}

// writeUpstreamError maps a failed Complete call onto the response:
// upstream rejections keep their status and body, everything else is a 500.
func (h *Repo) writeUpstreamError(w http.ResponseWriter, call *relayCall, err error, elapsed time.Duration) {
	call.err = err

	var upstreamErr *provider.UpstreamError
	if errors.As(err, &upstreamErr) {
		call.outcome = metrics.OutcomeUpstreamError
		call.statusCode = upstreamErr.StatusCode
		h.Metrics.RecordUpstream(h.Model, upstreamErr.StatusCode, elapsed)
		h.Logger.Error("OpenAI API error",
			"request_id", call.requestID,
			"status", upstreamErr.StatusCode,
			"message", upstreamErr.Message(),
		)
		types.WriteError(w, upstreamErr.StatusCode, types.NewUpstreamErrorResponse(upstreamErr.Body))
		return
	}

	call.outcome = metrics.OutcomeInternalError
	call.statusCode = http.StatusInternalServerError
	if !errors.Is(err, provider.ErrNoChoices) {
		// no upstream status was received
		h.Metrics.RecordUpstream(h.Model, 0, elapsed)
	}
	h.Logger.Error("relay request failed",
		"request_id", call.requestID,
		"error", err,
	)
	types.WriteError(w, http.StatusInternalServerError, types.NewInternalErrorResponse(err))
}

// countPromptTokens estimates the prompt size in the background. The channel
// is closed without a value when counting fails.
func (h *Repo) countPromptTokens(req *types.ChatCompletionRequest, requestID string) <-chan int {
	tokensCh := make(chan int, 1)
	if h.Tokenizer == nil {
		close(tokensCh)
		return tokensCh
	}
	go func() {
		defer close(tokensCh)
		tokens, err := h.Tokenizer.CountRequest(req)
		if err != nil {
			h.Logger.Debug("token count failed", "request_id", requestID, "error", err)
			return
		}
		tokensCh <- tokens
	}()
	return tokensCh
}

// awaitTokens collects a token count, giving up after tokenCountTimeout.
func awaitTokens(tokensCh <-chan int) int {
	timer := time.NewTimer(tokenCountTimeout)
	defer timer.Stop()

	select {
	case tokens, ok := <-tokensCh:
		if ok {
			return tokens
		}
	case <-timer.C:
	}
	return 0
}

// finish records metrics and queues the audit-log write.
func (h *Repo) finish(call *relayCall) {
	h.Metrics.RecordRequest(call.outcome)

	entry := &storage.RequestLog{
		RequestID:    call.requestID,
		Model:        h.Model,
		Provider:     h.Provider.Name(),
		Outcome:      call.outcome,
		StatusCode:   call.statusCode,
		UseVision:    call.useVision,
		MaxTokens:    call.maxTokens,
		PromptTokens: call.promptTokens,
		DurationMs:   time.Since(call.startTime).Milliseconds(),
	}
	if call.err != nil {
		entry.ErrorMessage = call.err.Error()
	}
	if res := call.result; res != nil {
		entry.Model = res.Model
		if res.Usage != nil {
			entry.PromptTokens = res.Usage.PromptTokens
			entry.CompletionTokens = res.Usage.CompletionTokens
			entry.TotalTokens = res.Usage.TotalTokens
		}
		h.Metrics.RecordTokens(res.Model, entry.PromptTokens, entry.CompletionTokens)
		h.Logger.Info("relay request completed",
			"request_id", call.requestID,
			"model", res.Model,
			"finish_reason", res.FinishReason,
			"estimated_prompt_tokens", call.promptTokens,
			"duration_ms", res.Duration.Milliseconds(),
		)
	}
	if entry.TotalTokens == 0 {
		entry.TotalTokens = entry.PromptTokens + entry.CompletionTokens
	}

	h.pending.Add(1)
	go h.logRequest(entry)
}

// logRequest writes one audit row. Errors are logged only.
func (h *Repo) logRequest(entry *storage.RequestLog) {
	defer h.pending.Done()

	ctx, cancel := context.WithTimeout(context.Background(), auditTimeout)
	defer cancel()

	if err := h.Storage.LogRequest(ctx, entry); err != nil {
		h.Logger.Warn("failed to write request log",
			"request_id", entry.RequestID,
			"error", err,
		)
	}
}

// Wait blocks until queued audit-log writes have finished.
func (h *Repo) Wait() {
	h.pending.Wait()
}
