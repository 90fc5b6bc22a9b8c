package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/mandalnilabja/chatrelay/internal/storage/models"
)

func setupTestDB(t *testing.T) *Storage {
	t.Helper()

	s, err := New(filepath.Join(t.TempDir(), "audit", "relay.db"))
	if err != nil {
		t.Fatalf("failed to create storage: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestLogRequest_RoundTrip(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	entry := &models.RequestLog{
		RequestID:        "req-1",
		Model:            "gpt-4o",
		Provider:         "openai",
		Outcome:          "success",
		StatusCode:       200,
		UseVision:        true,
		MaxTokens:        300,
		PromptTokens:     12,
		CompletionTokens: 4,
		TotalTokens:      16,
		DurationMs:       850,
	}
	if err := s.LogRequest(ctx, entry); err != nil {
		t.Fatalf("LogRequest failed: %v", err)
	}
	if entry.ID == "" {
		t.Error("expected ID to be generated")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("expected CreatedAt to be set")
	}

	logs, err := s.GetRequestLogs(ctx, 10)
	if err != nil {
		t.Fatalf("GetRequestLogs failed: %v", err)
	}
	if len(logs) != 1 {
		t.Fatalf("expected 1 log, got %d", len(logs))
	}

	got := logs[0]
	if got.ID != entry.ID || got.RequestID != "req-1" || got.Model != "gpt-4o" || got.Outcome != "success" {
		t.Errorf("unexpected log: %+v", got)
	}
	if !got.UseVision || got.MaxTokens != 300 {
		t.Errorf("expected vision request with 300 max tokens, got %+v", got)
	}
	if got.TotalTokens != 16 || got.DurationMs != 850 {
		t.Errorf("unexpected counters: %+v", got)
	}
	if got.ErrorMessage != "" {
		t.Errorf("expected empty error message, got %q", got.ErrorMessage)
	}
}

func TestGetRequestLogs_OrderAndLimit(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	for i, outcome := range []string{"success", "upstream_error", "internal_error"} {
		err := s.LogRequest(ctx, &models.RequestLog{
			RequestID:    outcome,
			Model:        "gpt-4o",
			Provider:     "openai",
			Outcome:      outcome,
			StatusCode:   500,
			ErrorMessage: "boom",
			CreatedAt:    base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("LogRequest failed: %v", err)
		}
	}

	logs, err := s.GetRequestLogs(ctx, 2)
	if err != nil {
		t.Fatalf("GetRequestLogs failed: %v", err)
	}
	if len(logs) != 2 {
		t.Fatalf("expected 2 logs, got %d", len(logs))
	}
	if logs[0].Outcome != "internal_error" || logs[1].Outcome != "upstream_error" {
		t.Errorf("expected newest first, got %s, %s", logs[0].Outcome, logs[1].Outcome)
	}
	if logs[0].ErrorMessage != "boom" {
		t.Errorf("expected error message, got %q", logs[0].ErrorMessage)
	}

	all, err := s.GetRequestLogs(ctx, 0)
	if err != nil {
		t.Fatalf("GetRequestLogs failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 logs without limit, got %d", len(all))
	}
}

func TestDeleteRequestLogs(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	old := time.Now().UTC().Add(-48 * time.Hour)
	for _, created := range []time.Time{old, time.Now().UTC()} {
		if err := s.LogRequest(ctx, &models.RequestLog{
			RequestID: "r", Model: "gpt-4o", Provider: "openai", Outcome: "success", StatusCode: 200, CreatedAt: created,
		}); err != nil {
			t.Fatalf("LogRequest failed: %v", err)
		}
	}

	n, err := s.DeleteRequestLogs(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("DeleteRequestLogs failed: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 deleted row, got %d", n)
	}

	logs, _ := s.GetRequestLogs(ctx, 0)
	if len(logs) != 1 {
		t.Errorf("expected 1 remaining log, got %d", len(logs))
	}
}

func TestConcurrentLogRequest(t *testing.T) {
	s := setupTestDB(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.LogRequest(ctx, &models.RequestLog{
				RequestID: "r", Model: "gpt-4o", Provider: "openai", Outcome: "success", StatusCode: 200,
			}); err != nil {
				t.Errorf("LogRequest failed: %v", err)
			}
		}()
	}
	wg.Wait()

	logs, err := s.GetRequestLogs(ctx, 0)
	if err != nil {
		t.Fatalf("GetRequestLogs failed: %v", err)
	}
	if len(logs) != 20 {
		t.Errorf("expected 20 logs, got %d", len(logs))
	}
}

func TestClosedStorage(t *testing.T) {
	s := setupTestDB(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}

	err := s.LogRequest(context.Background(), &models.RequestLog{})
	if !errors.Is(err, ErrStorageClosed) {
		t.Errorf("expected ErrStorageClosed, got %v", err)
	}
	if _, err := s.GetRequestLogs(context.Background(), 1); !errors.Is(err, ErrStorageClosed) {
		t.Errorf("expected ErrStorageClosed, got %v", err)
	}
}
