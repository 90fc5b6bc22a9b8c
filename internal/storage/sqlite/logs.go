package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/mandalnilabja/chatrelay/internal/storage/models"
)

// LogRequest stores a request log entry, filling ID and CreatedAt when unset.
func (s *Storage) LogRequest(ctx context.Context, log *models.RequestLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStorageClosed
	}

	if log.ID == "" {
		log.ID = "log_" + uuid.New().String()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO request_logs (id, request_id, model, provider, outcome, status_code,
			use_vision, max_tokens, prompt_tokens, completion_tokens, total_tokens,
			error_message, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, log.ID, log.RequestID, log.Model, log.Provider, log.Outcome, log.StatusCode,
		boolToInt(log.UseVision), log.MaxTokens, log.PromptTokens, log.CompletionTokens, log.TotalTokens,
		nullString(log.ErrorMessage), log.DurationMs, log.CreatedAt)

	return err
}

// GetRequestLogs returns the most recent entries, newest first.
// A limit of zero or less returns every entry.
func (s *Storage) GetRequestLogs(ctx context.Context, limit int) ([]*models.RequestLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, ErrStorageClosed
	}

	query := `SELECT id, request_id, model, provider, outcome, status_code,
		use_vision, max_tokens, prompt_tokens, completion_tokens, total_tokens,
		COALESCE(error_message, ''), duration_ms, created_at
		FROM request_logs ORDER BY created_at DESC, rowid DESC`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []*models.RequestLog
	for rows.Next() {
		var log models.RequestLog
		var useVision int
		if err := rows.Scan(&log.ID, &log.RequestID, &log.Model, &log.Provider, &log.Outcome, &log.StatusCode,
			&useVision, &log.MaxTokens, &log.PromptTokens, &log.CompletionTokens, &log.TotalTokens,
			&log.ErrorMessage, &log.DurationMs, &log.CreatedAt); err != nil {
			return nil, err
		}
		log.UseVision = useVision == 1
		logs = append(logs, &log)
	}
	return logs, rows.Err()
}

// DeleteRequestLogs removes entries created before olderThan.
func (s *Storage) DeleteRequestLogs(ctx context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStorageClosed
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM request_logs WHERE created_at < ?", olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
