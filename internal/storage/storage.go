// Package storage provides the request audit log interface and implementations.
package storage

import (
	"context"
	"time"

	"github.com/mandalnilabja/chatrelay/internal/storage/models"
	"github.com/mandalnilabja/chatrelay/internal/storage/sqlite"
)

// RequestLog is re-exported for callers that only import storage.
type RequestLog = models.RequestLog

// Storage records relay calls. Implementations must be safe for concurrent use.
type Storage interface {
	LogRequest(ctx context.Context, log *RequestLog) error
	GetRequestLogs(ctx context.Context, limit int) ([]*RequestLog, error)
	DeleteRequestLogs(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
}

// New returns a SQLite store at path, or a Noop store when path is empty.
func New(path string) (Storage, error) {
	if path == "" {
		return Noop{}, nil
	}
	return sqlite.New(path)
}

// Noop discards every record. Used when the audit log is disabled.
type Noop struct{}

func (Noop) LogRequest(context.Context, *RequestLog) error { return nil }

func (Noop) GetRequestLogs(context.Context, int) ([]*RequestLog, error) { return nil, nil }

func (Noop) DeleteRequestLogs(context.Context, time.Time) (int64, error) { return 0, nil }

func (Noop) Close() error { return nil }
