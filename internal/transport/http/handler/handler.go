package handler

import (
	"log/slog"
	"sync"

	"github.com/mandalnilabja/chatrelay/internal/metrics"
	"github.com/mandalnilabja/chatrelay/internal/provider"
	"github.com/mandalnilabja/chatrelay/internal/storage"
	"github.com/mandalnilabja/chatrelay/internal/tokenizer"
)

// Repo holds the dependencies for HTTP handlers.
type Repo struct {
	Provider  provider.Provider
	Model     string
	Tokenizer tokenizer.Tokenizer
	Metrics   metrics.Recorder
	Storage   storage.Storage
	Logger    *slog.Logger

	// pending tracks audit-log writes still in flight
	pending sync.WaitGroup
}

// Options configures a Repo. Only Provider and Model are required.
type Options struct {
	Provider  provider.Provider
	Model     string
	Tokenizer tokenizer.Tokenizer
	Metrics   metrics.Recorder
	Storage   storage.Storage
	Logger    *slog.Logger
}

// NewRepo creates a new instance of the handler repository.
func NewRepo(opts Options) *Repo {
	repo := &Repo{
		Provider:  opts.Provider,
		Model:     opts.Model,
		Tokenizer: opts.Tokenizer,
		Metrics:   opts.Metrics,
		Storage:   opts.Storage,
		Logger:    opts.Logger,
	}
	if repo.Metrics == nil {
		var noop *metrics.Collector
		repo.Metrics = noop
	}
	if repo.Storage == nil {
		repo.Storage = storage.Noop{}
	}
	if repo.Logger == nil {
		repo.Logger = slog.Default()
	}
	return repo
}
