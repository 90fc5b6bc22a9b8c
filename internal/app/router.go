package app

import (
	"log/slog"
	"net/http"

	"github.com/mandalnilabja/chatrelay/internal/transport/http/handler"
	"github.com/mandalnilabja/chatrelay/internal/transport/http/middleware"
)

// RouterOptions configures the HTTP router behavior.
type RouterOptions struct {
	Logger *slog.Logger

	// MaxBodyBytes limits request bodies. Zero disables the limit.
	MaxBodyBytes int64

	// Metrics is mounted at GET /metrics when set.
	Metrics http.Handler
}

// NewRouter creates and configures the HTTP router with all application routes.
// Returns an http.Handler with middleware applied.
func NewRouter(repo *handler.Repo, opts RouterOptions) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", repo.HealthCheck)
	mux.HandleFunc("POST /api/openai", repo.Relay)

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Order: outer to inner. CORS answers preflights before routing, and
	// the request logger sees the 500 written by Recovery.
	mws := []func(http.Handler) http.Handler{
		middleware.CORS,
		middleware.RequestID,
		middleware.RequestLogger(logger),
		middleware.Recovery(logger),
	}
	if opts.MaxBodyBytes > 0 {
		mws = append(mws, middleware.BodyLimit(opts.MaxBodyBytes))
	}

	return middleware.Chain(mux, mws...)
}
