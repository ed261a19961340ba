package server

import (
	"log/slog"
	"net/http"

	"slidecast-api/internal/metrics"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// Metrics enables the /metrics endpoint and request counting when set.
	Metrics *metrics.Metrics
	// UpdateGauges refreshes gauge values before each scrape.
	UpdateGauges func()
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /jobs", h.CreateJob)
	mux.HandleFunc("GET /jobs/{id}", h.GetJob)
	mux.HandleFunc("GET /jobs/{id}/video", h.DownloadVideo)
	mux.HandleFunc("POST /jobs/{id}/video/delete", h.DeleteVideo)
	mux.HandleFunc("POST /transcriptions", h.CreateTranscription)
	mux.HandleFunc("GET /transcriptions/{id}", h.GetTranscription)
	mux.HandleFunc("POST /videos/separators", h.DetectSeparators)
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics.Handler(cfg.UpdateGauges))
	}

	// Apply middleware chain
	middlewares := []func(http.Handler) http.Handler{
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	}
	if cfg.Metrics != nil {
		middlewares = append(middlewares, metrics.RequestMiddleware(cfg.Metrics))
	}
	chain := ChainMiddleware(middlewares...)

	return chain(mux)
}
