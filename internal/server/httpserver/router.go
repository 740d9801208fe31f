package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yndnr/boxstore-go/internal/infra/buildinfo"
)

// DefaultReadyTimeout bounds the backend ping behind /ready.
const DefaultReadyTimeout = 2 * time.Second

// Pinger is satisfied by storage backends.
type Pinger interface {
	Ping(ctx context.Context) error
}

// RouterConfig holds configuration for the HTTP router.
type RouterConfig struct {
	// Backend is pinged by /ready. Nil means always ready.
	Backend Pinger

	// Metrics serves /metrics. Nil disables the route.
	Metrics http.Handler

	Logger *slog.Logger

	// ReadyTimeout bounds the /ready ping. Zero uses DefaultReadyTimeout.
	ReadyTimeout time.Duration
}

type statusResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
	Error  string `json:"error,omitempty"`
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(cfg *RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	readyTimeout := cfg.ReadyTimeout
	if readyTimeout <= 0 {
		readyTimeout = DefaultReadyTimeout
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statusResponse{Status: "healthy", Time: now()})
	})

	mux.HandleFunc("GET /ready", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Backend != nil {
			ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
			defer cancel()
			if err := cfg.Backend.Ping(ctx); err != nil {
				log.Warn("readiness check failed", "error", err)
				writeJSON(w, http.StatusServiceUnavailable, statusResponse{
					Status: "unavailable",
					Time:   now(),
					Error:  err.Error(),
				})
				return
			}
		}
		writeJSON(w, http.StatusOK, statusResponse{Status: "ready", Time: now()})
	})

	mux.HandleFunc("GET /version", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, buildinfo.Get())
	})

	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}

	return Chain(mux, Recover(log), RequestID(), AccessLog(log))
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
