package httpadapter

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the HTTP surface of `etl serve`: probes, metrics and the latest
// realtime snapshot.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer registers /healthz, /readyz, /metrics and /realtime.json.
// snapshotPath is the file the realtime fetcher replaces on every run.
func NewServer(addr string, ready sharedobs.ReadinessChecker, snapshotPath string, logger *slog.Logger) *Server {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /realtime.json", snapshotHandler(snapshotPath, logger))

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// snapshotHandler serves the snapshot file with its modification time so
// conditional requests get 304. Before the first run has written the file it
// answers 503, matching /readyz.
func snapshotHandler(path string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := os.Open(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				http.Error(w, "snapshot not yet written", http.StatusServiceUnavailable)
				return
			}
			logger.Error("open snapshot", "path", path, "error", err)
			http.Error(w, "snapshot unavailable", http.StatusInternalServerError)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			logger.Error("stat snapshot", "path", path, "error", err)
			http.Error(w, "snapshot unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("Cache-Control", "no-cache")
		http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	}
}

// Start listens until Shutdown. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains connections within the context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}
