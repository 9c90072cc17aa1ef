// Package api serves the read-side HTTP surface and the admin tick trigger.
package api

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"botpulse/internal/cache"
	"botpulse/internal/config"
	"botpulse/internal/db"
	"botpulse/internal/metrics"
	"botpulse/internal/scheduler"
)

// AdminTokenHeader carries the pre-shared admin token.
const AdminTokenHeader = "X-Admin-Token"

// Ticker runs one out-of-band tick.
type Ticker interface {
	Tick(ctx context.Context) (scheduler.Summary, error)
}

// Server handles HTTP API requests.
type Server struct {
	store   *db.Store
	ticker  Ticker
	cache   cache.Cache
	metrics *metrics.Metrics
	hub     *Hub
	cfg     config.APIConfig
	version string
}

// NewServer creates a new API server. cache and m may be nil.
func NewServer(store *db.Store, ticker Ticker, c cache.Cache, m *metrics.Metrics, cfg config.APIConfig, version string) *Server {
	return &Server{
		store:   store,
		ticker:  ticker,
		cache:   c,
		metrics: m,
		hub:     NewHub(),
		cfg:     cfg,
		version: version,
	}
}

// Handler builds the routed, logged handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /bots/{id}/perf", s.handleBotPerformance)
	mux.HandleFunc("GET /bots/{id}/decisions", s.handleBotDecisions)
	mux.HandleFunc("GET /bots/{id}/trades", s.handleBotTrades)
	mux.HandleFunc("POST /admin/tick", s.requireAdmin(s.handleAdminTick))
	mux.Handle("GET /stream", s.hub)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	return s.loggingMiddleware(mux)
}

// Publish is registered as a scheduler observer: it drops cached reads and
// pushes the summary to stream clients.
func (s *Server) Publish(sum scheduler.Summary) {
	if s.cache != nil {
		if err := s.cache.Purge(context.Background()); err != nil {
			slog.Warn("cache purge failed", "error", err)
		}
	}
	s.hub.Broadcast(sum)
}

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.ListenAddr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("api server starting", "addr", s.cfg.ListenAddr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	slog.Info("api server stopped")
	return nil
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Hijack is needed by the websocket upgrade on /stream.
func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		slog.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
