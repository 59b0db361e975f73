package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/JakeFAU/docscrawl/internal/crawler"
	"github.com/JakeFAU/docscrawl/internal/metrics"
	"github.com/JakeFAU/docscrawl/internal/middleware"
)

// StatusSource reports live crawl progress. *crawler.Scheduler implements it.
type StatusSource interface {
	RunID() string
	Snapshot() []crawler.SiteSummary
}

// Server serves health, metrics and crawl status routes.
type Server struct {
	router chi.Router
	source StatusSource
	logger *zap.Logger
}

// SitesResponse is the body of GET /v1/sites.
type SitesResponse struct {
	RunID string                `json:"run_id"`
	Sites []crawler.SiteSummary `json:"sites"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(source StatusSource, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{source: source, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging(logger))
	r.Use(middleware.Recover(logger))
	r.Use(middleware.Metrics)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Route("/v1/sites", func(r chi.Router) {
		r.Get("/", s.listSites)
		r.Get("/{site}", s.getSite)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("status server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("status server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("status server shutdown: %w", err)
		}
		return nil
	}
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, s.logger)
}

func (s *Server) listSites(w http.ResponseWriter, _ *http.Request) {
	if s.source == nil {
		writeJSON(w, http.StatusOK, SitesResponse{Sites: []crawler.SiteSummary{}}, s.logger)
		return
	}
	writeJSON(w, http.StatusOK, SitesResponse{
		RunID: s.source.RunID(),
		Sites: s.source.Snapshot(),
	}, s.logger)
}

func (s *Server) getSite(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "site")
	matches := []crawler.SiteSummary{}
	if s.source != nil {
		for _, summary := range s.source.Snapshot() {
			if summary.Site == name {
				matches = append(matches, summary)
			}
		}
	}
	if len(matches) == 0 {
		writeError(w, http.StatusNotFound, "site not found", s.logger)
		return
	}
	writeJSON(w, http.StatusOK, SitesResponse{RunID: s.source.RunID(), Sites: matches}, s.logger)
}

func writeJSON(w http.ResponseWriter, status int, payload any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logger.Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string, logger *zap.Logger) {
	writeJSON(w, status, map[string]string{"error": msg}, logger)
}
