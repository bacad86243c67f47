// Package control exposes a small local HTTP surface for schedule mode:
// health, metrics and manual run triggers.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"CatalogPoster/internal/domain"
	"CatalogPoster/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// RunStarter launches guarded pipeline runs.
type RunStarter interface {
	Start(ctx context.Context, slot int, done func(domain.RunResult, error)) error
	Running() bool
}

// Server routes control requests to the run guard.
type Server struct {
	addr    string
	runs    RunStarter
	metrics http.Handler
	logger  *slog.Logger
	// base parents triggered runs; request contexts end with the response.
	base context.Context
}

// NewServer builds the control surface. metrics may be nil.
func NewServer(addr string, runs RunStarter, metrics http.Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{addr: addr, runs: runs, metrics: metrics, logger: logger, base: context.Background()}
}

// Routes returns the HTTP handler.
func (s *Server) Routes() http.Handler {
	mux := chi.NewRouter()

	mux.Use(middleware.Recoverer)
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)

	mux.Get("/healthz", s.health)
	if s.metrics != nil {
		mux.Method(http.MethodGet, "/metrics", s.metrics)
	}
	mux.Route("/runs", func(r chi.Router) {
		r.Get("/current", s.current)
		r.Post("/{job}", s.startRun)
	})

	return mux
}

// Serve listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context) error {
	s.base = ctx
	srv := &http.Server{
		Addr:              s.addr,
		ErrorLog:          slog.NewLogLogger(s.logger.Handler(), slog.LevelError),
		Handler:           s.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("control server listening", "addr", srv.Addr)
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

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown control server: %w", err)
	}
	s.logger.Info("control server stopped")
	return nil
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "running": s.runs.Running()})
}

func (s *Server) current(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"running": s.runs.Running()})
}

func (s *Server) startRun(w http.ResponseWriter, r *http.Request) {
	slot, err := parseSlot(chi.URLParam(r, "job"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	err = s.runs.Start(s.base, slot, func(result domain.RunResult, err error) {
		if err != nil {
			s.logger.Error("manual run failed", "slot", slot, "error", err)
			return
		}
		s.logger.Info("manual run finished", "slot", slot, "run_id", result.RunID, "posts", len(result.PostIDs))
	})
	if errors.Is(err, usecase.ErrRunInProgress) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}

	s.logger.Info("manual run started", "slot", slot, "request_id", middleware.GetReqID(r.Context()))
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started", "job": slot})
}

// parseSlot accepts "2" or "job2".
func parseSlot(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimPrefix(strings.ToLower(raw), "job"))
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid job %q", raw)
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
