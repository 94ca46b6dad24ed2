// Package admin serves the operator HTTP API: health, metrics and watch
// registration.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hedeqiang/tokenwatch/event"
	"github.com/hedeqiang/tokenwatch/state"
	"github.com/hedeqiang/tokenwatch/watch"
)

// Registry is the part of watch.Registry the API uses.
type Registry interface {
	Upsert(ctx context.Context, subscriberID int64, text string) (event.Address, error)
	Lookup(subscriberID int64) (state.Watch, bool)
	Watches() []state.Watch
	Cursor() uint64
}

// Server is the admin HTTP server.
type Server struct {
	registry Registry
	addr     string
	logger   *slog.Logger
}

// NewServer creates a server listening on addr.
func NewServer(addr string, reg Registry, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{registry: reg, addr: addr, logger: logger.With("component", "admin")}
}

// Router returns the HTTP handler.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/watches", func(r chi.Router) {
		r.Get("/", s.handleList)
		r.Post("/", s.handleUpsert)
		r.Get("/{subscriberID}", s.handleGet)
	})
	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("admin listening", "addr", s.addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("admin: serve: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("admin: shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("admin: serve: %w", err)
	}
	return nil
}

type watchRequest struct {
	SubscriberID int64  `json:"subscriber_id"`
	Address      string `json:"address"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":             "ok",
		"last_handled_block": s.registry.Cursor(),
		"watches":            len(s.registry.Watches()),
	})
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.Watches())
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "subscriberID"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid subscriber id"})
		return
	}
	entry, ok := s.registry.Lookup(id)
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req watchRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	addr, err := s.registry.Upsert(r.Context(), req.SubscriberID, req.Address)
	switch {
	case errors.Is(err, watch.ErrInvalidAddress):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid address"})
		return
	case err != nil:
		s.logger.Error("registration failed", "subscriber", req.SubscriberID, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "could not persist watch"})
		return
	}

	s.logger.Info("watch registered", "subscriber", req.SubscriberID, "address", addr.Hex())
	writeJSON(w, http.StatusOK, state.Watch{SubscriberID: req.SubscriberID, Address: addr.Hex()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
