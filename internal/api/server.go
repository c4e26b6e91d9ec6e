// Package api serves the JSON HTTP interface over the dispatcher and the
// world and job stores.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"bedrockmate/internal/jobs"
	"bedrockmate/internal/logger"
	"bedrockmate/internal/queue"
	"bedrockmate/internal/store"
)

// Dispatcher is the part of dispatch.Dispatcher the API calls.
type Dispatcher interface {
	Submit(ctx context.Context, worldID string, t jobs.Type, params json.RawMessage) (*jobs.Job, error)
	Stats() queue.Stats
}

type Config struct {
	Addr string
	// PollInterval paces the job event stream.
	PollInterval time.Duration
}

type Server struct {
	cfg        Config
	dispatcher Dispatcher
	jobs       store.JobStore
	worlds     store.WorldStore
	bookmarks  store.BookmarkStore
	log        logger.Logger
	router     *mux.Router
	httpServer *http.Server
}

func NewServer(cfg Config, d Dispatcher, js store.JobStore, ws store.WorldStore, bs store.BookmarkStore, log logger.Logger) *Server {
	if cfg.Addr == "" {
		cfg.Addr = ":8000"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if log == nil {
		log = logger.Nop()
	}
	s := &Server{
		cfg:        cfg,
		dispatcher: d,
		jobs:       js,
		worlds:     ws,
		bookmarks:  bs,
		log:        log.With(logger.Component("api")),
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() *mux.Router {
	r := mux.NewRouter()
	r.Use(corsMiddleware, s.loggingMiddleware)

	r.HandleFunc("/api/health", s.handleHealth).Methods(http.MethodGet, http.MethodOptions)
	r.HandleFunc("/api/stats", s.handleStats).Methods(http.MethodGet, http.MethodOptions)

	jr := r.PathPrefix("/api/jobs").Subrouter()
	jr.HandleFunc("", s.handleListJobs).Methods(http.MethodGet, http.MethodOptions)
	jr.HandleFunc("", s.handleCreateJob).Methods(http.MethodPost)
	jr.HandleFunc("/types", s.handleJobTypes).Methods(http.MethodGet, http.MethodOptions)
	jr.HandleFunc("/{id}", s.handleGetJob).Methods(http.MethodGet, http.MethodOptions)
	jr.HandleFunc("/{id}", s.handleDeleteJob).Methods(http.MethodDelete)
	jr.HandleFunc("/{id}/events", s.handleJobEvents).Methods(http.MethodGet)

	wr := r.PathPrefix("/api/seeds").Subrouter()
	wr.HandleFunc("", s.handleListWorlds).Methods(http.MethodGet, http.MethodOptions)
	wr.HandleFunc("", s.handleCreateWorld).Methods(http.MethodPost)
	wr.HandleFunc("/active", s.handleActiveWorld).Methods(http.MethodGet, http.MethodOptions)
	wr.HandleFunc("/{id}", s.handleGetWorld).Methods(http.MethodGet, http.MethodOptions)
	wr.HandleFunc("/{id}", s.handleUpdateWorld).Methods(http.MethodPut)
	wr.HandleFunc("/{id}", s.handleDeleteWorld).Methods(http.MethodDelete)
	wr.HandleFunc("/{id}/activate", s.handleActivateWorld).Methods(http.MethodPost, http.MethodOptions)

	br := r.PathPrefix("/api/bookmarks").Subrouter()
	br.HandleFunc("", s.handleListBookmarks).Methods(http.MethodGet, http.MethodOptions)
	br.HandleFunc("", s.handleCreateBookmark).Methods(http.MethodPost)
	br.HandleFunc("/{id}", s.handleGetBookmark).Methods(http.MethodGet, http.MethodOptions)
	br.HandleFunc("/{id}", s.handleUpdateBookmark).Methods(http.MethodPut)
	br.HandleFunc("/{id}", s.handleDeleteBookmark).Methods(http.MethodDelete)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})
	return r
}

// Handler exposes the router, mostly for tests.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", logger.String("addr", s.cfg.Addr))
		errCh <- s.httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.log.Info("http server stopped")
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "server": "bedrockmate"})
}

func (s *Server) handleStats(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.dispatcher.Stats())
}

type errorResponse struct {
	Detail string `json:"detail"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, errorResponse{Detail: detail})
}
