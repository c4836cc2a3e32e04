package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
	"github.com/couchcryptid/transit-incident-etl/internal/jobs"
	"github.com/couchcryptid/transit-incident-etl/internal/pipeline"
	"github.com/couchcryptid/transit-incident-etl/internal/search"
)

// Searcher answers search requests.
type Searcher interface {
	Search(ctx context.Context, f search.Filters) (search.Response, error)
}

// JobRunner runs a batch job by name.
type JobRunner interface {
	Run(ctx context.Context, name string) (jobs.Result, error)
}

// Option configures optional routes of a Server.
type Option func(*Server, *http.ServeMux)

// WithSearch mounts GET /search. Responses carry CORS headers for allowOrigin.
func WithSearch(searcher Searcher, allowOrigin string) Option {
	return func(s *Server, mux *http.ServeMux) {
		s.searcher = searcher
		s.allowOrigin = allowOrigin
		mux.HandleFunc("GET /search", s.handleSearch)
		mux.HandleFunc("OPTIONS /search", s.handlePreflight)
	}
}

// WithJobs mounts POST /jobs/{name}. Jobs run synchronously, so the server's
// write timeout is lifted.
func WithJobs(runner JobRunner) Option {
	return func(s *Server, mux *http.ServeMux) {
		s.jobs = runner
		s.httpServer.WriteTimeout = 0
		mux.HandleFunc("POST /jobs/{name}", s.handleJob)
	}
}

// Server exposes health, readiness, and metrics endpoints, plus the search
// API and job triggers when configured.
type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	searcher    Searcher
	allowOrigin string
	jobs        JobRunner
}

// NewServer creates an HTTP server with /healthz, /readyz, and /metrics routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, logger *slog.Logger, opts ...Option) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	for _, opt := range opts {
		opt(s, mux)
	}

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

type errorResponse struct {
	Detail    string            `json:"detail"`
	RowErrors []domain.RowError `json:"row_errors,omitempty"`
}

func (s *Server) setCORS(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Access-Control-Allow-Origin", s.allowOrigin)
	h.Set("Access-Control-Allow-Methods", "GET")
	h.Set("Access-Control-Allow-Headers", "*")
}

func (s *Server) handlePreflight(w http.ResponseWriter, _ *http.Request) {
	s.setCORS(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	s.setCORS(w)

	f, err := search.ParseFilters(r.URL.Query())
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{Detail: err.Error()})
		return
	}

	resp, err := s.searcher.Search(r.Context(), f)
	if err != nil {
		status := http.StatusInternalServerError
		if search.IsClientError(err) {
			status = http.StatusBadRequest
		}
		sharedobs.WriteJSON(w, status, errorResponse{Detail: err.Error()})
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, resp)
}

type jobResponse struct {
	Job     string `json:"job"`
	Count   int    `json:"count"`
	Message string `json:"message"`
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	res, err := s.jobs.Run(r.Context(), name)
	if err != nil {
		if errors.Is(err, jobs.ErrUnknownJob) {
			sharedobs.WriteJSON(w, http.StatusNotFound, errorResponse{Detail: err.Error()})
			return
		}
		body := errorResponse{Detail: err.Error()}
		var insertErr *pipeline.InsertError
		if errors.As(err, &insertErr) {
			body.RowErrors = insertErr.Rows
		}
		sharedobs.WriteJSON(w, http.StatusInternalServerError, body)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, jobResponse{Job: name, Count: res.Count, Message: res.Message})
}
