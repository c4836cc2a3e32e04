package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/transit-incident-etl/internal/observability"
)

// Executor runs a compiled query against the search backend.
type Executor interface {
	Execute(ctx context.Context, q Query) (RawResult, error)
}

// Service answers search requests: compile, execute, project.
type Service struct {
	executor Executor
	timeout  time.Duration
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewService creates a Service. A positive timeout bounds every backend call.
func NewService(executor Executor, timeout time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Service {
	return &Service{
		executor: executor,
		timeout:  timeout,
		logger:   logger,
		metrics:  metrics,
	}
}

// Search runs one request. Invalid filters return a *FilterError before the
// backend is contacted; any other error is a backend failure.
func (s *Service) Search(ctx context.Context, f Filters) (Response, error) {
	q, err := Compile(f)
	if err != nil {
		s.metrics.SearchRequests.WithLabelValues("client_error").Inc()
		return Response{}, err
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	raw, err := s.executor.Execute(ctx, q)
	s.metrics.SearchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		s.metrics.SearchRequests.WithLabelValues("backend_error").Inc()
		s.logger.Error("search query failed", "error", err)
		return Response{}, fmt.Errorf("search query: %w", err)
	}

	resp, err := Project(raw)
	if err != nil {
		s.metrics.SearchRequests.WithLabelValues("backend_error").Inc()
		return Response{}, fmt.Errorf("project results: %w", err)
	}

	s.metrics.SearchRequests.WithLabelValues("success").Inc()
	s.logger.Debug("search served", "total", resp.Total, "returned", len(resp.Results), "size", q.Size)
	return resp, nil
}

// IsClientError reports whether err stems from invalid user input.
func IsClientError(err error) bool {
	var fe *FilterError
	return errors.As(err, &fe)
}
