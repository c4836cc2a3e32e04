// Package jobs holds the batch stages of the transit pipeline and the
// registry that runs them by name.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/couchcryptid/transit-incident-etl/internal/observability"
)

// Job names.
const (
	GenerateIncidents = "generate-incidents"
	FetchReports      = "fetch-reports"
	ProcessReports    = "process-reports"
	ProcessGTFS       = "process-gtfs"
	Integrate         = "integrate"
	IndexDocuments    = "index-documents"
	PublishPings      = "publish-pings"
)

// All lists the job names in pipeline order.
var All = []string{
	GenerateIncidents,
	FetchReports,
	ProcessReports,
	ProcessGTFS,
	Integrate,
	IndexDocuments,
	PublishPings,
}

// ErrUnknownJob is returned by Registry.Run for a name with no registered job.
var ErrUnknownJob = errors.New("unknown job")

// Result is the outcome of one successful job run.
type Result struct {
	Count   int    `json:"count"`
	Message string `json:"message"`
}

// Job is one batch stage. Jobs keep no state between runs.
type Job interface {
	Name() string
	Run(ctx context.Context) (Result, error)
}

// Registry runs jobs by name and records their outcome.
type Registry struct {
	jobs    map[string]Job
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewRegistry creates a Registry. A later job replaces an earlier one with
// the same name.
func NewRegistry(logger *slog.Logger, metrics *observability.Metrics, jobs ...Job) *Registry {
	r := &Registry{jobs: make(map[string]Job, len(jobs)), logger: logger, metrics: metrics}
	for _, j := range jobs {
		r.jobs[j.Name()] = j
	}
	return r
}

// Names returns the registered job names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Run executes the named job once.
func (r *Registry) Run(ctx context.Context, name string) (Result, error) {
	job, ok := r.jobs[name]
	if !ok {
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownJob, name)
	}

	start := time.Now()
	r.logger.Info("job started", "job", name)

	res, err := job.Run(ctx)
	r.metrics.JobDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		r.metrics.JobRuns.WithLabelValues(name, "error").Inc()
		r.logger.Error("job failed", "job", name, "error", err)
		return res, fmt.Errorf("%s: %w", name, err)
	}

	r.metrics.JobRuns.WithLabelValues(name, "success").Inc()
	r.logger.Info("job finished", "job", name, "count", res.Count, "message", res.Message,
		"duration", time.Since(start))
	return res, nil
}
