package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "transit"

// Metrics holds the Prometheus counters, histograms, and gauges for ingestion,
// the ping stream, search, and batch jobs.
type Metrics struct {
	// Report ingestion.
	BlobsSelected     prometheus.Counter
	BlobsSkipped      *prometheus.CounterVec // labels: reason={empty_blob,missing_tweet_line,missing_time_line}
	RecordsParsed     prometheus.Counter
	IncidentsInserted prometheus.Counter
	RowErrors         prometheus.Counter

	// Ping stream.
	MessagesConsumed        prometheus.Counter
	PingsLoaded             prometheus.Counter
	TransformErrors         prometheus.Counter
	PipelineRunning         prometheus.Gauge
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram
	PingsPublished          prometheus.Counter

	// Search.
	SearchRequests *prometheus.CounterVec // labels: outcome={success,client_error,backend_error}
	SearchDuration prometheus.Histogram

	// Jobs.
	DocumentsIndexed prometheus.Counter
	JobRuns          *prometheus.CounterVec   // labels: job, outcome={success,error}
	JobDuration      *prometheus.HistogramVec // labels: job
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		BlobsSelected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_blobs_selected_total",
			Help:      "Report blobs selected into an ingestion batch.",
		}),
		BlobsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "report_blobs_skipped_total",
			Help:      "Report blobs that yielded no record, by reason.",
		}, []string{"reason"}),
		RecordsParsed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incident_records_parsed_total",
			Help:      "Incident records produced by the report parser.",
		}),
		IncidentsInserted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incidents_inserted_total",
			Help:      "Incident rows accepted by the warehouse.",
		}),
		RowErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "warehouse_row_errors_total",
			Help:      "Rows rejected by the warehouse during bulk insert.",
		}),
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pings_consumed_total",
			Help:      "Vehicle ping messages read from the ping topic.",
		}),
		PingsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pings_loaded_total",
			Help:      "Vehicle pings written to the warehouse.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ping_transform_errors_total",
			Help:      "Ping messages that failed validation.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the ping pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		PingsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pings_published_total",
			Help:      "Synthetic vehicle pings published to the ping topic.",
		}),
		SearchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Search requests by outcome.",
		}, []string{"outcome"}),
		SearchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Search backend round-trip duration.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		DocumentsIndexed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_indexed_total",
			Help:      "Documents upserted into the search index.",
		}),
		JobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "job_runs_total",
			Help:      "Batch job runs by job and outcome.",
		}, []string{"job", "outcome"}),
		JobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Batch job run duration.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"job"}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.BlobsSelected,
		m.BlobsSkipped,
		m.RecordsParsed,
		m.IncidentsInserted,
		m.RowErrors,
		m.MessagesConsumed,
		m.PingsLoaded,
		m.TransformErrors,
		m.PipelineRunning,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.PingsPublished,
		m.SearchRequests,
		m.SearchDuration,
		m.DocumentsIndexed,
		m.JobRuns,
		m.JobDuration,
	}
}
