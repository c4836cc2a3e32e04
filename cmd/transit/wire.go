package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/transit-incident-etl/internal/adapter/elastic"
	kafkaadapter "github.com/couchcryptid/transit-incident-etl/internal/adapter/kafka"
	"github.com/couchcryptid/transit-incident-etl/internal/adapter/s3"
	"github.com/couchcryptid/transit-incident-etl/internal/adapter/secrets"
	"github.com/couchcryptid/transit-incident-etl/internal/adapter/sqlite"
	"github.com/couchcryptid/transit-incident-etl/internal/config"
	"github.com/couchcryptid/transit-incident-etl/internal/domain"
	"github.com/couchcryptid/transit-incident-etl/internal/jobs"
	"github.com/couchcryptid/transit-incident-etl/internal/observability"
	"github.com/couchcryptid/transit-incident-etl/internal/pipeline"
)

// secretStore picks the configured secret backend.
func secretStore(cfg *config.Config) (domain.SecretStore, error) {
	if cfg.SecretsBackend == config.SecretsEnv {
		return secrets.NewEnvStore(), nil
	}
	sess, err := s3.NewSession(s3.OptRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}
	return secrets.NewAWSStore(sess), nil
}

// openSearchIndex resolves the cluster credentials and connects. The API key
// is optional.
func openSearchIndex(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*elastic.Client, error) {
	store, err := secretStore(cfg)
	if err != nil {
		return nil, err
	}

	endpoint, err := store.Secret(ctx, cfg.ElasticEndpointSecret)
	if err != nil {
		return nil, fmt.Errorf("resolve search endpoint: %w", err)
	}
	apiKey, err := store.Secret(ctx, cfg.ElasticAPIKeySecret)
	if err != nil && !errors.Is(err, secrets.ErrNotFound) {
		return nil, fmt.Errorf("resolve search api key: %w", err)
	}

	return elastic.NewClient(endpoint, apiKey, cfg.SearchIndex, logger)
}

// readiness is ready only when every check passes.
type readiness []sharedobs.ReadinessChecker

func (r readiness) CheckReadiness(ctx context.Context) error {
	for _, c := range r {
		if err := c.CheckReadiness(ctx); err != nil {
			return err
		}
	}
	return nil
}

// worker holds the collaborators of the batch jobs and the ping loader.
type worker struct {
	cfg       *config.Config
	logger    *slog.Logger
	metrics   *observability.Metrics
	clock     clockwork.Clock
	warehouse *sqlite.Warehouse
	index     *elastic.Client
	raw       *s3.Store
	processed *s3.Store
	gtfs      *s3.Store
	publisher *kafkaadapter.Writer
}

func openWorker(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*worker, error) {
	sess, err := s3.NewSession(s3.OptRegion(cfg.AWSRegion), s3.OptEndpoint(cfg.S3Endpoint))
	if err != nil {
		return nil, err
	}

	index, err := openSearchIndex(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	wh, err := sqlite.Open(cfg.WarehousePath)
	if err != nil {
		return nil, err
	}

	return &worker{
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
		clock:     clockwork.NewRealClock(),
		warehouse: wh,
		index:     index,
		raw:       s3.NewStore(sess, cfg.RawBucket),
		processed: s3.NewStore(sess, cfg.ProcessedBucket),
		gtfs:      s3.NewStore(sess, cfg.GTFSBucket),
		publisher: kafkaadapter.NewWriter(cfg, logger),
	}, nil
}

// registry builds every batch job.
func (w *worker) registry() (*jobs.Registry, error) {
	cfg := w.cfg

	statement, err := jobs.LoadIntegrationSQL(cfg.IntegrationSQLPath)
	if err != nil {
		return nil, err
	}

	ingestor := pipeline.NewReportIngestor(w.processed, w.warehouse, pipeline.ReportIngestorConfig{
		Table:        cfg.IncidentsTable,
		FolderPrefix: cfg.FolderPrefix,
		Lookback:     cfg.ReportLookback,
	}, w.clock, w.logger, w.metrics)

	rng := jobs.NewRand(rand.Uint64(), rand.Uint64())

	return jobs.NewRegistry(w.logger, w.metrics,
		jobs.NewGenerator(w.gtfs, w.raw, jobs.GeneratorConfig{
			StopsPath:   cfg.StopsPath,
			MaxSeverity: cfg.MaxSeverity,
		}, w.clock, rng, w.logger),
		jobs.NewFetcher(w.raw, w.processed, cfg.FolderPrefix, w.clock, w.logger),
		jobs.NewReportIngestion(ingestor),
		jobs.NewGTFSProcessor(w.gtfs, w.warehouse, jobs.GTFSConfig{
			RouteBoundsPath: cfg.RouteBoundsPath,
			SummaryPath:     cfg.GTFSSummaryPath,
		}, w.logger),
		jobs.NewIntegrator(w.warehouse, statement, cfg.IndexLookback, w.clock, w.logger),
		jobs.NewIndexer(w.warehouse, w.index, cfg.IndexLookback, w.clock, w.logger, w.metrics),
		jobs.NewPublisher(w.gtfs, w.publisher, jobs.PublisherConfig{
			RouteBoundsPath: cfg.RouteBoundsPath,
			Interval:        cfg.PublishInterval,
			MaxRuntime:      cfg.PublishMaxRuntime,
		}, w.clock, rng, w.logger, w.metrics),
	), nil
}

func (w *worker) Close() {
	if err := w.publisher.Close(); err != nil {
		w.logger.Error("kafka writer close error", "error", err)
	}
	if err := w.warehouse.Close(); err != nil {
		w.logger.Error("warehouse close error", "error", err)
	}
}
