package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
	"github.com/couchcryptid/transit-incident-etl/internal/observability"
)

// IntegratedSource reads integrated rows from the warehouse.
type IntegratedSource interface {
	IntegratedSince(ctx context.Context, since time.Time) ([]domain.IntegratedRow, error)
}

// DocumentIndex upserts documents into the search index.
type DocumentIndex interface {
	BulkUpsert(ctx context.Context, docs []domain.IndexedDocument) (int, error)
}

// Indexer copies recent integrated rows into the search index. Documents are
// keyed by vehicle and ping time, so overlapping runs overwrite.
type Indexer struct {
	source   IntegratedSource
	index    DocumentIndex
	lookback time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	metrics  *observability.Metrics
}

// NewIndexer creates an Indexer.
func NewIndexer(source IntegratedSource, index DocumentIndex, lookback time.Duration, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Indexer {
	return &Indexer{source: source, index: index, lookback: lookback, clock: clock, logger: logger, metrics: metrics}
}

func (x *Indexer) Name() string { return IndexDocuments }

// Run indexes every integrated row with a ping inside the lookback window.
func (x *Indexer) Run(ctx context.Context) (Result, error) {
	since := x.clock.Now().Add(-x.lookback)
	rows, err := x.source.IntegratedSince(ctx, since)
	if err != nil {
		return Result{}, fmt.Errorf("read integrated rows: %w", err)
	}
	if len(rows) == 0 {
		return Result{Message: "No documents to index"}, nil
	}

	docs := make([]domain.IndexedDocument, 0, len(rows))
	for _, r := range rows {
		docs = append(docs, r.Document())
	}

	n, err := x.index.BulkUpsert(ctx, docs)
	x.metrics.DocumentsIndexed.Add(float64(n))
	if err != nil {
		return Result{Count: n}, fmt.Errorf("index documents: %w", err)
	}

	x.logger.Info("documents indexed", "count", n, "since", domain.FormatTimestamp(since))
	return Result{Count: n, Message: fmt.Sprintf("Indexed %d documents", n)}, nil
}
