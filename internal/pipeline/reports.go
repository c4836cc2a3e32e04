package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
	"github.com/couchcryptid/transit-incident-etl/internal/observability"
)

// ErrRowErrors is matched by every *InsertError.
var ErrRowErrors = errors.New("warehouse rejected rows")

// InsertError carries the per-row errors of a rejected bulk insert.
type InsertError struct {
	Table string
	Rows  []domain.RowError
}

func (e *InsertError) Error() string {
	return fmt.Sprintf("insert into %s: %d row errors, first: row %d: %s",
		e.Table, len(e.Rows), e.Rows[0].Index, e.Rows[0].Message)
}

func (e *InsertError) Unwrap() error { return ErrRowErrors }

// IngestResult summarizes one ingestion cycle.
type IngestResult struct {
	Blobs     int               `json:"blobs"`
	Records   int               `json:"records"`
	Inserted  int               `json:"inserted"`
	Skipped   int               `json:"skipped"`
	RowErrors []domain.RowError `json:"row_errors"`
}

// ReportIngestor selects staged report blobs inside the trailing window,
// parses them, and bulk-inserts the resulting incident records.
type ReportIngestor struct {
	store     domain.BlobStore
	warehouse domain.Warehouse
	table     string
	prefix    string
	lookback  time.Duration
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// ReportIngestorConfig holds the settings of a ReportIngestor.
type ReportIngestorConfig struct {
	Table        string
	FolderPrefix string
	Lookback     time.Duration
}

// NewReportIngestor creates a ReportIngestor.
func NewReportIngestor(store domain.BlobStore, warehouse domain.Warehouse, cfg ReportIngestorConfig, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *ReportIngestor {
	return &ReportIngestor{
		store:     store,
		warehouse: warehouse,
		table:     cfg.Table,
		prefix:    cfg.FolderPrefix,
		lookback:  cfg.Lookback,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run ingests every report blob created within the lookback window ending now.
// Each dated folder the window touches is listed.
func (i *ReportIngestor) Run(ctx context.Context) (IngestResult, error) {
	now := i.clock.Now()
	start := now.Add(-i.lookback)

	var listed []domain.BlobInfo
	for _, folder := range domain.ReportFolders(i.prefix, start, now) {
		infos, err := i.store.List(ctx, folder)
		if err != nil {
			return IngestResult{}, fmt.Errorf("list %s: %w", folder, err)
		}
		listed = append(listed, infos...)
	}

	selected := domain.SelectWindow(listed, now, i.lookback)
	i.metrics.BlobsSelected.Add(float64(len(selected)))
	i.logger.Info("report blobs selected",
		"listed", len(listed),
		"selected", len(selected),
		"window_start", start.UTC().Format(time.RFC3339),
	)

	blobs := make([]domain.RawBlob, 0, len(selected))
	for _, info := range selected {
		content, err := i.store.Read(ctx, info.Name)
		if err != nil {
			return IngestResult{}, fmt.Errorf("read %s: %w", info.Name, err)
		}
		blobs = append(blobs, domain.RawBlob{BlobInfo: info, Content: content})
	}

	return i.Ingest(ctx, blobs)
}

// Ingest parses blobs and submits every record as one bulk insert. A batch
// with no records makes no warehouse call. Rejected rows come back in the
// result together with an *InsertError.
func (i *ReportIngestor) Ingest(ctx context.Context, blobs []domain.RawBlob) (IngestResult, error) {
	res := IngestResult{Blobs: len(blobs), RowErrors: []domain.RowError{}}

	var rows []map[string]any
	for _, blob := range blobs {
		parsed := ParseBlob(blob, i.logger, i.metrics)
		if parsed.Skip != domain.SkipNone {
			res.Skipped++
			continue
		}
		for _, rec := range parsed.Records {
			rows = append(rows, rec.Row())
		}
	}
	res.Records = len(rows)
	i.metrics.RecordsParsed.Add(float64(len(rows)))

	if len(rows) == 0 {
		i.logger.Info("no incident records to insert", "blobs", res.Blobs, "skipped", res.Skipped)
		return res, nil
	}

	rowErrs, err := i.warehouse.InsertRows(ctx, i.table, rows)
	if err != nil {
		i.logger.Error("incident insert failed", "error", err, "table", i.table, "rows", len(rows))
		return res, fmt.Errorf("insert into %s: %w", i.table, err)
	}
	if len(rowErrs) > 0 {
		res.RowErrors = rowErrs
		i.metrics.RowErrors.Add(float64(len(rowErrs)))
		i.logger.Error("incident insert rejected rows", "table", i.table, "row_errors", len(rowErrs))
		return res, &InsertError{Table: i.table, Rows: rowErrs}
	}

	res.Inserted = len(rows)
	i.metrics.IncidentsInserted.Add(float64(res.Inserted))
	i.logger.Info("incidents inserted",
		"table", i.table,
		"blobs", res.Blobs,
		"inserted", res.Inserted,
		"skipped", res.Skipped,
	)
	return res, nil
}

// ParseBlob parses one blob, logging and counting a skip.
func ParseBlob(blob domain.RawBlob, logger *slog.Logger, metrics *observability.Metrics) domain.ParseResult {
	res := domain.ParseReport(blob)
	if res.Skip != domain.SkipNone {
		logger.Warn("report blob skipped",
			"blob", blob.Name,
			"format", res.Format.String(),
			"reason", string(res.Skip),
		)
		metrics.BlobsSkipped.WithLabelValues(string(res.Skip)).Inc()
	}
	return res
}
