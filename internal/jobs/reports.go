package jobs

import (
	"context"
	"fmt"

	"github.com/couchcryptid/transit-incident-etl/internal/pipeline"
)

// ReportIngestion runs one ingestion cycle over the staged report blobs.
type ReportIngestion struct {
	ingestor *pipeline.ReportIngestor
}

// NewReportIngestion wraps ingestor as a job.
func NewReportIngestion(ingestor *pipeline.ReportIngestor) *ReportIngestion {
	return &ReportIngestion{ingestor: ingestor}
}

func (r *ReportIngestion) Name() string { return ProcessReports }

// Run reports the number of incident rows inserted.
func (r *ReportIngestion) Run(ctx context.Context) (Result, error) {
	res, err := r.ingestor.Run(ctx)
	if err != nil {
		return Result{Count: res.Inserted}, err
	}
	if res.Inserted == 0 {
		return Result{Message: "No new data"}, nil
	}
	return Result{
		Count: res.Inserted,
		Message: fmt.Sprintf("Inserted %d rows from %d blobs (%d skipped)",
			res.Inserted, res.Blobs, res.Skipped),
	}, nil
}
