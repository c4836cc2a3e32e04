// Command genmock writes the report-blob fixtures under data/mock and the
// incident records the parser yields for them. It drives the real generator
// and parser with a fixed clock and a seeded RNG, so reruns are reproducible.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -gtfs-dir data/mock/gtfs \
//	  -reports-out data/mock/reports \
//	  -parsed-out data/mock/reports_parsed.json
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
	"github.com/couchcryptid/transit-incident-etl/internal/jobs"
)

var generatedAt = time.Date(2024, time.April, 26, 6, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	gtfsDir := flag.String("gtfs-dir", "data/mock/gtfs", "directory holding the GTFS stops file")
	stopsFile := flag.String("stops", "stops.txt", "stops file name inside -gtfs-dir")
	reportsOut := flag.String("reports-out", "data/mock/reports", "output directory for report blobs")
	parsedOut := flag.String("parsed-out", "data/mock/reports_parsed.json", "output path for parsed records")
	maxSeverity := flag.Int("max-severity", 5, "upper bound of generated news severity")
	seed := flag.Uint64("seed", 7, "RNG seed")
	tweets := flag.Int("tweets", 3, "number of social posts to keep")
	flag.Parse()

	ctx := context.Background()
	stops, err := jobs.LoadStopNames(ctx, dirStore{root: *gtfsDir}, *stopsFile)
	if err != nil {
		return fmt.Errorf("loading stops: %w", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gen := jobs.NewGenerator(nil, nil, jobs.GeneratorConfig{MaxSeverity: *maxSeverity},
		clockwork.NewFakeClockAt(generatedAt), jobs.NewRand(*seed, *seed), logger)

	news := gen.News(stops)
	content, _ := gen.Tweets(stops)
	posts := jobs.SplitPosts(content)
	if len(posts) > *tweets {
		posts = posts[:*tweets]
	}

	out := dirStore{root: *reportsOut}
	var records []domain.IncidentRecord //nolint:prealloc // a blob may yield no record
	for i, text := range append([]string{news}, posts...) {
		name := fmt.Sprintf("report_%04d%s", i, domain.ReportExtension)
		if err := out.Write(ctx, name, text, "text/plain"); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}

		res := domain.ParseReport(domain.RawBlob{BlobInfo: domain.BlobInfo{Name: name}, Content: text})
		if res.Skip != domain.SkipNone {
			return fmt.Errorf("%s: generated blob skipped: %s", name, res.Skip)
		}
		records = append(records, res.Records...)
		log.Printf("%s: %s, %d records", name, res.Format, len(res.Records))
	}

	if err := writeJSON(*parsedOut, records); err != nil {
		return fmt.Errorf("writing parsed fixture: %w", err)
	}
	log.Printf("wrote %d records to %s", len(records), *parsedOut)
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}
