// Command validate performs integrity checks across the mock data under
// data/mock: the GTFS stops file, the staged report blobs, and the parsed
// records fixture. It verifies naming, parse outcomes, field presence, and
// cross-source consistency.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -gtfs-dir data/mock/gtfs \
//	  -reports-dir data/mock/reports \
//	  -parsed-json data/mock/reports_parsed.json
package main

import (
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
)

var reportNameRe = regexp.MustCompile(`^report_(\d{4})\.txt$`)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	gtfsDir := flag.String("gtfs-dir", "data/mock/gtfs", "directory holding stops.txt")
	reportsDir := flag.String("reports-dir", "data/mock/reports", "directory of staged report blobs")
	parsedJSON := flag.String("parsed-json", "data/mock/reports_parsed.json", "parsed records fixture")
	maxSeverity := flag.Int("max-severity", 5, "upper bound of news severity")
	flag.Parse()

	if code := run(*gtfsDir, *reportsDir, *parsedJSON, *maxSeverity); code != 0 {
		os.Exit(code)
	}
}

func run(gtfsDir, reportsDir, parsedPath string, maxSeverity int) int {
	fmt.Println("=== Transit Mock Data Validation ===")
	fmt.Println()

	stops, err := loadCSV(filepath.Join(gtfsDir, "stops.txt"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load stops: %v\n", err)
		return 1
	}

	blobs, err := loadBlobs(reportsDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load report blobs: %v\n", err)
		return 1
	}

	records, err := loadJSON[domain.IncidentRecord](parsedPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load parsed JSON: %v\n", err)
		return 1
	}

	phases := []*phase{
		validateStops(stops),
		validateBlobNames(blobs),
		validateParseParity(blobs, records),
		validateRecords(records, stops, maxSeverity),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Data: %d stops, %d report blobs, %d parsed records\n", len(stops), len(blobs), len(records))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

// ── Data loading ──

// csvRow is a parsed CSV row with field values keyed by header name.
type csvRow struct {
	lineNum int
	fields  map[string]string
}

func loadCSV(path string) ([]csvRow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(string(data), "\ufeff")))
	r.FieldsPerRecord = -1
	all, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(all) < 2 {
		return nil, fmt.Errorf("no data rows in %s", path)
	}

	header := all[0]
	rows := make([]csvRow, 0, len(all)-1)
	for i, row := range all[1:] {
		fields := make(map[string]string, len(header))
		for j, h := range header {
			if j < len(row) {
				fields[strings.TrimSpace(h)] = strings.TrimSpace(row[j])
			}
		}
		rows = append(rows, csvRow{lineNum: i + 2, fields: fields})
	}
	return rows, nil
}

func loadBlobs(dir string) ([]domain.RawBlob, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"+domain.ReportExtension))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	blobs := make([]domain.RawBlob, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		blobs = append(blobs, domain.RawBlob{
			BlobInfo: domain.BlobInfo{Name: filepath.Base(p)},
			Content:  string(data),
		})
	}
	if len(blobs) == 0 {
		return nil, fmt.Errorf("no report blobs in %s", dir)
	}
	return blobs, nil
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

// ── Phase 1: Stops ──
// Every stop has a name and coordinates in range.

func validateStops(stops []csvRow) *phase {
	p := &phase{name: "Phase 1: GTFS Stops"}
	for _, s := range stops {
		if s.fields["stop_name"] == "" {
			p.errorf("line %d: empty stop_name", s.lineNum)
		}
		checkCoord(p, s, "stop_lat", 90)
		checkCoord(p, s, "stop_lon", 180)
	}
	return p
}

func checkCoord(p *phase, s csvRow, col string, limit float64) {
	v, err := strconv.ParseFloat(s.fields[col], 64)
	if err != nil {
		p.errorf("line %d: %s %q is not a number", s.lineNum, col, s.fields[col])
		return
	}
	if v < -limit || v > limit {
		p.errorf("line %d: %s %v out of range", s.lineNum, col, v)
	}
}

// ── Phase 2: Blob naming ──
// Blobs are named report_NNNN.txt and numbered contiguously from zero.

func validateBlobNames(blobs []domain.RawBlob) *phase {
	p := &phase{name: "Phase 2: Report Blob Naming"}
	for i, b := range blobs {
		m := reportNameRe.FindStringSubmatch(b.Name)
		if m == nil {
			p.errorf("%s: name does not match report_NNNN.txt", b.Name)
			continue
		}
		if n, _ := strconv.Atoi(m[1]); n != i {
			p.errorf("%s: expected index %d", b.Name, i)
		}
	}
	return p
}

// ── Phase 3: Parse parity ──
// Parsing every blob yields exactly the records in the fixture, in order.

func validateParseParity(blobs []domain.RawBlob, records []domain.IncidentRecord) *phase {
	p := &phase{name: "Phase 3: Parser vs Parsed Fixture"}

	var parsed []domain.IncidentRecord
	for _, b := range blobs {
		res := domain.ParseReport(b)
		if res.Skip != domain.SkipNone {
			p.errorf("%s: skipped (%s)", b.Name, res.Skip)
			continue
		}
		parsed = append(parsed, res.Records...)
	}

	if diff := cmp.Diff(records, parsed); diff != "" {
		p.errorf("parsed records differ from fixture (-fixture +parsed):\n%s", diff)
	}
	return p
}

// ── Phase 4: Record fields ──
// Required fields are present, severities are in range, timestamps parse,
// and every address names a known stop.

func validateRecords(records []domain.IncidentRecord, stops []csvRow, maxSeverity int) *phase {
	p := &phase{name: "Phase 4: Record Fields"}

	known := make(map[string]bool, len(stops))
	for _, s := range stops {
		known[s.fields["stop_name"]] = true
	}

	for i, r := range records {
		pf := func(format string, args ...any) {
			p.errorf("record %d (%s): %s", i, r.SourceBlob, fmt.Sprintf(format, args...))
		}
		if r.SourceBlob == "" {
			pf("missing source_blob")
		}
		if r.Description == "" {
			pf("missing description")
		}
		if _, err := time.Parse(time.RFC3339Nano, r.EventTime); err != nil {
			pf("event_time %q is not RFC 3339", r.EventTime)
		}
		if r.Severity < domain.SocialSeverity || r.Severity > maxSeverity {
			pf("severity %d outside 1..%d", r.Severity, maxSeverity)
		}
		if r.PotentialAddress == nil {
			pf("missing potential_address")
		} else if !known[*r.PotentialAddress] {
			pf("potential_address %q is not a stop", *r.PotentialAddress)
		}
	}
	return p
}
