package jobs

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
)

const csvContentType = "text/csv"

// table is a CSV file addressed by header name.
type table struct {
	name    string
	columns map[string]int
	rows    [][]string
}

// readTable reads a CSV blob whose first record is the header. A leading
// UTF-8 byte order mark is dropped.
func readTable(ctx context.Context, store domain.BlobStore, name string) (*table, error) {
	content, err := store.Read(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return parseTable(name, content)
}

func parseTable(name, content string) (*table, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimPrefix(content, "\ufeff")))
	r.FieldsPerRecord = -1

	header, err := r.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("parse %s: empty file", name)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}

	t := &table{name: name, columns: make(map[string]int, len(header))}
	for i, col := range header {
		t.columns[strings.TrimSpace(col)] = i
	}

	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", name, err)
		}
		t.rows = append(t.rows, rec)
	}
	return t, nil
}

// require fails unless every named column is present.
func (t *table) require(cols ...string) error {
	for _, c := range cols {
		if _, ok := t.columns[c]; !ok {
			return fmt.Errorf("%s: missing column %q", t.name, c)
		}
	}
	return nil
}

// get returns the trimmed value of col in row, or "" when the row is short.
func (t *table) get(row []string, col string) string {
	i, ok := t.columns[col]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func (t *table) float(row []string, col string) (float64, error) {
	return strconv.ParseFloat(t.get(row, col), 64)
}

// writeCSV renders records with a header line.
func writeCSV(header []string, records [][]string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(header); err != nil {
		return "", err
	}
	if err := w.WriteAll(records); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

var routeBoundsHeader = []string{"route_id", "lat_max", "lat_min", "lon_max", "lon_min"}

// LoadRouteBounds reads the route bounds CSV written by the GTFS processor.
func LoadRouteBounds(ctx context.Context, store domain.BlobStore, path string) ([]domain.RouteBounds, error) {
	t, err := readTable(ctx, store, path)
	if err != nil {
		return nil, err
	}
	if err := t.require(routeBoundsHeader...); err != nil {
		return nil, err
	}

	bounds := make([]domain.RouteBounds, 0, len(t.rows))
	for i, row := range t.rows {
		b := domain.RouteBounds{RouteID: t.get(row, "route_id")}
		for _, f := range []struct {
			col string
			dst *float64
		}{
			{"lat_max", &b.LatMax},
			{"lat_min", &b.LatMin},
			{"lon_max", &b.LonMax},
			{"lon_min", &b.LonMin},
		} {
			v, err := t.float(row, f.col)
			if err != nil {
				return nil, fmt.Errorf("%s row %d: %s: %w", path, i+1, f.col, err)
			}
			*f.dst = v
		}
		if b.RouteID == "" {
			return nil, fmt.Errorf("%s row %d: empty route_id", path, i+1)
		}
		bounds = append(bounds, b)
	}
	return bounds, nil
}

func encodeRouteBounds(bounds []domain.RouteBounds) (string, error) {
	records := make([][]string, 0, len(bounds))
	for _, b := range bounds {
		records = append(records, []string{
			b.RouteID,
			formatFloat(b.LatMax),
			formatFloat(b.LatMin),
			formatFloat(b.LonMax),
			formatFloat(b.LonMin),
		})
	}
	return writeCSV(routeBoundsHeader, records)
}
