package pipeline_test

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
	"github.com/couchcryptid/transit-incident-etl/internal/pipeline"
)

func TestParseBlob_WithMockReports(t *testing.T) {
	blobs := readMockReports(t)
	require.NotEmpty(t, blobs)

	var got []domain.IncidentRecord
	for _, blob := range blobs {
		res := pipeline.ParseBlob(blob, slog.Default(), newTestMetrics())
		require.Equal(t, domain.SkipNone, res.Skip, blob.Name)
		got = append(got, res.Records...)
	}

	want := readParsedFixture(t)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("parsed records mismatch (-want +got):\n%s", diff)
	}
}

func readMockReports(t *testing.T) []domain.RawBlob {
	t.Helper()

	paths, err := filepath.Glob(filepath.Join("..", "..", "data", "mock", "reports", "*"+domain.ReportExtension))
	require.NoError(t, err)
	sort.Strings(paths)

	blobs := make([]domain.RawBlob, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		blobs = append(blobs, domain.RawBlob{
			BlobInfo: domain.BlobInfo{Name: filepath.Base(p)},
			Content:  string(data),
		})
	}
	return blobs
}

func readParsedFixture(t *testing.T) []domain.IncidentRecord {
	t.Helper()

	data, err := os.ReadFile(filepath.Join("..", "..", "data", "mock", "reports_parsed.json"))
	require.NoError(t, err)

	var records []domain.IncidentRecord
	require.NoError(t, json.Unmarshal(data, &records))
	return records
}
