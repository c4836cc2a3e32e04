package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
)

func openTestWarehouse(t *testing.T) *Warehouse {
	t.Helper()
	w, err := Open(filepath.Join(t.TempDir(), "transit.db"))
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func count(t *testing.T, w *Warehouse, table string) int {
	t.Helper()
	var n int
	require.NoError(t, w.db.QueryRow("SELECT count(*) FROM "+table).Scan(&n))
	return n
}

func TestInsertRows(t *testing.T) {
	w := openTestWarehouse(t)
	ctx := context.Background()

	addr := "Main St"
	rows := []map[string]any{
		domain.IncidentRecord{PotentialAddress: &addr, Description: "d", Severity: 3, EventTime: "2024-01-01T00:00:00Z", SourceBlob: "news.txt"}.Row(),
		domain.IncidentRecord{SourceBlob: "tweet.txt"}.Row(),
	}

	rowErrs, err := w.InsertRows(ctx, "incidents", rows)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
	assert.Equal(t, 2, count(t, w, "incidents"))

	var address *string
	require.NoError(t, w.db.QueryRow("SELECT potential_address FROM incidents WHERE source_blob = 'tweet.txt'").Scan(&address))
	assert.Nil(t, address)
}

func TestInsertRows_RowErrorsRollBack(t *testing.T) {
	w := openTestWarehouse(t)

	rows := []map[string]any{
		{"source_blob": "ok.txt", "severity": 1},
		{"severity": 1}, // source_blob is NOT NULL
		{"source_blob": "bad.txt", "no_such_column": 1},
	}

	rowErrs, err := w.InsertRows(context.Background(), "incidents", rows)
	require.NoError(t, err)
	require.Len(t, rowErrs, 2)
	assert.Equal(t, 1, rowErrs[0].Index)
	assert.Contains(t, rowErrs[0].Message, "NOT NULL")
	assert.Equal(t, 2, rowErrs[1].Index)
	assert.Equal(t, 0, count(t, w, "incidents"))
}

func TestInsertRows_InvalidIdentifiers(t *testing.T) {
	w := openTestWarehouse(t)

	_, err := w.InsertRows(context.Background(), "incidents; DROP TABLE incidents", []map[string]any{{"a": 1}})
	require.Error(t, err)

	rowErrs, err := w.InsertRows(context.Background(), "incidents", []map[string]any{{"bad col": 1}})
	require.NoError(t, err)
	require.Len(t, rowErrs, 1)
	assert.Contains(t, rowErrs[0].Message, "invalid column name")
}

func TestInsertRows_Empty(t *testing.T) {
	w := openTestWarehouse(t)
	rowErrs, err := w.InsertRows(context.Background(), "incidents", nil)
	require.NoError(t, err)
	assert.Empty(t, rowErrs)
}

func TestReplaceRows(t *testing.T) {
	w := openTestWarehouse(t)
	ctx := context.Background()

	row := func(stop string) map[string]any {
		return map[string]any{"route_id": "2", "route_key": "2.0", "trip_id": "t1", "stop_id": stop, "scheduled_time": "09:58:00"}
	}

	_, err := w.ReplaceRows(ctx, "gtfs_summary", []map[string]any{row("S1"), row("S2")})
	require.NoError(t, err)
	_, err = w.ReplaceRows(ctx, "gtfs_summary", []map[string]any{row("S3")})
	require.NoError(t, err)

	assert.Equal(t, 1, count(t, w, "gtfs_summary"))
}

func TestExec(t *testing.T) {
	w := openTestWarehouse(t)
	ctx := context.Background()

	_, err := w.InsertRows(ctx, "vehicle_pings", []map[string]any{
		domain.VehiclePing{VehicleID: "2.0_101", Timestamp: "2024-01-01T10:00:00Z", Lat: 1, Lon: 2}.Row(),
		domain.VehiclePing{VehicleID: "2.0_102", Timestamp: "2024-01-01T10:00:00Z", Lat: 1, Lon: 2}.Row(),
	})
	require.NoError(t, err)

	n, err := w.Exec(ctx, "DELETE FROM vehicle_pings WHERE vehicle_id = ?", "2.0_101")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = w.Exec(ctx, "SELECT * FROM missing_table")
	assert.Error(t, err)
}

func TestIntegratedSince(t *testing.T) {
	w := openTestWarehouse(t)
	ctx := context.Background()

	_, err := w.db.Exec(`INSERT INTO integrated (vehicle_id, ping_ts, stop_id, schedu_ts, delay_sec, lat, lon, incident_count) VALUES
		('2.0_101', '2024-01-01T10:00:00.25Z', 'S1', '2024-01-01T09:58:00Z', 120, 12.9, 77.6, 1),
		('2.0_102', '2024-01-01T03:00:00Z', NULL, NULL, NULL, 12.8, 77.5, 0),
		('5.0_300', '2024-01-01T11:00:00Z', NULL, NULL, NULL, 12.7, 77.4, 0)`)
	require.NoError(t, err)

	got, err := w.IntegratedSince(ctx, time.Date(2024, 1, 1, 6, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.IntegratedRow{
		VehicleID:     "2.0_101",
		PingTime:      time.Date(2024, 1, 1, 10, 0, 0, 250_000_000, time.UTC),
		StopID:        "S1",
		ScheduledTime: time.Date(2024, 1, 1, 9, 58, 0, 0, time.UTC),
		DelaySec:      120,
		Lat:           12.9,
		Lon:           77.6,
		IncidentCount: 1,
	}, got[0])

	assert.Equal(t, "5.0_300", got[1].VehicleID)
	assert.True(t, got[1].ScheduledTime.IsZero())
	assert.Empty(t, got[1].StopID)
}

func TestCheckReadiness(t *testing.T) {
	w := openTestWarehouse(t)
	assert.NoError(t, w.CheckReadiness(context.Background()))
}
