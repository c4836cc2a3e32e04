package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePing(t *testing.T) {
	t.Run("python isoformat timestamp", func(t *testing.T) {
		raw := RawMessage{Value: []byte(`{"vehicle_id":"2.0_417","timestamp":"2024-01-01T10:00:00.250000+00:00","lat":12.97,"lon":77.59}`)}
		ping, err := ParsePing(raw)

		require.NoError(t, err)
		assert.Equal(t, "2.0_417", ping.VehicleID)
		assert.Equal(t, "2024-01-01T10:00:00.25Z", ping.Timestamp)
		assert.Equal(t, 12.97, ping.Lat)
		assert.Equal(t, 77.59, ping.Lon)
	})

	t.Run("string coordinates", func(t *testing.T) {
		raw := RawMessage{Value: []byte(`{"vehicle_id":"5.0_101","timestamp":"2024-01-01T10:00:00Z","lat":"12.5","lon":"77.5"}`)}
		ping, err := ParsePing(raw)

		require.NoError(t, err)
		assert.Equal(t, 12.5, ping.Lat)
		assert.Equal(t, 77.5, ping.Lon)
	})

	tests := []struct {
		name  string
		value string
	}{
		{"invalid JSON", `{not json`},
		{"missing vehicle", `{"timestamp":"2024-01-01T10:00:00Z","lat":1,"lon":1}`},
		{"bad timestamp", `{"vehicle_id":"a","timestamp":"yesterday","lat":1,"lon":1}`},
		{"missing lat", `{"vehicle_id":"a","timestamp":"2024-01-01T10:00:00Z","lon":1}`},
		{"lat out of range", `{"vehicle_id":"a","timestamp":"2024-01-01T10:00:00Z","lat":91,"lon":1}`},
		{"lon out of range", `{"vehicle_id":"a","timestamp":"2024-01-01T10:00:00Z","lat":1,"lon":-181}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParsePing(RawMessage{Value: []byte(tt.value)})
			require.Error(t, err)
			assert.Contains(t, err.Error(), "parse ping")
		})
	}
}

func TestVehiclePing_Row(t *testing.T) {
	row := VehiclePing{VehicleID: "2.0_417", Timestamp: "2024-01-01T10:00:00Z", Lat: 1.5, Lon: 2.5}.Row()
	assert.Equal(t, map[string]any{
		"vehicle_id": "2.0_417",
		"timestamp":  "2024-01-01T10:00:00Z",
		"lat":        1.5,
		"lon":        2.5,
	}, row)
}

func TestRouteIdentifiers(t *testing.T) {
	tests := []struct {
		route string
		key   string
	}{
		{"2", "2.0"},
		{"2.0", "2.0"},
		{" 17 ", "17.0"},
		{"2.5", "2.5"},
		{"R1", "R1"},
	}
	for _, tt := range tests {
		t.Run(tt.route, func(t *testing.T) {
			assert.Equal(t, tt.key, RouteKey(tt.route))
		})
	}

	assert.Equal(t, "2.0_", RoutePrefix("2"))
	assert.Equal(t, "2.0_417", VehicleID("2", 417))
	assert.Equal(t, "R1_100", VehicleID("R1", 100))
}

func TestIntegratedRow_Document(t *testing.T) {
	ping := time.Date(2024, 1, 1, 10, 0, 0, 250_000_000, time.UTC)
	row := IntegratedRow{
		VehicleID:     "2.0_417",
		PingTime:      ping,
		StopID:        "S1",
		ScheduledTime: time.Date(2024, 1, 1, 9, 58, 0, 0, time.UTC),
		DelaySec:      120,
		Lat:           12.9,
		Lon:           77.6,
		IncidentCount: 3,
	}

	doc := row.Document()

	assert.Equal(t, "2.0_417_1704103200250", doc.ID)
	assert.Equal(t, Document{
		VehicleID:     "2.0_417",
		PingTS:        "2024-01-01T10:00:00.25Z",
		StopID:        "S1",
		ScheduledTS:   "2024-01-01T09:58:00Z",
		DelaySec:      120,
		Location:      GeoPoint{Lat: 12.9, Lon: 77.6},
		IncidentCount: 3,
	}, doc.Doc)

	t.Run("same ping same key", func(t *testing.T) {
		assert.Equal(t, doc.ID, row.Document().ID)
	})

	t.Run("missing schedule", func(t *testing.T) {
		row.ScheduledTime = time.Time{}
		assert.Empty(t, row.Document().Doc.ScheduledTS)
	})
}
