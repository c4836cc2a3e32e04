package search

import (
	"net/url"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
)

func intPtr(n int) *int { return &n }

func TestParseFilters_Empty(t *testing.T) {
	f, err := ParseFilters(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, Filters{Size: DefaultSize}, f)
}

func TestParseFilters_All(t *testing.T) {
	q := url.Values{
		"route_id":      {" 2 "},
		"min_delay":     {"60"},
		"min_incidents": {"0"},
		"bbox":          {"12.0, 77.0,13.0,78.0"},
		"time_from":     {"2024-01-01T00:00:00Z"},
		"time_to":       {"2024-01-02"},
		"size":          {"100"},
	}

	f, err := ParseFilters(q)
	require.NoError(t, err)

	want := Filters{
		RouteID:      "2",
		MinDelay:     intPtr(60),
		MinIncidents: intPtr(0),
		BBox: &BoundingBox{
			LowerLeft:  domain.GeoPoint{Lat: 12, Lon: 77},
			UpperRight: domain.GeoPoint{Lat: 13, Lon: 78},
		},
		TimeFrom: "2024-01-01T00:00:00Z",
		TimeTo:   "2024-01-02",
		Size:     100,
	}
	if diff := cmp.Diff(want, f); diff != "" {
		t.Errorf("filters mismatch (-want +got):\n%s", diff)
	}
}

func TestParseFilters_ClientErrors(t *testing.T) {
	tests := []struct {
		name  string
		param string
		value string
	}{
		{"bbox wrong arity", ParamBBox, "1,2,3"},
		{"bbox too many", ParamBBox, "1,2,3,4,5"},
		{"bbox not numeric", ParamBBox, "a,2,3,4"},
		{"size zero", ParamSize, "0"},
		{"size above max", ParamSize, "101"},
		{"size negative", ParamSize, "-1"},
		{"size not integer", ParamSize, "ten"},
		{"negative min delay", ParamMinDelay, "-5"},
		{"non-integer min incidents", ParamMinIncidents, "1.5"},
		{"bad time from", ParamTimeFrom, "yesterday"},
		{"bad time to", ParamTimeTo, "01/02/2024"},
		{"time with space separator", ParamTimeTo, "2024-01-01 10:00"},
		{"zone without time", ParamTimeFrom, "2024-01-01Z"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFilters(url.Values{tt.param: {tt.value}})
			require.Error(t, err)

			var fe *FilterError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tt.param, fe.Param)
			assert.True(t, IsClientError(err))
		})
	}
}

func TestParseFilters_TimeBoundsPassThrough(t *testing.T) {
	tests := []string{
		"2024",
		"2024-01",
		"2024-01-01",
		"2024-01-01T10",
		"2024-01-01T00:00",
		"2024-01-01T00:00Z",
		"2024-01-01T00:00:00",
		"2024-01-01T00:00:00.5",
		"2024-01-01T00:00:00.123456789Z",
		"2024-01-01T00:00:00+0530",
		"2024-01-01T00:00:00+05:30",
		"2024-01-01T00:00-08",
	}
	for _, v := range tests {
		t.Run(v, func(t *testing.T) {
			f, err := ParseFilters(url.Values{ParamTimeFrom: {v}, ParamTimeTo: {v}})
			require.NoError(t, err)
			assert.Equal(t, v, f.TimeFrom)
			assert.Equal(t, v, f.TimeTo)
		})
	}
}

func TestCompile_NoFilters(t *testing.T) {
	q, err := Compile(Filters{})
	require.NoError(t, err)

	assert.Equal(t, []Clause{MatchAllClause{}}, q.Must)
	assert.Empty(t, q.Filter)
	assert.Equal(t, DefaultSize, q.Size)
	assert.Equal(t, domain.DocumentFields, q.Source)
}

func TestCompile_BoundingBoxCorners(t *testing.T) {
	f, err := ParseFilters(url.Values{"bbox": {"12.0,77.0,13.0,78.0"}})
	require.NoError(t, err)

	q, err := Compile(f)
	require.NoError(t, err)

	require.Len(t, q.Filter, 1)
	box, ok := q.Filter[0].(GeoBoxClause)
	require.True(t, ok)
	assert.Equal(t, FieldLocation, box.Field)
	assert.Equal(t, domain.GeoPoint{Lat: 12.0, Lon: 77.0}, box.Box.LowerLeft)
	assert.Equal(t, domain.GeoPoint{Lat: 13.0, Lon: 78.0}, box.Box.UpperRight)
	assert.Equal(t, domain.GeoPoint{Lat: 13.0, Lon: 77.0}, box.Box.TopLeft())
	assert.Equal(t, domain.GeoPoint{Lat: 12.0, Lon: 78.0}, box.Box.BottomRight())

	// A geo filter alone still matches everything inside the box.
	assert.Equal(t, []Clause{MatchAllClause{}}, q.Must)
}

func TestCompile_AllFilters(t *testing.T) {
	f := Filters{
		RouteID:      "2",
		MinDelay:     intPtr(30),
		MinIncidents: intPtr(1),
		TimeFrom:     "2024-01-01T00:00:00Z",
		TimeTo:       "2024-01-01T06:00:00Z",
		Size:         10,
	}

	q, err := Compile(f)
	require.NoError(t, err)

	want := []Clause{
		PrefixClause{Field: FieldVehicleID, Value: "2.0_"},
		RangeClause{Field: FieldDelaySec, Gte: 30},
		RangeClause{Field: FieldIncidentCount, Gte: 1},
		RangeClause{Field: FieldPingTS, Gte: "2024-01-01T00:00:00Z", Lte: "2024-01-01T06:00:00Z"},
	}
	if diff := cmp.Diff(want, q.Must); diff != "" {
		t.Errorf("must clauses mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, q.Filter)
	assert.Equal(t, 10, q.Size)
}

func TestCompile_OpenTimeBounds(t *testing.T) {
	q, err := Compile(Filters{TimeTo: "2024-01-01T06:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, []Clause{RangeClause{Field: FieldPingTS, Lte: "2024-01-01T06:00:00Z"}}, q.Must)

	q, err = Compile(Filters{TimeFrom: "2024-01-01T00:00:00Z"})
	require.NoError(t, err)
	assert.Equal(t, []Clause{RangeClause{Field: FieldPingTS, Gte: "2024-01-01T00:00:00Z"}}, q.Must)
}

func TestCompile_RouteSuffixIsLiteral(t *testing.T) {
	q, err := Compile(Filters{RouteID: "2.0"})
	require.NoError(t, err)
	assert.Equal(t, []Clause{PrefixClause{Field: FieldVehicleID, Value: "2.0.0_"}}, q.Must)
}

func TestCompile_SizeBounds(t *testing.T) {
	for _, size := range []int{-1, 101, 1000} {
		_, err := Compile(Filters{Size: size})
		require.Error(t, err, "size %d", size)
		assert.True(t, IsClientError(err))
	}
	for _, size := range []int{1, 25, 100} {
		q, err := Compile(Filters{Size: size})
		require.NoError(t, err)
		assert.Equal(t, size, q.Size)
	}
}

func TestCompile_DoesNotAliasDocumentFields(t *testing.T) {
	q, err := Compile(Filters{})
	require.NoError(t, err)
	q.Source[0] = "mutated"
	assert.Equal(t, "vehicle_id", domain.DocumentFields[0])
}
