// Package search compiles user filters into structured search requests and
// projects raw search hits into the external response shape.
package search

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
)

// Result size bounds.
const (
	DefaultSize = 25
	MinSize     = 1
	MaxSize     = 100
)

// Query parameter names accepted by ParseFilters.
const (
	ParamRouteID      = "route_id"
	ParamMinDelay     = "min_delay"
	ParamMinIncidents = "min_incidents"
	ParamBBox         = "bbox"
	ParamTimeFrom     = "time_from"
	ParamTimeTo       = "time_to"
	ParamSize         = "size"
)

// isoTimeRe matches the backend's strict_date_optional_time forms: a year
// optionally refined down to fractional seconds, with an optional Z, +HH,
// +HHMM or +HH:MM zone once a time is present.
var isoTimeRe = regexp.MustCompile(`^\d{4}(-\d{2}(-\d{2}(T\d{2}(:\d{2}(:\d{2}([.,]\d{1,9})?)?)?(Z|[+-]\d{2}(:?\d{2})?)?)?)?)?$`)

// FilterError reports malformed client input. It always maps to a client error.
type FilterError struct {
	Param string
	Msg   string
}

func (e *FilterError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Param, e.Msg)
}

// BoundingBox is a rectangle given by its lower-left and upper-right corners.
type BoundingBox struct {
	LowerLeft  domain.GeoPoint
	UpperRight domain.GeoPoint
}

// TopLeft is the north-west corner.
func (b BoundingBox) TopLeft() domain.GeoPoint {
	return domain.GeoPoint{Lat: b.UpperRight.Lat, Lon: b.LowerLeft.Lon}
}

// BottomRight is the south-east corner.
func (b BoundingBox) BottomRight() domain.GeoPoint {
	return domain.GeoPoint{Lat: b.LowerLeft.Lat, Lon: b.UpperRight.Lon}
}

// Filters is the set of optional predicates of one search request. Nil
// pointers and empty strings mean the predicate is absent. A zero Size means
// DefaultSize.
type Filters struct {
	RouteID      string
	MinDelay     *int
	MinIncidents *int
	BBox         *BoundingBox
	TimeFrom     string
	TimeTo       string
	Size         int
}

// ParseFilters reads filters from URL query parameters. Every validation
// failure is a *FilterError.
func ParseFilters(q url.Values) (Filters, error) {
	f := Filters{
		RouteID: strings.TrimSpace(q.Get(ParamRouteID)),
		Size:    DefaultSize,
	}

	var err error
	if f.MinDelay, err = parseMin(q, ParamMinDelay); err != nil {
		return Filters{}, err
	}
	if f.MinIncidents, err = parseMin(q, ParamMinIncidents); err != nil {
		return Filters{}, err
	}

	if v := strings.TrimSpace(q.Get(ParamBBox)); v != "" {
		box, err := ParseBoundingBox(v)
		if err != nil {
			return Filters{}, err
		}
		f.BBox = &box
	}

	if f.TimeFrom, err = parseTime(q, ParamTimeFrom); err != nil {
		return Filters{}, err
	}
	if f.TimeTo, err = parseTime(q, ParamTimeTo); err != nil {
		return Filters{}, err
	}

	if v := strings.TrimSpace(q.Get(ParamSize)); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Filters{}, &FilterError{Param: ParamSize, Msg: "must be an integer"}
		}
		if n < MinSize || n > MaxSize {
			return Filters{}, sizeError()
		}
		f.Size = n
	}

	return f, nil
}

// ParseBoundingBox parses "lat1,lon1,lat2,lon2" where the first pair is the
// lower-left corner and the second the upper-right corner.
func ParseBoundingBox(s string) (BoundingBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BoundingBox{}, &FilterError{Param: ParamBBox, Msg: "expected four comma-separated numbers lat1,lon1,lat2,lon2"}
	}
	var v [4]float64
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BoundingBox{}, &FilterError{Param: ParamBBox, Msg: fmt.Sprintf("%q is not a number", strings.TrimSpace(p))}
		}
		v[i] = f
	}
	return BoundingBox{
		LowerLeft:  domain.GeoPoint{Lat: v[0], Lon: v[1]},
		UpperRight: domain.GeoPoint{Lat: v[2], Lon: v[3]},
	}, nil
}

func parseMin(q url.Values, param string) (*int, error) {
	v := strings.TrimSpace(q.Get(param))
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return nil, &FilterError{Param: param, Msg: "must be a non-negative integer"}
	}
	return &n, nil
}

// parseTime validates an ISO-8601 timestamp and returns it unchanged, so the
// search backend applies its own date parsing to the bound.
func parseTime(q url.Values, param string) (string, error) {
	v := strings.TrimSpace(q.Get(param))
	if v == "" {
		return "", nil
	}
	if !isoTimeRe.MatchString(v) {
		return "", &FilterError{Param: param, Msg: "must be an ISO-8601 timestamp"}
	}
	return v, nil
}

func sizeError() *FilterError {
	return &FilterError{Param: ParamSize, Msg: fmt.Sprintf("must be between %d and %d", MinSize, MaxSize)}
}
