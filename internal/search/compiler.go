package search

import (
	"github.com/couchcryptid/transit-incident-etl/internal/domain"
)

// Indexed document field names referenced by compiled queries.
const (
	FieldVehicleID     = "vehicle_id"
	FieldPingTS        = "ping_ts"
	FieldDelaySec      = "delay_sec"
	FieldIncidentCount = "incident_count"
	FieldLocation      = "location"
)

// Clause is one predicate of a compiled query.
type Clause interface {
	clause()
}

// PrefixClause matches documents whose Field starts with Value.
type PrefixClause struct {
	Field string
	Value string
}

// RangeClause matches documents whose Field lies within the inclusive bounds.
// A nil bound is open.
type RangeClause struct {
	Field string
	Gte   any
	Lte   any
}

// GeoBoxClause matches documents whose geo point Field lies inside Box.
type GeoBoxClause struct {
	Field string
	Box   BoundingBox
}

// MatchAllClause matches every document.
type MatchAllClause struct{}

func (PrefixClause) clause()   {}
func (RangeClause) clause()    {}
func (GeoBoxClause) clause()   {}
func (MatchAllClause) clause() {}

// Query is a boolean search request: every Must clause scores and every
// Filter clause restricts, all combined with AND.
type Query struct {
	Must   []Clause
	Filter []Clause
	Size   int
	Source []string
}

// Compile translates filters into a Query. It never touches external state.
// With no predicates the query matches every document, bounded by size only.
func Compile(f Filters) (Query, error) {
	size := f.Size
	if size == 0 {
		size = DefaultSize
	}
	if size < MinSize || size > MaxSize {
		return Query{}, sizeError()
	}

	q := Query{
		Size:   size,
		Source: append([]string(nil), domain.DocumentFields...),
	}

	if f.RouteID != "" {
		q.Must = append(q.Must, PrefixClause{Field: FieldVehicleID, Value: domain.RoutePrefix(f.RouteID)})
	}
	if f.MinDelay != nil {
		q.Must = append(q.Must, RangeClause{Field: FieldDelaySec, Gte: *f.MinDelay})
	}
	if f.MinIncidents != nil {
		q.Must = append(q.Must, RangeClause{Field: FieldIncidentCount, Gte: *f.MinIncidents})
	}
	if f.TimeFrom != "" || f.TimeTo != "" {
		r := RangeClause{Field: FieldPingTS}
		if f.TimeFrom != "" {
			r.Gte = f.TimeFrom
		}
		if f.TimeTo != "" {
			r.Lte = f.TimeTo
		}
		q.Must = append(q.Must, r)
	}
	if f.BBox != nil {
		q.Filter = append(q.Filter, GeoBoxClause{Field: FieldLocation, Box: *f.BBox})
	}

	if len(q.Must) == 0 {
		q.Must = []Clause{MatchAllClause{}}
	}
	return q, nil
}
