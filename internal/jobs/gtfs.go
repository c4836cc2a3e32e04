package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/couchcryptid/transit-incident-etl/internal/domain"
	"github.com/couchcryptid/transit-incident-etl/internal/pipeline"
)

// GTFS feed files read by the processor.
const (
	RoutesFile    = "routes.txt"
	TripsFile     = "trips.txt"
	StopTimesFile = "stop_times.txt"
	StopsFile     = "stops.txt"
)

// SummaryTable is the warehouse table holding the stop schedule summary.
const SummaryTable = "gtfs_summary"

var summaryHeader = []string{"route_id", "trip_id", "stop_id", "scheduled_time"}

// TableReplacer swaps the full contents of a warehouse table.
type TableReplacer interface {
	ReplaceRows(ctx context.Context, table string, rows []map[string]any) ([]domain.RowError, error)
}

// GTFSConfig holds the output locations of a GTFSProcessor.
type GTFSConfig struct {
	RouteBoundsPath string
	SummaryPath     string
}

// GTFSProcessor derives per-route bounding boxes and a stop schedule summary
// from a static GTFS feed.
type GTFSProcessor struct {
	store     domain.BlobStore
	warehouse TableReplacer
	cfg       GTFSConfig
	logger    *slog.Logger
}

// NewGTFSProcessor creates a GTFSProcessor over the feed in store.
func NewGTFSProcessor(store domain.BlobStore, warehouse TableReplacer, cfg GTFSConfig, logger *slog.Logger) *GTFSProcessor {
	return &GTFSProcessor{store: store, warehouse: warehouse, cfg: cfg, logger: logger}
}

func (p *GTFSProcessor) Name() string { return ProcessGTFS }

// ScheduledStop is one row of the stop schedule summary.
type ScheduledStop struct {
	RouteID       string
	TripID        string
	StopID        string
	ScheduledTime string
}

// Row flattens the stop into warehouse columns.
func (s ScheduledStop) Row() map[string]any {
	return map[string]any{
		"route_id":       s.RouteID,
		"route_key":      domain.RouteKey(s.RouteID),
		"trip_id":        s.TripID,
		"stop_id":        s.StopID,
		"scheduled_time": s.ScheduledTime,
	}
}

// Run writes route_bounds.csv and gtfs_summary.csv next to the feed and
// replaces the summary table. The count is the number of routes with bounds.
func (p *GTFSProcessor) Run(ctx context.Context) (Result, error) {
	bounds, schedule, err := p.Process(ctx)
	if err != nil {
		return Result{}, err
	}

	boundsCSV, err := encodeRouteBounds(bounds)
	if err != nil {
		return Result{}, fmt.Errorf("encode route bounds: %w", err)
	}
	if err := p.store.Write(ctx, p.cfg.RouteBoundsPath, boundsCSV, csvContentType); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", p.cfg.RouteBoundsPath, err)
	}

	summaryCSV, err := encodeSchedule(schedule)
	if err != nil {
		return Result{}, fmt.Errorf("encode schedule summary: %w", err)
	}
	if err := p.store.Write(ctx, p.cfg.SummaryPath, summaryCSV, csvContentType); err != nil {
		return Result{}, fmt.Errorf("write %s: %w", p.cfg.SummaryPath, err)
	}

	rows := make([]map[string]any, 0, len(schedule))
	for _, s := range schedule {
		rows = append(rows, s.Row())
	}
	rowErrs, err := p.warehouse.ReplaceRows(ctx, SummaryTable, rows)
	if err != nil {
		return Result{}, fmt.Errorf("replace %s: %w", SummaryTable, err)
	}
	if len(rowErrs) > 0 {
		return Result{}, &pipeline.InsertError{Table: SummaryTable, Rows: rowErrs}
	}

	p.logger.Info("gtfs processed", "routes", len(bounds), "scheduled_stops", len(schedule))
	return Result{
		Count:   len(bounds),
		Message: fmt.Sprintf("GTFS processing complete: %d routes, %d scheduled stops", len(bounds), len(schedule)),
	}, nil
}

// Process joins routes, trips, stop times, and stops. Bounds are sorted by
// route id; the schedule keeps stop_times order. Stop times with a blank or
// malformed arrival time are left out of the schedule but still count toward
// the bounds.
func (p *GTFSProcessor) Process(ctx context.Context) ([]domain.RouteBounds, []ScheduledStop, error) {
	routes, err := readTable(ctx, p.store, RoutesFile)
	if err != nil {
		return nil, nil, err
	}
	trips, err := readTable(ctx, p.store, TripsFile)
	if err != nil {
		return nil, nil, err
	}
	stopTimes, err := readTable(ctx, p.store, StopTimesFile)
	if err != nil {
		return nil, nil, err
	}
	stops, err := readTable(ctx, p.store, StopsFile)
	if err != nil {
		return nil, nil, err
	}

	for _, req := range []struct {
		t    *table
		cols []string
	}{
		{routes, []string{"route_id"}},
		{trips, []string{"route_id", "trip_id"}},
		{stopTimes, []string{"trip_id", "stop_id", "arrival_time"}},
		{stops, []string{"stop_id", "stop_lat", "stop_lon"}},
	} {
		if err := req.t.require(req.cols...); err != nil {
			return nil, nil, err
		}
	}

	routeIDs := make(map[string]struct{}, len(routes.rows))
	for _, row := range routes.rows {
		routeIDs[routes.get(row, "route_id")] = struct{}{}
	}

	tripRoute := make(map[string]string, len(trips.rows))
	for _, row := range trips.rows {
		tripRoute[trips.get(row, "trip_id")] = trips.get(row, "route_id")
	}

	coords := make(map[string]domain.GeoPoint, len(stops.rows))
	for _, row := range stops.rows {
		lat, latErr := stops.float(row, "stop_lat")
		lon, lonErr := stops.float(row, "stop_lon")
		if latErr != nil || lonErr != nil {
			p.logger.Warn("stop without coordinates", "stop_id", stops.get(row, "stop_id"))
			continue
		}
		coords[stops.get(row, "stop_id")] = domain.GeoPoint{Lat: lat, Lon: lon}
	}

	byRoute := make(map[string]*domain.RouteBounds)
	var schedule []ScheduledStop
	for _, row := range stopTimes.rows {
		tripID := stopTimes.get(row, "trip_id")
		stopID := stopTimes.get(row, "stop_id")
		routeID, ok := tripRoute[tripID]
		if !ok {
			continue
		}

		if sched, ok := NormalizeScheduleTime(stopTimes.get(row, "arrival_time")); ok {
			schedule = append(schedule, ScheduledStop{
				RouteID:       routeID,
				TripID:        tripID,
				StopID:        stopID,
				ScheduledTime: sched,
			})
		}

		if _, ok := routeIDs[routeID]; !ok {
			continue
		}
		pt, ok := coords[stopID]
		if !ok {
			continue
		}
		b, ok := byRoute[routeID]
		if !ok {
			byRoute[routeID] = &domain.RouteBounds{
				RouteID: routeID,
				LatMin:  pt.Lat,
				LatMax:  pt.Lat,
				LonMin:  pt.Lon,
				LonMax:  pt.Lon,
			}
			continue
		}
		b.LatMin = min(b.LatMin, pt.Lat)
		b.LatMax = max(b.LatMax, pt.Lat)
		b.LonMin = min(b.LonMin, pt.Lon)
		b.LonMax = max(b.LonMax, pt.Lon)
	}

	bounds := make([]domain.RouteBounds, 0, len(byRoute))
	for _, b := range byRoute {
		bounds = append(bounds, *b)
	}
	sort.Slice(bounds, func(i, j int) bool { return bounds[i].RouteID < bounds[j].RouteID })
	return bounds, schedule, nil
}

// NormalizeScheduleTime renders a GTFS "H:MM:SS" time as "HH:MM:SS". Hours
// past midnight of the service day (24 and above) wrap onto the next day.
func NormalizeScheduleTime(s string) (string, bool) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 3 {
		return "", false
	}
	var v [3]int
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil || n < 0 {
			return "", false
		}
		v[i] = n
	}
	if v[1] > 59 || v[2] > 59 {
		return "", false
	}
	return fmt.Sprintf("%02d:%02d:%02d", v[0]%24, v[1], v[2]), true
}

func encodeSchedule(schedule []ScheduledStop) (string, error) {
	records := make([][]string, 0, len(schedule))
	for _, s := range schedule {
		records = append(records, []string{s.RouteID, s.TripID, s.StopID, s.ScheduledTime})
	}
	return writeCSV(summaryHeader, records)
}
