package domain

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// RawMessage represents an unprocessed message from the ping topic.
type RawMessage struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// VehiclePing is one GPS position report from a vehicle.
type VehiclePing struct {
	VehicleID string  `json:"vehicle_id"`
	Timestamp string  `json:"timestamp"`
	Lat       float64 `json:"lat"`
	Lon       float64 `json:"lon"`
}

// Row flattens the ping into warehouse columns.
func (p VehiclePing) Row() map[string]any {
	return map[string]any{
		"vehicle_id": p.VehicleID,
		"timestamp":  p.Timestamp,
		"lat":        p.Lat,
		"lon":        p.Lon,
	}
}

// rawPing accepts coordinates as JSON numbers or numeric strings.
type rawPing struct {
	VehicleID string      `json:"vehicle_id"`
	Timestamp string      `json:"timestamp"`
	Lat       json.Number `json:"lat"`
	Lon       json.Number `json:"lon"`
}

// ParsePing decodes and validates a ping message. The timestamp is normalized
// to RFC 3339 in UTC.
func ParsePing(raw RawMessage) (VehiclePing, error) {
	var rp rawPing
	if err := json.Unmarshal(raw.Value, &rp); err != nil {
		return VehiclePing{}, fmt.Errorf("parse ping: %w", err)
	}
	if rp.VehicleID == "" {
		return VehiclePing{}, errors.New("parse ping: missing vehicle_id")
	}
	ts, err := time.Parse(time.RFC3339Nano, rp.Timestamp)
	if err != nil {
		return VehiclePing{}, fmt.Errorf("parse ping timestamp: %w", err)
	}
	lat, err := rp.Lat.Float64()
	if err != nil || lat < -90 || lat > 90 {
		return VehiclePing{}, fmt.Errorf("parse ping: invalid lat %q", rp.Lat)
	}
	lon, err := rp.Lon.Float64()
	if err != nil || lon < -180 || lon > 180 {
		return VehiclePing{}, fmt.Errorf("parse ping: invalid lon %q", rp.Lon)
	}
	return VehiclePing{
		VehicleID: rp.VehicleID,
		Timestamp: FormatTimestamp(ts),
		Lat:       lat,
		Lon:       lon,
	}, nil
}

// FormatTimestamp renders t the way the warehouse stores timestamps.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// RouteBounds is the bounding rectangle of all stops served by a route.
type RouteBounds struct {
	RouteID string
	LatMin  float64
	LatMax  float64
	LonMin  float64
	LonMax  float64
}

// RoutePrefix returns the vehicle id prefix matched by a route filter. The
// route text is used literally.
func RoutePrefix(routeID string) string {
	return routeID + ".0_"
}

// RouteKey renders a route id the way vehicle ids carry it: whole numbers gain
// a ".0" suffix ("2" and "2.0" both become "2.0"); other ids are kept as-is.
func RouteKey(routeID string) string {
	routeID = strings.TrimSpace(routeID)
	f, err := strconv.ParseFloat(routeID, 64)
	if err != nil || f != math.Trunc(f) || math.IsInf(f, 0) {
		return routeID
	}
	return strconv.FormatFloat(f, 'f', 1, 64)
}

// VehicleID builds the id of vehicle number n on a route.
func VehicleID(routeID string, n int) string {
	return fmt.Sprintf("%s_%d", RouteKey(routeID), n)
}
