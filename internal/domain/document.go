package domain

import (
	"fmt"
	"time"
)

// GeoPoint is a WGS-84 latitude/longitude pair.
type GeoPoint struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// IntegratedRow is one row of the warehouse's integrated table: a vehicle ping
// joined with its nearest scheduled stop and the recent incident count.
type IntegratedRow struct {
	VehicleID     string
	PingTime      time.Time
	StopID        string
	ScheduledTime time.Time
	DelaySec      int64
	Lat           float64
	Lon           float64
	IncidentCount int64
}

// Document is the searchable projection of an integrated row, exactly as
// stored in the search index and returned by the search API.
type Document struct {
	VehicleID     string   `json:"vehicle_id"`
	PingTS        string   `json:"ping_ts"`
	StopID        string   `json:"stop_id"`
	ScheduledTS   string   `json:"schedu_ts"`
	DelaySec      int64    `json:"delay_sec"`
	Location      GeoPoint `json:"location"`
	IncidentCount int64    `json:"incident_count"`
}

// DocumentFields lists the stored fields of a Document, in wire order.
var DocumentFields = []string{
	"vehicle_id",
	"ping_ts",
	"stop_id",
	"schedu_ts",
	"delay_sec",
	"location",
	"incident_count",
}

// IndexedDocument pairs a document with its upsert key.
type IndexedDocument struct {
	ID  string
	Doc Document
}

// DocumentID is the deterministic upsert key of a vehicle ping.
func DocumentID(vehicleID string, pingTime time.Time) string {
	return fmt.Sprintf("%s_%d", vehicleID, pingTime.UnixMilli())
}

// Document builds the indexed form of the row.
func (r IntegratedRow) Document() IndexedDocument {
	doc := Document{
		VehicleID:     r.VehicleID,
		PingTS:        FormatTimestamp(r.PingTime),
		StopID:        r.StopID,
		DelaySec:      r.DelaySec,
		Location:      GeoPoint{Lat: r.Lat, Lon: r.Lon},
		IncidentCount: r.IncidentCount,
	}
	if !r.ScheduledTime.IsZero() {
		doc.ScheduledTS = FormatTimestamp(r.ScheduledTime)
	}
	return IndexedDocument{
		ID:  DocumentID(r.VehicleID, r.PingTime),
		Doc: doc,
	}
}
