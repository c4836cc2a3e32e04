package domain

import (
	"fmt"
	"strings"
	"time"
)

// ReportExtension marks blobs that hold a single staged report.
const ReportExtension = ".txt"

// BlobInfo is the listing metadata of a stored blob.
type BlobInfo struct {
	Name    string
	Created time.Time
}

// RawBlob is a staged report blob with its full text content.
type RawBlob struct {
	BlobInfo
	Content string
}

// IncidentRecord is the canonical incident row loaded into the warehouse.
type IncidentRecord struct {
	PotentialAddress *string `json:"potential_address"`
	Description      string  `json:"description"`
	Severity         int     `json:"severity"`
	EventTime        string  `json:"event_time"`
	SourceBlob       string  `json:"source_blob"`
}

// Row flattens the record into warehouse columns. Empty text fields and an
// absent address map to nil so they land as NULL.
func (r IncidentRecord) Row() map[string]any {
	row := map[string]any{
		"potential_address": nil,
		"description":       nilIfEmpty(r.Description),
		"severity":          r.Severity,
		"event_time":        nilIfEmpty(r.EventTime),
		"source_blob":       r.SourceBlob,
	}
	if r.PotentialAddress != nil {
		row["potential_address"] = *r.PotentialAddress
	}
	return row
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// ReportFolder returns the dated folder, with trailing slash, that holds the
// reports staged on t's UTC day.
func ReportFolder(prefix string, t time.Time) string {
	return fmt.Sprintf("%s_%s/", prefix, t.UTC().Format("20060102"))
}

// ReportFolders returns every dated folder touched by the interval [from, to],
// oldest first.
func ReportFolders(prefix string, from, to time.Time) []string {
	from, to = from.UTC(), to.UTC()
	if to.Before(from) {
		return nil
	}
	day := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	var folders []string
	for !day.After(to) {
		folders = append(folders, ReportFolder(prefix, day))
		day = day.AddDate(0, 0, 1)
	}
	return folders
}

// ReportBlobName returns the name of the index-th report in folder.
func ReportBlobName(folder string, index int) string {
	return fmt.Sprintf("%sreport_%04d%s", folder, index, ReportExtension)
}

// IsReportBlob reports whether name follows the staged report naming convention.
func IsReportBlob(name string) bool {
	return strings.HasSuffix(name, ReportExtension)
}
