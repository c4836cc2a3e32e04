package domain

import "time"

// SelectWindow returns the report blobs created at or after asOf - lookback.
// Input order is preserved; blobs that do not follow the report naming
// convention are dropped.
func SelectWindow(blobs []BlobInfo, asOf time.Time, lookback time.Duration) []BlobInfo {
	start := asOf.Add(-lookback)
	selected := make([]BlobInfo, 0, len(blobs))
	for _, b := range blobs {
		if !IsReportBlob(b.Name) {
			continue
		}
		if b.Created.Before(start) {
			continue
		}
		selected = append(selected, b)
	}
	return selected
}
