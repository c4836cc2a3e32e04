// Package domain models free-text transit incident reports, vehicle position
// pings, and the integrated documents served by the search API.
//
// # Report Blobs
//
// Reports are staged as plain-text blobs in object storage. The fetcher copies
// each upstream report into a dated folder:
//
//	<prefix>_<YYYYMMDD>/report_<NNNN>.txt   e.g. "reports_20240101/report_0007.txt"
//
// Indices continue after the number of ".txt" blobs already in the folder, so a
// fetch never overwrites an earlier report. See [ReportFolder] and [ReportBlobName].
//
// # Report Formats
//
// The format is sniffed from the first non-empty line of the blob.
//
// News (first line starts with "title", case-insensitive), key:value lines:
//
//	Title: Incident at Main St
//	Incident: A random event occurred near Main St.
//	Severity: 3
//	Time: 2024-01-01T00:00:00Z
//
//	- potential_address is the Title text after the last " at ". A title without
//	  " at " is passed through whole. An empty remainder is treated as absent.
//	- Severity that is not an integer (or is missing) becomes 0.
//	- Lines without ":" are ignored. A missing Incident or Time key leaves the
//	  field empty; empty fields are stored as NULL in the warehouse.
//
// Social post (any other first line), two required lines:
//
//	tweet: Traffic buildup at Central Station
//	time: 2024-01-01T00:00:00+00:00
//
//	- potential_address is the text after the first " at " (case-insensitive);
//	  no match leaves it absent. Unlike news, there is no pass-through fallback.
//	- Severity is always 1.
//	- A blob missing either line yields no record and a skip reason.
//
// Parsing never fails. Every outcome is a [ParseResult] carrying the detected
// [ReportFormat], the records, and a [SkipReason] when nothing was produced.
//
// # Batch Window
//
// A report ingestion cycle selects ".txt" blobs created at or after
// as_of − lookback. The lookback is configured larger than the cycle interval,
// so consecutive cycles overlap and the warehouse may receive duplicate rows.
// Duplicates collapse downstream at the document upsert key.
//
// # Vehicle Identifiers
//
// Vehicle ids are "<route>.0_<NNN>". The ".0" suffix is inherited from upstream
// tooling that rendered numeric route ids as floats; route filters match on the
// "<route>.0_" prefix. See [RoutePrefix].
//
// # Document Key
//
// Indexed documents are keyed "<vehicle_id>_<ping unix millis>" so repeated
// indexing cycles overwrite instead of duplicating. See [DocumentID].
package domain
