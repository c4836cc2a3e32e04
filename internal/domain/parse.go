package domain

import (
	"regexp"
	"strconv"
	"strings"
)

// ReportFormat is the format detected from a blob's first non-empty line.
type ReportFormat int

const (
	FormatUnrecognized ReportFormat = iota
	FormatNews
	FormatSocial
)

func (f ReportFormat) String() string {
	switch f {
	case FormatNews:
		return "news"
	case FormatSocial:
		return "social"
	default:
		return "unrecognized"
	}
}

// SkipReason explains why a blob produced no records.
type SkipReason string

const (
	SkipNone         SkipReason = ""
	SkipEmptyBlob    SkipReason = "empty_blob"
	SkipMissingTweet SkipReason = "missing_tweet_line"
	SkipMissingTime  SkipReason = "missing_time_line"
)

// SocialSeverity is the fixed severity of every social-post record.
const SocialSeverity = 1

// ParseResult is the outcome of parsing one blob.
type ParseResult struct {
	Format  ReportFormat
	Records []IncidentRecord
	Skip    SkipReason
}

// socialAddressRe captures the trailing text after " at " in a post.
var socialAddressRe = regexp.MustCompile(`(?i) at (.+)$`)

// ParseReport converts one blob into canonical incident records. It never
// fails: malformed fields are coerced and unusable blobs come back with a
// SkipReason and no records.
func ParseReport(blob RawBlob) ParseResult {
	lines := strings.Split(strings.TrimSpace(blob.Content), "\n")
	first := strings.TrimSpace(lines[0])
	if first == "" {
		return ParseResult{Format: FormatUnrecognized, Skip: SkipEmptyBlob}
	}

	var res ParseResult
	if strings.HasPrefix(strings.ToLower(first), "title") {
		res = ParseResult{Format: FormatNews, Records: []IncidentRecord{parseNews(lines)}}
	} else {
		res = parseSocial(lines)
	}

	for i := range res.Records {
		res.Records[i].SourceBlob = blob.Name
	}
	return res
}

func parseNews(lines []string) IncidentRecord {
	var rec IncidentRecord
	for _, line := range lines {
		key, val, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "title":
			rec.PotentialAddress = newsAddress(val)
		case "incident":
			rec.Description = val
		case "severity":
			rec.Severity = parseSeverity(val)
		case "time":
			rec.EventTime = val
		}
	}
	return rec
}

// newsAddress takes the title text after the last " at ", or the whole title
// when the separator is absent.
func newsAddress(title string) *string {
	addr := title
	if i := strings.LastIndex(title, " at "); i >= 0 {
		addr = title[i+len(" at "):]
	}
	if addr == "" {
		return nil
	}
	return &addr
}

// parseSeverity returns the integer severity, or 0 for anything unparseable
// or negative.
func parseSeverity(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func parseSocial(lines []string) ParseResult {
	tweet, hasTweet := findPrefixed(lines, "tweet:")
	evt, hasTime := findPrefixed(lines, "time:")
	switch {
	case !hasTweet:
		return ParseResult{Format: FormatSocial, Skip: SkipMissingTweet}
	case !hasTime:
		return ParseResult{Format: FormatSocial, Skip: SkipMissingTime}
	}

	rec := IncidentRecord{
		Description: tweet,
		Severity:    SocialSeverity,
		EventTime:   evt,
	}
	if m := socialAddressRe.FindStringSubmatch(tweet); m != nil {
		addr := strings.TrimSpace(m[1])
		rec.PotentialAddress = &addr
	}
	return ParseResult{Format: FormatSocial, Records: []IncidentRecord{rec}}
}

// findPrefixed returns the trimmed text after the first ":" of the first line
// starting with prefix (case-insensitive).
func findPrefixed(lines []string, prefix string) (string, bool) {
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToLower(line), prefix) {
			_, val, _ := strings.Cut(line, ":")
			return strings.TrimSpace(val), true
		}
	}
	return "", false
}
