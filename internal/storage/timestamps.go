package storage

import (
	"fmt"
	"time"
)

// startTimeFormats lists the textual forms request_start_time has been
// stored in. New writes always use RFC 3339 UTC; the zone-less form is a
// legacy of the original log pipeline and survives in old rows, so every
// read parses through this list. Comparing the raw strings across formats
// is never correct.
var startTimeFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999999999",
}

// ParseStartTime canonicalizes a stored request_start_time into a UTC
// instant. Forms without a zone designator are taken as UTC.
func ParseStartTime(s string) (time.Time, error) {
	for _, f := range startTimeFormats {
		if t, err := time.ParseInLocation(f, s, time.UTC); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse request start time: %q", s)
}

// FormatStartTime renders the canonical stored form of a request start
// time: RFC 3339 in UTC.
func FormatStartTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
