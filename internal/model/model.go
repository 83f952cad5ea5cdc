package model

import (
	"strings"
	"time"
)

// EventRecord is the normalized representation of one feed feature.
type EventRecord struct {
	Magnitude  float64 `json:"magnitude"`   // may be fractional or negative
	Location   string  `json:"location"`    // e.g. "12km NE of Example City"
	TimeMillis int64   `json:"time_millis"` // ms since epoch, UTC
	URL        string  `json:"url"`         // absolute detail link
}

// Time returns the occurrence time in UTC.
func (e EventRecord) Time() time.Time {
	return time.UnixMilli(e.TimeMillis).UTC()
}

const locationSeparator = " of "

// SplitLocation splits "12km NE of Example City" into ("12km NE of", "Example City").
// Locations without a directional offset are reported as ("Near the", location).
func (e EventRecord) SplitLocation() (offset, primary string) {
	i := strings.Index(e.Location, locationSeparator)
	if i < 0 {
		return "Near the", e.Location
	}
	return e.Location[:i+len(locationSeparator)-1], e.Location[i+len(locationSeparator):]
}

// LoadResult is the outcome of one fetch+decode cycle.
type LoadResult struct {
	LoadID  string        // correlation id; empty for reset notifications
	Records []EventRecord // ordered as returned by the feed; nil on failure
	Err     error         // *LoadError when the load failed
	Dropped int           // features skipped by the decoder
}

// Empty is the result delivered on reset.
func Empty() LoadResult { return LoadResult{Records: []EventRecord{}} }

func (r LoadResult) Failed() bool { return r.Err != nil }
