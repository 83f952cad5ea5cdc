// Package query composes USGS event query URLs.
package query

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

const (
	DefaultBaseURL   = "https://earthquake.usgs.gov/fdsnws/event/1/query"
	DefaultFormat    = "geojson"
	DefaultEventType = "earthquake"
	DefaultLimit     = 10
)

// Filters are the query parameters of one request. MinMagnitude is kept as
// text so the caller's formatting (e.g. "2.5") reaches the wire unchanged.
type Filters struct {
	Format       string
	EventType    string
	Limit        int
	MinMagnitude string
	OrderBy      string
}

// BuildURL appends the filters to base in a fixed order:
// format, eventtype, limit, minmag, orderby.
func BuildURL(base string, f Filters) string {
	params := [...][2]string{
		{"format", f.Format},
		{"eventtype", f.EventType},
		{"limit", strconv.Itoa(f.Limit)},
		{"minmag", f.MinMagnitude},
		{"orderby", f.OrderBy},
	}
	var b strings.Builder
	b.WriteString(base)
	sep := byte('?')
	if strings.Contains(base, "?") {
		sep = '&'
		if strings.HasSuffix(base, "?") || strings.HasSuffix(base, "&") {
			sep = 0
		}
	}
	for _, p := range params {
		if sep != 0 {
			b.WriteByte(sep)
		}
		sep = '&'
		b.WriteString(url.QueryEscape(p[0]))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p[1]))
	}
	return b.String()
}

// FetchRequest is built fresh for every load and never mutated.
type FetchRequest struct {
	base    string
	filters Filters
}

// NewFetchRequest fills the fixed filters around the caller's min magnitude
// and sort order. An empty base falls back to DefaultBaseURL.
func NewFetchRequest(base, minMagnitude, orderBy string) FetchRequest {
	if strings.TrimSpace(base) == "" {
		base = DefaultBaseURL
	}
	return FetchRequest{
		base: base,
		filters: Filters{
			Format:       DefaultFormat,
			EventType:    DefaultEventType,
			Limit:        DefaultLimit,
			MinMagnitude: minMagnitude,
			OrderBy:      orderBy,
		},
	}
}

// WithLimit returns a copy with a different result limit.
func (r FetchRequest) WithLimit(n int) FetchRequest {
	if n > 0 {
		r.filters.Limit = n
	}
	return r
}

func (r FetchRequest) Base() string     { return r.base }
func (r FetchRequest) Filters() Filters { return r.filters }
func (r FetchRequest) URL() string      { return BuildURL(r.base, r.filters) }

var validOrders = map[string]bool{
	"time":          true,
	"time-asc":      true,
	"magnitude":     true,
	"magnitude-asc": true,
}

// ValidateOrderBy reports whether s is a sort order the feed accepts.
func ValidateOrderBy(s string) error {
	if !validOrders[s] {
		return fmt.Errorf("invalid order %q (want time, time-asc, magnitude or magnitude-asc)", s)
	}
	return nil
}

// ValidateMinMagnitude reports whether s is a finite decimal number.
func ValidateMinMagnitude(s string) error {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return fmt.Errorf("invalid min magnitude %q: %w", s, err)
	}
	if v != v || v > 12 || v < -12 {
		return fmt.Errorf("min magnitude %q out of range", s)
	}
	return nil
}
