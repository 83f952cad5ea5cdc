package source

import (
	"context"
	"fmt"
	"log"

	"github.com/Ripplz/QuakeReport/internal/config"
	"github.com/Ripplz/QuakeReport/internal/metrics"
)

// Fetcher retrieves the raw feed body for a fully-built query URL.
type Fetcher interface {
	Name() string
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// NewFromConfig builds the fetcher described by c.
func NewFromConfig(c config.FeedConfig, m *metrics.Metrics, logger *log.Logger) (Fetcher, error) {
	var probe Connectivity
	switch c.Connectivity {
	case "", "interfaces":
		probe = NewInterfaceProbe()
	case "none":
		probe = AlwaysOnline
	default:
		return nil, fmt.Errorf("unknown connectivity probe: %s", c.Connectivity)
	}
	return NewHTTPFetcher(Options{
		ConnectTimeout: c.ConnectTimeout,
		ReadTimeout:    c.ReadTimeout,
		UserAgent:      c.UserAgent,
		MaxBodyBytes:   c.MaxBodyBytes,
		Probe:          probe,
		Metrics:        m,
		Logger:         logger,
	}), nil
}
