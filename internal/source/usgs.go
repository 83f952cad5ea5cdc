package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/Ripplz/QuakeReport/internal/metrics"
	"github.com/Ripplz/QuakeReport/internal/model"
	"github.com/Ripplz/QuakeReport/internal/util"
)

const (
	DefaultUserAgent    = "quakereport/1.0"
	DefaultMaxBodyBytes = 10 << 20
)

const tracerName = "github.com/Ripplz/QuakeReport/internal/source"

type Options struct {
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	UserAgent      string
	MaxBodyBytes   int64
	Probe          Connectivity // nil means AlwaysOnline
	Metrics        *metrics.Metrics
	Logger         *log.Logger
	Client         *http.Client // overrides the timeouts when set
	Tracer         trace.Tracer // nil means the global provider's tracer
}

// HTTPFetcher performs one GET per call with no retry.
type HTTPFetcher struct {
	client    *http.Client
	probe     Connectivity
	userAgent string
	maxBody   int64
	metrics   *metrics.Metrics
	logger    *log.Logger
	tracer    trace.Tracer
}

func NewHTTPFetcher(o Options) *HTTPFetcher {
	f := &HTTPFetcher{
		client:    o.Client,
		probe:     o.Probe,
		userAgent: strings.TrimSpace(o.UserAgent),
		maxBody:   o.MaxBodyBytes,
		metrics:   o.Metrics,
		logger:    o.Logger,
		tracer:    o.Tracer,
	}
	if f.client == nil {
		f.client = util.NewHTTPClient(o.ConnectTimeout, o.ReadTimeout)
	}
	if f.probe == nil {
		f.probe = AlwaysOnline
	}
	if f.userAgent == "" {
		f.userAgent = DefaultUserAgent
	}
	if f.maxBody <= 0 {
		f.maxBody = DefaultMaxBodyBytes
	}
	if f.logger == nil {
		f.logger = log.Default()
	}
	if f.tracer == nil {
		f.tracer = otel.Tracer(tracerName)
	}
	return f
}

func (f *HTTPFetcher) Name() string { return "usgs" }

// Fetch returns the full response body for a 2xx response. Failures are
// *model.LoadError values classified as NetworkUnavailable, Timeout,
// HTTPError or TransportError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	ctx, span := f.tracer.Start(ctx, "usgs.fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(attribute.String("http.url", url)),
	)
	defer span.End()

	start := time.Now()
	body, err := f.fetch(ctx, url)
	result := "ok"
	if err != nil {
		result = model.ReasonOf(err).String()
		span.RecordError(err)
		span.SetStatus(codes.Error, result)
	}
	span.SetAttributes(attribute.Int("http.response.body.size", len(body)))
	f.metrics.ObserveFetch(result, time.Since(start))
	return body, err
}

func (f *HTTPFetcher) fetch(ctx context.Context, url string) ([]byte, error) {
	if !f.probe.Online(ctx) {
		return nil, model.NewLoadError(model.NetworkUnavailable, errors.New("no network path available"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, model.NewLoadError(model.TransportError, fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "application/geo+json, application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		f.logger.Printf("usgs: http %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
		return nil, &model.LoadError{
			Reason: model.HTTPError,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status %s", resp.Status),
		}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBody+1))
	if err != nil {
		return nil, classify(fmt.Errorf("read body: %w", err))
	}
	if int64(len(body)) > f.maxBody {
		return nil, model.NewLoadError(model.TransportError, fmt.Errorf("response exceeds %d bytes", f.maxBody))
	}
	return body, nil
}

func classify(err error) *model.LoadError {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, os.ErrDeadlineExceeded) {
		return model.NewLoadError(model.Timeout, err)
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return model.NewLoadError(model.Timeout, err)
	}
	return model.NewLoadError(model.TransportError, err)
}
