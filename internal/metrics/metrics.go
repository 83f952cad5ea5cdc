package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quakereport"

// Metrics groups the collectors of the feed pipeline. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	loadsStarted    prometheus.Counter
	loads           *prometheus.CounterVec
	fetches         *prometheus.CounterVec
	fetchDuration   prometheus.Histogram
	featuresDropped prometheus.Counter
	recordsDecoded  prometheus.Counter
	loaderState     prometheus.Gauge
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		loadsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_started_total",
			Help:      "Number of loads started",
		}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "loads_total",
			Help:      "Number of finished loads by outcome",
		}, []string{"outcome"}),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_total",
			Help:      "Number of feed fetches by result",
		}, []string{"result"}),
		fetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching the feed",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20},
		}),
		featuresDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_dropped_total",
			Help:      "Feed features skipped because a required field was missing or mistyped",
		}),
		recordsDecoded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_decoded_total",
			Help:      "Event records decoded from the feed",
		}),
		loaderState: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "loader_state",
			Help:      "Current loader state (0 idle, 1 loading, 2 delivered, 3 abandoned)",
		}),
	}
	reg.MustRegister(
		m.loadsStarted, m.loads, m.fetches, m.fetchDuration,
		m.featuresDropped, m.recordsDecoded, m.loaderState,
	)
	return m
}

func (m *Metrics) LoadStarted() {
	if m == nil {
		return
	}
	m.loadsStarted.Inc()
}

// LoadFinished counts a load by outcome: delivered, abandoned or discarded.
func (m *Metrics) LoadFinished(outcome string) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveFetch(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(result).Inc()
	m.fetchDuration.Observe(d.Seconds())
}

func (m *Metrics) ObserveDecode(records, dropped int) {
	if m == nil {
		return
	}
	m.recordsDecoded.Add(float64(records))
	m.featuresDropped.Add(float64(dropped))
}

func (m *Metrics) SetLoaderState(state int) {
	if m == nil {
		return
	}
	m.loaderState.Set(float64(state))
}
