// Package loader runs fetch+decode cycles off the caller's goroutine and
// delivers each outcome to a single observer.
//
// States move Idle -> Loading -> Delivered | Abandoned. Abandon suppresses
// delivery without cancelling the network call; Reset clears delivered data,
// returns to Idle and notifies the observer with an empty result.
package loader

import (
	"context"
	"log"
	"sync"

	"github.com/google/uuid"

	"github.com/Ripplz/QuakeReport/internal/feed"
	"github.com/Ripplz/QuakeReport/internal/metrics"
	"github.com/Ripplz/QuakeReport/internal/model"
	"github.com/Ripplz/QuakeReport/internal/query"
	"github.com/Ripplz/QuakeReport/internal/source"
)

type State int

const (
	Idle State = iota
	Loading
	Delivered
	Abandoned
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Delivered:
		return "delivered"
	case Abandoned:
		return "abandoned"
	default:
		return "unknown"
	}
}

// Observer receives load outcomes. Calls are serialized; an observer may call
// back into the Loader, except Wait, which blocks until the delivering worker
// (the one running the observer) has returned.
type Observer func(model.LoadResult)

type Loader struct {
	ctx     context.Context
	fetcher source.Fetcher
	metrics *metrics.Metrics
	logger  *log.Logger

	mu        sync.Mutex
	state     State
	abandoned bool
	running   bool   // a worker goroutine has not finished yet
	gen       uint64 // bumped by Start and Reset; stale workers discard their result
	last      *model.LoadResult
	observer  Observer
	pending   []model.LoadResult
	draining  bool

	wg sync.WaitGroup
}

// New returns an idle loader. ctx bounds every fetch the loader starts; it is
// not cancelled by Abandon.
func New(ctx context.Context, f source.Fetcher, m *metrics.Metrics, logger *log.Logger) *Loader {
	if logger == nil {
		logger = log.Default()
	}
	l := &Loader{ctx: ctx, fetcher: f, metrics: m, logger: logger}
	m.SetLoaderState(int(Idle))
	return l
}

// Register sets the observer, replacing any previous one. nil unregisters.
func (l *Loader) Register(o Observer) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.observer = o
}

func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Last returns the most recently delivered result, if any.
func (l *Loader) Last() (model.LoadResult, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last == nil {
		return model.LoadResult{}, false
	}
	return *l.last, true
}

// Start begins a load for req on a new goroutine. It returns false without
// doing anything while a load is in flight or after Abandon.
func (l *Loader) Start(req query.FetchRequest) bool {
	l.mu.Lock()
	if l.running || l.abandoned {
		l.mu.Unlock()
		return false
	}
	l.gen++
	gen := l.gen
	l.running = true
	l.setState(Loading)
	l.wg.Add(1)
	l.mu.Unlock()

	id := uuid.NewString()
	l.metrics.LoadStarted()
	go l.run(gen, id, req)
	return true
}

// Fail delivers err as the outcome of a load that never reached the network,
// for example when the host is offline. Like Start it returns false without
// doing anything while a load is in flight or after Abandon.
func (l *Loader) Fail(err error) bool {
	l.mu.Lock()
	if l.running || l.abandoned {
		l.mu.Unlock()
		return false
	}
	res := model.LoadResult{LoadID: uuid.NewString(), Err: err}
	l.setState(Delivered)
	l.last = &res
	l.pending = append(l.pending, res)
	l.mu.Unlock()

	l.logger.Printf("loader: %s failed before fetch: %v", res.LoadID, err)
	l.metrics.LoadStarted()
	l.metrics.LoadFinished("delivered")
	l.drain()
	return true
}

// Abandon suppresses delivery of the in-flight load, if any, and of every
// later one until Reset. It is safe to call at any time and more than once.
func (l *Loader) Abandon() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.abandoned {
		return
	}
	l.abandoned = true
	if l.state != Loading {
		l.setState(Abandoned)
	}
}

// Reset drops delivered data, returns to Idle and notifies the observer with
// an empty result. An in-flight load is discarded when it completes.
func (l *Loader) Reset() {
	l.mu.Lock()
	l.gen++
	l.abandoned = false
	l.last = nil
	l.setState(Idle)
	l.pending = append(l.pending, model.Empty())
	l.mu.Unlock()
	l.drain()
}

// Wait blocks until no worker goroutine is running.
func (l *Loader) Wait() { l.wg.Wait() }

func (l *Loader) run(gen uint64, id string, req query.FetchRequest) {
	defer l.wg.Done()
	res := l.load(id, req)

	l.mu.Lock()
	l.running = false
	switch {
	case gen != l.gen:
		l.mu.Unlock()
		l.logger.Printf("loader: %s superseded by reset, discarding result", id)
		l.metrics.LoadFinished("discarded")
		return
	case l.abandoned:
		l.setState(Abandoned)
		l.mu.Unlock()
		l.logger.Printf("loader: %s abandoned, discarding result", id)
		l.metrics.LoadFinished("abandoned")
		return
	}
	l.setState(Delivered)
	l.last = &res
	l.pending = append(l.pending, res)
	l.mu.Unlock()

	l.metrics.LoadFinished("delivered")
	l.drain()
}

func (l *Loader) load(id string, req query.FetchRequest) model.LoadResult {
	u := req.URL()
	l.logger.Printf("loader: %s fetching %s", id, u)
	body, err := l.fetcher.Fetch(l.ctx, u)
	if err != nil {
		if model.ReasonOf(err) == model.ReasonUnknown {
			err = model.NewLoadError(model.TransportError, err)
		}
		l.logger.Printf("loader: %s fetch %s: %v", id, l.fetcher.Name(), err)
		return model.LoadResult{LoadID: id, Err: err}
	}
	dec, err := feed.Decode(body)
	if err != nil {
		l.logger.Printf("loader: %s decode: %v", id, err)
		return model.LoadResult{LoadID: id, Err: err}
	}
	l.metrics.ObserveDecode(len(dec.Records), dec.Dropped)
	if dec.Dropped > 0 {
		l.logger.Printf("loader: %s skipped %d incomplete feature(s)", id, dec.Dropped)
	}
	l.logger.Printf("loader: %s decoded %d event(s)", id, len(dec.Records))
	return model.LoadResult{LoadID: id, Records: dec.Records, Dropped: dec.Dropped}
}

// drain hands pending results to the observer in order. Only one goroutine
// drains at a time; a re-entrant call from the observer returns immediately
// and its notification is picked up by the loop below.
func (l *Loader) drain() {
	l.mu.Lock()
	if l.draining {
		l.mu.Unlock()
		return
	}
	l.draining = true
	for len(l.pending) > 0 {
		res := l.pending[0]
		l.pending = l.pending[1:]
		obs := l.observer
		l.mu.Unlock()
		if obs != nil {
			obs(res)
		}
		l.mu.Lock()
	}
	l.draining = false
	l.mu.Unlock()
}

// setState must be called with l.mu held.
func (l *Loader) setState(s State) {
	l.state = s
	l.metrics.SetLoaderState(int(s))
}
