package api

import (
	"errors"
	"sync"
	"time"

	"github.com/Ripplz/QuakeReport/internal/model"
)

// Board is the loader's observer: it keeps the last LoadResult for the HTTP surface.
type Board struct {
	mu     sync.RWMutex
	result model.LoadResult
	seen   bool
	at     time.Time
	now    func() time.Time
}

func NewBoard() *Board { return &Board{now: time.Now} }

// Observe records res; register it with loader.Register(b.Observe).
func (b *Board) Observe(res model.LoadResult) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.result = res
	b.seen = true
	b.at = b.now().UTC()
}

type recordView struct {
	model.EventRecord
	Offset  string    `json:"offset"`
	Primary string    `json:"primary"`
	Time    time.Time `json:"time"`
}

type Snapshot struct {
	State     string       `json:"state"`
	LoadID    string       `json:"load_id,omitempty"`
	Records   []recordView `json:"records"`
	Dropped   int          `json:"dropped"`
	Reason    string       `json:"reason,omitempty"`
	Status    int          `json:"status,omitempty"`
	Error     string       `json:"error,omitempty"`
	UpdatedAt *time.Time   `json:"updated_at,omitempty"`
}

// Snapshot renders the last result; state is the loader state at call time.
func (b *Board) Snapshot(state string) Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()
	s := Snapshot{State: state, Records: []recordView{}}
	if !b.seen {
		return s
	}
	at := b.at
	s.UpdatedAt = &at
	s.LoadID = b.result.LoadID
	s.Dropped = b.result.Dropped
	if err := b.result.Err; err != nil {
		s.Error = err.Error()
		s.Reason = model.ReasonOf(err).String()
		var le *model.LoadError
		if errors.As(err, &le) {
			s.Status = le.Status
		}
		return s
	}
	for _, r := range b.result.Records {
		offset, primary := r.SplitLocation()
		s.Records = append(s.Records, recordView{EventRecord: r, Offset: offset, Primary: primary, Time: r.Time()})
	}
	return s
}
