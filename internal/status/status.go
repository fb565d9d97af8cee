// Package status tracks the observable state of the sync engine.
package status

import (
	"sync"
	"time"

	"github.com/starford/scraps/internal/models"
)

// State is the engine state shown to users.
type State string

const (
	Idle    State = "idle"
	Syncing State = "syncing"
	Success State = "success"
	Error   State = "error"
)

// Snapshot is a point-in-time view of the reporter.
type Snapshot struct {
	State      State              `json:"state"`
	Since      time.Time          `json:"since"`
	LastReport *models.SyncReport `json:"last_report,omitempty"`
	LastError  string             `json:"last_error,omitempty"`
}

// Reporter holds the current state and fans changes out to subscribers.
type Reporter struct {
	mu   sync.Mutex
	snap Snapshot
	subs map[chan Snapshot]struct{}
	now  func() time.Time
}

// New returns a Reporter in the Idle state.
func New() *Reporter {
	r := &Reporter{subs: map[chan Snapshot]struct{}{}, now: time.Now}
	r.snap = Snapshot{State: Idle, Since: r.now()}
	return r
}

// Begin marks a pass as started.
func (r *Reporter) Begin() {
	r.set(func(s *Snapshot) {
		s.State = Syncing
	})
}

// Finish records the outcome of a pass. A nil err means Success even when
// the report carries note-level failures.
func (r *Reporter) Finish(rep *models.SyncReport, err error) {
	r.set(func(s *Snapshot) {
		if rep != nil {
			s.LastReport = rep
		}
		if err != nil {
			s.State = Error
			s.LastError = err.Error()
			return
		}
		s.State = Success
		s.LastError = ""
	})
}

// Current returns the latest snapshot.
func (r *Reporter) Current() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snap
}

// Subscribe returns a channel receiving every subsequent snapshot. Slow
// subscribers miss intermediate states. Call the returned func to stop.
func (r *Reporter) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)
	r.mu.Lock()
	r.subs[ch] = struct{}{}
	r.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			r.mu.Lock()
			delete(r.subs, ch)
			r.mu.Unlock()
			close(ch)
		})
	}
}

func (r *Reporter) set(fn func(*Snapshot)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(&r.snap)
	r.snap.Since = r.now()
	for ch := range r.subs {
		select {
		case ch <- r.snap:
		default:
		}
	}
}
