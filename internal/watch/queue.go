package watch

import (
	"sync/atomic"
	"time"
)

// Queue is the ordered, fixed set of watch items.
type Queue struct {
	items []*WatchItem
}

func NewQueue(items ...*WatchItem) *Queue {
	cp := make([]*WatchItem, len(items))
	copy(cp, items)
	return &Queue{items: cp}
}

// Items returns the items in order. The slice must not be modified.
func (q *Queue) Items() []*WatchItem {
	if q == nil {
		return nil
	}
	return q.items
}

func (q *Queue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}

// Pending counts items not yet handled.
func (q *Queue) Pending() int {
	n := 0
	for _, it := range q.Items() {
		if !it.Handled() {
			n++
		}
	}
	return n
}

// ItemState is a read-only copy of a WatchItem.
type ItemState struct {
	Venue   Venue
	Window  Window
	Handled bool
}

func (q *Queue) Snapshot() []ItemState {
	out := make([]ItemState, 0, q.Len())
	for _, it := range q.Items() {
		out = append(out, ItemState{Venue: it.Venue, Window: it.Window, Handled: it.Handled()})
	}
	return out
}

// RunStamp holds the time of the last poll cycle. The poller writes it;
// status readers load it.
type RunStamp struct {
	unixNano atomic.Int64
}

func (s *RunStamp) Set(t time.Time) { s.unixNano.Store(t.UnixNano()) }

// Get returns the stored time and false when nothing was recorded yet.
func (s *RunStamp) Get() (time.Time, bool) {
	n := s.unixNano.Load()
	if n == 0 {
		return time.Time{}, false
	}
	return time.Unix(0, n), true
}
