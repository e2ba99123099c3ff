package watch

import (
	"strconv"
	"sync/atomic"
	"time"
)

// Venue identifies one reservation area at a gym.
type Venue struct {
	Key    string
	GymID  int64
	AreaID int64
	Name   string
}

// DisplayName falls back to the config key when no name is known.
func (v Venue) DisplayName() string {
	if v.Name != "" {
		return v.Name
	}
	if v.Key != "" {
		return v.Key
	}
	return "gym " + strconv.FormatInt(v.GymID, 10)
}

// WatchItem is one search: a venue and a window. Once handled it stays
// handled for the lifetime of the process.
type WatchItem struct {
	Venue  Venue
	Window Window

	handled atomic.Bool
}

func NewItem(v Venue, w Window) *WatchItem {
	return &WatchItem{Venue: v, Window: w}
}

func (it *WatchItem) Handled() bool { return it.handled.Load() }

// MarkHandled sets the flag and reports whether this call changed it.
func (it *WatchItem) MarkHandled() bool {
	return it.handled.CompareAndSwap(false, true)
}

// Slot is one bookable time range returned by a query.
type Slot struct {
	Date  time.Time
	Start time.Time
	End   time.Time
	// SpotsAvailable is nil when the service does not report capacity.
	SpotsAvailable *int
}

// Spots is a helper for building a known spot count.
func Spots(n int) *int { return &n }
