package watch

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.UTC)
	if err != nil {
		panic(err)
	}
	return t
}

func TestMarkHandledIsMonotonic(t *testing.T) {
	it := NewItem(Venue{Key: "hub"}, Window{Start: at("2026-10-20 18:00"), End: at("2026-10-20 20:00")})
	assert.False(t, it.Handled())

	var wg sync.WaitGroup
	wins := make(chan bool, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			wins <- it.MarkHandled()
		}()
	}
	wg.Wait()
	close(wins)

	n := 0
	for w := range wins {
		if w {
			n++
		}
	}
	assert.Equal(t, 1, n)
	assert.True(t, it.Handled())
	assert.False(t, it.MarkHandled())
	assert.True(t, it.Handled())
}

func TestInHorizonBoundaries(t *testing.T) {
	now := at("2026-10-10 12:00")
	horizon := 10 * 24 * time.Hour
	win := func(start time.Time) Window { return Window{Start: start, End: start.Add(time.Hour)} }

	assert.False(t, win(now).InHorizon(now, horizon), "start == now is skipped")
	assert.False(t, win(now.Add(-time.Minute)).InHorizon(now, horizon))
	assert.True(t, win(now.Add(time.Minute)).InHorizon(now, horizon))
	assert.True(t, win(now.Add(horizon)).InHorizon(now, horizon), "start == now+horizon is included")
	assert.False(t, win(now.Add(horizon+time.Minute)).InHorizon(now, horizon))
}

func TestWindowContains(t *testing.T) {
	w := Window{Start: at("2026-10-20 18:00"), End: at("2026-10-20 20:00")}
	assert.True(t, w.Contains(at("2026-10-20 18:00")))
	assert.True(t, w.Contains(at("2026-10-20 19:59")))
	assert.False(t, w.Contains(at("2026-10-20 20:00")))
	assert.False(t, w.Contains(at("2026-10-20 17:59")))
}

func TestWindowDays(t *testing.T) {
	single := Window{Start: at("2026-10-20 18:00"), End: at("2026-10-20 20:00")}
	require.Len(t, single.Days(), 1)
	assert.Equal(t, at("2026-10-20 00:00"), single.Days()[0])

	overnight := Window{Start: at("2026-10-20 22:00"), End: at("2026-10-22 01:00")}
	days := overnight.Days()
	require.Len(t, days, 3)
	assert.Equal(t, at("2026-10-22 00:00"), days[2])

	toMidnight := Window{Start: at("2026-10-20 22:00"), End: at("2026-10-21 00:00")}
	assert.Len(t, toMidnight.Days(), 1)

	assert.Nil(t, Window{Start: at("2026-10-20 22:00"), End: at("2026-10-20 22:00")}.Days())
}

func TestWindowString(t *testing.T) {
	assert.Equal(t, "2026-10-20 18:00-20:00", Window{Start: at("2026-10-20 18:00"), End: at("2026-10-20 20:00")}.String())
	assert.Equal(t, "2026-10-20 22:00 - 2026-10-21 01:00", Window{Start: at("2026-10-20 22:00"), End: at("2026-10-21 01:00")}.String())
}

func TestQueueSnapshotAndPending(t *testing.T) {
	a := NewItem(Venue{Key: "a"}, Window{})
	b := NewItem(Venue{Key: "b", Name: "Boulder Hub"}, Window{})
	q := NewQueue(a, b)
	assert.Equal(t, 2, q.Len())
	assert.Equal(t, 2, q.Pending())

	b.MarkHandled()
	assert.Equal(t, 1, q.Pending())
	snap := q.Snapshot()
	require.Len(t, snap, 2)
	assert.False(t, snap[0].Handled)
	assert.True(t, snap[1].Handled)
	assert.Equal(t, "Boulder Hub", snap[1].Venue.DisplayName())
	assert.Equal(t, "a", snap[0].Venue.DisplayName())

	var nilQ *Queue
	assert.Zero(t, nilQ.Len())
	assert.Empty(t, nilQ.Snapshot())
}

func TestRunStamp(t *testing.T) {
	var s RunStamp
	_, ok := s.Get()
	assert.False(t, ok)

	now := at("2026-10-19 09:30")
	s.Set(now)
	got, ok := s.Get()
	require.True(t, ok)
	assert.True(t, now.Equal(got))
}
