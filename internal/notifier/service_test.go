package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kit "gymwatch/internal/transport"
	"gymwatch/internal/watch"
	logx "gymwatch/pkg/logx"
)

type fakeAdapter struct {
	mu   sync.Mutex
	sent []string
	to   []kit.ChatTarget
	err  error
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }
func (f *fakeAdapter) SendText(_ context.Context, to kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return kit.MessageRef{}, f.err
	}
	f.sent = append(f.sent, text)
	f.to = append(f.to, to)
	return kit.MessageRef{ChatID: to.ChatID, MessageID: len(f.sent)}, nil
}

func newService(a kit.Adapter, size int) *Service {
	return New(Config{Target: kit.ChatTarget{ChatID: 42, ThreadID: 7}, RatePerSec: 100, HistorySize: size},
		a, watch.NewQueue(), nil, logx.Nop())
}

func TestSendMessage(t *testing.T) {
	a := &fakeAdapter{}
	s := newService(a, 0)
	require.NoError(t, s.SendMessage(context.Background(), "Slot(s) available"))
	assert.Equal(t, []string{"Slot(s) available"}, a.sent)
	assert.Equal(t, kit.ChatTarget{ChatID: 42, ThreadID: 7}, a.to[0])

	h := s.History()
	require.Len(t, h, 1)
	assert.Empty(t, h[0].Err)
}

func TestSendMessageEmptyIsNoop(t *testing.T) {
	a := &fakeAdapter{}
	s := newService(a, 0)
	require.NoError(t, s.SendMessage(context.Background(), "  "))
	assert.Empty(t, a.sent)
	assert.Empty(t, s.History())
}

func TestSendMessageError(t *testing.T) {
	a := &fakeAdapter{err: errors.New("chat not found")}
	s := newService(a, 0)
	err := s.SendMessage(context.Background(), "hi")
	assert.ErrorContains(t, err, "chat not found")
	require.Len(t, s.History(), 1)
	assert.Equal(t, "chat not found", s.History()[0].Err)
}

func TestSendMessageNoTarget(t *testing.T) {
	s := New(Config{}, &fakeAdapter{}, nil, nil, logx.Nop())
	assert.ErrorIs(t, s.SendMessage(context.Background(), "hi"), ErrNoTarget)
}

func TestHistoryIsBounded(t *testing.T) {
	s := newService(&fakeAdapter{}, 2)
	for _, m := range []string{"a", "b", "c"} {
		require.NoError(t, s.SendMessage(context.Background(), m))
	}
	h := s.History()
	require.Len(t, h, 2)
	assert.Equal(t, "b", h[0].Text)
	assert.Equal(t, "c", h[1].Text)
}

func TestLastRunSharesStamp(t *testing.T) {
	stamp := &watch.RunStamp{}
	s := New(Config{}, nil, nil, stamp, logx.Nop())
	_, ok := s.LastRun()
	assert.False(t, ok)

	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	s.SetLastRun(now)
	got, ok := stamp.Get()
	require.True(t, ok)
	assert.True(t, now.Equal(got))
}
