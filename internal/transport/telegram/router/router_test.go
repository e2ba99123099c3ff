package router

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymwatch/internal/notifier"
	kit "gymwatch/internal/transport"
	"gymwatch/internal/watch"
	logx "gymwatch/pkg/logx"
)

type fakeAdapter struct {
	sent chan string
}

func (f *fakeAdapter) Start(context.Context, chan<- kit.Update) error { return nil }
func (f *fakeAdapter) Stop(context.Context) error                     { return nil }
func (f *fakeAdapter) SendText(_ context.Context, _ kit.ChatTarget, text string, _ *kit.SendOptions) (kit.MessageRef, error) {
	f.sent <- text
	return kit.MessageRef{}, nil
}

type fakeState struct {
	last    time.Time
	queue   *watch.Queue
	history []notifier.HistoryItem
}

func (s *fakeState) LastRun() (time.Time, bool)      { return s.last, !s.last.IsZero() }
func (s *fakeState) Queue() *watch.Queue             { return s.queue }
func (s *fakeState) History() []notifier.HistoryItem { return s.history }

func newState() *fakeState {
	day := time.Date(2026, 10, 20, 0, 0, 0, 0, time.UTC)
	a := watch.NewItem(watch.Venue{Key: "hub", Name: "Boulder Hub"}, watch.Window{Start: day.Add(18 * time.Hour), End: day.Add(20 * time.Hour)})
	b := watch.NewItem(watch.Venue{Key: "north"}, watch.Window{Start: day.Add(10 * time.Hour), End: day.Add(12 * time.Hour)})
	b.MarkHandled()
	return &fakeState{queue: watch.NewQueue(a, b)}
}

func start(t *testing.T, st State, opt Options) (chan kit.Update, *fakeAdapter) {
	t.Helper()
	ad := &fakeAdapter{sent: make(chan string, 8)}
	opt.Loc = time.UTC
	if opt.Chat == 0 {
		opt.Chat = 1
	}
	r := New(logx.Nop(), ad, st, opt)
	ctx, cancel := context.WithCancel(context.Background())
	updates := make(chan kit.Update, 8)
	done := make(chan struct{})
	go func() {
		_ = r.Run(ctx, updates)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return updates, ad
}

func say(updates chan kit.Update, from int64, text string) {
	sayIn(updates, 1, from, text)
}

func sayIn(updates chan kit.Update, chat, from int64, text string) {
	updates <- kit.Update{Message: &kit.Message{ChatID: chat, FromID: from, Text: text}}
}

func reply(t *testing.T, ad *fakeAdapter) string {
	t.Helper()
	select {
	case s := <-ad.sent:
		return s
	case <-time.After(2 * time.Second):
		t.Fatal("no reply")
		return ""
	}
}

func TestStatusNeverPolled(t *testing.T) {
	updates, ad := start(t, newState(), Options{Debug: true})
	say(updates, 5, "/status")
	got := reply(t, ad)
	assert.Contains(t, got, "last poll: never")
	assert.Contains(t, got, "queue: 2 item(s), 1 pending")
	assert.Contains(t, got, "debug: true")
}

func TestStatusWithHistory(t *testing.T) {
	st := newState()
	st.last = time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	st.history = []notifier.HistoryItem{{At: st.last, Text: "x", Err: "chat not found"}}
	updates, ad := start(t, st, Options{})
	say(updates, 5, "/status@gymwatch_bot")
	got := reply(t, ad)
	assert.Contains(t, got, "last poll: 2026-10-19 09:30:00")
	assert.Contains(t, got, "(failed: chat not found)")
}

func TestQueueListing(t *testing.T) {
	updates, ad := start(t, newState(), Options{})
	say(updates, 5, "/queue")
	assert.Equal(t, "[ ] Boulder Hub 2026-10-20 18:00-20:00\n[x] north 2026-10-20 10:00-12:00", reply(t, ad))
}

func TestOwnerOnly(t *testing.T) {
	updates, ad := start(t, newState(), Options{Owners: []int64{99}})
	say(updates, 5, "/queue")
	assert.Equal(t, "unauthorized", reply(t, ad))

	say(updates, 5, "/help")
	got := reply(t, ad)
	assert.Contains(t, got, "/queue - list watched windows")
	assert.Contains(t, got, "/status - last poll and queue summary")

	say(updates, 99, "/queue")
	assert.Contains(t, reply(t, ad), "Boulder Hub")
}

func TestQueuePendingOnly(t *testing.T) {
	updates, ad := start(t, newState(), Options{})
	say(updates, 5, "/queue pending")
	assert.Equal(t, "[ ] Boulder Hub 2026-10-20 18:00-20:00", reply(t, ad))

	st := newState()
	st.queue.Items()[0].MarkHandled()
	updates, ad = start(t, st, Options{})
	say(updates, 5, "/queue PENDING")
	assert.Equal(t, "nothing pending", reply(t, ad))
}

func TestNoOwnersRestrictsToNotificationChat(t *testing.T) {
	updates, ad := start(t, newState(), Options{Chat: 42})
	sayIn(updates, 777, 5, "/queue")
	assert.Equal(t, "unauthorized", reply(t, ad))

	sayIn(updates, 777, 5, "/help")
	assert.Contains(t, reply(t, ad), "/status")

	sayIn(updates, 42, 5, "/status")
	assert.Contains(t, reply(t, ad), "queue: 2 item(s), 1 pending")
}

func TestUnknownAndPlainText(t *testing.T) {
	updates, ad := start(t, newState(), Options{})
	say(updates, 5, "hello there")
	say(updates, 5, "/book now")
	assert.Equal(t, "unknown command, try /help", reply(t, ad))
}

func TestParseCommand(t *testing.T) {
	name, args, ok := parseCommand("  /Status@bot  a b ")
	require.True(t, ok)
	assert.Equal(t, "status", name)
	assert.Equal(t, []string{"a", "b"}, args)

	_, _, ok = parseCommand("status")
	assert.False(t, ok)
	_, _, ok = parseCommand("/")
	assert.False(t, ok)
}

func TestChainOrderAndRecover(t *testing.T) {
	var order []string
	mk := func(name string) Middleware {
		return func(next HandlerFunc) HandlerFunc {
			return func(ctx context.Context, req *Request) error {
				order = append(order, name)
				return next(ctx, req)
			}
		}
	}
	h := Chain(func(context.Context, *Request) error { panic("boom") }, MWPanicRecover(logx.Nop()), mk("a"), mk("b"))
	err := h(context.Background(), &Request{Command: "x"})
	assert.EqualError(t, err, "panic: boom")
	assert.Equal(t, []string{"a", "b"}, order)
}
