package status

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gymwatch/internal/watch"
	logx "gymwatch/pkg/logx"
)

type fakeState struct {
	stamp watch.RunStamp
	queue *watch.Queue
}

func (s *fakeState) LastRun() (time.Time, bool) { return s.stamp.Get() }
func (s *fakeState) Queue() *watch.Queue        { return s.queue }

func setup() (*gin.Engine, *fakeState) {
	gin.SetMode(gin.TestMode)
	start := time.Date(2026, 10, 20, 18, 0, 0, 0, time.UTC)
	st := &fakeState{queue: watch.NewQueue(
		watch.NewItem(watch.Venue{Key: "hub", Name: "Boulder Hub"}, watch.Window{Start: start, End: start.Add(2 * time.Hour)}),
	)}
	return NewRouter(st, true, logx.Nop()), st
}

func get(r http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w
}

func TestHealthz(t *testing.T) {
	r, _ := setup()
	w := get(r, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"ok":true}`, w.Body.String())
}

func TestStatusBeforeFirstRun(t *testing.T) {
	r, _ := setup()
	w := get(r, "/status")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{
		"last_run": null,
		"debug": true,
		"pending": 1,
		"queue": [{"gym":"hub","name":"Boulder Hub","start":"2026-10-20T18:00:00Z","end":"2026-10-20T20:00:00Z","handled":false}]
	}`, w.Body.String())
}

func TestStatusAfterRun(t *testing.T) {
	r, st := setup()
	st.stamp.Set(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	st.queue.Items()[0].MarkHandled()

	var body statusResponse
	require.NoError(t, json.Unmarshal(get(r, "/status").Body.Bytes(), &body))
	require.NotNil(t, body.LastRun)
	assert.True(t, body.LastRun.Equal(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)))
	assert.Zero(t, body.Pending)
	assert.True(t, body.Queue[0].Handled)
}

func TestUnknownPath(t *testing.T) {
	r, _ := setup()
	assert.Equal(t, http.StatusNotFound, get(r, "/nope").Code)
}

func TestServerServesAndStops(t *testing.T) {
	r, _ := setup()
	srv := NewServer("127.0.0.1:0", r, logx.Nop())
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx) }()

	resp, err := http.Get("http://" + srv.Addr() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	assert.JSONEq(t, `{"ok":true}`, string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
