package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterval(t *testing.T) {
	cases := []struct {
		in   string
		want time.Duration
		src  IntervalSource
	}{
		{"90s", 90 * time.Second, SourceDuration},
		{"2m30s", 150 * time.Second, SourceDuration},
		{"00:05", 5 * time.Minute, SourceHHMM},
		{"01:30", 90 * time.Minute, SourceHHMM},
		{"@every 45s", 45 * time.Second, SourceCron},
		{"once", RunOnce, SourceOnce},
		{"ONCE", RunOnce, SourceOnce},
		{"-1s", RunOnce, SourceOnce},
	}
	for _, tc := range cases {
		got, src, err := ParseInterval(tc.in)
		require.NoError(t, err, tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.src, src, tc.in)
	}
}

func TestParseIntervalRejects(t *testing.T) {
	for _, in := range []string{"", "soon", "00:75", "@daily", "@every nope"} {
		_, _, err := ParseInterval(in)
		assert.Error(t, err, in)
	}
}

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{Token: "t", ChatID: 42},
		Watch:    WatchConfig{Interval: "60s", Timezone: "UTC"},
		Gyms:     map[string]GymConfig{"hub": {ID: 7, Name: "Boulder Hub"}},
		Queue:    []QueueItemConfig{{Gym: "hub", Start: "2026-10-20 18:00", End: "2026-10-20 20:00"}},
	}
}

func TestValidateOK(t *testing.T) {
	require.NoError(t, validConfig().Validate())
}

func TestValidateCollectsErrors(t *testing.T) {
	c := validConfig()
	c.Telegram.Token = ""
	c.Watch.Interval = "whenever"
	c.TopLogger.Email = "me@example.com"
	c.Logging.Level = "loud"
	c.Telegram.GroupLog = "@ops"
	c.Queue = append(c.Queue,
		QueueItemConfig{Gym: "nope", Start: "2026-10-20 18:00", End: "2026-10-20 19:00"},
		QueueItemConfig{Gym: "hub", Start: "2026-10-20 18:00", End: "2026-10-20 17:00"},
		QueueItemConfig{Gym: "hub", Start: "tomorrow", End: "2026-10-20 17:00"},
	)

	err := c.Validate()
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "telegram.token is required")
	assert.Contains(t, msg, "watch.interval")
	assert.Contains(t, msg, "must be set together")
	assert.Contains(t, msg, `logging.level: unknown level "loud"`)
	assert.Contains(t, msg, "telegram.group_log")
	assert.Contains(t, msg, `queue[1].gym: unknown gym "nope"`)
	assert.Contains(t, msg, "queue[2]: end must be after start")
	assert.Contains(t, msg, "queue[3].start")
}

func TestValidateEmptyQueue(t *testing.T) {
	c := validConfig()
	c.Queue = nil
	assert.ErrorContains(t, c.Validate(), "queue must contain at least one item")
}

func TestLoadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gymwatch.yaml")
	doc := `
telegram:
  token: abc
  chat_id: 42
watch:
  interval: "@every 2m"
  timezone: UTC
gyms:
  hub:
    id: 7
    area_id: 3
queue:
  - gym: hub
    start: "2026-10-20 18:00"
    end: "2026-10-20 20:00"
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	m := NewConfigManager(path)
	cfg, err := m.Load()
	require.NoError(t, err)
	assert.Same(t, cfg, m.Get())
	assert.Equal(t, int64(3), cfg.Gyms["hub"].AreaID)
	assert.Equal(t, "@every 2m", cfg.Watch.Interval)
}

func TestLoadRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gymwatch.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"telegram":{"token":"x","chat_id":1},"surprise":true}`), 0o600))

	_, err := NewConfigManager(path).Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "surprise")
}

func TestLoadRejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "gymwatch.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"telegram":{"token":"x","chat_id":1},"watch":{"interval":"1m"}}`), 0o600))

	m := NewConfigManager(path)
	_, err := m.Load()
	assert.ErrorContains(t, err, "queue must contain")
	assert.Nil(t, m.Get())
}

func TestPublishReplacesStaleValue(t *testing.T) {
	m := NewConfigManager("unused.json")
	ch := m.Subscribe(1)
	a, b := validConfig(), validConfig()
	m.publish(a)
	m.publish(b)
	assert.Same(t, b, <-ch)

	m.Unsubscribe(ch)
	_, ok := <-ch
	assert.False(t, ok)
}

func TestValidatePprofExposure(t *testing.T) {
	c := validConfig()
	c.Status = StatusConfig{Enabled: true, Pprof: true}
	require.NoError(t, c.Validate())

	c.Status.Addr = ":8089"
	assert.ErrorContains(t, c.Validate(), "requires status.pprof_token")

	c.Status.PprofToken = "s3cret"
	assert.NoError(t, c.Validate())

	c.Status.Addr = "no-port"
	assert.ErrorContains(t, c.Validate(), "status.addr")
}

func TestIsLoopbackAddr(t *testing.T) {
	assert.True(t, IsLoopbackAddr("127.0.0.1:1"))
	assert.True(t, IsLoopbackAddr("localhost:1"))
	assert.True(t, IsLoopbackAddr("[::1]:1"))
	assert.False(t, IsLoopbackAddr(":1"))
	assert.False(t, IsLoopbackAddr("0.0.0.0:1"))
	assert.False(t, IsLoopbackAddr("garbage"))
}
