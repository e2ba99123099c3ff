package config

// Config is the on-disk configuration. JSON and YAML share these tags; the
// decoder rejects unknown keys.
type Config struct {
	Telegram  TelegramConfig       `json:"telegram"`
	Logging   LoggingConfig        `json:"logging"`
	TopLogger TopLoggerConfig      `json:"toplogger"`
	Watch     WatchConfig          `json:"watch"`
	Gyms      map[string]GymConfig `json:"gyms"`
	Queue     []QueueItemConfig    `json:"queue"`
	Status    StatusConfig         `json:"status,omitempty"`
}

type TelegramConfig struct {
	Token string `json:"token"`
	// ChatID receives slot notifications.
	ChatID   int64 `json:"chat_id"`
	ThreadID int   `json:"thread_id,omitempty"`
	// OwnerUserIDs restricts bot commands. Empty means everyone.
	OwnerUserIDs []int64 `json:"owner_user_ids,omitempty"`
	GroupLog     string  `json:"group_log,omitempty"`
	// PollTimeout is a Go duration string (e.g. "10s", "2m").
	PollTimeout string `json:"poll_timeout,omitempty"`
}

type LoggingConfig struct {
	Level    string          `json:"level"`
	Console  bool            `json:"console"`
	File     LoggingFile     `json:"file"`
	Telegram LoggingTelegram `json:"telegram"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type LoggingTelegram struct {
	Enabled    bool   `json:"enabled"`
	ThreadID   int    `json:"thread_id"`
	MinLevel   string `json:"min_level"`
	RatePerSec int    `json:"rate_per_sec"`
}

// TopLoggerConfig configures the booking service client.
//
// Durations are Go duration strings. Defaults:
//   - base_url: https://api.toplogger.nu
//   - timeout: "15s"
//   - rate_per_sec: 2
//   - cache_ttl: "1h"
type TopLoggerConfig struct {
	BaseURL    string `json:"base_url,omitempty"`
	Email      string `json:"email,omitempty"`
	Password   string `json:"password,omitempty"`
	Timeout    string `json:"timeout,omitempty"`
	RatePerSec int    `json:"rate_per_sec,omitempty"`
	CacheTTL   string `json:"cache_ttl,omitempty"`
}

// WatchConfig controls the poll loop.
type WatchConfig struct {
	// Interval between poll cycles: "90s", "01:30", "@every 2m" or "once".
	// A negative duration also means "run a single cycle".
	Interval string `json:"interval"`
	// Debug logs notifications instead of sending them and lowers the
	// interval floor.
	Debug bool `json:"debug,omitempty"`
	// Timezone used to read queue start/end times. Default: Local.
	Timezone string `json:"timezone,omitempty"`
	// Horizon is how far ahead a window may start and still be polled.
	// Default: 240h (10 days).
	Horizon string `json:"horizon,omitempty"`
}

type GymConfig struct {
	ID     int64  `json:"id"`
	AreaID int64  `json:"area_id,omitempty"`
	Name   string `json:"name,omitempty"`
}

// QueueItemConfig is one watch entry. Start and End use QueueTimeLayout in
// watch.timezone.
type QueueItemConfig struct {
	Gym   string `json:"gym"`
	Start string `json:"start"`
	End   string `json:"end"`
}

const QueueTimeLayout = "2006-01-02 15:04"

// StatusConfig controls the optional read-only HTTP status endpoint.
type StatusConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr,omitempty"` // default: "127.0.0.1:8089"
	// Pprof mounts net/http/pprof under /debug/pprof/. A non-loopback addr
	// requires PprofToken.
	Pprof      bool   `json:"pprof,omitempty"`
	PprofToken string `json:"pprof_token,omitempty"`
}
