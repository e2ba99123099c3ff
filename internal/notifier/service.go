package notifier

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	kit "gymwatch/internal/transport"
	"gymwatch/internal/watch"
	logx "gymwatch/pkg/logx"
)

var ErrNoTarget = errors.New("notifier: no chat target")

const (
	defaultSendTimeout = 15 * time.Second
	defaultHistory     = 20
)

type Config struct {
	Target      kit.ChatTarget
	SendTimeout time.Duration
	RatePerSec  int
	HistorySize int
}

type HistoryItem struct {
	At   time.Time
	Text string
	Err  string
}

// Service is safe for concurrent use.
type Service struct {
	adapter kit.Adapter
	log     logx.Logger
	stamp   *watch.RunStamp
	queue   *watch.Queue

	cfg     Config
	limiter *rate.Limiter

	hmu     sync.Mutex
	history []HistoryItem
}

func New(cfg Config, adapter kit.Adapter, queue *watch.Queue, stamp *watch.RunStamp, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = 1
	}
	if cfg.HistorySize <= 0 {
		cfg.HistorySize = defaultHistory
	}
	if stamp == nil {
		stamp = &watch.RunStamp{}
	}
	return &Service{
		adapter: adapter,
		log:     log,
		stamp:   stamp,
		queue:   queue,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

// SendMessage delivers text to the configured chat. Empty text is a no-op.
func (s *Service) SendMessage(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if s.adapter == nil || s.cfg.Target.ChatID == 0 {
		return ErrNoTarget
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.SendTimeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("notifier: rate wait: %w", err)
	}
	_, err := s.adapter.SendText(ctx, s.cfg.Target, text, &kit.SendOptions{DisablePreview: true})
	s.remember(text, err)
	if err != nil {
		return fmt.Errorf("notifier: send: %w", err)
	}
	s.log.Debug("notification sent", logx.Int64("chat_id", s.cfg.Target.ChatID), logx.Int("len", len(text)))
	return nil
}

func (s *Service) SetLastRun(t time.Time) { s.stamp.Set(t) }

func (s *Service) LastRun() (time.Time, bool) { return s.stamp.Get() }

func (s *Service) Queue() *watch.Queue { return s.queue }

// History returns recent messages, newest last.
func (s *Service) History() []HistoryItem {
	s.hmu.Lock()
	defer s.hmu.Unlock()
	out := make([]HistoryItem, len(s.history))
	copy(out, s.history)
	return out
}

func (s *Service) remember(text string, err error) {
	it := HistoryItem{At: time.Now(), Text: text}
	if err != nil {
		it.Err = err.Error()
	}
	s.hmu.Lock()
	s.history = append(s.history, it)
	if over := len(s.history) - s.cfg.HistorySize; over > 0 {
		s.history = append(s.history[:0], s.history[over:]...)
	}
	s.hmu.Unlock()
}
