package toplogger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"gymwatch/internal/watch"
	logx "gymwatch/pkg/logx"
)

const (
	DefaultBaseURL = "https://api.toplogger.nu"

	defaultTimeout  = 15 * time.Second
	defaultRate     = 2
	defaultCacheTTL = time.Hour

	tokenKey = "auth.token"
)

type Config struct {
	BaseURL    string
	Email      string
	Password   string
	Timeout    time.Duration
	RatePerSec int
	CacheTTL   time.Duration
	// HTTPClient overrides the default client; Timeout is ignored then.
	HTTPClient *http.Client
}

// Client is safe for concurrent use, though the poller drives it from a
// single goroutine.
type Client struct {
	base    string
	email   string
	pass    string
	http    *http.Client
	limiter *rate.Limiter
	cache   *cache.Cache
	log     logx.Logger

	mu    sync.Mutex
	venue watch.Venue
}

func New(cfg Config, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = DefaultBaseURL
	}
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = defaultRate
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &Client{
		base:    base,
		email:   strings.TrimSpace(cfg.Email),
		pass:    cfg.Password,
		http:    hc,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		cache:   cache.New(ttl, 2*ttl),
		log:     log,
	}
}

// SetVenue selects the venue later queries run against.
func (c *Client) SetVenue(v watch.Venue) {
	c.mu.Lock()
	c.venue = v
	c.mu.Unlock()
}

func (c *Client) Venue() watch.Venue {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.venue
}

type apiSlot struct {
	StartAt     time.Time `json:"start_at"`
	EndAt       time.Time `json:"end_at"`
	Spots       *int      `json:"spots"`
	SpotsBooked int       `json:"spots_booked"`
}

// AvailableSlots returns the free slots of the selected venue that lie
// fully inside w, sorted by start time.
func (c *Client) AvailableSlots(ctx context.Context, w watch.Window) ([]watch.Slot, error) {
	v := c.Venue()
	if v.GymID == 0 {
		return nil, fmt.Errorf("toplogger: no venue selected")
	}
	loc := w.Start.Location()

	var out []watch.Slot
	for _, day := range w.Days() {
		q := url.Values{}
		q.Set("date", day.Format(watch.DateLayout))
		if v.AreaID != 0 {
			q.Set("reservation_area_id", strconv.FormatInt(v.AreaID, 10))
		}
		q.Set("slim", "true")

		var raw []apiSlot
		path := fmt.Sprintf("/v1/gyms/%d/slots.json", v.GymID)
		if err := c.getJSON(ctx, path, q, &raw); err != nil {
			return nil, err
		}
		for _, s := range raw {
			start, end := s.StartAt.In(loc), s.EndAt.In(loc)
			if !w.Contains(start) || end.After(w.End) {
				continue
			}
			slot := watch.Slot{Date: day, Start: start, End: end}
			if s.Spots != nil {
				free := *s.Spots - s.SpotsBooked
				if free <= 0 {
					continue
				}
				slot.SpotsAvailable = watch.Spots(free)
			}
			out = append(out, slot)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

// GymName looks up a gym's display name. Results are cached.
func (c *Client) GymName(ctx context.Context, gymID int64) (string, error) {
	key := "gym." + strconv.FormatInt(gymID, 10)
	if v, ok := c.cache.Get(key); ok {
		return v.(string), nil
	}
	var g struct {
		Name string `json:"name"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/v1/gyms/%d.json", gymID), nil, &g); err != nil {
		return "", err
	}
	c.cache.SetDefault(key, g.Name)
	return g.Name, nil
}

func (c *Client) hasCredentials() bool { return c.email != "" && c.pass != "" }

// getJSON performs an authenticated GET, signing in again once when the
// API rejects the cached token. A failed sign-in is not retried.
func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	err := c.doGet(ctx, path, q, dst)
	if errors.Is(err, ErrUnauthorized) && c.hasCredentials() {
		c.log.Debug("token rejected; signing in again", logx.String("path", path))
		c.cache.Delete(tokenKey)
		err = c.doGet(ctx, path, q, dst)
	}
	return err
}

func (c *Client) doGet(ctx context.Context, path string, q url.Values, dst any) error {
	u := c.base + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if c.hasCredentials() {
		tok, err := c.token(ctx)
		if err != nil {
			return err
		}
		req.Header.Set("X-User-Email", c.email)
		req.Header.Set("X-User-Token", tok)
	}
	return c.do(req, path, dst)
}

func (c *Client) token(ctx context.Context) (string, error) {
	if v, ok := c.cache.Get(tokenKey); ok {
		return v.(string), nil
	}
	body, err := json.Marshal(map[string]any{"user": map[string]string{"email": c.email, "password": c.pass}})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/users/sign_in.json", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var res struct {
		Token string `json:"authentication_token"`
	}
	if err := c.do(req, "sign_in", &res); err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return "", fmt.Errorf("%w: credentials rejected", ErrSignIn)
		}
		return "", fmt.Errorf("%w: %w", ErrSignIn, err)
	}
	if res.Token == "" {
		return "", fmt.Errorf("%w: empty token", ErrSignIn)
	}
	c.cache.Set(tokenKey, res.Token, cache.NoExpiration)
	c.log.Info("signed in", logx.String("email", c.email))
	return res.Token, nil
}

func (c *Client) do(req *http.Request, endpoint string, dst any) error {
	if err := c.limiter.Wait(req.Context()); err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("toplogger: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		_, _ = io.Copy(io.Discard, resp.Body)
		return ErrUnauthorized
	}
	if resp.StatusCode/100 != 2 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("toplogger: decode %s: %w", endpoint, err)
	}
	return nil
}
