// Package status serves a read-only JSON view of the poller over HTTP.
package status

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"gymwatch/internal/watch"
	logx "gymwatch/pkg/logx"
)

// State is what the endpoint reports on.
type State interface {
	LastRun() (time.Time, bool)
	Queue() *watch.Queue
}

type itemResponse struct {
	Gym     string    `json:"gym"`
	Name    string    `json:"name"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	Handled bool      `json:"handled"`
}

type statusResponse struct {
	LastRun *time.Time     `json:"last_run"`
	Debug   bool           `json:"debug"`
	Pending int            `json:"pending"`
	Queue   []itemResponse `json:"queue"`
}

// NewRouter builds the gin engine with /healthz and /status.
func NewRouter(st State, debug bool, log logx.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), requestLog(log), rateLimit(rate.Limit(10), 5))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	r.GET("/status", func(c *gin.Context) {
		resp := statusResponse{Debug: debug, Queue: []itemResponse{}}
		if t, ok := st.LastRun(); ok {
			resp.LastRun = &t
		}
		q := st.Queue()
		resp.Pending = q.Pending()
		for _, it := range q.Snapshot() {
			resp.Queue = append(resp.Queue, itemResponse{
				Gym:     it.Venue.Key,
				Name:    it.Venue.DisplayName(),
				Start:   it.Window.Start,
				End:     it.Window.End,
				Handled: it.Handled,
			})
		}
		c.JSON(http.StatusOK, resp)
	})
	return r
}

func rateLimit(r rate.Limit, b int) gin.HandlerFunc {
	lim := rate.NewLimiter(r, b)
	return func(c *gin.Context) {
		if !lim.Allow() {
			c.AbortWithStatus(http.StatusTooManyRequests)
			return
		}
		c.Next()
	}
}

func requestLog(log logx.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug("http request",
			logx.String("method", c.Request.Method),
			logx.String("path", c.Request.URL.Path),
			logx.Int("code", c.Writer.Status()),
			logx.Duration("dur", time.Since(start)),
		)
	}
}

// Server wraps the engine in an http.Server.
type Server struct {
	srv *http.Server
	ln  net.Listener
	log logx.Logger
}

func NewServer(addr string, h http.Handler, log logx.Logger) *Server {
	return &Server{
		srv: &http.Server{Addr: addr, Handler: h, ReadHeaderTimeout: 5 * time.Second},
		log: log,
	}
}

// Listen binds the address so start-up fails early on a busy port.
func (s *Server) Listen() error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("status: listen %s: %w", s.srv.Addr, err)
	}
	s.ln = ln
	return nil
}

func (s *Server) Addr() string {
	if s.ln == nil {
		return s.srv.Addr
	}
	return s.ln.Addr().String()
}

// Serve runs until ctx is done, then shuts down gracefully. It calls
// Listen when that has not happened yet.
func (s *Server) Serve(ctx context.Context) error {
	if s.ln == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}
	s.log.Info("status server listening", logx.String("addr", s.Addr()))

	errCh := make(chan error, 1)
	go func() { errCh <- s.srv.Serve(s.ln) }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		if err := s.srv.Shutdown(sctx); err != nil {
			s.log.Warn("status server shutdown", logx.Err(err))
		}
		<-errCh
		return nil
	}
}
