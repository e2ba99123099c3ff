package router

import (
	"context"
	"runtime/debug"
	"slices"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gymwatch/internal/notifier"
	rtsup "gymwatch/internal/runtime/supervisor"
	kit "gymwatch/internal/transport"
	"gymwatch/internal/watch"
	logx "gymwatch/pkg/logx"
)

type Access int

const (
	AccessEveryone Access = iota
	AccessOwnerOnly
)

type Command struct {
	Name        string
	Aliases     []string
	Description string
	Access      Access
	Timeout     time.Duration
	Handle      HandlerFunc
}

// State is the read-only view of the poller the commands report on.
type State interface {
	LastRun() (time.Time, bool)
	Queue() *watch.Queue
	History() []notifier.HistoryItem
}

type Request struct {
	Chat    kit.ChatTarget
	FromID  int64
	Command string
	Args    []string
	ReqID   string

	Adapter kit.Adapter
	State   State
	Debug   bool
	Logger  logx.Logger
}

// Reply sends text back to the chat the request came from.
func (r *Request) Reply(ctx context.Context, text string) error {
	_, err := r.Adapter.SendText(ctx, r.Chat, text, &kit.SendOptions{DisablePreview: true})
	return err
}

type Options struct {
	Owners []int64
	// Chat is the notification chat. With no owners configured, owner-only
	// commands are accepted from this chat only.
	Chat    int64
	Debug   bool
	Workers int
	Timeout time.Duration
	Loc     *time.Location
}

// Router dispatches chat commands to a small worker pool.
type Router struct {
	log     logx.Logger
	adapter kit.Adapter
	state   State
	debug   bool
	timeout time.Duration
	workers int
	loc     *time.Location
	chat    int64

	mu     sync.RWMutex
	owners []int64
	cmds   map[string]*Command
	list   []*Command

	jobs chan func()
}

func New(log logx.Logger, adapter kit.Adapter, state State, opt Options) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if opt.Workers <= 0 {
		opt.Workers = 2
	}
	if opt.Timeout <= 0 {
		opt.Timeout = 10 * time.Second
	}
	if opt.Loc == nil {
		opt.Loc = time.Local
	}
	r := &Router{
		log:     log,
		adapter: adapter,
		state:   state,
		debug:   opt.Debug,
		timeout: opt.Timeout,
		workers: opt.Workers,
		loc:     opt.Loc,
		chat:    opt.Chat,
		owners:  slices.Clone(opt.Owners),
		cmds:    map[string]*Command{},
		jobs:    make(chan func(), 64),
	}
	r.register(r.builtins()...)
	return r
}

func (r *Router) register(cmds ...Command) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range cmds {
		c := &cmds[i]
		r.list = append(r.list, c)
		r.cmds[c.Name] = c
		for _, a := range c.Aliases {
			r.cmds[a] = c
		}
	}
	sort.Slice(r.list, func(i, j int) bool { return r.list[i].Name < r.list[j].Name })
}

// SetOwners replaces the owner list. Safe during hot reload.
func (r *Router) SetOwners(owners []int64) {
	r.mu.Lock()
	r.owners = slices.Clone(owners)
	r.mu.Unlock()
}

func (r *Router) isAllowed(c *Command, msg *kit.Message) bool {
	if c.Access != AccessOwnerOnly {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.owners) == 0 {
		return r.chat != 0 && msg.ChatID == r.chat
	}
	return slices.Contains(r.owners, msg.FromID)
}

// MenuCommands lists the commands for the platform menu.
func (r *Router) MenuCommands() []kit.BotCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]kit.BotCommand, 0, len(r.list))
	for _, c := range r.list {
		out = append(out, kit.BotCommand{Command: c.Name, Description: c.Description})
	}
	return out
}

// Run consumes updates until ctx is done or the channel closes.
func (r *Router) Run(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.New(ctx, rtsup.WithLogger(r.log), rtsup.WithCancelOnError(false))
	for i := 0; i < r.workers; i++ {
		idx := i
		sup.GoRestart("command.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-r.jobs:
					r.runJob(idx, job)
				}
			}
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}

	if up, ok := r.adapter.(kit.CommandMenuUpdater); ok {
		sup.Go0("telegram.menu.update", func(c context.Context) {
			mctx, cancel := context.WithTimeout(c, 5*time.Second)
			defer cancel()
			if err := up.UpdateMenuCommands(mctx, r.MenuCommands()); err != nil {
				r.log.Warn("menu update failed", logx.Err(err))
			}
		})
	}

	r.log.Info("command dispatcher started", logx.Int("workers", r.workers))
	defer func() {
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		_ = sup.Stop(wctx)
		cancel()
		r.log.Info("command dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.route(ctx, up)
		}
	}
}

func (r *Router) runJob(worker int, job func()) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("panic in command job", logx.Int("worker", worker), logx.Any("panic", p), logx.String("stack", string(debug.Stack())))
		}
	}()
	job()
}

// parseCommand splits "/status@bot a b" into ("status", [a b]).
func parseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil, false
	}
	parts := strings.Fields(text)
	word := strings.ToLower(strings.TrimPrefix(parts[0], "/"))
	if i := strings.IndexByte(word, '@'); i >= 0 {
		word = word[:i]
	}
	if word == "" {
		return "", nil, false
	}
	return word, parts[1:], true
}

func (r *Router) route(ctx context.Context, up kit.Update) {
	msg := up.Message
	if msg == nil {
		return
	}
	name, args, ok := parseCommand(msg.Text)
	if !ok {
		return
	}
	chat := kit.ChatTarget{ChatID: msg.ChatID, ThreadID: msg.ThreadID}

	r.mu.RLock()
	cmd := r.cmds[name]
	r.mu.RUnlock()
	if cmd == nil {
		_, _ = r.adapter.SendText(ctx, chat, "unknown command, try /help", nil)
		return
	}
	if !r.isAllowed(cmd, msg) {
		_, _ = r.adapter.SendText(ctx, chat, "unauthorized", nil)
		return
	}

	rid := uuid.NewString()[:8]
	req := &Request{
		Chat:    chat,
		FromID:  msg.FromID,
		Command: cmd.Name,
		Args:    args,
		ReqID:   rid,
		Adapter: r.adapter,
		State:   r.state,
		Debug:   r.debug,
		Logger:  r.log.With(logx.String("rid", rid), logx.String("cmd", cmd.Name)),
	}
	timeout := cmd.Timeout
	if timeout <= 0 {
		timeout = r.timeout
	}
	final := Chain(cmd.Handle,
		MWPanicRecover(r.log),
		MWRequestLog(r.log),
		MWTimeout(timeout),
	)

	select {
	case r.jobs <- func() { _ = final(ctx, req) }:
	default:
		_, _ = r.adapter.SendText(ctx, chat, "busy, try again", nil)
	}
}
