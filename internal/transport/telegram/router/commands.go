package router

import (
	"context"
	"fmt"
	"strings"
)

const stampLayout = "2006-01-02 15:04:05"

func (r *Router) builtins() []Command {
	return []Command{
		{Name: "status", Description: "last poll and queue summary", Access: AccessOwnerOnly, Handle: r.cmdStatus},
		{Name: "queue", Description: "list watched windows (/queue pending: unhandled only)", Access: AccessOwnerOnly, Handle: r.cmdQueue},
		{Name: "help", Aliases: []string{"start"}, Description: "show commands", Handle: r.cmdHelp},
	}
}

func (r *Router) cmdStatus(ctx context.Context, req *Request) error {
	return req.Reply(ctx, r.statusText(req))
}

func (r *Router) statusText(req *Request) string {
	var b strings.Builder
	last := "never"
	if t, ok := req.State.LastRun(); ok {
		last = t.In(r.loc).Format(stampLayout)
	}
	q := req.State.Queue()
	fmt.Fprintf(&b, "last poll: %s\n", last)
	fmt.Fprintf(&b, "queue: %d item(s), %d pending\n", q.Len(), q.Pending())
	fmt.Fprintf(&b, "debug: %t", req.Debug)

	if h := req.State.History(); len(h) > 0 {
		it := h[len(h)-1]
		fmt.Fprintf(&b, "\nlast notification: %s", it.At.In(r.loc).Format(stampLayout))
		if it.Err != "" {
			fmt.Fprintf(&b, " (failed: %s)", it.Err)
		}
	}
	return b.String()
}

func (r *Router) cmdQueue(ctx context.Context, req *Request) error {
	pendingOnly := len(req.Args) > 0 && strings.EqualFold(req.Args[0], "pending")
	items := req.State.Queue().Snapshot()
	var b strings.Builder
	for _, it := range items {
		if pendingOnly && it.Handled {
			continue
		}
		mark := "[ ]"
		if it.Handled {
			mark = "[x]"
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s %s %s", mark, it.Venue.DisplayName(), it.Window)
	}
	if b.Len() == 0 {
		if pendingOnly {
			return req.Reply(ctx, "nothing pending")
		}
		return req.Reply(ctx, "queue is empty")
	}
	return req.Reply(ctx, b.String())
}

func (r *Router) cmdHelp(ctx context.Context, req *Request) error {
	var b strings.Builder
	b.WriteString("commands:")
	for _, c := range r.MenuCommands() {
		fmt.Fprintf(&b, "\n/%s - %s", c.Command, c.Description)
	}
	return req.Reply(ctx, b.String())
}
