package sandbox

import (
	"sync/atomic"

	"vidframe/internal/metrics"
)

// Func is a callable handed out by Guard.Get.
type Func func(args ...any) any

// Noop is returned for every blocked function.
func Noop(...any) any { return nil }

// Guard is a read-only view of the host window. It exposes postMessage,
// addEventListener and removeEventListener; every other function reads as
// a no-op and counts as a blocked attempt, every other property reads as
// nil and nothing can be assigned.
type Guard struct {
	win     Window
	blocked atomic.Int64
	onBlock func(total int64)
}

// NewGuard wraps win. onBlock, if set, is called after every blocked
// attempt with the new total.
func NewGuard(win Window, onBlock func(total int64)) *Guard {
	return &Guard{win: win, onBlock: onBlock}
}

// PostMessage forwards to the host window.
func (g *Guard) PostMessage(message any, targetOrigin string) error {
	return g.win.PostMessage(message, targetOrigin)
}

// AddEventListener forwards to the host window.
func (g *Guard) AddEventListener(event string, fn Listener) (ListenerID, error) {
	return g.win.AddEventListener(event, fn)
}

// RemoveEventListener forwards to the host window.
func (g *Guard) RemoveEventListener(event string, id ListenerID) error {
	return g.win.RemoveEventListener(event, id)
}

// Allows reports whether name is one of the forwarded functions.
func (g *Guard) Allows(name string) bool {
	switch name {
	case "postMessage", "addEventListener", "removeEventListener":
		return true
	}
	return false
}

// Get reads a property by name.
func (g *Guard) Get(name string) any {
	switch name {
	case "postMessage":
		return Func(g.callPostMessage)
	case "addEventListener":
		return Func(g.callAddEventListener)
	case "removeEventListener":
		return Func(g.callRemoveEventListener)
	}
	if _, isFunc := g.win.Lookup(name); isFunc {
		g.Block("guard")
		return Func(Noop)
	}
	return nil
}

// Set rejects every assignment.
func (g *Guard) Set(string, any) bool {
	return false
}

// BlockedCount returns the number of blocked attempts so far.
func (g *Guard) BlockedCount() int64 {
	return g.blocked.Load()
}

// Block records one blocked attempt from source.
func (g *Guard) Block(source string) {
	total := g.blocked.Add(1)
	metrics.SandboxBlockedTotal.WithLabelValues(source).Inc()
	if g.onBlock != nil {
		g.onBlock(total)
	}
}

func (g *Guard) callPostMessage(args ...any) any {
	if len(args) == 0 {
		return nil
	}
	origin := "*"
	if len(args) > 1 {
		if s, ok := args[1].(string); ok {
			origin = s
		}
	}
	return g.PostMessage(args[0], origin)
}

func (g *Guard) callAddEventListener(args ...any) any {
	if len(args) < 2 {
		return nil
	}
	event, ok1 := args[0].(string)
	fn, ok2 := args[1].(Listener)
	if !ok1 || !ok2 {
		return nil
	}
	id, err := g.AddEventListener(event, fn)
	if err != nil {
		return err
	}
	return id
}

func (g *Guard) callRemoveEventListener(args ...any) any {
	if len(args) < 2 {
		return nil
	}
	event, ok1 := args[0].(string)
	id, ok2 := args[1].(ListenerID)
	if !ok1 || !ok2 {
		return nil
	}
	return g.RemoveEventListener(event, id)
}
