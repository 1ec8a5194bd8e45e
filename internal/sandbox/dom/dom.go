//go:build js && wasm

// Package dom binds the sandbox interfaces to the browser DOM.
package dom

import (
	"errors"
	"fmt"
	"sync"
	"syscall/js"

	"vidframe/internal/sandbox"
)

var errNoDocument = errors.New("frame document not accessible")

var _ sandbox.Exposer = (*Frame)(nil)

// target keeps the js.Func of every listener so it can be removed and
// released.
type target struct {
	v js.Value

	mu   sync.Mutex
	next sandbox.ListenerID
	fns  map[sandbox.ListenerID]js.Func
}

func newTarget(v js.Value) *target {
	return &target{v: v, fns: make(map[sandbox.ListenerID]js.Func)}
}

func (t *target) AddEventListener(event string, fn sandbox.Listener) (id sandbox.ListenerID, err error) {
	defer recoverJS(&err)
	cb := js.FuncOf(func(_ js.Value, args []js.Value) any {
		var ev sandbox.Event
		if len(args) > 0 {
			ev = jsEvent{args[0]}
		}
		fn(ev)
		return nil
	})
	t.v.Call("addEventListener", event, cb)

	t.mu.Lock()
	t.next++
	id = t.next
	t.fns[id] = cb
	t.mu.Unlock()
	return id, nil
}

func (t *target) RemoveEventListener(event string, id sandbox.ListenerID) (err error) {
	defer recoverJS(&err)
	t.mu.Lock()
	cb, ok := t.fns[id]
	delete(t.fns, id)
	t.mu.Unlock()
	if !ok {
		return nil
	}
	t.v.Call("removeEventListener", event, cb)
	cb.Release()
	return nil
}

type jsEvent struct{ v js.Value }

func (e jsEvent) PreventDefault() {
	e.v.Call("preventDefault")
	e.v.Call("stopPropagation")
	e.v.Set("returnValue", "")
}

// Window is the host page's window.
type Window struct {
	*target
}

// Host returns the global window.
func Host() *Window {
	return &Window{newTarget(js.Global())}
}

// PostMessage calls window.postMessage.
func (w *Window) PostMessage(message any, targetOrigin string) (err error) {
	defer recoverJS(&err)
	w.v.Call("postMessage", js.ValueOf(message), targetOrigin)
	return nil
}

// Lookup inspects a window property.
func (w *Window) Lookup(name string) (exists, isFunc bool) {
	defer func() {
		if recover() != nil {
			exists, isFunc = false, false
		}
	}()
	p := w.v.Get(name)
	if p.IsUndefined() {
		return false, false
	}
	return true, p.Type() == js.TypeFunction
}

// Frame is an iframe element.
type Frame struct {
	*target
}

// NewFrame wraps an iframe element.
func NewFrame(el js.Value) *Frame {
	return &Frame{newTarget(el)}
}

// Document returns the frame's document. Cross-origin frames report a
// null contentDocument or throw; both come back as an error.
func (f *Frame) Document() (doc sandbox.Document, err error) {
	defer recoverJS(&err)
	d := f.v.Get("contentDocument")
	if d.IsNull() || d.IsUndefined() {
		return nil, errNoDocument
	}
	return document{d}, nil
}

// Expose redefines parent inside the frame's window as a proxy over g.
// Only same-origin content can be reached; the rest fails with an error.
func (f *Frame) Expose(g *sandbox.Guard) (release func(), err error) {
	defer recoverJS(&err)
	win := f.v.Get("contentWindow")
	if win.IsNull() || win.IsUndefined() {
		return nil, errNoDocument
	}
	p := newGuardProxy(g)
	desc := js.Global().Get("Object").New()
	desc.Set("configurable", true)
	desc.Set("get", p.getter)
	js.Global().Get("Object").Call("defineProperty", win, "parent", desc)
	return func() {
		defer func() { _ = recover() }()
		js.Global().Get("Reflect").Call("deleteProperty", win, "parent")
		p.release()
	}, nil
}

// guardProxy is a JS Proxy whose traps read through a Guard.
type guardProxy struct {
	value  js.Value
	getter js.Func
	fns    []js.Func
}

func newGuardProxy(g *sandbox.Guard) *guardProxy {
	host := js.Global()
	p := &guardProxy{}
	noop := js.FuncOf(func(js.Value, []js.Value) any { return nil })
	get := js.FuncOf(func(_ js.Value, args []js.Value) any {
		if len(args) < 2 || args[1].Type() != js.TypeString {
			return js.Undefined()
		}
		name := args[1].String()
		switch g.Get(name).(type) {
		case nil:
			return js.Undefined()
		case sandbox.Func:
			if g.Allows(name) {
				return host.Get(name).Call("bind", host)
			}
			return noop
		}
		return js.Undefined()
	})
	reject := js.FuncOf(func(_ js.Value, args []js.Value) any {
		name := ""
		if len(args) > 1 && args[1].Type() == js.TypeString {
			name = args[1].String()
		}
		return g.Set(name, nil)
	})
	handler := js.Global().Get("Object").New()
	handler.Set("get", get)
	handler.Set("set", reject)
	handler.Set("defineProperty", reject)
	handler.Set("deleteProperty", reject)
	p.value = js.Global().Get("Proxy").New(js.Global().Get("Object").New(), handler)
	p.getter = js.FuncOf(func(js.Value, []js.Value) any { return p.value })
	p.fns = []js.Func{noop, get, reject, p.getter}
	return p
}

func (p *guardProxy) release() {
	for _, fn := range p.fns {
		fn.Release()
	}
	p.fns = nil
}

type document struct{ v js.Value }

func (d document) InjectScript(src string) (err error) {
	defer recoverJS(&err)
	root := d.v.Get("documentElement")
	if root.IsNull() || root.IsUndefined() {
		return errNoDocument
	}
	el := d.v.Call("createElement", "script")
	el.Set("textContent", src)
	root.Call("appendChild", el)
	return nil
}

// recoverJS turns a thrown JS exception into an error.
func recoverJS(err *error) {
	r := recover()
	if r == nil {
		return
	}
	if jsErr, ok := r.(js.Error); ok {
		*err = fmt.Errorf("js: %s", jsErr.Error())
		return
	}
	*err = fmt.Errorf("js: %v", r)
}
