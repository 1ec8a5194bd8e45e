// Package sandbox is a best-effort popup and navigation blocker for an
// embedded, untrusted provider frame.
//
// The browser's same-origin policy blocks most of what this package tries
// to do to a cross-origin provider. Every attempt is therefore allowed to
// fail silently: the host page must never break because a provider
// refused to be patched.
package sandbox

import (
	_ "embed"
	"time"
)

// DefaultInterval is how often the blocker script is re-injected.
const DefaultInterval = time.Second

//go:embed blocker.js
var blockerScript string

// Script returns the blocker script injected into provider documents.
func Script() string {
	return blockerScript
}

// ListenerID identifies a registered listener for removal.
type ListenerID uint64

// Event is the part of a DOM event a listener may act on.
type Event interface {
	PreventDefault()
}

// Listener handles an event. The event may be nil when the binding has
// nothing to pass.
type Listener func(Event)

// EventTarget is anything listeners can be attached to.
type EventTarget interface {
	AddEventListener(event string, fn Listener) (ListenerID, error)
	RemoveEventListener(event string, id ListenerID) error
}

// Window is the host page's global object.
type Window interface {
	EventTarget
	PostMessage(message any, targetOrigin string) error
	// Lookup reports whether name is a property of the window and whether
	// its value is a function.
	Lookup(name string) (exists, isFunc bool)
}

// Document is a frame's document. InjectScript appends a script element
// carrying src.
type Document interface {
	InjectScript(src string) error
}

// Frame is one mounted provider iframe.
type Frame interface {
	EventTarget
	// Document fails for cross-origin frames and frames without a document.
	Document() (Document, error)
}

// Exposer is implemented by frames whose content can be handed the guard
// in place of the host window. Expose fails for cross-origin content;
// release undoes a successful Expose.
type Exposer interface {
	Expose(g *Guard) (release func(), err error)
}
