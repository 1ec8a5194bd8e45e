// Package provider holds the catalog of third-party embed providers and
// resolves a MediaRef into the exact embed URL each of them expects.
package provider

import (
	"fmt"

	"vidframe/internal/media"
)

// DefaultID is the provider used when no valid preference is stored.
const DefaultID = "multiembed"

// BuildFunc renders the embed URL for a complete MediaRef.
// It must be pure: same input, same output.
type BuildFunc func(ref media.MediaRef) string

// Descriptor describes one embed provider.
type Descriptor struct {
	ID           string `json:"id"`
	DisplayName  string `json:"name"`
	QualityLabel string `json:"quality"`

	build BuildFunc
}

// NewDescriptor builds a descriptor outside the built-in table.
func NewDescriptor(id, name, quality string, build BuildFunc) Descriptor {
	return Descriptor{ID: id, DisplayName: name, QualityLabel: quality, build: build}
}

// Label is the text shown in provider pickers, e.g. "Vidlink (LESS ADS AUTOPLAY)".
func (d Descriptor) Label() string {
	return fmt.Sprintf("%s (%s)", d.DisplayName, d.QualityLabel)
}

// BuildURL renders the embed URL for ref. The caller must pass a complete ref.
func (d Descriptor) BuildURL(ref media.MediaRef) string {
	return d.build(ref)
}

// Registry is an ordered, read-only set of providers keyed by id.
type Registry struct {
	order []string
	byID  map[string]Descriptor
}

// NewRegistry builds a registry from descriptors in display order.
// Duplicate ids or descriptors without a builder are programming errors.
func NewRegistry(descs ...Descriptor) *Registry {
	r := &Registry{byID: make(map[string]Descriptor, len(descs))}
	for _, d := range descs {
		if d.ID == "" || d.build == nil {
			panic(fmt.Sprintf("provider: descriptor %q has no id or builder", d.ID))
		}
		if _, dup := r.byID[d.ID]; dup {
			panic(fmt.Sprintf("provider: duplicate id %q", d.ID))
		}
		r.order = append(r.order, d.ID)
		r.byID[d.ID] = d
	}
	return r
}

// Lookup returns the descriptor for id. An unknown id is not an error;
// callers fall back to a "no provider selected" state.
func (r *Registry) Lookup(id string) (Descriptor, bool) {
	d, ok := r.byID[id]
	return d, ok
}

// Has reports whether id is a known provider.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// List returns all descriptors in display order.
func (r *Registry) List() []Descriptor {
	out := make([]Descriptor, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.byID[id])
	}
	return out
}

// IDs returns all provider ids in display order.
func (r *Registry) IDs() []string {
	return append([]string(nil), r.order...)
}

// Len returns the number of providers.
func (r *Registry) Len() int { return len(r.order) }

// Next returns the provider after id, wrapping around. Unknown ids map to
// the first provider.
func (r *Registry) Next(id string, step int) string {
	if len(r.order) == 0 {
		return ""
	}
	for i, v := range r.order {
		if v == id {
			n := (i + step) % len(r.order)
			if n < 0 {
				n += len(r.order)
			}
			return r.order[n]
		}
	}
	return r.order[0]
}

// Pick returns id if known, otherwise DefaultID (or the first provider when
// DefaultID is not registered). Used when seeding a session from a stored
// preference.
func (r *Registry) Pick(id string) string {
	switch {
	case r.Has(id):
		return id
	case r.Has(DefaultID):
		return DefaultID
	case len(r.order) > 0:
		return r.order[0]
	default:
		return ""
	}
}

var defaultRegistry = NewRegistry(builtins()...)

// Default returns the process-wide built-in registry.
func Default() *Registry {
	return defaultRegistry
}
