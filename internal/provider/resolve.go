package provider

import (
	"errors"

	"vidframe/internal/media"
)

// ErrIncompleteRef is returned when a series reference lacks its season or
// episode, or a movie reference lacks its id. No URL is built in that case.
var ErrIncompleteRef = errors.New("incomplete media reference")

// Resolve maps (ref, providerID) to the provider's embed URL.
//
// An unknown provider id yields "" and a nil error: the caller is in the
// "no playable URL" state, which is not a failure. An incomplete ref
// yields ErrIncompleteRef regardless of the provider.
func (r *Registry) Resolve(ref media.MediaRef, providerID string) (string, error) {
	if !ref.Complete() {
		return "", ErrIncompleteRef
	}
	d, ok := r.Lookup(providerID)
	if !ok {
		return "", nil
	}
	return d.BuildURL(ref), nil
}

// Resolve uses the built-in registry.
func Resolve(ref media.MediaRef, providerID string) (string, error) {
	return defaultRegistry.Resolve(ref, providerID)
}
