// Package playback tracks what is playing: the MediaRef, the selected
// provider, the season and episode lists, and the ready flag a consumer
// uses to tear down and remount its player frame.
package playback

import (
	"vidframe/internal/media"
)

// State is the machine's lifecycle phase.
type State int

const (
	// Idle: no title open.
	Idle State = iota
	// SeasonLoading: a series was opened and its season list is being fetched.
	SeasonLoading
	// EpisodeReady: the reference is complete and the player may be mounted.
	EpisodeReady
	// Reloading: the player was torn down on purpose and will be remounted
	// after the reload delay.
	Reloading
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case SeasonLoading:
		return "season_loading"
	case EpisodeReady:
		return "episode_ready"
	case Reloading:
		return "reloading"
	default:
		return "unknown"
	}
}

// MarshalText encodes the state by name.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Snapshot is a consistent copy of the machine's observable state.
type Snapshot struct {
	Version     uint64          `json:"version"`
	State       State           `json:"state"`
	Ref         media.MediaRef  `json:"ref"`
	Title       string          `json:"title,omitempty"`
	Provider    string          `json:"provider"`
	URL         string          `json:"url"`
	Ready       bool            `json:"ready"`
	Seasons     []media.Season  `json:"seasons,omitempty"`
	Episodes    []media.Episode `json:"episodes,omitempty"`
	HasNext     bool            `json:"hasNext"`
	HasPrevious bool            `json:"hasPrevious"`
}

// Playable reports whether a consumer should mount a player right now.
// An unknown provider leaves URL empty: no player, but not an error.
func (s Snapshot) Playable() bool {
	return s.Ready && s.URL != ""
}
