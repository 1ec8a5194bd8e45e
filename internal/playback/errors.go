package playback

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrClosed is returned by every transition after Close.
	ErrClosed = errors.New("playback session closed")
	// ErrSessionOpen is returned when opening a title on a non-idle machine.
	ErrSessionOpen = errors.New("a title is already open")
	// ErrNotSeries is returned by season/episode transitions on a movie.
	ErrNotSeries = errors.New("not a series")
	// ErrNotReady is returned when a transition needs a resolved episode
	// and the machine is idle or still loading seasons.
	ErrNotReady = errors.New("no episode selected yet")
	// ErrUnknownEpisode is returned when the episode is not in the fetched list.
	ErrUnknownEpisode = errors.New("episode not in season")
	// ErrNoAdjacentEpisode is returned by Next/Previous at the list ends.
	ErrNoAdjacentEpisode = errors.New("no adjacent episode")
)

// MetadataError wraps a failed catalog fetch. The machine's last good
// state is untouched when one is returned.
type MetadataError struct {
	Op       string // "seasons" or "episodes"
	SeriesID string
	Season   string
	Err      error
}

func (e *MetadataError) Error() string {
	if e.Season != "" {
		return fmt.Sprintf("fetching %s for series %s season %s: %v", e.Op, e.SeriesID, e.Season, e.Err)
	}
	return fmt.Sprintf("fetching %s for series %s: %v", e.Op, e.SeriesID, e.Err)
}

func (e *MetadataError) Unwrap() error { return e.Err }

// Retryable reports whether trying again could succeed. Only a cancelled
// caller is final.
func (e *MetadataError) Retryable() bool {
	return !errors.Is(e.Err, context.Canceled)
}

// IsRetryable reports whether err is a retryable metadata failure.
func IsRetryable(err error) bool {
	var me *MetadataError
	return errors.As(err, &me) && me.Retryable()
}
