// Package media defines shared types for the vidframe application.
package media

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrInvalidRef is returned when a MediaRef violates its shape invariants.
var ErrInvalidRef = errors.New("invalid media reference")

// Kind represents whether content is a movie or a series.
type Kind int

const (
	Movie Kind = iota
	Series
)

func (k Kind) String() string {
	switch k {
	case Movie:
		return "movie"
	case Series:
		return "series"
	default:
		return "unknown"
	}
}

// MarshalText encodes the kind by name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name via ParseKind.
func (k *Kind) UnmarshalText(b []byte) error {
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseKind accepts the names used by the catalog ("movie", "tv") as well
// as "series".
func ParseKind(s string) (Kind, error) {
	switch s {
	case "movie", "movies":
		return Movie, nil
	case "series", "tv", "shows":
		return Series, nil
	default:
		return Movie, fmt.Errorf("%w: unknown kind %q", ErrInvalidRef, s)
	}
}

// MediaRef identifies a playable title independent of any provider.
// Exactly one of MovieID/SeriesID is set, consistent with Kind.
type MediaRef struct {
	Kind      Kind   `json:"kind"`
	MovieID   string `json:"movieId,omitempty"`
	SeriesID  string `json:"seriesId,omitempty"`
	Season    string `json:"season,omitempty"`
	EpisodeNo string `json:"episodeNo,omitempty"`
}

// MovieRef builds a movie reference.
func MovieRef(id string) MediaRef {
	return MediaRef{Kind: Movie, MovieID: id}
}

// EpisodeRef builds a series reference pointing at one episode.
func EpisodeRef(seriesID, season, episode string) MediaRef {
	return MediaRef{Kind: Series, SeriesID: seriesID, Season: season, EpisodeNo: episode}
}

// CatalogID returns the external catalog id regardless of kind.
func (r MediaRef) CatalogID() string {
	if r.Kind == Series {
		return r.SeriesID
	}
	return r.MovieID
}

// Complete reports whether every field needed to build an embed URL is set.
func (r MediaRef) Complete() bool {
	switch r.Kind {
	case Movie:
		return r.MovieID != ""
	case Series:
		return r.SeriesID != "" && r.Season != "" && r.EpisodeNo != ""
	default:
		return false
	}
}

// Validate checks the full invariant: one id consistent with Kind, and for
// series a season and episode that are numeric and >= 1.
func (r MediaRef) Validate() error {
	switch r.Kind {
	case Movie:
		if r.MovieID == "" {
			return fmt.Errorf("%w: movie without id", ErrInvalidRef)
		}
		if r.SeriesID != "" {
			return fmt.Errorf("%w: movie carries series id %q", ErrInvalidRef, r.SeriesID)
		}
		return nil
	case Series:
		if r.SeriesID == "" {
			return fmt.Errorf("%w: series without id", ErrInvalidRef)
		}
		if r.MovieID != "" {
			return fmt.Errorf("%w: series carries movie id %q", ErrInvalidRef, r.MovieID)
		}
		if err := ValidateNumber(r.Season); err != nil {
			return fmt.Errorf("%w: season: %v", ErrInvalidRef, err)
		}
		if err := ValidateNumber(r.EpisodeNo); err != nil {
			return fmt.Errorf("%w: episode: %v", ErrInvalidRef, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidRef, r.Kind)
	}
}

// ValidateNumber checks that s is a decimal integer >= 1.
func ValidateNumber(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("%q is not a number", s)
	}
	if n < 1 {
		return fmt.Errorf("%q must be >= 1", s)
	}
	return nil
}

// ProgressRecord is the persisted last-watched position of a series.
type ProgressRecord struct {
	SeriesID string `json:"seriesId"`
	Season   string `json:"season"`
	Episode  string `json:"episode"`
}

// Season is one entry of a series' season list.
type Season struct {
	Number       int    `json:"season_number"`
	Name         string `json:"name"`
	EpisodeCount int    `json:"episode_count"`
}

// Episode is one entry of a season's episode list. Only Number is required.
type Episode struct {
	Number  int    `json:"episode_number"`
	Name    string `json:"name"`
	AirDate string `json:"air_date"`
}

// HistoryEntry represents a single watch-history record.
type HistoryEntry struct {
	ID        int64
	Kind      Kind
	CatalogID string
	Title     string
	Season    string // series only
	Episode   string // series only
	Provider  string
	WatchedAt time.Time
}

// Ref rebuilds the MediaRef a history entry points at.
func (e HistoryEntry) Ref() MediaRef {
	if e.Kind == Series {
		return EpisodeRef(e.CatalogID, e.Season, e.Episode)
	}
	return MovieRef(e.CatalogID)
}
