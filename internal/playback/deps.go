package playback

import (
	"context"

	"vidframe/internal/media"
)

// Catalog is the metadata collaborator.
type Catalog interface {
	Seasons(ctx context.Context, seriesID string) ([]media.Season, error)
	Episodes(ctx context.Context, seriesID, season string) ([]media.Episode, error)
}

// ProgressStore persists the last watched season/episode per series.
type ProgressStore interface {
	Progress(ctx context.Context, seriesID string) (media.ProgressRecord, bool, error)
	SaveProgress(ctx context.Context, rec media.ProgressRecord) error
}

// PreferenceStore persists the selected provider id.
type PreferenceStore interface {
	Provider(ctx context.Context) (string, bool, error)
	SaveProvider(ctx context.Context, id string) error
}

// HistoryRecorder appends watch-history entries.
type HistoryRecorder interface {
	Append(ctx context.Context, entry media.HistoryEntry) error
}
