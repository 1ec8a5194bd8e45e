package cmd

import (
	"context"
	"errors"
	"fmt"

	"vidframe/internal/history"
	"vidframe/internal/media"
	"vidframe/internal/playback"
	"vidframe/internal/store"
	"vidframe/internal/tmdb"
)

var errNoAPIKey = errors.New("series need catalog metadata: set TMDB_API_KEY or tmdb_api_key in the config file")

// openStore opens the database at the configured path.
func openStore() (*store.Store, error) {
	path, err := cfg.DatabasePath()
	if err != nil {
		return nil, err
	}
	st, err := store.Open(path, store.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	return st, nil
}

// newCatalog returns nil when no API key is configured.
func newCatalog() *tmdb.Client {
	if cfg.TMDBAPIKey == "" {
		return nil
	}
	return tmdb.New(tmdb.Options{BaseURL: cfg.TMDBBaseURL, APIKey: cfg.TMDBAPIKey})
}

// recorder returns the history sink, or nil when history is disabled.
func recorder(st *store.Store) playback.HistoryRecorder {
	if !cfg.History {
		return nil
	}
	return history.New(st.DB())
}

// lookupTitle is best effort: a missing title only affects history display.
func lookupTitle(ctx context.Context, catalog *tmdb.Client, kind media.Kind, id string) string {
	if catalog == nil {
		return ""
	}
	title, err := catalog.Title(ctx, kind, id)
	if err != nil {
		debugf("title lookup for %s %s failed: %v", kind, id, err)
		return ""
	}
	return title
}
