// Package history manages the watch history. Entries live in the SQLite
// database opened by the store package; re-watching the same title (or
// the same episode) updates its row instead of adding a new one.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	"vidframe/internal/httputil"
	"vidframe/internal/media"
)

// timeLayout keeps watched_at fixed-width so text order is time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// History reads and writes the history table.
type History struct {
	db  *sql.DB
	now func() time.Time
}

// New wraps a database whose schema the store package has migrated.
func New(db *sql.DB) *History {
	return &History{db: db, now: time.Now}
}

// Append records a watch. The row for the same title and episode is
// replaced, so it moves to the top of List.
func (h *History) Append(ctx context.Context, e media.HistoryEntry) error {
	if e.CatalogID == "" {
		return fmt.Errorf("%w: history entry without id", media.ErrInvalidRef)
	}
	watched := e.WatchedAt
	if watched.IsZero() {
		watched = h.now()
	}
	season, episode := e.Season, e.Episode
	if e.Kind != media.Series {
		season, episode = "", ""
	}

	_, err := h.db.ExecContext(ctx, `
	INSERT INTO history (kind, catalog_id, title, season, episode, provider, watched_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(kind, catalog_id, season, episode) DO UPDATE SET
		title = CASE WHEN excluded.title != '' THEN excluded.title ELSE history.title END,
		provider = excluded.provider,
		watched_at = excluded.watched_at
	`, e.Kind.String(), e.CatalogID, httputil.SanitizeText(e.Title), season, episode, e.Provider,
		watched.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("writing history: %w", err)
	}
	return nil
}

// List returns entries, most recent first. limit <= 0 means all.
func (h *History) List(ctx context.Context, limit int) ([]media.HistoryEntry, error) {
	query := `
	SELECT id, kind, catalog_id, title, season, episode, provider, watched_at
	FROM history
	ORDER BY watched_at DESC, id DESC
	`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := h.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []media.HistoryEntry
	for rows.Next() {
		var (
			e       media.HistoryEntry
			kind    string
			watched string
		)
		if err := rows.Scan(&e.ID, &kind, &e.CatalogID, &e.Title, &e.Season, &e.Episode, &e.Provider, &watched); err != nil {
			return nil, fmt.Errorf("reading history: %w", err)
		}
		k, err := media.ParseKind(kind)
		if err != nil {
			continue // Skip malformed rows
		}
		e.Kind = k
		e.WatchedAt = parseWatched(watched)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading history: %w", err)
	}
	return entries, nil
}

// Remove deletes one entry by row id. Removing a missing row is not an error.
func (h *History) Remove(ctx context.Context, id int64) error {
	if _, err := h.db.ExecContext(ctx, `DELETE FROM history WHERE id = ?`, id); err != nil {
		return fmt.Errorf("removing history entry: %w", err)
	}
	return nil
}

// Clear deletes every entry.
func (h *History) Clear(ctx context.Context) error {
	if _, err := h.db.ExecContext(ctx, `DELETE FROM history`); err != nil {
		return fmt.Errorf("clearing history: %w", err)
	}
	return nil
}

// FormatForDisplay creates picker lines from history entries.
func FormatForDisplay(entries []media.HistoryEntry) []string {
	items := make([]string, 0, len(entries))
	for _, e := range entries {
		title := e.Title
		if title == "" {
			title = e.Kind.String() + " " + e.CatalogID
		}
		display := title
		if e.Kind == media.Series {
			display = fmt.Sprintf("%s S%02dE%02d", title, atoi(e.Season), atoi(e.Episode))
		}
		if e.Provider != "" {
			display += " [" + e.Provider + "]"
		}
		items = append(items, display)
	}
	return items
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// parseWatched also reads rows written with variable-width RFC 3339.
func parseWatched(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
