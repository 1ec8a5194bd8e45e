package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"vidframe/internal/media"
	"vidframe/internal/store"
)

func newTestHistory(t *testing.T) *History {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "vidframe.db"), store.DefaultConfig())
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return New(s.DB())
}

func TestAppendAndList(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	entry := media.HistoryEntry{
		Kind:      media.Movie,
		CatalogID: "603",
		Title:     "The Matrix",
		Provider:  "multiembed",
		WatchedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
	if err := h.Append(ctx, entry); err != nil {
		t.Fatalf("Append() error: %v", err)
	}

	entries, err := h.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	got := entries[0]
	if got.CatalogID != "603" || got.Title != "The Matrix" || got.Kind != media.Movie {
		t.Errorf("got %+v", got)
	}
	if !got.WatchedAt.Equal(entry.WatchedAt) {
		t.Errorf("WatchedAt = %v, want %v", got.WatchedAt, entry.WatchedAt)
	}
	if got.Ref() != media.MovieRef("603") {
		t.Errorf("Ref() = %+v", got.Ref())
	}
}

func TestAppendUpdatesExisting(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	ep := media.HistoryEntry{Kind: media.Series, CatalogID: "1399", Title: "Game of Thrones", Season: "1", Episode: "1", Provider: "vidsrc", WatchedAt: base}
	h.Append(ctx, ep)
	h.Append(ctx, media.HistoryEntry{Kind: media.Movie, CatalogID: "603", WatchedAt: base.Add(time.Minute)})

	// Watching the same episode again with another provider and no title.
	ep.Provider = "embedSU"
	ep.Title = ""
	ep.WatchedAt = base.Add(time.Hour)
	h.Append(ctx, ep)

	entries, _ := h.List(ctx, 0)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries after update, got %d", len(entries))
	}
	if entries[0].CatalogID != "1399" {
		t.Errorf("most recent = %q, want 1399", entries[0].CatalogID)
	}
	if entries[0].Provider != "embedSU" {
		t.Errorf("provider = %q, want embedSU", entries[0].Provider)
	}
	if entries[0].Title != "Game of Thrones" {
		t.Errorf("title = %q, want the earlier title kept", entries[0].Title)
	}
}

func TestListOrdersBySubSecondTime(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		id  string
		at  time.Time
		pos int
	}{
		{"whole", base, 2},
		{"tenth", base.Add(100 * time.Millisecond), 1},
		{"later", base.Add(123 * time.Millisecond), 0},
	}
	for _, tt := range tests {
		if err := h.Append(ctx, media.HistoryEntry{Kind: media.Movie, CatalogID: tt.id, WatchedAt: tt.at}); err != nil {
			t.Fatalf("Append(%s) error: %v", tt.id, err)
		}
	}

	entries, err := h.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(entries) != len(tests) {
		t.Fatalf("expected %d entries, got %d", len(tests), len(entries))
	}
	for _, tt := range tests {
		got := entries[tt.pos]
		if got.CatalogID != tt.id {
			t.Errorf("entries[%d] = %q, want %q", tt.pos, got.CatalogID, tt.id)
		}
		if !got.WatchedAt.Equal(tt.at) {
			t.Errorf("%s WatchedAt = %v, want %v", tt.id, got.WatchedAt, tt.at)
		}
	}
}

func TestParseWatchedAcceptsRFC3339(t *testing.T) {
	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	for _, s := range []string{"2026-01-02T03:04:05Z", "2026-01-02T03:04:05.000000000Z"} {
		if got := parseWatched(s); !got.Equal(want) {
			t.Errorf("parseWatched(%q) = %v, want %v", s, got, want)
		}
	}
}

func TestEpisodesAreSeparateEntries(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	h.Append(ctx, media.HistoryEntry{Kind: media.Series, CatalogID: "1399", Season: "1", Episode: "1"})
	h.Append(ctx, media.HistoryEntry{Kind: media.Series, CatalogID: "1399", Season: "1", Episode: "2"})

	entries, _ := h.List(ctx, 1)
	if len(entries) != 1 {
		t.Fatalf("limit 1 returned %d entries", len(entries))
	}
	entries, _ = h.List(ctx, 0)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestAppendRejectsMissingID(t *testing.T) {
	h := newTestHistory(t)
	if err := h.Append(context.Background(), media.HistoryEntry{Kind: media.Movie}); err == nil {
		t.Fatal("expected error for entry without id")
	}
}

func TestRemoveAndClear(t *testing.T) {
	h := newTestHistory(t)
	ctx := context.Background()

	h.Append(ctx, media.HistoryEntry{Kind: media.Movie, CatalogID: "a", Title: "A"})
	h.Append(ctx, media.HistoryEntry{Kind: media.Movie, CatalogID: "b", Title: "B"})

	entries, _ := h.List(ctx, 0)
	var idA int64
	for _, e := range entries {
		if e.CatalogID == "a" {
			idA = e.ID
		}
	}
	if err := h.Remove(ctx, idA); err != nil {
		t.Fatalf("Remove() error: %v", err)
	}

	entries, _ = h.List(ctx, 0)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry after remove, got %d", len(entries))
	}
	if entries[0].CatalogID != "b" {
		t.Errorf("remaining entry = %q, want b", entries[0].CatalogID)
	}

	if err := h.Clear(ctx); err != nil {
		t.Fatalf("Clear() error: %v", err)
	}
	entries, _ = h.List(ctx, 0)
	if len(entries) != 0 {
		t.Errorf("expected empty history, got %d", len(entries))
	}
}

func TestFormatForDisplay(t *testing.T) {
	entries := []media.HistoryEntry{
		{Title: "Movie A", Kind: media.Movie, Provider: "vidsrc"},
		{Title: "Show B", Kind: media.Series, Season: "2", Episode: "5"},
		{Kind: media.Movie, CatalogID: "603"},
	}

	items := FormatForDisplay(entries)
	if len(items) != 3 {
		t.Fatalf("expected 3 items, got %d", len(items))
	}

	if items[0] != "Movie A [vidsrc]" {
		t.Errorf("movie display = %q, want 'Movie A [vidsrc]'", items[0])
	}
	if items[1] != "Show B S02E05" {
		t.Errorf("series display = %q, want 'Show B S02E05'", items[1])
	}
	if items[2] != "movie 603" {
		t.Errorf("untitled display = %q, want 'movie 603'", items[2])
	}
}
