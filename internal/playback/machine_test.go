package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidframe/internal/media"
	"vidframe/internal/schedule"
)

type fakeCatalog struct {
	mu           sync.Mutex
	seasons      []media.Season
	episodes     map[string][]media.Episode
	seasonsErr   error
	episodesErr  error
	episodeCalls []string
}

func (c *fakeCatalog) Seasons(ctx context.Context, seriesID string) ([]media.Season, error) {
	if c.seasonsErr != nil {
		return nil, c.seasonsErr
	}
	return c.seasons, nil
}

func (c *fakeCatalog) Episodes(ctx context.Context, seriesID, season string) ([]media.Episode, error) {
	c.mu.Lock()
	c.episodeCalls = append(c.episodeCalls, season)
	c.mu.Unlock()
	if c.episodesErr != nil {
		return nil, c.episodesErr
	}
	return c.episodes[season], nil
}

type fakeStore struct {
	mu        sync.Mutex
	progress  map[string]media.ProgressRecord
	provider  string
	readErr   error
	writeErr  error
	saves     []media.ProgressRecord
	providers []string
}

func (s *fakeStore) Progress(ctx context.Context, seriesID string) (media.ProgressRecord, bool, error) {
	if s.readErr != nil {
		return media.ProgressRecord{}, false, s.readErr
	}
	rec, ok := s.progress[seriesID]
	return rec, ok, nil
}

func (s *fakeStore) SaveProgress(ctx context.Context, rec media.ProgressRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves = append(s.saves, rec)
	return s.writeErr
}

func (s *fakeStore) Provider(ctx context.Context) (string, bool, error) {
	if s.readErr != nil {
		return "", false, s.readErr
	}
	return s.provider, s.provider != "", nil
}

func (s *fakeStore) SaveProvider(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.providers = append(s.providers, id)
	return s.writeErr
}

type fakeHistory struct {
	mu      sync.Mutex
	entries []media.HistoryEntry
	err     error
}

func (h *fakeHistory) Append(ctx context.Context, e media.HistoryEntry) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
	return h.err
}

type recorder struct {
	mu    sync.Mutex
	snaps []Snapshot
}

func (r *recorder) record(s Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = append(r.snaps, s)
}

// readyFlags returns the sequence of ready values delivered so far.
func (r *recorder) readyFlags() []bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]bool, 0, len(r.snaps))
	for _, s := range r.snaps {
		out = append(out, s.Ready)
	}
	return out
}

func (r *recorder) reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snaps = nil
}

type harness struct {
	m       *Machine
	clock   *schedule.Manual
	catalog *fakeCatalog
	store   *fakeStore
	history *fakeHistory
	rec     *recorder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock: schedule.NewManual(),
		catalog: &fakeCatalog{
			seasons: []media.Season{{Number: 0, Name: "Specials"}, {Number: 1}, {Number: 2}},
			episodes: map[string][]media.Episode{
				"1": {{Number: 1}, {Number: 2}, {Number: 3}},
				"2": {{Number: 1}, {Number: 2}},
				"4": {{Number: 1}, {Number: 2}, {Number: 3}, {Number: 4}, {Number: 5}, {Number: 6}},
			},
		},
		store:   &fakeStore{progress: map[string]media.ProgressRecord{}},
		history: &fakeHistory{},
		rec:     &recorder{},
	}
	h.m = New(context.Background(), Options{
		Catalog:     h.catalog,
		Progress:    h.store,
		Preferences: h.store,
		History:     h.history,
		Scheduler:   h.clock,
		OnChange:    h.rec.record,
		Now:         func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) },
	})
	t.Cleanup(h.m.Close)
	return h
}

func (h *harness) openSeries(t *testing.T) {
	t.Helper()
	require.NoError(t, h.m.OpenSeries(context.Background(), "1399"))
	h.rec.reset()
	h.catalog.episodeCalls = nil
}

func TestNewUsesStoredProvider(t *testing.T) {
	store := &fakeStore{provider: "videasy"}
	m := New(context.Background(), Options{Preferences: store, Scheduler: schedule.NewManual()})
	assert.Equal(t, "videasy", m.Snapshot().Provider)
}

func TestNewFallsBackToDefaultProvider(t *testing.T) {
	for name, store := range map[string]*fakeStore{
		"none":    {},
		"unknown": {provider: "retired-host"},
		"broken":  {readErr: errors.New("quota exceeded")},
	} {
		t.Run(name, func(t *testing.T) {
			m := New(context.Background(), Options{Preferences: store, Scheduler: schedule.NewManual()})
			assert.Equal(t, "multiembed", m.Snapshot().Provider)
		})
	}
}

func TestOpenMovie(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.OpenMovie(context.Background(), "603"))

	snap := h.m.Snapshot()
	assert.Equal(t, EpisodeReady, snap.State)
	assert.True(t, snap.Ready)
	assert.Equal(t, "https://vidlink.pro/movie/603?autoplay=true&title=true", snap.URL)
	assert.True(t, snap.Playable())

	assert.ErrorIs(t, h.m.OpenMovie(context.Background(), "604"), ErrSessionOpen)
	assert.ErrorIs(t, h.m.ChangeSeason(context.Background(), "2"), ErrNotSeries)
}

func TestOpenMovieRejectsEmptyID(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.m.OpenMovie(context.Background(), ""), media.ErrInvalidRef)
	assert.Equal(t, Idle, h.m.Snapshot().State)
}

func TestOpenSeriesSeedsFirstRegularSeason(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.OpenSeries(context.Background(), "1399"))

	snap := h.m.Snapshot()
	assert.Equal(t, EpisodeReady, snap.State)
	assert.Equal(t, media.EpisodeRef("1399", "1", "1"), snap.Ref)
	assert.Len(t, snap.Episodes, 3)
	assert.True(t, snap.HasNext)
	assert.False(t, snap.HasPrevious)

	states := make([]State, 0)
	for _, s := range h.rec.snaps {
		states = append(states, s.State)
	}
	assert.Equal(t, []State{SeasonLoading, EpisodeReady}, states)
	assert.Empty(t, h.history.entries, "opening is not a season/episode change")
}

func TestOpenSeriesResumesProgress(t *testing.T) {
	h := newHarness(t)
	h.store.progress["1399"] = media.ProgressRecord{SeriesID: "1399", Season: "4", Episode: "6"}

	require.NoError(t, h.m.OpenSeries(context.Background(), "1399"))
	snap := h.m.Snapshot()
	assert.Equal(t, media.EpisodeRef("1399", "4", "6"), snap.Ref)
	assert.Equal(t, []string{"4"}, h.catalog.episodeCalls)
	assert.False(t, snap.HasNext)
}

func TestOpenSeriesIgnoresBrokenProgress(t *testing.T) {
	for name, setup := range map[string]func(*fakeStore){
		"read error": func(s *fakeStore) { s.readErr = errors.New("corrupt") },
		"malformed":  func(s *fakeStore) { s.progress["1399"] = media.ProgressRecord{Season: "x", Episode: "0"} },
	} {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			setup(h.store)
			require.NoError(t, h.m.OpenSeries(context.Background(), "1399"))
			assert.Equal(t, media.EpisodeRef("1399", "1", "1"), h.m.Snapshot().Ref)
		})
	}
}

func TestOpenSeriesSeasonFetchFailure(t *testing.T) {
	h := newHarness(t)
	h.catalog.seasonsErr = errors.New("502 bad gateway")

	err := h.m.OpenSeries(context.Background(), "1399")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	var me *MetadataError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, "seasons", me.Op)
	assert.Equal(t, Idle, h.m.Snapshot().State)

	h.catalog.seasonsErr = nil
	require.NoError(t, h.m.OpenSeries(context.Background(), "1399"), "retry after failure")
}

func TestOpenSeriesEpisodeFetchFailureStillReady(t *testing.T) {
	h := newHarness(t)
	h.catalog.episodesErr = errors.New("timeout")

	require.NoError(t, h.m.OpenSeries(context.Background(), "1399"))
	snap := h.m.Snapshot()
	assert.True(t, snap.Ready)
	assert.Empty(t, snap.Episodes)
	assert.NotEmpty(t, snap.URL)
}

func TestChangeSeasonResetsEpisode(t *testing.T) {
	h := newHarness(t)
	h.openSeries(t)
	require.NoError(t, h.m.ChangeEpisode(context.Background(), "3"))
	h.clock.Advance(time.Second)
	h.catalog.episodeCalls = nil

	require.NoError(t, h.m.ChangeSeason(context.Background(), "2"))

	snap := h.m.Snapshot()
	assert.Equal(t, "2", snap.Ref.Season)
	assert.Equal(t, "1", snap.Ref.EpisodeNo)
	assert.Equal(t, []string{"2"}, h.catalog.episodeCalls, "exactly one refetch")
	assert.Len(t, snap.Episodes, 2)
}

func TestChangeSeasonCommitsTriple(t *testing.T) {
	h := newHarness(t)
	h.openSeries(t)
	h.m.SetTitle("Game of Thrones")

	require.NoError(t, h.m.ChangeSeason(context.Background(), "2"))

	assert.Equal(t, Reloading, h.m.Snapshot().State)
	assert.Equal(t, []media.ProgressRecord{{SeriesID: "1399", Season: "2", Episode: "1"}}, h.store.saves)
	require.Len(t, h.history.entries, 1)
	e := h.history.entries[0]
	assert.Equal(t, media.Series, e.Kind)
	assert.Equal(t, "1399", e.CatalogID)
	assert.Equal(t, "Game of Thrones", e.Title)
	assert.Equal(t, "2", e.Season)
	assert.Equal(t, "1", e.Episode)
	assert.Equal(t, "multiembed", e.Provider)
}

func TestChangeSeasonFetchFailureKeepsState(t *testing.T) {
	h := newHarness(t)
	h.openSeries(t)
	before := h.m.Snapshot()
	h.catalog.episodesErr = errors.New("boom")

	err := h.m.ChangeSeason(context.Background(), "2")
	require.Error(t, err)
	assert.True(t, IsRetryable(err))

	after := h.m.Snapshot()
	assert.Equal(t, before.Ref, after.Ref)
	assert.True(t, after.Ready)
	assert.Empty(t, h.store.saves)
	assert.Empty(t, h.history.entries)
	assert.Zero(t, h.clock.Pending())
}

func TestChangeSeasonValidates(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.m.ChangeSeason(context.Background(), "2"), ErrNotReady)
	h.openSeries(t)
	assert.ErrorIs(t, h.m.ChangeSeason(context.Background(), "0"), media.ErrInvalidRef)
	assert.ErrorIs(t, h.m.ChangeSeason(context.Background(), "two"), media.ErrInvalidRef)
}

func TestChangeEpisode(t *testing.T) {
	h := newHarness(t)
	h.openSeries(t)

	require.NoError(t, h.m.ChangeEpisode(context.Background(), "3"))
	snap := h.m.Snapshot()
	assert.Equal(t, media.EpisodeRef("1399", "1", "3"), snap.Ref)
	assert.Equal(t, []media.ProgressRecord{{SeriesID: "1399", Season: "1", Episode: "3"}}, h.store.saves)
	assert.Len(t, h.history.entries, 1)
	assert.Empty(t, h.catalog.episodeCalls, "episode change does not refetch")

	assert.ErrorIs(t, h.m.ChangeEpisode(context.Background(), "9"), ErrUnknownEpisode)
}

func TestPersistenceFailuresAreNonFatal(t *testing.T) {
	h := newHarness(t)
	h.openSeries(t)
	h.store.writeErr = errors.New("disk full")
	h.history.err = errors.New("offline")

	require.NoError(t, h.m.ChangeEpisode(context.Background(), "2"))
	h.clock.Advance(time.Second)
	assert.True(t, h.m.Snapshot().Ready)
}

func TestEachChangeDrivesReadyFalseThenTrue(t *testing.T) {
	tests := []struct {
		name string
		run  func(m *Machine) error
	}{
		{"provider", func(m *Machine) error { return m.ChangeProvider(context.Background(), "videasy") }},
		{"episode", func(m *Machine) error { return m.ChangeEpisode(context.Background(), "2") }},
		{"season", func(m *Machine) error { return m.ChangeSeason(context.Background(), "2") }},
		{"next", func(m *Machine) error { return m.NextEpisode(context.Background()) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.openSeries(t)

			require.NoError(t, tt.run(h.m))
			assert.Equal(t, []bool{false}, h.rec.readyFlags())
			assert.Equal(t, 1, h.clock.Pending())

			h.clock.Advance(99 * time.Millisecond)
			assert.False(t, h.m.Snapshot().Ready)

			h.clock.Advance(time.Millisecond)
			assert.Equal(t, []bool{false, true}, h.rec.readyFlags())
			assert.Equal(t, EpisodeReady, h.m.Snapshot().State)
			assert.Zero(t, h.clock.Pending())
		})
	}
}

func TestRapidProviderSwitchesDoNotStack(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.OpenMovie(context.Background(), "603"))
	h.rec.reset()

	for _, id := range []string{"videasy", "vidsrc", "embedSU", "vidfastPro"} {
		require.NoError(t, h.m.ChangeProvider(context.Background(), id))
		h.clock.Advance(30 * time.Millisecond)
		assert.LessOrEqual(t, h.clock.Pending(), 1)
	}
	h.clock.Advance(time.Second)

	flags := h.rec.readyFlags()
	assert.Equal(t, []bool{false, false, false, false, true}, flags, "one final ready, no stale ones")
	assert.Equal(t, h.clock.Scheduled()-1, h.clock.Cancelled())

	snap := h.m.Snapshot()
	assert.Equal(t, "vidfastPro", snap.Provider)
	assert.Equal(t, "https://vidfast.pro/movie/603?autoPlay=true", snap.URL)
	assert.Equal(t, []string{"videasy", "vidsrc", "embedSU", "vidfastPro"}, h.store.providers)
}

func TestChangeProviderDoesNotTouchRef(t *testing.T) {
	h := newHarness(t)
	h.openSeries(t)
	before := h.m.Snapshot().Ref

	require.NoError(t, h.m.ChangeProvider(context.Background(), "moviesClub"))
	h.clock.Advance(time.Second)

	snap := h.m.Snapshot()
	assert.Equal(t, before, snap.Ref)
	assert.Equal(t, "https://moviesapi.club/tv/1399-1-1", snap.URL)
	assert.Empty(t, h.history.entries)
	assert.Empty(t, h.store.saves)
}

func TestUnknownProviderIsNotPlayable(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.OpenMovie(context.Background(), "603"))
	require.NoError(t, h.m.ChangeProvider(context.Background(), "nonexistent-provider"))
	h.clock.Advance(time.Second)

	snap := h.m.Snapshot()
	assert.True(t, snap.Ready)
	assert.Empty(t, snap.URL)
	assert.False(t, snap.Playable())
	assert.Empty(t, h.store.providers, "unknown ids are not persisted")

	require.NoError(t, h.m.ChangeProvider(context.Background(), "videasy"))
	h.clock.Advance(time.Second)
	assert.True(t, h.m.Snapshot().Playable())
}

func TestChangeProviderWhileIdle(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.m.ChangeProvider(context.Background(), "videasy"))
	assert.Zero(t, h.clock.Pending())
	assert.Equal(t, "videasy", h.m.Snapshot().Provider)
}

func TestNextAndPrevious(t *testing.T) {
	h := newHarness(t)
	h.openSeries(t)

	assert.ErrorIs(t, h.m.PreviousEpisode(context.Background()), ErrNoAdjacentEpisode)
	require.NoError(t, h.m.NextEpisode(context.Background()))
	require.NoError(t, h.m.NextEpisode(context.Background()))
	assert.Equal(t, "3", h.m.Snapshot().Ref.EpisodeNo)
	assert.ErrorIs(t, h.m.NextEpisode(context.Background()), ErrNoAdjacentEpisode)

	require.NoError(t, h.m.PreviousEpisode(context.Background()))
	snap := h.m.Snapshot()
	assert.Equal(t, "2", snap.Ref.EpisodeNo)
	assert.True(t, snap.HasNext)
	assert.True(t, snap.HasPrevious)
}

func TestSubmit(t *testing.T) {
	h := newHarness(t)
	assert.ErrorIs(t, h.m.Submit(context.Background()), ErrNotReady)

	h.openSeries(t)
	require.NoError(t, h.m.ChangeEpisode(context.Background(), "2"))
	h.store.saves = nil
	h.history.entries = nil

	require.NoError(t, h.m.Submit(context.Background()))
	assert.True(t, h.m.Snapshot().Ready)
	assert.Zero(t, h.clock.Pending(), "submit drops the pending reload")
	assert.Equal(t, []media.ProgressRecord{{SeriesID: "1399", Season: "1", Episode: "2"}}, h.store.saves)
	assert.Len(t, h.history.entries, 1)
}

func TestCloseCancelsPendingReload(t *testing.T) {
	h := newHarness(t)
	h.openSeries(t)
	require.NoError(t, h.m.ChangeEpisode(context.Background(), "2"))
	require.Equal(t, 1, h.clock.Pending())

	h.m.Close()
	assert.Zero(t, h.clock.Pending())
	assert.Equal(t, h.clock.Scheduled(), h.clock.Cancelled())

	h.clock.Advance(time.Second)
	snap := h.m.Snapshot()
	assert.False(t, snap.Ready, "no reload fires after close")
	assert.Equal(t, Idle, snap.State)

	assert.ErrorIs(t, h.m.ChangeEpisode(context.Background(), "3"), ErrClosed)
	assert.ErrorIs(t, h.m.OpenMovie(context.Background(), "603"), ErrClosed)
	assert.ErrorIs(t, h.m.ChangeProvider(context.Background(), "videasy"), ErrClosed)
}

func TestSnapshotVersionsAreMonotonic(t *testing.T) {
	h := newHarness(t)
	h.openSeries(t)
	for i := 0; i < 5; i++ {
		require.NoError(t, h.m.ChangeEpisode(context.Background(), fmt.Sprint(i%3+1)))
		h.clock.Advance(50 * time.Millisecond)
	}
	h.clock.Advance(time.Second)

	var last uint64
	for _, s := range h.rec.snaps {
		assert.Greater(t, s.Version, last)
		last = s.Version
	}
}

func TestClockDrivenReload(t *testing.T) {
	ready := make(chan struct{}, 4)
	m := New(context.Background(), Options{
		Catalog:     &fakeCatalog{},
		ReloadDelay: 5 * time.Millisecond,
		OnChange: func(s Snapshot) {
			if s.Ready {
				ready <- struct{}{}
			}
		},
	})
	defer m.Close()

	require.NoError(t, m.OpenMovie(context.Background(), "603"))
	<-ready
	require.NoError(t, m.ChangeProvider(context.Background(), "videasy"))

	select {
	case <-ready:
	case <-time.After(time.Second):
		t.Fatal("reload did not complete")
	}
	assert.Equal(t, EpisodeReady, m.Snapshot().State)
}
