package playback

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"vidframe/internal/log"
	"vidframe/internal/media"
	"vidframe/internal/metrics"
	"vidframe/internal/provider"
	"vidframe/internal/schedule"
)

// DefaultReloadDelay is how long the ready flag stays false on a reload.
const DefaultReloadDelay = 100 * time.Millisecond

// Options wires a Machine to its collaborators. History and OnChange may
// be nil.
type Options struct {
	Registry    *provider.Registry
	Catalog     Catalog
	Progress    ProgressStore
	Preferences PreferenceStore
	History     HistoryRecorder
	Scheduler   schedule.Scheduler
	ReloadDelay time.Duration
	// OnChange receives every state change, serialized, outside the
	// machine's lock.
	OnChange func(Snapshot)
	Now      func() time.Time
}

// Machine is one watch session. Transitions are serialized; the reload
// timer is the only work that runs on another goroutine, and a newer
// transition always cancels it before scheduling its own.
type Machine struct {
	opts   Options
	logger zerolog.Logger

	op       sync.Mutex // serializes transitions, held across catalog I/O
	notifyMu sync.Mutex

	mu       sync.Mutex
	state    State
	ref      media.MediaRef
	title    string
	provider string
	ready    bool
	seasons  []media.Season
	episodes []media.Episode
	gen      uint64
	closed   bool
	reload   schedule.Latest

	version   uint64 // bumped on every change
	delivered uint64 // last version passed to OnChange, guarded by notifyMu
}

// New creates an idle machine and reads the stored provider preference.
// A missing, unreadable or unknown preference falls back to the default
// provider.
func New(ctx context.Context, opts Options) *Machine {
	if opts.Registry == nil {
		opts.Registry = provider.Default()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.Clock{}
	}
	if opts.ReloadDelay <= 0 {
		opts.ReloadDelay = DefaultReloadDelay
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	m := &Machine{
		opts:   opts,
		logger: log.WithComponent("playback"),
	}

	stored := ""
	if opts.Preferences != nil {
		id, ok, err := opts.Preferences.Provider(ctx)
		switch {
		case err != nil:
			m.logger.Debug().Err(err).Msg("reading provider preference failed, using default")
		case ok:
			stored = id
		}
	}
	m.provider = opts.Registry.Pick(stored)
	if stored != "" && stored != m.provider {
		m.logger.Debug().Str("stored", stored).Str("provider", m.provider).Msg("stored provider unknown, using default")
	}
	return m
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

// SetTitle attaches a display title used in history entries.
func (m *Machine) SetTitle(title string) {
	m.mu.Lock()
	m.title = title
	snap := m.changedLocked()
	m.mu.Unlock()
	m.notify(snap)
}

// OpenMovie opens a movie: Idle -> EpisodeReady.
func (m *Machine) OpenMovie(ctx context.Context, movieID string) error {
	ref := media.MovieRef(movieID)
	if err := ref.Validate(); err != nil {
		return err
	}

	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	if err := m.checkIdleLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.ref = ref
	m.markReadyLocked()
	snap := m.changedLocked()
	m.mu.Unlock()

	m.count("open_movie")
	m.logger.Debug().Str("movie", movieID).Str("provider", snap.Provider).Msg("movie opened")
	m.notify(snap)
	return nil
}

// OpenSeries opens a series: Idle -> SeasonLoading -> EpisodeReady.
// The season comes from stored progress, else the first regular season of
// the fetched list; the episode from stored progress, else "1".
// If the season list cannot be fetched the machine returns to Idle and the
// error is retryable.
func (m *Machine) OpenSeries(ctx context.Context, seriesID string) error {
	if seriesID == "" {
		return fmt.Errorf("%w: series without id", media.ErrInvalidRef)
	}

	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	if err := m.checkIdleLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.state = SeasonLoading
	m.ref = media.MediaRef{Kind: media.Series, SeriesID: seriesID}
	m.ready = false
	snap := m.changedLocked()
	m.mu.Unlock()
	m.notify(snap)

	progress, hasProgress := m.readProgress(ctx, seriesID)

	seasons, err := m.opts.Catalog.Seasons(ctx, seriesID)
	if err != nil {
		metrics.MetadataErrorTotal.WithLabelValues("seasons").Inc()
		m.logger.Warn().Err(err).Str("series", seriesID).Msg("fetching seasons failed")

		m.mu.Lock()
		if !m.closed {
			m.state = Idle
			m.ref = media.MediaRef{}
		}
		snap = m.changedLocked()
		m.mu.Unlock()
		m.notify(snap)
		return &MetadataError{Op: "seasons", SeriesID: seriesID, Err: err}
	}

	season, episode := firstSeason(seasons), "1"
	if hasProgress {
		season, episode = progress.Season, progress.Episode
	}

	episodes, err := m.opts.Catalog.Episodes(ctx, seriesID, season)
	if err != nil {
		// The reference is still resolvable without the list; navigation
		// just has nothing to step through until a season change refetches.
		metrics.MetadataErrorTotal.WithLabelValues("episodes").Inc()
		m.logger.Warn().Err(err).Str("series", seriesID).Str("season", season).Msg("fetching episodes failed")
		episodes = nil
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.seasons = seasons
	m.episodes = episodes
	m.ref.Season = season
	m.ref.EpisodeNo = episode
	m.markReadyLocked()
	snap = m.changedLocked()
	m.mu.Unlock()

	m.count("open_series")
	m.logger.Debug().
		Str("series", seriesID).
		Str("season", season).
		Str("episode", episode).
		Bool("resumed", hasProgress).
		Msg("series opened")
	m.notify(snap)
	return nil
}

// ChangeSeason selects a season. The episode always resets to "1", the
// season's episode list is refetched once, the new position is persisted
// and appended to history, and the player reloads. On a fetch failure
// nothing changes.
func (m *Machine) ChangeSeason(ctx context.Context, season string) error {
	if err := media.ValidateNumber(season); err != nil {
		return fmt.Errorf("%w: season: %v", media.ErrInvalidRef, err)
	}

	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	if err := m.checkEpisodeLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	seriesID := m.ref.SeriesID
	m.mu.Unlock()

	episodes, err := m.opts.Catalog.Episodes(ctx, seriesID, season)
	if err != nil {
		metrics.MetadataErrorTotal.WithLabelValues("episodes").Inc()
		m.logger.Warn().Err(err).Str("series", seriesID).Str("season", season).Msg("fetching episodes failed")
		return &MetadataError{Op: "episodes", SeriesID: seriesID, Season: season, Err: err}
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.ref.Season = season
	m.ref.EpisodeNo = "1"
	m.episodes = episodes
	m.startReloadLocked()
	snap := m.changedLocked()
	m.mu.Unlock()

	m.commit(ctx, snap)
	m.count("change_season")
	m.notify(snap)
	return nil
}

// ChangeEpisode selects an episode within the current season, persists the
// position, appends history and reloads the player.
func (m *Machine) ChangeEpisode(ctx context.Context, episode string) error {
	if err := media.ValidateNumber(episode); err != nil {
		return fmt.Errorf("%w: episode: %v", media.ErrInvalidRef, err)
	}

	m.op.Lock()
	defer m.op.Unlock()
	return m.changeEpisode(ctx, episode)
}

// NextEpisode moves to the following episode in the fetched list.
func (m *Machine) NextEpisode(ctx context.Context) error {
	return m.step(ctx, 1)
}

// PreviousEpisode moves to the preceding episode in the fetched list.
func (m *Machine) PreviousEpisode(ctx context.Context) error {
	return m.step(ctx, -1)
}

func (m *Machine) step(ctx context.Context, delta int) error {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	if err := m.checkEpisodeLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	i := indexOf(m.episodes, m.ref.EpisodeNo)
	j := i + delta
	if i < 0 || j < 0 || j >= len(m.episodes) {
		m.mu.Unlock()
		return ErrNoAdjacentEpisode
	}
	target := strconv.Itoa(m.episodes[j].Number)
	m.mu.Unlock()

	return m.changeEpisode(ctx, target)
}

// changeEpisode runs with m.op held.
func (m *Machine) changeEpisode(ctx context.Context, episode string) error {
	m.mu.Lock()
	if err := m.checkEpisodeLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	if len(m.episodes) > 0 && indexOf(m.episodes, episode) < 0 {
		m.mu.Unlock()
		return fmt.Errorf("%w: season %s has no episode %s", ErrUnknownEpisode, m.ref.Season, episode)
	}
	m.ref.EpisodeNo = episode
	m.startReloadLocked()
	snap := m.changedLocked()
	m.mu.Unlock()

	m.commit(ctx, snap)
	m.count("change_episode")
	m.notify(snap)
	return nil
}

// ChangeProvider switches provider. The reference is untouched; an open
// title reloads so the consumer remounts with the new URL. Known ids are
// persisted as the preference. An unknown id is accepted and leaves the
// session without a playable URL until a known one is chosen.
func (m *Machine) ChangeProvider(ctx context.Context, id string) error {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	m.provider = id
	if m.state == EpisodeReady || m.state == Reloading {
		m.startReloadLocked()
	}
	snap := m.changedLocked()
	m.mu.Unlock()

	if m.opts.Registry.Has(id) {
		if m.opts.Preferences != nil {
			if err := m.opts.Preferences.SaveProvider(ctx, id); err != nil {
				m.logger.Debug().Err(err).Str("provider", id).Msg("saving provider preference failed")
			}
		}
	} else {
		m.logger.Info().Str("provider", id).Msg("unknown provider selected, nothing to play")
	}

	m.count("change_provider")
	m.notify(snap)
	return nil
}

// Submit is the explicit play action: the player is marked ready at once
// (any pending reload is dropped), progress is persisted for series and
// the title is appended to history.
func (m *Machine) Submit(ctx context.Context) error {
	m.op.Lock()
	defer m.op.Unlock()

	m.mu.Lock()
	if err := m.checkReadyStateLocked(); err != nil {
		m.mu.Unlock()
		return err
	}
	m.reload.Cancel()
	m.gen++
	m.markReadyLocked()
	snap := m.changedLocked()
	m.mu.Unlock()

	m.commit(ctx, snap)
	m.count("submit")
	m.notify(snap)
	return nil
}

// Close ends the session: the pending reload is cancelled and the ready
// flag drops so the consumer tears its player down. Transitions fail with
// ErrClosed afterwards. Close does not wait for in-flight catalog calls.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	m.reload.Cancel()
	m.gen++
	m.state = Idle
	m.ready = false
	snap := m.changedLocked()
	m.mu.Unlock()

	m.logger.Debug().Msg("session closed")
	m.notify(snap)
}

// startReloadLocked drops the ready flag and schedules it back up,
// replacing any reload still pending.
func (m *Machine) startReloadLocked() {
	m.state = Reloading
	m.ready = false
	m.gen++
	gen := m.gen
	m.reload.Replace(m.opts.Scheduler, m.opts.ReloadDelay, func() { m.finishReload(gen) })
}

func (m *Machine) finishReload(gen uint64) {
	m.mu.Lock()
	if m.closed || gen != m.gen {
		m.mu.Unlock()
		return
	}
	m.markReadyLocked()
	snap := m.changedLocked()
	m.mu.Unlock()

	metrics.ReloadTotal.Inc()
	m.notify(snap)
}

func (m *Machine) markReadyLocked() {
	m.state = EpisodeReady
	m.ready = true

	outcome := "ok"
	switch {
	case !m.ref.Complete():
		outcome = "incomplete"
	case !m.opts.Registry.Has(m.provider):
		outcome = "unknown_provider"
	}
	label := m.provider
	if outcome == "unknown_provider" {
		label = "unknown"
	}
	metrics.ResolveOutcome(label, outcome)
}

// commit writes progress and history for the snapshot. Failures are logged
// and do not undo the transition.
func (m *Machine) commit(ctx context.Context, snap Snapshot) {
	ref := snap.Ref
	if ref.Kind == media.Series && m.opts.Progress != nil {
		rec := media.ProgressRecord{SeriesID: ref.SeriesID, Season: ref.Season, Episode: ref.EpisodeNo}
		if err := m.opts.Progress.SaveProgress(ctx, rec); err != nil {
			m.logger.Debug().Err(err).Str("series", ref.SeriesID).Msg("saving progress failed")
		}
	}
	if m.opts.History != nil {
		entry := media.HistoryEntry{
			Kind:      ref.Kind,
			CatalogID: ref.CatalogID(),
			Title:     snap.Title,
			Season:    ref.Season,
			Episode:   ref.EpisodeNo,
			Provider:  snap.Provider,
			WatchedAt: m.opts.Now(),
		}
		if err := m.opts.History.Append(ctx, entry); err != nil {
			m.logger.Warn().Err(err).Str("id", entry.CatalogID).Msg("appending watch history failed")
		}
	}
}

// readProgress treats any read failure or malformed record as no progress.
func (m *Machine) readProgress(ctx context.Context, seriesID string) (media.ProgressRecord, bool) {
	if m.opts.Progress == nil {
		return media.ProgressRecord{}, false
	}
	rec, ok, err := m.opts.Progress.Progress(ctx, seriesID)
	if err != nil {
		m.logger.Debug().Err(err).Str("series", seriesID).Msg("reading progress failed")
		return media.ProgressRecord{}, false
	}
	if !ok {
		return media.ProgressRecord{}, false
	}
	if media.ValidateNumber(rec.Season) != nil || media.ValidateNumber(rec.Episode) != nil {
		m.logger.Debug().Str("series", seriesID).Str("season", rec.Season).Str("episode", rec.Episode).Msg("ignoring malformed progress")
		return media.ProgressRecord{}, false
	}
	return rec, true
}

func (m *Machine) checkIdleLocked() error {
	if m.closed {
		return ErrClosed
	}
	if m.state != Idle {
		return ErrSessionOpen
	}
	return nil
}

func (m *Machine) checkReadyStateLocked() error {
	if m.closed {
		return ErrClosed
	}
	if m.state != EpisodeReady && m.state != Reloading {
		return ErrNotReady
	}
	return nil
}

func (m *Machine) checkEpisodeLocked() error {
	if err := m.checkReadyStateLocked(); err != nil {
		return err
	}
	if m.ref.Kind != media.Series {
		return ErrNotSeries
	}
	return nil
}

// changedLocked records a change and returns the snapshot to deliver.
func (m *Machine) changedLocked() Snapshot {
	m.version++
	return m.snapshotLocked()
}

func (m *Machine) snapshotLocked() Snapshot {
	url, _ := m.opts.Registry.Resolve(m.ref, m.provider)
	i := indexOf(m.episodes, m.ref.EpisodeNo)
	return Snapshot{
		Version:     m.version,
		State:       m.state,
		Ref:         m.ref,
		Title:       m.title,
		Provider:    m.provider,
		URL:         url,
		Ready:       m.ready,
		Seasons:     append([]media.Season(nil), m.seasons...),
		Episodes:    append([]media.Episode(nil), m.episodes...),
		HasNext:     i >= 0 && i < len(m.episodes)-1,
		HasPrevious: i > 0,
	}
}

func (m *Machine) notify(snap Snapshot) {
	if m.opts.OnChange == nil {
		return
	}
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()
	// A reload timer can race a transition's delivery; never go backwards.
	if snap.Version <= m.delivered {
		return
	}
	m.delivered = snap.Version
	m.opts.OnChange(snap)
}

func (m *Machine) count(transition string) {
	metrics.TransitionTotal.WithLabelValues(transition).Inc()
}

// firstSeason picks the first regular season (number >= 1); specials are
// listed as season 0 and are skipped. An empty list falls back to "1".
func firstSeason(seasons []media.Season) string {
	for _, s := range seasons {
		if s.Number >= 1 {
			return strconv.Itoa(s.Number)
		}
	}
	return "1"
}

func indexOf(episodes []media.Episode, episodeNo string) int {
	n, err := strconv.Atoi(episodeNo)
	if err != nil {
		return -1
	}
	for i, ep := range episodes {
		if ep.Number == n {
			return i
		}
	}
	return -1
}
