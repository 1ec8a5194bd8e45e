package ui

import (
	"context"
	"errors"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidframe/internal/media"
	"vidframe/internal/playback"
	"vidframe/internal/provider"
)

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestPickerChoose(t *testing.T) {
	p := newPicker("Pick", []string{"a", "b", "c"})
	p.Update(keyMsg("down"))
	p.Update(keyMsg("down"))
	p.Update(keyMsg("down"))
	p.Update(keyMsg("up"))
	_, cmd := p.Update(keyMsg("enter"))

	require.NotNil(t, cmd)
	assert.Equal(t, 1, p.chosen)
	assert.False(t, p.cancelled)
}

func TestPickerFilter(t *testing.T) {
	p := newPicker("Pick", []string{"The Matrix", "Game of Thrones", "The Office"})
	p.Update(keyMsg("/"))
	require.True(t, p.filtering)
	for _, r := range "office" {
		p.Update(keyMsg(string(r)))
	}
	p.Update(keyMsg("enter"))
	require.False(t, p.filtering)
	assert.Equal(t, []int{2}, p.visible)

	p.Update(keyMsg("enter"))
	assert.Equal(t, 2, p.chosen)
	assert.Contains(t, p.View(), "1/3")
}

func TestPickerCancel(t *testing.T) {
	p := newPicker("Pick", []string{"a"})
	_, cmd := p.Update(keyMsg("esc"))
	require.NotNil(t, cmd)
	assert.True(t, p.cancelled)
	assert.Equal(t, -1, p.chosen)
}

func TestSelectEmpty(t *testing.T) {
	_, err := Select("Pick", nil)
	assert.Error(t, err)
}

type fakeController struct {
	mu    sync.Mutex
	snap  playback.Snapshot
	calls []string
	err   error
}

func (f *fakeController) Snapshot() playback.Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snap
}

func (f *fakeController) record(call string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
	return f.err
}

func (f *fakeController) ChangeSeason(_ context.Context, s string) error {
	return f.record("season " + s)
}
func (f *fakeController) NextEpisode(context.Context) error     { return f.record("next") }
func (f *fakeController) PreviousEpisode(context.Context) error { return f.record("previous") }
func (f *fakeController) ChangeProvider(_ context.Context, id string) error {
	return f.record("provider " + id)
}
func (f *fakeController) Submit(context.Context) error { return f.record("submit") }

type fakeOpener struct {
	opened []string
}

func (o *fakeOpener) Open(_ context.Context, url string) error {
	o.opened = append(o.opened, url)
	return nil
}

func (o *fakeOpener) Name() string { return "fake" }

func seriesSnapshot() playback.Snapshot {
	return playback.Snapshot{
		Version:  1,
		State:    playback.EpisodeReady,
		Ref:      media.EpisodeRef("1399", "2", "7"),
		Title:    "Game of Thrones",
		Provider: "vidsrc",
		URL:      "https://vidsrc.xyz/embed/tv?tmdb=1399&block_popups=1&season=2&episode=7",
		Ready:    true,
		Seasons:  []media.Season{{Number: 0}, {Number: 1}, {Number: 2}, {Number: 3}},
		Episodes: []media.Episode{{Number: 6}, {Number: 7, Name: "A Man Without Honor"}, {Number: 8}},
	}
}

// drive runs cmd and feeds its message back into the model.
func drive(t *testing.T, m *WatchModel, cmd tea.Cmd) {
	t.Helper()
	for cmd != nil {
		msg := cmd()
		if msg == nil {
			return
		}
		_, cmd = m.Update(msg)
	}
}

func TestWatchKeysDriveController(t *testing.T) {
	ctl := &fakeController{snap: seriesSnapshot()}
	m := NewWatchModel(context.Background(), ctl, provider.Default(), nil, false)

	for _, k := range []string{"n", "p", "]", "[", "tab", "shift+tab", "enter"} {
		_, cmd := m.Update(keyMsg(k))
		drive(t, m, cmd)
	}

	assert.Equal(t, []string{
		"next", "previous", "season 3", "season 1",
		"provider " + provider.Default().Next("vidsrc", 1),
		"provider " + provider.Default().Next("vidsrc", -1),
		"submit",
	}, ctl.calls)
}

func TestWatchSeasonBounds(t *testing.T) {
	snap := seriesSnapshot()
	snap.Ref.Season = "3"
	ctl := &fakeController{snap: snap}
	m := NewWatchModel(context.Background(), ctl, provider.Default(), nil, false)

	_, cmd := m.Update(keyMsg("]"))
	assert.Nil(t, cmd)
	assert.Error(t, m.err)
	assert.Empty(t, ctl.calls)
}

func TestAdjacentSeasonSkipsSpecials(t *testing.T) {
	seasons := []media.Season{{Number: 0}, {Number: 1}, {Number: 2}}
	_, ok := adjacentSeason(seasons, "1", -1)
	assert.False(t, ok)
	got, ok := adjacentSeason(seasons, "1", 1)
	assert.True(t, ok)
	assert.Equal(t, "2", got)
}

func TestWatchShowsControllerErrors(t *testing.T) {
	ctl := &fakeController{snap: seriesSnapshot(), err: playback.ErrNoAdjacentEpisode}
	m := NewWatchModel(context.Background(), ctl, provider.Default(), nil, false)

	_, cmd := m.Update(keyMsg("n"))
	drive(t, m, cmd)
	assert.True(t, errors.Is(m.err, playback.ErrNoAdjacentEpisode))
	assert.Contains(t, m.View(), playback.ErrNoAdjacentEpisode.Error())
}

func TestWatchAutoOpenOnReadyWithNewURL(t *testing.T) {
	snap := seriesSnapshot()
	ctl := &fakeController{snap: snap}
	opener := &fakeOpener{}
	m := NewWatchModel(context.Background(), ctl, provider.Default(), opener, true)

	drive(t, m, m.Init())
	require.Equal(t, []string{snap.URL}, opener.opened)

	// Reload: not ready, then ready with the next episode.
	reloading := snap
	reloading.Version = 2
	reloading.Ready = false
	reloading.State = playback.Reloading
	_, cmd := m.Update(SnapshotMsg(reloading))
	assert.Nil(t, cmd)

	ready := snap
	ready.Version = 3
	ready.Ref.EpisodeNo = "8"
	ready.URL = "https://vidsrc.xyz/embed/tv?tmdb=1399&block_popups=1&season=2&episode=8"
	_, cmd = m.Update(SnapshotMsg(ready))
	drive(t, m, cmd)
	assert.Equal(t, []string{snap.URL, ready.URL}, opener.opened)

	// A stale snapshot is ignored.
	_, cmd = m.Update(SnapshotMsg(reloading))
	assert.Nil(t, cmd)
	assert.Equal(t, "8", m.snap.Ref.EpisodeNo)
}

func TestWatchNoPlayableURL(t *testing.T) {
	snap := seriesSnapshot()
	snap.Provider = "gone"
	snap.URL = ""
	opener := &fakeOpener{}
	m := NewWatchModel(context.Background(), &fakeController{snap: snap}, provider.Default(), opener, true)

	assert.Nil(t, m.Init())
	assert.Empty(t, opener.opened)
	assert.Contains(t, m.View(), "no playable URL")
}

func TestWatchViewSeries(t *testing.T) {
	m := NewWatchModel(context.Background(), &fakeController{snap: seriesSnapshot()}, provider.Default(), nil, false)
	v := m.View()
	assert.Contains(t, v, "Game of Thrones")
	assert.Contains(t, v, "S02E07")
	assert.Contains(t, v, "A Man Without Honor")
	assert.Contains(t, v, "VidSrc (LESS ADS)")
}
