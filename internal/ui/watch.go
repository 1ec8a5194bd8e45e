package ui

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"vidframe/internal/browser"
	"vidframe/internal/media"
	"vidframe/internal/playback"
	"vidframe/internal/provider"
)

// Controller is the part of a playback machine the watch screen drives.
type Controller interface {
	Snapshot() playback.Snapshot
	ChangeSeason(ctx context.Context, season string) error
	NextEpisode(ctx context.Context) error
	PreviousEpisode(ctx context.Context) error
	ChangeProvider(ctx context.Context, id string) error
	Submit(ctx context.Context) error
}

// SnapshotMsg carries a machine change into the program. The watch
// command forwards every OnChange callback as one.
type SnapshotMsg playback.Snapshot

type actionMsg struct {
	action string
	err    error
}

type openedMsg struct {
	url string
	err error
}

type watchKeys struct {
	NextEpisode, PrevEpisode key.Binding
	NextSeason, PrevSeason   key.Binding
	NextSource, PrevSource   key.Binding
	Play, Open, Help, Quit   key.Binding
}

func (k watchKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.NextEpisode, k.PrevEpisode, k.NextSource, k.Play, k.Help, k.Quit}
}

func (k watchKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.NextEpisode, k.PrevEpisode, k.NextSeason, k.PrevSeason},
		{k.NextSource, k.PrevSource},
		{k.Play, k.Open, k.Help, k.Quit},
	}
}

var keys = watchKeys{
	NextEpisode: key.NewBinding(key.WithKeys("n", "right"), key.WithHelp("n/→", "next episode")),
	PrevEpisode: key.NewBinding(key.WithKeys("p", "left"), key.WithHelp("p/←", "previous episode")),
	NextSeason:  key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next season")),
	PrevSeason:  key.NewBinding(key.WithKeys("["), key.WithHelp("[", "previous season")),
	NextSource:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next source")),
	PrevSource:  key.NewBinding(key.WithKeys("shift+tab"), key.WithHelp("shift+tab", "previous source")),
	Play:        key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "play")),
	Open:        key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "open in browser")),
	Help:        key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
	Quit:        key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

// WatchModel is the interactive screen of one watch session.
type WatchModel struct {
	ctx      context.Context
	ctl      Controller
	registry *provider.Registry
	opener   browser.Opener
	autoOpen bool

	snap       playback.Snapshot
	lastOpened string
	status     string
	err        error
	help       help.Model
}

// NewWatchModel builds the screen. When autoOpen is set, every time the
// player becomes ready with a new URL it is opened in the browser, which
// is this screen's equivalent of remounting the player frame.
func NewWatchModel(ctx context.Context, ctl Controller, registry *provider.Registry, opener browser.Opener, autoOpen bool) *WatchModel {
	return &WatchModel{
		ctx:      ctx,
		ctl:      ctl,
		registry: registry,
		opener:   opener,
		autoOpen: autoOpen,
		snap:     ctl.Snapshot(),
		help:     help.New(),
	}
}

func (m *WatchModel) Init() tea.Cmd {
	return m.maybeOpen()
}

func (m *WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case SnapshotMsg:
		snap := playback.Snapshot(msg)
		if snap.Version < m.snap.Version {
			return m, nil
		}
		m.snap = snap
		return m, m.maybeOpen()

	case actionMsg:
		m.err = msg.err
		if msg.err == nil {
			m.status = msg.action
		}
		m.snap = m.ctl.Snapshot()
		return m, m.maybeOpen()

	case openedMsg:
		if msg.err != nil {
			m.err = msg.err
		} else {
			m.status = "opened in " + m.opener.Name()
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m, m.handleKey(msg)
	}
	return m, nil
}

func (m *WatchModel) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, keys.Quit):
		return tea.Quit
	case key.Matches(msg, keys.Help):
		m.help.ShowAll = !m.help.ShowAll
		return nil
	case key.Matches(msg, keys.NextEpisode):
		return m.run("next episode", m.ctl.NextEpisode)
	case key.Matches(msg, keys.PrevEpisode):
		return m.run("previous episode", m.ctl.PreviousEpisode)
	case key.Matches(msg, keys.NextSeason):
		return m.stepSeason(1)
	case key.Matches(msg, keys.PrevSeason):
		return m.stepSeason(-1)
	case key.Matches(msg, keys.NextSource):
		return m.switchProvider(1)
	case key.Matches(msg, keys.PrevSource):
		return m.switchProvider(-1)
	case key.Matches(msg, keys.Play):
		m.lastOpened = ""
		return m.run("playing", m.ctl.Submit)
	case key.Matches(msg, keys.Open):
		return m.open(m.snap.URL)
	}
	return nil
}

func (m *WatchModel) run(action string, fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return actionMsg{action: action, err: fn(ctx)}
	}
}

func (m *WatchModel) switchProvider(step int) tea.Cmd {
	id := m.registry.Next(m.snap.Provider, step)
	label := id
	if d, ok := m.registry.Lookup(id); ok {
		label = d.Label()
	}
	return m.run("source: "+label, func(ctx context.Context) error {
		return m.ctl.ChangeProvider(ctx, id)
	})
}

func (m *WatchModel) stepSeason(step int) tea.Cmd {
	target, ok := adjacentSeason(m.snap.Seasons, m.snap.Ref.Season, step)
	if !ok {
		if step > 0 {
			m.err = fmt.Errorf("no next season")
		} else {
			m.err = fmt.Errorf("no previous season")
		}
		return nil
	}
	return m.run("season "+target, func(ctx context.Context) error {
		return m.ctl.ChangeSeason(ctx, target)
	})
}

// adjacentSeason steps through regular seasons (number >= 1).
func adjacentSeason(seasons []media.Season, current string, step int) (string, bool) {
	var regular []int
	for _, s := range seasons {
		if s.Number >= 1 {
			regular = append(regular, s.Number)
		}
	}
	cur, err := strconv.Atoi(current)
	if err != nil {
		return "", false
	}
	for i, n := range regular {
		if n == cur {
			j := i + step
			if j < 0 || j >= len(regular) {
				return "", false
			}
			return strconv.Itoa(regular[j]), true
		}
	}
	return "", false
}

func (m *WatchModel) maybeOpen() tea.Cmd {
	if !m.autoOpen || !m.snap.Playable() || m.snap.URL == m.lastOpened {
		return nil
	}
	return m.open(m.snap.URL)
}

func (m *WatchModel) open(url string) tea.Cmd {
	if url == "" || m.opener == nil {
		return nil
	}
	m.lastOpened = url
	ctx, opener := m.ctx, m.opener
	return func() tea.Msg {
		return openedMsg{url: url, err: opener.Open(ctx, url)}
	}
}

func (m *WatchModel) View() string {
	var b strings.Builder
	s := m.snap

	title := s.Title
	if title == "" {
		title = s.Ref.Kind.String() + " " + s.Ref.CatalogID()
	}
	b.WriteString(titleStyle.Render(title) + "\n\n")

	if s.Ref.Kind == media.Series && s.Ref.Season != "" {
		b.WriteString(labelStyle.Render("episode") + m.episodeLine() + "\n")
	}

	source := s.Provider
	if d, ok := m.registry.Lookup(s.Provider); ok {
		source = d.Label()
	}
	b.WriteString(labelStyle.Render("source") + selectedStyle.Render(source) + "\n")

	state := s.State.String()
	if s.Ready {
		state = okStyle.Render(state)
	} else {
		state = dimStyle.Render(state)
	}
	b.WriteString(labelStyle.Render("state") + state + "\n")

	url := s.URL
	if url == "" {
		url = errorStyle.Render("no playable URL for this source")
	}
	b.WriteString(labelStyle.Render("url") + url + "\n\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(m.err.Error()) + "\n")
	} else if m.status != "" {
		b.WriteString(dimStyle.Render(m.status) + "\n")
	}
	b.WriteString("\n" + m.help.View(keys))
	return b.String()
}

func (m *WatchModel) episodeLine() string {
	s := m.snap
	line := fmt.Sprintf("S%02dE%02d", atoi(s.Ref.Season), atoi(s.Ref.EpisodeNo))
	for _, ep := range s.Episodes {
		if strconv.Itoa(ep.Number) == s.Ref.EpisodeNo && ep.Name != "" {
			line += "  " + ep.Name
			break
		}
	}
	if len(s.Episodes) > 0 {
		line += dimStyle.Render(fmt.Sprintf("  (%d episodes)", len(s.Episodes)))
	}
	return line
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
