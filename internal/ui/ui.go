// Package ui provides the terminal pickers and the interactive watch
// screen. Items are rendered as plain text; nothing from remote data is
// ever evaluated.
package ui

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrCancelled is returned when the user backs out of a picker.
var ErrCancelled = errors.New("selection cancelled")

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	itemStyle     = lipgloss.NewStyle().PaddingLeft(2)
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	okStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("244")).Width(10)
	selectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57")).Padding(0, 1)
)

type pickerKeys struct {
	Up, Down, PageUp, PageDown, Choose, Filter, Back key.Binding
}

var pickKeys = pickerKeys{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown"), key.WithHelp("pgdn", "page down")),
	Choose:   key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
	Filter:   key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "filter")),
	Back:     key.NewBinding(key.WithKeys("esc", "q", "ctrl+c"), key.WithHelp("esc/q", "cancel")),
}

const pageSize = 10

// picker is the bubbletea model behind Select.
type picker struct {
	prompt    string
	items     []string
	visible   []int // indexes into items
	cursor    int
	offset    int
	filter    textinput.Model
	filtering bool

	chosen    int
	cancelled bool
}

func newPicker(prompt string, items []string) *picker {
	in := textinput.New()
	in.Placeholder = "filter..."
	in.Width = 30
	p := &picker{prompt: prompt, items: items, filter: in, chosen: -1}
	p.applyFilter()
	return p
}

func (p *picker) Init() tea.Cmd { return nil }

func (p *picker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}

	if p.filtering {
		switch km.Type {
		case tea.KeyEsc:
			p.filtering = false
			p.filter.Blur()
			p.filter.SetValue("")
			p.applyFilter()
			return p, nil
		case tea.KeyEnter:
			p.filtering = false
			p.filter.Blur()
			return p, nil
		}
		var cmd tea.Cmd
		p.filter, cmd = p.filter.Update(km)
		p.applyFilter()
		return p, cmd
	}

	switch {
	case key.Matches(km, pickKeys.Back):
		p.cancelled = true
		return p, tea.Quit
	case key.Matches(km, pickKeys.Choose):
		if len(p.visible) > 0 {
			p.chosen = p.visible[p.cursor]
			return p, tea.Quit
		}
	case key.Matches(km, pickKeys.Filter):
		p.filtering = true
		return p, p.filter.Focus()
	case key.Matches(km, pickKeys.Up):
		p.move(-1)
	case key.Matches(km, pickKeys.Down):
		p.move(1)
	case key.Matches(km, pickKeys.PageUp):
		p.move(-pageSize)
	case key.Matches(km, pickKeys.PageDown):
		p.move(pageSize)
	}
	return p, nil
}

func (p *picker) move(delta int) {
	if len(p.visible) == 0 {
		return
	}
	p.cursor = min(max(p.cursor+delta, 0), len(p.visible)-1)
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+pageSize {
		p.offset = p.cursor - pageSize + 1
	}
}

func (p *picker) applyFilter() {
	q := strings.ToLower(p.filter.Value())
	p.visible = p.visible[:0]
	for i, it := range p.items {
		if q == "" || strings.Contains(strings.ToLower(it), q) {
			p.visible = append(p.visible, i)
		}
	}
	p.cursor, p.offset = 0, 0
}

func (p *picker) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render(p.prompt) + "\n")
	if p.filtering || p.filter.Value() != "" {
		b.WriteString(p.filter.View() + "\n")
	}
	b.WriteString("\n")

	if len(p.visible) == 0 {
		b.WriteString(dimStyle.Render("  no matches") + "\n")
	}
	end := min(p.offset+pageSize, len(p.visible))
	for i := p.offset; i < end; i++ {
		line := p.items[p.visible[i]]
		if i == p.cursor {
			b.WriteString(cursorStyle.Render("> "+line) + "\n")
		} else {
			b.WriteString(itemStyle.Render(line) + "\n")
		}
	}
	b.WriteString("\n" + dimStyle.Render(fmt.Sprintf("%d/%d  ↑/↓ move • / filter • enter select • esc cancel", len(p.visible), len(p.items))))
	return b.String()
}

// Select presents items and returns the chosen index.
func Select(prompt string, items []string) (int, error) {
	if len(items) == 0 {
		return -1, fmt.Errorf("no items to select from")
	}

	final, err := tea.NewProgram(newPicker(prompt, items), tea.WithOutput(os.Stderr)).Run()
	if err != nil {
		return -1, fmt.Errorf("running picker: %w", err)
	}
	p := final.(*picker)
	if p.cancelled || p.chosen < 0 {
		return -1, ErrCancelled
	}
	return p.chosen, nil
}

// Confirm asks the user a yes/no question.
func Confirm(prompt string) (bool, error) {
	idx, err := Select(prompt, []string{"Yes", "No"})
	if err != nil {
		return false, err
	}
	return idx == 0, nil
}
