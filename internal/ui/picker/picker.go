// Package picker provides an interactive single-choice list.
package picker

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/amplitude-export/internal/ui/styles"
)

// ErrPickerCancelled is returned when the user leaves without choosing.
var ErrPickerCancelled = errors.New("selection cancelled")

// KeyMap defines the picker key bindings.
type KeyMap struct {
	Up     key.Binding
	Down   key.Binding
	Select key.Binding
	Quit   key.Binding
}

// DefaultKeyMap returns the default key bindings.
func DefaultKeyMap() KeyMap {
	return KeyMap{
		Up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Select: key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "select")),
		Quit:   key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q/esc", "cancel")),
	}
}

// ShortHelp returns keybindings for the short help view.
func (k KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Select, k.Quit}
}

// FullHelp returns keybindings for the expanded help view.
func (k KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

// Model is the bubbletea model of the picker.
type Model struct {
	title     string
	items     []string
	keys      KeyMap
	help      help.Model
	cursor    int
	width     int
	chosen    bool
	cancelled bool
}

// New creates a picker over items.
func New(title string, items []string) Model {
	h := help.New()
	h.Styles.ShortKey = styles.HelpKeyStyle
	h.Styles.ShortDesc = styles.HelpStyle
	h.Styles.FullKey = styles.HelpKeyStyle
	h.Styles.FullDesc = styles.HelpStyle

	return Model{
		title: title,
		items: items,
		keys:  DefaultKeyMap(),
		help:  h,
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.help.Width = msg.Width

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.cancelled = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Select):
			if len(m.items) > 0 {
				m.chosen = true
				return m, tea.Quit
			}
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.items)-1 {
				m.cursor++
			}
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if m.chosen || m.cancelled {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.TitleStyle.Render(m.title))
	b.WriteString("\n\n")

	for i, item := range m.items {
		if m.width > 4 {
			item = ansi.Truncate(item, m.width-4, "…")
		}
		if i == m.cursor {
			b.WriteString(styles.SelectedListItemStyle.Render("› " + item))
		} else {
			b.WriteString(styles.ListItemStyle.Render(item))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

// Selected returns the chosen item, or ErrPickerCancelled.
func (m Model) Selected() (string, error) {
	if !m.chosen || m.cursor >= len(m.items) {
		return "", ErrPickerCancelled
	}
	return m.items[m.cursor], nil
}

// Run shows the picker on the terminal and returns the chosen item.
func Run(title string, items []string) (string, error) {
	return RunWithIO(os.Stdin, os.Stderr, title, items)
}

// RunWithIO shows the picker reading keys from in and drawing to out.
func RunWithIO(in io.Reader, out io.Writer, title string, items []string) (string, error) {
	if len(items) == 0 {
		return "", errors.New("nothing to choose from")
	}

	final, err := tea.NewProgram(New(title, items), tea.WithInput(in), tea.WithOutput(out)).Run()
	if err != nil {
		return "", fmt.Errorf("failed to run picker: %w", err)
	}

	m, ok := final.(Model)
	if !ok {
		return "", ErrPickerCancelled
	}
	return m.Selected()
}
