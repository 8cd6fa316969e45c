package components

import (
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/j-veylop/amplitude-export/internal/ui/styles"
)

// TransferMsg reports the number of bytes received so far.
type TransferMsg int64

// TransferDoneMsg stops the spinner.
type TransferDoneMsg struct{}

// TransferSpinner shows a spinner with a running byte count while a download
// is in progress.
type TransferSpinner struct {
	spinner spinner.Model
	label   string
	style   lipgloss.Style
	bytes   int64
	done    bool
}

// NewTransferSpinner creates a spinner with the given label.
func NewTransferSpinner(label string) TransferSpinner {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(styles.Primary)

	return TransferSpinner{
		spinner: s,
		label:   label,
		style:   lipgloss.NewStyle().Foreground(styles.TextSecondary),
	}
}

// Init starts the spinner animation.
func (t TransferSpinner) Init() tea.Cmd {
	return t.spinner.Tick
}

// Update handles tick, progress and completion messages.
func (t TransferSpinner) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case TransferMsg:
		if int64(msg) > t.bytes {
			t.bytes = int64(msg)
		}
		return t, nil
	case TransferDoneMsg:
		t.done = true
		return t, tea.Quit
	}

	var cmd tea.Cmd
	t.spinner, cmd = t.spinner.Update(msg)
	return t, cmd
}

// View renders the spinner line; it is empty once the transfer is done.
func (t TransferSpinner) View() string {
	if t.done {
		return ""
	}
	return t.spinner.View() + " " + t.style.Render(t.label+" "+humanize.Bytes(uint64(t.bytes)))
}
