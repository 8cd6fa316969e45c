package components

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"

	"github.com/j-veylop/amplitude-export/internal/ui/styles"
)

// Row is one line of a key/value summary.
type Row struct {
	Label string
	Value string
	Style *lipgloss.Style
}

// RenderSummary renders a titled card with aligned key/value rows.
func RenderSummary(title string, rows []Row) string {
	width := 0
	for _, r := range rows {
		if w := ansi.StringWidth(r.Label); w > width {
			width = w
		}
	}

	lines := []string{styles.TitleStyle.Render(title)}
	for _, r := range rows {
		valueStyle := styles.ValueStyle
		if r.Style != nil {
			valueStyle = *r.Style
		}
		label := r.Label + strings.Repeat(" ", width-ansi.StringWidth(r.Label))
		lines = append(lines, styles.LabelStyle.Render(label)+"  "+valueStyle.Render(r.Value))
	}

	return styles.CardStyle.Render(strings.Join(lines, "\n"))
}
