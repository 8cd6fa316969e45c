// Package components provides reusable renderers for terminal output.
package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/dustin/go-humanize"
	"github.com/guptarohit/asciigraph"

	"github.com/j-veylop/amplitude-export/internal/models"
	"github.com/j-veylop/amplitude-export/internal/ui/styles"
)

// maxLabelWidth caps bar chart labels.
const maxLabelWidth = 32

// RenderLineChart creates a single-series ASCII line chart.
func RenderLineChart(data []float64, width, height int, caption string) string {
	if len(data) == 0 {
		return styles.HelpStyle.Render("No data available")
	}

	// Ensure minimum dimensions
	if width < 20 {
		width = 20
	}
	if height < 3 {
		height = 3
	}

	// asciigraph needs two points to draw a line.
	if len(data) == 1 {
		data = []float64{data[0], data[0]}
	}

	return asciigraph.Plot(data,
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
	)
}

// RenderHourlyChart plots event counts per hour, filling hours without events with zero.
func RenderHourlyChart(counts []models.HourlyEventCount, width, height int) string {
	if len(counts) == 0 {
		return RenderLineChart(nil, width, height, "")
	}

	first, last := counts[0].Hour, counts[len(counts)-1].Hour
	hours := int(last.Sub(first).Hours()) + 1

	data := make([]float64, hours)
	for _, c := range counts {
		data[int(c.Hour.Sub(first).Hours())] = float64(c.Count)
	}

	caption := fmt.Sprintf("events per hour, %s to %s",
		first.Format("2006-01-02 15:04"), last.Format("2006-01-02 15:04"))
	return RenderLineChart(data, width, height, caption)
}

// RenderBarChart creates a simple horizontal bar chart.
func RenderBarChart(values []float64, labels []string, width int) string {
	if len(values) == 0 {
		return ""
	}

	// Find max value for scaling
	maxVal := 0.0
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	// Truncate labels and find the widest
	short := make([]string, len(labels))
	maxLabelLen := 0
	for i, l := range labels {
		short[i] = ansi.Truncate(l, maxLabelWidth, "…")
		if w := ansi.StringWidth(short[i]); w > maxLabelLen {
			maxLabelLen = w
		}
	}

	barWidth := width - maxLabelLen - 12 // Leave room for label and value
	if barWidth < 10 {
		barWidth = 10
	}

	barStyle := lipgloss.NewStyle().Foreground(styles.ChartColor)

	var lines []string
	for i, v := range values {
		label := ""
		if i < len(short) {
			label = short[i]
		}

		paddedLabel := strings.Repeat(" ", maxLabelLen-ansi.StringWidth(label)) + label

		barLen := int((v / maxVal) * float64(barWidth))
		if barLen < 0 {
			barLen = 0
		}

		bar := barStyle.Render(strings.Repeat("█", barLen))
		valueStr := " " + humanize.Comma(int64(v))

		lines = append(lines, paddedLabel+" │"+bar+valueStr)
	}

	return strings.Join(lines, "\n")
}

// RenderEventTypes renders the most frequent event types as a bar chart.
func RenderEventTypes(counts []models.EventTypeCount, width int) string {
	if len(counts) == 0 {
		return styles.HelpStyle.Render("No events stored")
	}

	values := make([]float64, len(counts))
	labels := make([]string, len(counts))
	for i, c := range counts {
		values[i] = float64(c.Count)
		labels[i] = c.EventType
	}
	return RenderBarChart(values, labels, width)
}

// HeatmapBlocks are Unicode block characters for heatmaps (low to high intensity).
var HeatmapBlocks = []rune{'░', '▒', '▓', '█'}

// HourOfDay folds hourly counts into 24 buckets by hour of day.
func HourOfDay(counts []models.HourlyEventCount) []float64 {
	buckets := make([]float64, 24)
	for _, c := range counts {
		buckets[c.Hour.UTC().Hour()] += float64(c.Count)
	}
	return buckets
}

// RenderHourlyHeatmap creates a 24-hour activity heatmap.
func RenderHourlyHeatmap(patterns []float64) string {
	if len(patterns) != 24 {
		// Pad or truncate to 24 hours
		padded := make([]float64, 24)
		copy(padded, patterns)
		patterns = padded
	}

	// Find max value for normalization
	maxVal := 0.0
	for _, v := range patterns {
		if v > maxVal {
			maxVal = v
		}
	}
	if maxVal == 0 {
		maxVal = 1
	}

	var result strings.Builder
	result.WriteString("00 ")

	for i, v := range patterns {
		intensity := int((v / maxVal) * float64(len(HeatmapBlocks)-1))
		if intensity >= len(HeatmapBlocks) {
			intensity = len(HeatmapBlocks) - 1
		}
		if intensity < 0 {
			intensity = 0
		}

		var style lipgloss.Style
		switch intensity {
		case 0:
			style = lipgloss.NewStyle().Foreground(styles.Subtle)
		case 1:
			style = lipgloss.NewStyle().Foreground(styles.Success)
		case 2:
			style = lipgloss.NewStyle().Foreground(styles.Warning)
		case 3:
			style = lipgloss.NewStyle().Foreground(styles.Error)
		}

		result.WriteString(style.Render(string(HeatmapBlocks[intensity])))

		// Add gap at noon for readability
		if i == 11 {
			result.WriteString(" ")
		}
	}

	result.WriteString(" 23 UTC")
	return result.String()
}
