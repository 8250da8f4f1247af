package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Bar block characters.
const (
	BarFilled = '█'
	BarEmpty  = '░'
)

// ClampPercent clamps a percentage to 0-100.
func ClampPercent(percent float64) float64 {
	if percent < 0 {
		return 0
	}
	if percent > 100 {
		return 100
	}
	return percent
}

// BarCounts returns how many filled and empty cells a bar of width has.
func BarCounts(percent float64, width int) (filled, empty int) {
	filled = int(ClampPercent(percent) / 100 * float64(width))
	return filled, width - filled
}

// RenderUsageBar draws a usage bar colored against threshold.
// Output format: [████████░░░░]  67%
func RenderUsageBar(percent, threshold float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled, empty := BarCounts(percent, width)
	bar := "[" + strings.Repeat(string(BarFilled), filled) + strings.Repeat(string(BarEmpty), empty) + "]"
	style := lipgloss.NewStyle().Foreground(ThresholdColor(percent, threshold))
	return style.Render(bar) + fmt.Sprintf(" %3.0f%%", ClampPercent(percent))
}
