package ui

import (
	"fmt"
	"strings"

	"github.com/rileyhilliard/proxmon/internal/notify"
)

// RenderNotice renders one notice with its level symbol.
func RenderNotice(n notify.Notice) string {
	text := n.Message
	if n.Count > 1 {
		text = fmt.Sprintf("%s (x%d)", text, n.Count)
	}
	switch n.Level {
	case notify.LevelError:
		return ErrorStyle.Render(SymbolFail + " " + text)
	case notify.LevelSuccess:
		return SuccessStyle.Render(SymbolSuccess + " " + text)
	default:
		return InfoStyle.Render(SymbolInfo + " " + text)
	}
}

// RenderNotices renders notices one per line, newest last.
func RenderNotices(notices []notify.Notice) string {
	lines := make([]string, 0, len(notices))
	for _, n := range notices {
		lines = append(lines, RenderNotice(n))
	}
	return strings.Join(lines, "\n")
}
