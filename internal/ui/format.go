package ui

import (
	"fmt"
	"time"
)

// FormatStorage renders a size given in GB, switching to TB at 1000 GB.
func FormatStorage(gb float64) string {
	if gb >= 1000 {
		return fmt.Sprintf("%.1f TB", gb/1000)
	}
	return fmt.Sprintf("%.0f GB", gb)
}

// FormatUsage renders "used / total".
func FormatUsage(used, total float64) string {
	return FormatStorage(used) + " / " + FormatStorage(total)
}

// FormatPercent renders a 0-100 value with one decimal.
func FormatPercent(p float64) string {
	return fmt.Sprintf("%.1f%%", p)
}

// FormatTime renders t in local time, or "never" when zero.
func FormatTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}
	return t.Local().Format("2006-01-02 15:04")
}

// FormatAgo renders how long ago t was, coarsely.
func FormatAgo(t time.Time, now time.Time) string {
	if t.IsZero() {
		return "never"
	}
	d := now.Sub(t)
	switch {
	case d < 2*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	default:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
}
