package ui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with name and width. A zero width is
// sized to fit the widest cell.
type TableColumn struct {
	Title string
	Width int
}

// tableStyles returns the shared table styling.
func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.Foreground(ColorPrimary)
	s.Selected = s.Selected.
		Foreground(ColorPrimary).
		Background(ColorMuted).
		Bold(false)
	return s
}

// fitColumns fills in zero widths from the content.
func fitColumns(columns []TableColumn, rows []table.Row) []table.Column {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		w := c.Width
		if w == 0 {
			w = lipgloss.Width(c.Title)
			for _, r := range rows {
				if i < len(r) {
					if cw := lipgloss.Width(r[i]); cw > w {
						w = cw
					}
				}
			}
		}
		cols[i] = table.Column{Title: c.Title, Width: w}
	}
	return cols
}

// NewTable creates an interactive table for the dashboard.
func NewTable(columns []TableColumn, rows []table.Row, height int) table.Model {
	t := table.New(
		table.WithColumns(fitColumns(columns, rows)),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)
	t.SetStyles(tableStyles())
	return t
}

// RenderSimpleTable renders a non-interactive table for command output.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}

	t := table.New(
		table.WithColumns(fitColumns(columns, tableRows)),
		table.WithRows(tableRows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1), // +1 for header
	)
	s := tableStyles()
	s.Selected = lipgloss.NewStyle()
	t.SetStyles(s)
	return t.View()
}
