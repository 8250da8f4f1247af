package dashboard

import (
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/feeds"
	"github.com/rileyhilliard/proxmon/internal/ui"
	"github.com/stretchr/testify/assert"
)

func TestView_UsersMarksLockedRows(t *testing.T) {
	m, _ := newModel(t, confirmed("ops@lab", api.RoleAdmin, false))
	m = withUsers(m)
	m, _ = press(m, "2")

	view := m.View()
	assert.Contains(t, view, "admin "+ui.SymbolLocked, "self and other admins are locked")
	assert.Contains(t, view, ui.SymbolCrown+" admin "+ui.SymbolLocked)
	assert.Contains(t, view, "a active | o role | x delete")
}

func TestView_AuditFollowsCursor(t *testing.T) {
	entries := make([]api.AuditEntry, 30)
	for i := range entries {
		entries[i] = api.AuditEntry{
			Timestamp:   api.Timestamp{Time: time.Date(2024, 5, 1, 12, i, 0, 0, time.UTC)},
			Action:      "action-" + string(rune('a'+i%26)),
			PerformedBy: "ops@lab",
		}
	}
	entries[29].Action = "the-last-one"

	m, _ := newModel(t, confirmed("ops@lab", api.RoleAdmin, false))
	m = send(m, tea.WindowSizeMsg{Width: 120, Height: 20})
	m = send(m, auditMsg{log: feeds.AuditLog{Allowed: true, Entries: entries}})
	m, _ = press(m, "3")

	view := m.View()
	assert.Contains(t, view, "1 of 30")
	assert.NotContains(t, view, "the-last-one")

	m, _ = press(m, "end")
	view = m.View()
	assert.Contains(t, view, "30 of 30")
	assert.Contains(t, view, "the-last-one")
}

func TestView_EmptyStates(t *testing.T) {
	m, _ := newModel(t, confirmed("ops@lab", api.RoleAdmin, false))
	assert.Contains(t, m.View(), "Loading node metrics...")
	assert.Contains(t, m.View(), "Alerts  loading")

	m = send(m, nodesMsg{at: time.Now()})
	assert.Contains(t, m.View(), "No nodes reported")

	m, _ = press(m, "3")
	assert.Contains(t, m.View(), "No audit entries")
}

func TestView_NoticesInFooter(t *testing.T) {
	m, f := newModel(t, confirmed("dev@lab", api.RoleUser, false))
	f.notices.Error("Cannot reach the ProxMon server")
	f.notices.Error("Cannot reach the ProxMon server")

	assert.Contains(t, m.View(), ui.SymbolFail+" Cannot reach the ProxMon server (x2)")
}
