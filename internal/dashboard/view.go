package dashboard

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/session"
	"github.com/rileyhilliard/proxmon/internal/ui"
)

// renderDashboard renders the complete dashboard view.
func (m Model) renderDashboard() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderTabs())
	b.WriteString("\n\n")

	if m.confirm != nil {
		b.WriteString(m.renderConfirm())
	} else {
		b.WriteString(m.renderBody())
	}

	if notices := ui.RenderNotices(m.deps.Notices.Active()); notices != "" {
		b.WriteString("\n\n")
		b.WriteString(notices)
	}

	b.WriteString("\n")
	b.WriteString(m.renderFooter())
	return b.String()
}

// renderHeader shows who is signed in and how sure we are of it.
func (m Model) renderHeader() string {
	title := TitleStyle.Render("proxmon")

	var who string
	switch m.state.Kind {
	case session.Confirmed:
		id := m.state.Identity
		role := id.Role
		if id.IsSuperadmin {
			role = ui.SymbolCrown + " superadmin"
		}
		who = fmt.Sprintf("%s (%s)", id.Email, role)
	case session.Provisional:
		who = fmt.Sprintf("%s (%s, checking)", m.state.Claims.Subject, m.state.Claims.Role)
	default:
		who = "not signed in"
	}

	stats := MutedStyle.Render(fmt.Sprintf(" | %s | %d nodes | updated %s",
		who, len(m.nodes), ui.FormatAgo(m.nodesAt, m.now)))
	return HeaderStyle.Render(title + stats)
}

func (m Model) renderTabs() string {
	var parts []string
	for t := TabNodes; t < tabCount; t++ {
		label := fmt.Sprintf("%d %s", int(t)+1, t)
		switch m.access(t) {
		case accessHidden:
			continue
		case accessPending:
			label += " (pending)"
			parts = append(parts, TabPendingStyle.Render(label))
			continue
		}
		if t == m.tab {
			parts = append(parts, TabActiveStyle.Render(label))
		} else {
			parts = append(parts, TabStyle.Render(label))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m Model) renderBody() string {
	if m.access(m.tab) == accessPending {
		return MutedStyle.Render("Waiting for the server to confirm your role...")
	}
	switch m.tab {
	case TabUsers:
		return m.renderUsers()
	case TabAudit:
		return m.renderAudit()
	default:
		return m.renderNodes()
	}
}

// renderNodes renders the alert toggles and one card per node.
func (m Model) renderNodes() string {
	var b strings.Builder
	b.WriteString(m.renderAlerts())
	b.WriteString("\n\n")

	if len(m.nodes) == 0 {
		if m.nodesAt.IsZero() {
			b.WriteString(MutedStyle.Render("Loading node metrics..."))
		} else {
			b.WriteString(MutedStyle.Render("No nodes reported"))
		}
		return b.String()
	}

	cards := make([]string, 0, len(m.nodes))
	for i, n := range m.nodes {
		cards = append(cards, m.renderNode(n, i == m.cursor[TabNodes]))
	}
	b.WriteString(lipgloss.JoinVertical(lipgloss.Left, cards...))
	return b.String()
}

func (m Model) renderAlerts() string {
	if !m.alertsLoaded {
		return LabelStyle.Render("Alerts  ") + MutedStyle.Render("loading")
	}
	a := m.alerts.Get()
	parts := []string{LabelStyle.Render("Alerts")}
	for _, r := range []alertResource{alertCPU, alertRAM, alertDisk} {
		var state string
		switch {
		case m.savingAlert == r && m.deps.Coordinator.Pending(alertsTarget):
			state = AlertPendingStyle.Render(ui.SymbolProgress + " saving")
		case r.get(a):
			state = AlertOnStyle.Render(ui.SymbolSuccess + " on")
		default:
			state = AlertOffStyle.Render(ui.SymbolPending + " off")
		}
		parts = append(parts, fmt.Sprintf("%s %s", r.label(), state))
	}
	return strings.Join(parts, "   ")
}

func (m Model) renderNode(n api.NodeStatus, selected bool) string {
	var lines []string
	lines = append(lines, NodeNameStyle.Render(n.Node))
	lines = append(lines, fmt.Sprintf("%s %s",
		LabelStyle.Render("CPU "), ui.RenderUsageBar(n.Stats.CPU, float64(m.cpuThreshold), barWidth)))
	lines = append(lines, fmt.Sprintf("%s %s  %s",
		LabelStyle.Render("RAM "), ui.RenderUsageBar(n.Stats.RAM.Percent(), float64(m.ramThreshold), barWidth),
		MutedStyle.Render(ui.FormatUsage(n.Stats.RAM.Used, n.Stats.RAM.Total))))
	lines = append(lines, fmt.Sprintf("%s %s  %s",
		LabelStyle.Render("Disk"), ui.RenderUsageBar(n.Stats.Disk.Percent(), float64(m.diskThreshold), barWidth),
		MutedStyle.Render(ui.FormatUsage(n.Stats.Disk.Used, n.Stats.Disk.Total))))

	running := 0
	for _, g := range n.VMs {
		if g.Running() {
			running++
		}
	}
	lines = append(lines, "")
	lines = append(lines, LabelStyle.Render(fmt.Sprintf("Guests %d running / %d", running, len(n.VMs))))

	for i, g := range n.VMs {
		if i == maxGuestRows {
			lines = append(lines, MutedStyle.Render(fmt.Sprintf("  +%d more", len(n.VMs)-maxGuestRows)))
			break
		}
		lines = append(lines, renderGuest(g))
	}

	style := CardStyle
	if selected {
		style = CardSelectedStyle
	}
	return style.Render(strings.Join(lines, "\n"))
}

func renderGuest(g api.Guest) string {
	symbol := GuestStoppedStyle.Render(ui.SymbolStopped)
	if g.Running() {
		symbol = GuestRunningStyle.Render(ui.SymbolRunning)
	}
	return fmt.Sprintf("  %s %-20s %-4s %s  %s",
		symbol, g.Name, g.Type,
		MutedStyle.Render("CPU "+ui.FormatPercent(g.CPU*100)),
		MutedStyle.Render("RAM "+ui.FormatUsage(g.RAM.Used, g.RAM.Total)))
}

// renderUsers lists accounts. Rows the viewer may not change are marked
// locked.
func (m Model) renderUsers() string {
	users := m.users.Get()
	if len(users) == 0 {
		return MutedStyle.Render("Loading users...")
	}

	columns := []ui.TableColumn{
		{Title: " "}, {Title: "Email"}, {Title: "Role"}, {Title: "Active"}, {Title: "Last login"},
	}
	rows := make([][]string, 0, len(users))
	for i, u := range users {
		marker := " "
		if i == m.cursor[TabUsers] {
			marker = ">"
		}
		target := session.FromUser(u)
		role := u.Role
		if u.IsSuperadmin {
			role = ui.SymbolCrown + " " + role
		}
		if m.deps.Coordinator.Pending(userTarget(u.ID)) {
			role += " " + ui.SymbolProgress
		} else if !m.caps.CanActOn(target) {
			role += " " + ui.SymbolLocked
		}
		active := ui.SymbolSuccess + " yes"
		if !u.IsActive {
			active = ui.SymbolFail + " no"
		}
		rows = append(rows, []string{marker, u.Email, role, active, ui.FormatTime(u.LastLogin.Time)})
	}
	return ui.RenderSimpleTable(columns, rows)
}

// renderAudit shows a window of the audit log around the cursor.
func (m Model) renderAudit() string {
	if len(m.audit) == 0 {
		return MutedStyle.Render("No audit entries")
	}

	window := m.height - 14
	if window < 5 {
		window = 5
	}
	cursor := m.cursor[TabAudit]
	start := cursor - window/2
	if start < 0 {
		start = 0
	}
	end := start + window
	if end > len(m.audit) {
		end = len(m.audit)
		start = end - window
		if start < 0 {
			start = 0
		}
	}

	columns := []ui.TableColumn{
		{Title: "Time", Width: 16}, {Title: "Action", Width: 22}, {Title: "By", Width: 24}, {Title: "Details"},
	}
	rows := make([]table.Row, 0, end-start)
	for _, e := range m.audit[start:end] {
		rows = append(rows, table.Row{ui.FormatTime(e.Timestamp.Time), e.Action, e.PerformedBy, e.Details})
	}
	// Two extra lines for the header and its border.
	t := ui.NewTable(columns, rows, len(rows)+2)
	t.SetCursor(cursor - start)
	return t.View() + "\n" + MutedStyle.Render(fmt.Sprintf("%d of %d", cursor+1, len(m.audit)))
}

func (m Model) renderConfirm() string {
	body := fmt.Sprintf("Delete %s?\n\n%s", m.confirm.user.Email, MutedStyle.Render("y delete | n cancel"))
	return DialogStyle.Render(body)
}

// renderFooter renders the keyboard help footer.
func (m Model) renderFooter() string {
	hints := []string{"q quit", "r refresh", "tab switch", "c/m/d alerts"}
	if m.tab == TabUsers && m.access(TabUsers) == accessOpen {
		hints = append(hints, "a active", "o role", "x delete")
	}
	hints = append(hints, "? help")
	return FooterStyle.Render(strings.Join(hints, " | "))
}
