package dashboard

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/authz"
	"github.com/rileyhilliard/proxmon/internal/feeds"
	"github.com/rileyhilliard/proxmon/internal/mutation"
	"github.com/rileyhilliard/proxmon/internal/notify"
	"github.com/rileyhilliard/proxmon/internal/session"
)

// Tab is one page of the dashboard.
type Tab int

const (
	TabNodes Tab = iota
	TabUsers
	TabAudit
	tabCount
)

// String returns the tab title.
func (t Tab) String() string {
	switch t {
	case TabUsers:
		return "Users"
	case TabAudit:
		return "Audit"
	default:
		return "Nodes"
	}
}

// access is how a tab may be shown to the current viewer.
type access int

const (
	accessHidden access = iota
	// accessPending: the stored claims say admin but the server has not
	// confirmed it. The title shows; data and actions do not.
	accessPending
	accessOpen
)

// Refresher forces feeds to refresh. *poll.Scheduler implements it.
type Refresher interface {
	Trigger(key string) bool
	TriggerAll()
}

// Deps are what a Model talks to.
type Deps struct {
	Client      *api.Client
	Coordinator *mutation.Coordinator
	Notices     *notify.Center
	Feeds       Refresher
}

// tickInterval drives notice expiry and the "updated" clock.
const tickInterval = time.Second

// Model is the Bubble Tea model for the dashboard.
type Model struct {
	deps Deps

	tab   Tab
	state session.State
	caps  authz.Capabilities

	nodes   []api.NodeStatus
	nodesAt time.Time

	alerts       *mutation.Cell[api.Alerts]
	alertsLoaded bool
	savingAlert  alertResource

	cpuThreshold, ramThreshold, diskThreshold int

	users *mutation.Cell[[]api.User]
	audit []api.AuditEntry

	cursor  [tabCount]int
	confirm *confirmDelete

	width, height int
	now           time.Time
	showHelp      bool
	quitting      bool
	terminated    *api.Termination
}

// confirmDelete is an open "delete this user?" dialog.
type confirmDelete struct {
	user api.User
}

// tickMsg signals a periodic redraw.
type tickMsg time.Time

// nodesMsg carries a metrics feed result.
type nodesMsg struct {
	nodes []api.NodeStatus
	at    time.Time
}

// alertsMsg carries an alerts feed result.
type alertsMsg struct {
	alerts api.Alerts
}

// settingsMsg carries a settings feed result.
type settingsMsg struct {
	settings api.Settings
}

// usersMsg carries a users feed result.
type usersMsg struct {
	list feeds.UserList
}

// auditMsg carries an audit feed result.
type auditMsg struct {
	log feeds.AuditLog
}

// stateMsg carries a new identity snapshot.
type stateMsg struct {
	state session.State
}

// noticesMsg asks for a redraw after a notice was posted.
type noticesMsg struct{}

// terminatedMsg ends the program because the session ended.
type terminatedMsg struct {
	termination api.Termination
}

// actionDoneMsg reports a settled mutation.
type actionDoneMsg struct {
	target  string
	state   mutation.State
	success string
}

// NewModel creates a dashboard showing initial as the identity snapshot.
func NewModel(deps Deps, initial session.State) Model {
	if deps.Notices == nil {
		deps.Notices = notify.New()
	}
	if deps.Coordinator == nil {
		deps.Coordinator = mutation.New(mutation.WithNotifier(deps.Notices))
	}
	m := Model{
		deps:          deps,
		alerts:        mutation.NewCell(api.Alerts{}),
		users:         mutation.NewCell[[]api.User](nil),
		cpuThreshold:  api.DefaultCPUThreshold,
		ramThreshold:  api.DefaultRAMThreshold,
		diskThreshold: api.DefaultDiskThreshold,
		now:           time.Now(),
	}
	m.setState(initial)
	return m
}

// Init starts the redraw clock.
func (m Model) Init() tea.Cmd {
	return tickCmd()
}

// Update handles messages and updates the model state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if m.terminated != nil {
		// The session is over; drop whatever feeds delivered late.
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if handled, cmd := m.HandleKeyMsg(msg); handled {
			return m, cmd
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tickMsg:
		m.now = time.Time(msg)
		return m, tickCmd()

	case nodesMsg:
		m.nodes = api.SortGuests(msg.nodes)
		m.nodesAt = msg.at
		m.clampCursor(TabNodes)

	case alertsMsg:
		m.alerts.Set(msg.alerts)
		m.alertsLoaded = true

	case settingsMsg:
		m.cpuThreshold, m.ramThreshold, m.diskThreshold = msg.settings.Thresholds()

	case usersMsg:
		if msg.list.Allowed && m.caps.CanManageUsers {
			m.users.Set(msg.list.Users)
		} else {
			m.users.Set(nil)
		}
		m.clampCursor(TabUsers)

	case auditMsg:
		if msg.log.Allowed && m.caps.CanViewAuditLog {
			m.audit = msg.log.Entries
		} else {
			m.audit = nil
		}
		m.clampCursor(TabAudit)

	case stateMsg:
		m.setState(msg.state)

	case actionDoneMsg:
		if msg.state == mutation.Committed && msg.success != "" && m.deps.Notices != nil {
			m.deps.Notices.Success(msg.success)
		}
		m.clampCursor(TabUsers)

	case noticesMsg:
		// Redraw only.

	case terminatedMsg:
		t := msg.termination
		m.terminated = &t
		m.quitting = true
		return m, tea.Quit
	}

	return m, nil
}

// View renders the dashboard.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.showHelp {
		return m.renderHelpOverlay()
	}
	return m.renderDashboard()
}

// Terminated returns why the session ended, if it did.
func (m Model) Terminated() (api.Termination, bool) {
	if m.terminated == nil {
		return api.Termination{}, false
	}
	return *m.terminated, true
}

// ActiveTab returns the tab on screen.
func (m Model) ActiveTab() Tab {
	return m.tab
}

func tickCmd() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// setState adopts a new identity snapshot and drops whatever the new
// capability set no longer covers.
func (m *Model) setState(s session.State) {
	prev := m.caps
	m.state = s
	m.caps = authz.FromState(s)

	if !m.caps.CanManageUsers {
		m.users.Set(nil)
		m.confirm = nil
	}
	if !m.caps.CanViewAuditLog {
		m.audit = nil
	}
	if m.access(m.tab) == accessHidden {
		m.tab = TabNodes
	}

	if m.deps.Feeds != nil {
		if m.caps.CanManageUsers && !prev.CanManageUsers {
			m.deps.Feeds.Trigger(feeds.Users)
		}
		if m.caps.CanViewAuditLog && !prev.CanViewAuditLog {
			m.deps.Feeds.Trigger(feeds.Audit)
		}
	}
}

// access decides how tab t is shown. Only the confirmed capability set
// opens a privileged tab.
func (m Model) access(t Tab) access {
	var open bool
	switch t {
	case TabNodes:
		return accessOpen
	case TabUsers:
		open = m.caps.CanManageUsers
	case TabAudit:
		open = m.caps.CanViewAuditLog
	}
	if open {
		return accessOpen
	}
	if m.state.Kind == session.Provisional && m.state.Claims.Role == api.RoleAdmin {
		return accessPending
	}
	return accessHidden
}

func (m *Model) selectTab(t Tab) {
	if m.access(t) != accessHidden {
		m.tab = t
	}
}

// cycleTab moves to the next visible tab in direction dir.
func (m *Model) cycleTab(dir int) {
	for i := 1; i < int(tabCount); i++ {
		next := Tab((int(m.tab) + dir*i + int(tabCount)) % int(tabCount))
		if m.access(next) != accessHidden {
			m.tab = next
			return
		}
	}
}

func (m Model) rowCount(t Tab) int {
	switch t {
	case TabUsers:
		return len(m.users.Get())
	case TabAudit:
		return len(m.audit)
	default:
		return len(m.nodes)
	}
}

func (m *Model) moveCursor(delta int) {
	m.cursor[m.tab] += delta
	m.clampCursor(m.tab)
}

func (m *Model) clampCursor(t Tab) {
	n := m.rowCount(t)
	switch {
	case n == 0:
		m.cursor[t] = 0
	case m.cursor[t] >= n:
		m.cursor[t] = n - 1
	case m.cursor[t] < 0:
		m.cursor[t] = 0
	}
}

// selectedUser returns the highlighted row of the users tab.
func (m Model) selectedUser() (api.User, bool) {
	if m.tab != TabUsers || m.access(TabUsers) != accessOpen {
		return api.User{}, false
	}
	users := m.users.Get()
	i := m.cursor[TabUsers]
	if i < 0 || i >= len(users) {
		return api.User{}, false
	}
	return users[i], true
}
