package dashboard

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/proxmon/internal/authz"
)

// Key bindings as constants for consistency.
const (
	KeyQuit        = "q"
	KeyQuitAlt     = "ctrl+c"
	KeyRefresh     = "r"
	KeyNextTab     = "tab"
	KeyPrevTab     = "shift+tab"
	KeyTabNodes    = "1"
	KeyTabUsers    = "2"
	KeyTabAudit    = "3"
	KeyToggleCPU   = "c"
	KeyToggleRAM   = "m"
	KeyToggleDisk  = "d"
	KeyToggleUser  = "a"
	KeyChangeRole  = "o"
	KeyDeleteUser  = "x"
	KeyConfirmYes  = "y"
	KeyConfirmNo   = "n"
	KeySelectPrev  = "up"
	KeySelectPrevK = "k"
	KeySelectNext  = "down"
	KeySelectNextJ = "j"
	KeySelectFirst = "home"
	KeySelectLast  = "end"
	KeyCollapse    = "esc"
	KeyToggleHelp  = "?"
)

// HandleKeyMsg processes keyboard input and returns updated model state and command.
// Returns true if the key was handled, false otherwise.
func (m *Model) HandleKeyMsg(msg tea.KeyMsg) (bool, tea.Cmd) {
	key := msg.String()

	if key == KeyQuitAlt {
		m.quitting = true
		return true, tea.Quit
	}

	// A pending delete confirmation swallows every other key.
	if m.confirm != nil {
		switch key {
		case KeyConfirmYes:
			u := m.confirm.user
			m.confirm = nil
			return true, m.deleteUser(u)
		case KeyConfirmNo, KeyCollapse:
			m.confirm = nil
		}
		return true, nil
	}

	// Help toggle takes priority
	if key == KeyToggleHelp {
		m.showHelp = !m.showHelp
		return true, nil
	}
	if m.showHelp && key == KeyCollapse {
		m.showHelp = false
		return true, nil
	}

	switch key {
	case KeyQuit:
		m.quitting = true
		return true, tea.Quit

	case KeyRefresh:
		if m.deps.Feeds != nil {
			m.deps.Feeds.TriggerAll()
		}
		return true, nil

	case KeyNextTab:
		m.cycleTab(1)
		return true, nil

	case KeyPrevTab:
		m.cycleTab(-1)
		return true, nil

	case KeyTabNodes:
		m.selectTab(TabNodes)
		return true, nil

	case KeyTabUsers:
		m.selectTab(TabUsers)
		return true, nil

	case KeyTabAudit:
		m.selectTab(TabAudit)
		return true, nil

	case KeyToggleCPU:
		return true, m.toggleAlert(alertCPU)

	case KeyToggleRAM:
		return true, m.toggleAlert(alertRAM)

	case KeyToggleDisk:
		return true, m.toggleAlert(alertDisk)

	case KeyToggleUser:
		return true, m.userAction(authz.ActionToggleActive)

	case KeyChangeRole:
		return true, m.userAction(authz.ActionChangeRole)

	case KeyDeleteUser:
		return true, m.userAction(authz.ActionDeleteUser)

	case KeySelectPrev, KeySelectPrevK:
		m.moveCursor(-1)
		return true, nil

	case KeySelectNext, KeySelectNextJ:
		m.moveCursor(1)
		return true, nil

	case KeySelectFirst:
		m.cursor[m.tab] = 0
		return true, nil

	case KeySelectLast:
		if n := m.rowCount(m.tab); n > 0 {
			m.cursor[m.tab] = n - 1
		}
		return true, nil
	}

	return false, nil
}
