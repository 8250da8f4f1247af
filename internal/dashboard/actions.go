package dashboard

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/authz"
	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/mutation"
	"github.com/rileyhilliard/proxmon/internal/session"
)

// actionTimeout bounds one write issued from the dashboard.
const actionTimeout = 20 * time.Second

// alertResource is one of the three alert toggles.
type alertResource string

const (
	alertCPU  alertResource = "cpu"
	alertRAM  alertResource = "ram"
	alertDisk alertResource = "disk"
)

func (r alertResource) label() string {
	switch r {
	case alertRAM:
		return "RAM"
	case alertDisk:
		return "Disk"
	default:
		return "CPU"
	}
}

// alertsTarget covers all three toggles, since every write sends the whole
// alerts record.
const alertsTarget = "alerts"

func (r alertResource) get(a api.Alerts) bool {
	switch r {
	case alertRAM:
		return a.RAM
	case alertDisk:
		return a.Disk
	default:
		return a.CPU
	}
}

func (r alertResource) flip(a api.Alerts) api.Alerts {
	switch r {
	case alertRAM:
		a.RAM = !a.RAM
	case alertDisk:
		a.Disk = !a.Disk
	default:
		a.CPU = !a.CPU
	}
	return a
}

func userTarget(id int) string {
	return fmt.Sprintf("user:%d", id)
}

// settle executes write with its own deadline and reports how it settled.
func settle[T any](op *mutation.Op[T], target string, success func() string, write func(ctx context.Context, v T) (*T, error)) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), actionTimeout)
		defer cancel()
		res := op.Finish(ctx, write)
		msg := actionDoneMsg{target: target, state: res.State}
		if res.State == mutation.Committed {
			msg.success = success()
		}
		return msg
	}
}

// toggleAlert flips one alert right away and sends the result in the
// background. A failed write puts the old value back.
func (m *Model) toggleAlert(r alertResource) tea.Cmd {
	if !m.alertsLoaded || m.deps.Client == nil {
		return nil
	}
	op, err := mutation.Begin(m.deps.Coordinator, alertsTarget, m.alerts, r.flip)
	if err != nil {
		return nil
	}
	m.savingAlert = r
	client := m.deps.Client
	on := r.get(op.Optimistic())
	return settle(op, alertsTarget,
		func() string {
			if on {
				return r.label() + " alerts on"
			}
			return r.label() + " alerts off"
		},
		func(ctx context.Context, a api.Alerts) (*api.Alerts, error) {
			return nil, client.UpdateAlerts(ctx, a)
		})
}

// userAction gates a user-targeted key through authz before doing
// anything.
func (m *Model) userAction(action authz.Action) tea.Cmd {
	u, ok := m.selectedUser()
	if !ok || m.deps.Client == nil {
		return nil
	}
	target := session.FromUser(u)
	if err := authz.Check(m.caps, action, &target); err != nil {
		m.deps.Notices.Error(errors.Message(err))
		return nil
	}

	switch action {
	case authz.ActionToggleActive:
		return m.toggleActive(u)
	case authz.ActionChangeRole:
		return m.changeRole(u)
	case authz.ActionDeleteUser:
		m.confirm = &confirmDelete{user: u}
	}
	return nil
}

func (m *Model) toggleActive(u api.User) tea.Cmd {
	op, err := mutation.BeginPatch(m.deps.Coordinator, userTarget(u.ID), m.users,
		func(list []api.User) []api.User {
			return patchUser(list, u.ID, func(x *api.User) { x.IsActive = !u.IsActive })
		},
		func(list []api.User) []api.User {
			return patchUser(list, u.ID, func(x *api.User) { x.IsActive = u.IsActive })
		})
	if err != nil {
		return nil
	}
	client, cell := m.deps.Client, m.users
	var detail string
	return settle(op, userTarget(u.ID),
		func() string { return detail },
		func(ctx context.Context, _ []api.User) (*[]api.User, error) {
			ch, err := client.ToggleActive(ctx, u.ID)
			if err != nil || ch == nil {
				return nil, err
			}
			detail = ch.Detail
			cell.Update(func(list []api.User) []api.User {
				return patchUser(list, u.ID, func(x *api.User) { x.IsActive = ch.IsActive })
			})
			return nil, nil
		})
}

func (m *Model) changeRole(u api.User) tea.Cmd {
	op, err := mutation.BeginPatch(m.deps.Coordinator, userTarget(u.ID), m.users,
		func(list []api.User) []api.User {
			return patchUser(list, u.ID, func(x *api.User) { x.Role = toggledRole(u.Role) })
		},
		func(list []api.User) []api.User {
			return patchUser(list, u.ID, func(x *api.User) { x.Role = u.Role })
		})
	if err != nil {
		return nil
	}
	client, cell := m.deps.Client, m.users
	var detail string
	return settle(op, userTarget(u.ID),
		func() string { return detail },
		func(ctx context.Context, _ []api.User) (*[]api.User, error) {
			rc, err := client.ChangeRole(ctx, u.ID)
			if err != nil || rc == nil || rc.NewRole == "" {
				return nil, err
			}
			detail = rc.Detail
			cell.Update(func(list []api.User) []api.User {
				return patchUser(list, u.ID, func(x *api.User) { x.Role = rc.NewRole })
			})
			return nil, nil
		})
}

// deleteUser removes the row right away and restores it if the server
// refuses. It re-checks authz since the identity may have changed while
// the dialog was open.
func (m *Model) deleteUser(u api.User) tea.Cmd {
	target := session.FromUser(u)
	if err := authz.Check(m.caps, authz.ActionDeleteUser, &target); err != nil {
		m.deps.Notices.Error(errors.Message(err))
		return nil
	}
	at := indexOfUser(m.users.Get(), u.ID)
	op, err := mutation.BeginPatch(m.deps.Coordinator, userTarget(u.ID), m.users,
		func(list []api.User) []api.User { return removeUser(list, u.ID) },
		func(list []api.User) []api.User { return insertUser(list, u, at) })
	if err != nil {
		return nil
	}
	client := m.deps.Client
	detail := "Deleted " + u.Email
	return settle(op, userTarget(u.ID),
		func() string { return detail },
		func(ctx context.Context, _ []api.User) (*[]api.User, error) {
			msg, err := client.DeleteUser(ctx, u.ID)
			if err != nil {
				return nil, err
			}
			if msg != "" {
				detail = msg
			}
			return nil, nil
		})
}

func toggledRole(role string) string {
	if role == api.RoleAdmin {
		return api.RoleUser
	}
	return api.RoleAdmin
}

// patchUser returns a copy of list with fn applied to the row with id.
func patchUser(list []api.User, id int, fn func(*api.User)) []api.User {
	out := append([]api.User(nil), list...)
	for i := range out {
		if out[i].ID == id {
			fn(&out[i])
		}
	}
	return out
}

func removeUser(list []api.User, id int) []api.User {
	out := make([]api.User, 0, len(list))
	for _, u := range list {
		if u.ID != id {
			out = append(out, u)
		}
	}
	return out
}

func indexOfUser(list []api.User, id int) int {
	for i, u := range list {
		if u.ID == id {
			return i
		}
	}
	return len(list)
}

// insertUser puts u back at index at, unless a refresh already brought it
// back.
func insertUser(list []api.User, u api.User, at int) []api.User {
	if indexOfUser(list, u.ID) < len(list) {
		return list
	}
	at = min(max(at, 0), len(list))
	out := make([]api.User, 0, len(list)+1)
	out = append(out, list[:at]...)
	out = append(out, u)
	return append(out, list[at:]...)
}
