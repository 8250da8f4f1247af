// Package feeds registers the console's live-data feeds on a scheduler.
//
// Each feed owns one endpoint. Privileged feeds (users, audit) check the
// confirmed capability set before every fetch and report a disallowed
// result instead of calling the server, so a demoted viewer stops seeing
// admin data on the next tick.
package feeds

import (
	"context"

	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/authz"
	"github.com/rileyhilliard/proxmon/internal/config"
	"github.com/rileyhilliard/proxmon/internal/poll"
	"github.com/rileyhilliard/proxmon/internal/session"
)

// Scheduler keys.
const (
	Metrics  = "metrics"
	Alerts   = "alerts"
	Settings = "settings"
	Users    = "users"
	Audit    = "audit"
)

// UserList is one users feed result. Allowed is false when the viewer may
// not list users; Users is then empty.
type UserList struct {
	Users   []api.User
	Allowed bool
}

// AuditLog is one audit feed result.
type AuditLog struct {
	Entries []api.AuditEntry
	Allowed bool
}

// Handlers receive feed results. A nil handler leaves its feed
// unregistered. Handlers run serialized with each other.
type Handlers struct {
	Nodes    func([]api.NodeStatus)
	Alerts   func(api.Alerts)
	Settings func(api.Settings)
	Users    func(UserList)
	Audit    func(AuditLog)
}

// Register adds a feed to s for every non-nil handler in h.
func Register(s *poll.Scheduler, client *api.Client, resolver *session.Resolver, iv config.IntervalsConfig, h Handlers) error {
	if h.Nodes != nil {
		if err := poll.Register(s, Metrics, iv.Metrics, client.ProxmoxStatus, h.Nodes); err != nil {
			return err
		}
	}

	if h.Alerts != nil {
		fetch := func(ctx context.Context) (api.Alerts, error) {
			a, err := client.Alerts(ctx)
			if err != nil {
				return api.Alerts{}, err
			}
			return *a, nil
		}
		if err := poll.Register(s, Alerts, iv.Alerts, fetch, h.Alerts); err != nil {
			return err
		}
	}

	if h.Settings != nil {
		fetch := func(ctx context.Context) (api.Settings, error) {
			st, err := client.Settings(ctx)
			if err != nil {
				return api.Settings{}, err
			}
			return *st, nil
		}
		if err := poll.Register(s, Settings, iv.Settings, fetch, h.Settings); err != nil {
			return err
		}
	}

	if h.Users != nil {
		fetch := func(ctx context.Context) (UserList, error) {
			if !authz.FromState(resolver.State()).CanManageUsers {
				return UserList{}, nil
			}
			users, err := client.Users(ctx)
			if err != nil {
				return UserList{}, err
			}
			return UserList{Users: users, Allowed: true}, nil
		}
		if err := poll.Register(s, Users, iv.Users, fetch, h.Users); err != nil {
			return err
		}
	}

	if h.Audit != nil {
		fetch := func(ctx context.Context) (AuditLog, error) {
			if !authz.FromState(resolver.State()).CanViewAuditLog {
				return AuditLog{}, nil
			}
			entries, err := client.AuditLog(ctx)
			if err != nil {
				return AuditLog{}, err
			}
			return AuditLog{Entries: entries, Allowed: true}, nil
		}
		// The audit log refreshes with the user list.
		if err := poll.Register(s, Audit, iv.Users, fetch, h.Audit); err != nil {
			return err
		}
	}

	return nil
}
