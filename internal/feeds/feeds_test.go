package feeds

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jarcoal/httpmock"
	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/config"
	"github.com/rileyhilliard/proxmon/internal/logger"
	"github.com/rileyhilliard/proxmon/internal/poll"
	"github.com/rileyhilliard/proxmon/internal/session"
	"github.com/rileyhilliard/proxmon/internal/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const server = "https://proxmon.test"

func adminToken(t *testing.T) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops@lab", "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func newClient(t *testing.T) (*api.Client, *httpmock.MockTransport) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.Set(adminToken(t)))
	client := api.New(server, store,
		api.WithHTTPClient(&http.Client{Transport: mt}),
		api.WithLogger(logger.Noop()))
	return client, mt
}

// intervals keeps every feed from ticking again during a test.
func intervals() config.IntervalsConfig {
	return config.IntervalsConfig{
		Metrics: time.Hour, Alerts: time.Hour, Identity: time.Hour,
		Settings: time.Hour, Users: time.Hour,
	}
}

type results struct {
	mu     sync.Mutex
	nodes  []api.NodeStatus
	alerts *api.Alerts
	users  []UserList
	audit  []AuditLog
}

func (r *results) handlers() Handlers {
	return Handlers{
		Nodes: func(n []api.NodeStatus) {
			r.mu.Lock()
			r.nodes = n
			r.mu.Unlock()
		},
		Alerts: func(a api.Alerts) {
			r.mu.Lock()
			r.alerts = &a
			r.mu.Unlock()
		},
		Users: func(u UserList) {
			r.mu.Lock()
			r.users = append(r.users, u)
			r.mu.Unlock()
		},
		Audit: func(a AuditLog) {
			r.mu.Lock()
			r.audit = append(r.audit, a)
			r.mu.Unlock()
		},
	}
}

func (r *results) userResults() []UserList {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]UserList(nil), r.users...)
}

func (r *results) auditResults() []AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AuditLog(nil), r.audit...)
}

func TestRegister_OnlyNonNilHandlers(t *testing.T) {
	client, _ := newClient(t)
	s := poll.New(poll.WithLogger(logger.Noop()))

	require.NoError(t, Register(s, client, session.NewResolver(client), intervals(), Handlers{
		Nodes: func([]api.NodeStatus) {},
	}))

	snap := s.Snapshot()
	require.Len(t, snap, 1)
	assert.Equal(t, Metrics, snap[0].Key)
}

func TestRegister_DeliversNodesAndAlerts(t *testing.T) {
	client, mt := newClient(t)
	mt.RegisterResponder(http.MethodGet, server+"/dashboard/proxmox-status",
		httpmock.NewJsonResponderOrPanic(200, []map[string]any{
			{"node": "pve1", "stats": map[string]any{"cpu": 12.5}, "vms": []any{}},
		}))
	mt.RegisterResponder(http.MethodGet, server+"/dashboard/alerts",
		httpmock.NewJsonResponderOrPanic(200, map[string]bool{"cpu": true, "ram": false, "disk": true}))

	r := &results{}
	h := r.handlers()
	h.Users, h.Audit = nil, nil
	s := poll.New(poll.WithLogger(logger.Noop()))
	require.NoError(t, Register(s, client, session.NewResolver(client), intervals(), h))

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		r.mu.Lock()
		defer r.mu.Unlock()
		return len(r.nodes) == 1 && r.alerts != nil
	}, 2*time.Second, 5*time.Millisecond)

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, "pve1", r.nodes[0].Node)
	assert.Equal(t, api.Alerts{CPU: true, Disk: true}, *r.alerts)
}

func TestRegister_PrivilegedFeedsWaitForConfirmation(t *testing.T) {
	client, mt := newClient(t)
	mt.RegisterResponder(http.MethodGet, server+"/admin/users",
		httpmock.NewJsonResponderOrPanic(200, []map[string]any{{"id": 2, "email": "dev@lab", "role": "user"}}))
	mt.RegisterResponder(http.MethodGet, server+"/admin/audit-log",
		httpmock.NewJsonResponderOrPanic(200, []map[string]any{{"action": "login", "performed_by": "ops@lab"}}))
	mt.RegisterResponder(http.MethodGet, server+"/me",
		httpmock.NewJsonResponderOrPanic(200, map[string]any{"email": "ops@lab", "role": "admin"}))

	resolver := session.NewResolver(client)
	require.Equal(t, session.Provisional, resolver.State().Kind)

	r := &results{}
	h := r.handlers()
	h.Nodes, h.Alerts = nil, nil
	s := poll.New(poll.WithLogger(logger.Noop()))
	require.NoError(t, Register(s, client, resolver, intervals(), h))

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return len(r.userResults()) == 1 && len(r.auditResults()) == 1
	}, 2*time.Second, 5*time.Millisecond)

	assert.False(t, r.userResults()[0].Allowed, "an admin claim alone does not fetch users")
	assert.False(t, r.auditResults()[0].Allowed)
	info := mt.GetCallCountInfo()
	assert.Zero(t, info["GET "+server+"/admin/users"])
	assert.Zero(t, info["GET "+server+"/admin/audit-log"])

	_, err := resolver.Confirm(context.Background())
	require.NoError(t, err)
	require.True(t, s.Trigger(Users))
	require.True(t, s.Trigger(Audit))

	require.Eventually(t, func() bool {
		return len(r.userResults()) == 2 && len(r.auditResults()) == 2
	}, 2*time.Second, 5*time.Millisecond)

	users := r.userResults()[1]
	assert.True(t, users.Allowed)
	require.Len(t, users.Users, 1)
	assert.Equal(t, "dev@lab", users.Users[0].Email)
	assert.True(t, r.auditResults()[1].Allowed)
}
