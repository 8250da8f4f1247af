package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jarcoal/httpmock"
	pmerrors "github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/logger"
	"github.com/rileyhilliard/proxmon/internal/tokenstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testServer = "https://proxmon.test"

// newTestClient returns a client whose HTTP traffic goes to a fresh mock
// transport, with "tok" already stored.
func newTestClient(t *testing.T) (*Client, *httpmock.MockTransport, *tokenstore.MemoryStore) {
	t.Helper()
	mt := httpmock.NewMockTransport()
	store := tokenstore.NewMemoryStore()
	require.NoError(t, store.Set("tok"))
	c := New(testServer+"/", store,
		WithHTTPClient(&http.Client{Transport: mt}),
		WithLogger(logger.Noop()),
	)
	return c, mt, store
}

func detail(msg string) map[string]any {
	return map[string]any{"detail": msg}
}

func TestDo_AttachesHeaders(t *testing.T) {
	c, mt, _ := newTestClient(t)

	var got http.Header
	mt.RegisterResponder(http.MethodGet, testServer+"/dashboard/alerts",
		func(req *http.Request) (*http.Response, error) {
			got = req.Header.Clone()
			return httpmock.NewJsonResponse(200, Alerts{CPU: true})
		})

	a, err := c.Alerts(context.Background())
	require.NoError(t, err)
	assert.True(t, a.CPU)

	assert.Equal(t, "Bearer tok", got.Get("Authorization"))
	assert.Equal(t, "application/json", got.Get("Accept"))
	assert.Len(t, got.Get(HeaderRequestID), 36, "uuid request id")
}

func TestDo_NoTokenNoHeader(t *testing.T) {
	c, mt, store := newTestClient(t)
	require.NoError(t, store.Clear())

	var auth string
	mt.RegisterResponder(http.MethodGet, testServer+"/dashboard/alerts",
		func(req *http.Request) (*http.Response, error) {
			auth = req.Header.Get("Authorization")
			return httpmock.NewJsonResponse(200, Alerts{})
		})

	_, err := c.Alerts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestDo_FailureMapping(t *testing.T) {
	tests := []struct {
		name      string
		path      string
		status    int
		body      any
		wantCode  string
		wantMsg   string
		wantClear bool
	}{
		{name: "401 ends session", path: "/dashboard/alerts", status: 401, body: detail("Could not validate credentials"),
			wantCode: pmerrors.ErrAuth, wantMsg: MessageExpired, wantClear: true},
		{name: "403 on /me means disabled", path: PathMe, status: 403, body: detail("inactive"),
			wantCode: pmerrors.ErrAuthDisabled, wantMsg: MessageDisabled, wantClear: true},
		{name: "403 elsewhere is a permission error", path: "/admin/users", status: 403, body: detail("Admins only"),
			wantCode: pmerrors.ErrPermission, wantMsg: "Admins only"},
		{name: "404 is a validation error", path: "/admin/users", status: 404, body: detail("User not found"),
			wantCode: pmerrors.ErrValidation, wantMsg: "User not found"},
		{name: "422 validation array", path: "/admin/users", status: 422,
			body:     map[string]any{"detail": []map[string]any{{"loc": []any{"body", "email"}, "msg": "field required"}}},
			wantCode: pmerrors.ErrValidation, wantMsg: "email: field required"},
		{name: "500 without detail", path: "/admin/users", status: 500, body: nil,
			wantCode: pmerrors.ErrServer, wantMsg: "Server error (500)"},
		{name: "502 with detail", path: "/admin/users", status: 502, body: detail("Proxmox unreachable"),
			wantCode: pmerrors.ErrServer, wantMsg: "Proxmox unreachable"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mt, store := newTestClient(t)
			if tt.body == nil {
				mt.RegisterResponder(http.MethodGet, testServer+tt.path, httpmock.NewStringResponder(tt.status, ""))
			} else {
				mt.RegisterResponder(http.MethodGet, testServer+tt.path, httpmock.NewJsonResponderOrPanic(tt.status, tt.body))
			}

			_, err := c.Do(context.Background(), Request{Path: tt.path})
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, pmerrors.Code(err))
			assert.Equal(t, tt.status, pmerrors.Status(err))
			assert.Equal(t, tt.wantMsg, pmerrors.Message(err))

			_, ok := store.Get()
			assert.Equal(t, tt.wantClear, !ok, "store cleared")
		})
	}
}

func TestDo_NetworkFailure(t *testing.T) {
	c, mt, store := newTestClient(t)
	mt.RegisterResponder(http.MethodGet, testServer+"/me", httpmock.NewErrorResponder(errors.New("connection refused")))

	_, err := c.Me(context.Background())
	require.Error(t, err)
	assert.True(t, pmerrors.IsCode(err, pmerrors.ErrNetwork))

	_, ok := store.Get()
	assert.True(t, ok, "network failures never clear the session")
}

func TestDo_ContextCanceled(t *testing.T) {
	c, mt, _ := newTestClient(t)
	mt.RegisterResponder(http.MethodGet, testServer+"/me", httpmock.NewJsonResponderOrPanic(200, Me{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Me(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTermination_FiresOnce(t *testing.T) {
	c, mt, store := newTestClient(t)
	mt.RegisterResponder(http.MethodGet, `=~^`+testServer+`/`, httpmock.NewJsonResponderOrPanic(401, detail("expired")))

	var calls atomic.Int32
	var got Termination
	var mu sync.Mutex
	c.OnTerminate(func(term Termination) {
		calls.Add(1)
		mu.Lock()
		got = term
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for _, p := range []string{"/dashboard/proxmox-status", "/dashboard/alerts", "/me"} {
		wg.Add(1)
		go func(path string) {
			defer wg.Done()
			_, err := c.Do(context.Background(), Request{Path: path})
			assert.True(t, pmerrors.IsAuth(err))
		}(p)
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "three concurrent 401s produce one termination")
	assert.Equal(t, ReasonExpired, got.Reason)
	assert.Equal(t, MessageExpired, got.Message)
	_, ok := store.Get()
	assert.False(t, ok)
}

func TestTermination_StaleTokenKeepsNewLogin(t *testing.T) {
	c, mt, store := newTestClient(t)

	mt.RegisterResponder(http.MethodGet, testServer+"/dashboard/alerts",
		func(req *http.Request) (*http.Response, error) {
			// A new login lands while the old request is in flight.
			require.NoError(t, store.Set("tok-new"))
			return httpmock.NewJsonResponse(401, detail("expired"))
		})

	fired := false
	c.OnTerminate(func(Termination) { fired = true })

	_, err := c.Alerts(context.Background())
	assert.True(t, pmerrors.IsCode(err, pmerrors.ErrAuth))
	assert.False(t, fired)

	tok, ok := store.Get()
	assert.True(t, ok)
	assert.Equal(t, "tok-new", tok)
}

func TestTermination_NewSessionCanTerminateAgain(t *testing.T) {
	c, mt, store := newTestClient(t)
	mt.RegisterResponder(http.MethodGet, testServer+"/me", httpmock.NewJsonResponderOrPanic(403, detail("inactive")))

	var reasons []TerminationReason
	c.OnTerminate(func(term Termination) { reasons = append(reasons, term.Reason) })

	_, _ = c.Me(context.Background())
	require.NoError(t, store.Set("tok-2"))
	_, _ = c.Me(context.Background())

	assert.Equal(t, []TerminationReason{ReasonDisabled, ReasonDisabled}, reasons)
}

func TestForbidden_RequestsRevalidation(t *testing.T) {
	c, mt, store := newTestClient(t)
	mt.RegisterResponder(http.MethodPut, testServer+"/admin/users/7/change-role",
		httpmock.NewJsonResponderOrPanic(403, detail("Only a superadmin can act on other admins")))

	revalidations := 0
	c.OnForbidden(func() { revalidations++ })
	terminated := false
	c.OnTerminate(func(Termination) { terminated = true })

	_, err := c.ChangeRole(context.Background(), 7)
	require.Error(t, err)
	assert.True(t, pmerrors.IsCode(err, pmerrors.ErrPermission))
	assert.Equal(t, 1, revalidations)
	assert.False(t, terminated)

	_, ok := store.Get()
	assert.True(t, ok, "a non-identity 403 does not clear the store")
}

func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		c, mt, _ := newTestClient(t)
		var sent LoginRequest
		var auth string
		mt.RegisterResponder(http.MethodPost, testServer+PathLogin,
			func(req *http.Request) (*http.Response, error) {
				auth = req.Header.Get("Authorization")
				_ = json.NewDecoder(req.Body).Decode(&sent)
				return httpmock.NewJsonResponse(200, TokenResponse{AccessToken: "jwt", TokenType: "bearer"})
			})

		tok, err := c.Login(context.Background(), "a@b.c", "pw")
		require.NoError(t, err)
		assert.Equal(t, "jwt", tok.AccessToken)
		assert.Equal(t, LoginRequest{Email: "a@b.c", Password: "pw"}, sent)
		assert.Empty(t, auth, "login is anonymous")
	})

	tests := []struct {
		name     string
		status   int
		wantCode string
	}{
		{name: "400 bad credentials", status: 400, wantCode: pmerrors.ErrAuth},
		{name: "401 bad credentials", status: 401, wantCode: pmerrors.ErrAuth},
		{name: "403 disabled", status: 403, wantCode: pmerrors.ErrAuthDisabled},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, mt, store := newTestClient(t)
			mt.RegisterResponder(http.MethodPost, testServer+PathLogin,
				httpmock.NewJsonResponderOrPanic(tt.status, detail("nope")))
			fired := false
			c.OnTerminate(func(Termination) { fired = true })

			_, err := c.Login(context.Background(), "a@b.c", "bad")
			assert.Equal(t, tt.wantCode, pmerrors.Code(err))
			assert.False(t, fired, "login failures never terminate")
			_, ok := store.Get()
			assert.True(t, ok)
		})
	}
}

func TestUnauthenticated401(t *testing.T) {
	c, mt, store := newTestClient(t)
	require.NoError(t, store.Clear())
	mt.RegisterResponder(http.MethodGet, testServer+"/me", httpmock.NewJsonResponderOrPanic(401, detail("Not authenticated")))

	fired := false
	c.OnTerminate(func(Termination) { fired = true })

	_, err := c.Me(context.Background())
	assert.True(t, pmerrors.IsCode(err, pmerrors.ErrAuth))
	assert.False(t, fired, "no session, nothing to terminate")
}

func TestParseDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "empty", body: "", want: ""},
		{name: "string detail", body: `{"detail":"User exists"}`, want: "User exists"},
		{name: "message field", body: `{"message":"reset"}`, want: "reset"},
		{name: "validation array", body: `{"detail":[{"loc":["body","password"],"msg":"too short"},{"loc":["body"],"msg":"bad"}]}`,
			want: "password: too short; bad"},
		{name: "not json", body: "<html>", want: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseDetail([]byte(tt.body)))
		})
	}
}
