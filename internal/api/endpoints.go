package api

import (
	"context"
	"fmt"
	"net/http"
)

// getJSON, sendJSON and friends wrap Do for the typed endpoints below.

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: path})
	if err != nil {
		return err
	}
	return resp.Decode(out)
}

// sendJSON sends body and decodes the reply into out. It returns false when
// the server answered without a representation.
func (c *Client) sendJSON(ctx context.Context, method, path string, body, out any) (bool, error) {
	resp, err := c.Do(ctx, Request{Method: method, Path: path, Body: body})
	if err != nil {
		return false, err
	}
	if resp.Empty() {
		return false, nil
	}
	return true, resp.Decode(out)
}

func (c *Client) message(ctx context.Context, method, path string, body any) (string, error) {
	var m Message
	if _, err := c.sendJSON(ctx, method, path, body, &m); err != nil {
		return "", err
	}
	return m.Text(), nil
}

// Login exchanges credentials for a bearer token. The stored credential is
// not sent and not touched.
func (c *Client) Login(ctx context.Context, email, password string) (*TokenResponse, error) {
	resp, err := c.Do(ctx, Request{
		Method:    http.MethodPost,
		Path:      PathLogin,
		Body:      LoginRequest{Email: email, Password: password},
		Anonymous: true,
	})
	if err != nil {
		return nil, err
	}
	var tok TokenResponse
	if err := resp.Decode(&tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("server returned an empty access token")
	}
	return &tok, nil
}

// SSOLoginURL is where the browser starts single sign-on.
func (c *Client) SSOLoginURL() string {
	return c.baseURL + "/sso/login"
}

// Me returns the caller's confirmed account.
func (c *Client) Me(ctx context.Context) (*Me, error) {
	var me Me
	if err := c.getJSON(ctx, PathMe, &me); err != nil {
		return nil, err
	}
	return &me, nil
}

// ChangePassword changes the caller's own password.
func (c *Client) ChangePassword(ctx context.Context, current, next string) (string, error) {
	return c.message(ctx, http.MethodPost, "/change-password",
		ChangePasswordRequest{CurrentPassword: current, NewPassword: next})
}

// DeleteAccount deletes the caller's own account.
func (c *Client) DeleteAccount(ctx context.Context) error {
	_, err := c.Do(ctx, Request{Method: http.MethodDelete, Path: "/delete-account"})
	return err
}

// ProxmoxStatus returns per-node metrics.
func (c *Client) ProxmoxStatus(ctx context.Context) ([]NodeStatus, error) {
	var nodes []NodeStatus
	if err := c.getJSON(ctx, "/dashboard/proxmox-status", &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

// Alerts returns the alert toggles.
func (c *Client) Alerts(ctx context.Context) (*Alerts, error) {
	var a Alerts
	if err := c.getJSON(ctx, "/dashboard/alerts", &a); err != nil {
		return nil, err
	}
	return &a, nil
}

// UpdateAlerts writes the alert toggles. The server acknowledges with a
// status body rather than the record.
func (c *Client) UpdateAlerts(ctx context.Context, a Alerts) error {
	_, err := c.Do(ctx, Request{Method: http.MethodPut, Path: "/dashboard/alerts", Body: a})
	return err
}

// Settings returns the system settings record including alert flags.
func (c *Client) Settings(ctx context.Context) (*Settings, error) {
	var s Settings
	if err := c.getJSON(ctx, "/settings", &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// UpdateSettings writes notification channels and thresholds and returns
// the stored record.
func (c *Client) UpdateSettings(ctx context.Context, s Settings) (*Settings, error) {
	var out Settings
	ok, err := c.sendJSON(ctx, http.MethodPut, "/settings", s, &out)
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}

// ResetSettings clears notification channel settings.
func (c *Client) ResetSettings(ctx context.Context) (string, error) {
	return c.message(ctx, http.MethodDelete, "/settings", nil)
}

// UpdateProxmox writes the Proxmox API token settings.
func (c *Client) UpdateProxmox(ctx context.Context, p ProxmoxSettings) (*Settings, error) {
	var out Settings
	ok, err := c.sendJSON(ctx, http.MethodPut, "/settings/proxmox", p, &out)
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}

// ResetProxmox clears the Proxmox API token settings.
func (c *Client) ResetProxmox(ctx context.Context) (string, error) {
	return c.message(ctx, http.MethodDelete, "/settings/proxmox", nil)
}

// TestProxmox asks the server to try the given Proxmox credentials.
func (c *Client) TestProxmox(ctx context.Context, p ProxmoxSettings) (string, error) {
	return c.message(ctx, http.MethodPost, "/settings/proxmox/test", p)
}

// UpdateSSO writes the OIDC settings.
func (c *Client) UpdateSSO(ctx context.Context, s SSOSettings) (*Settings, error) {
	var out Settings
	ok, err := c.sendJSON(ctx, http.MethodPut, "/settings/sso", s, &out)
	if err != nil || !ok {
		return nil, err
	}
	return &out, nil
}

// ResetSSO clears the OIDC settings. The server answers 204.
func (c *Client) ResetSSO(ctx context.Context) error {
	_, err := c.Do(ctx, Request{Method: http.MethodDelete, Path: "/settings/sso"})
	return err
}

// TestSSO asks the server to fetch the OIDC discovery document.
func (c *Client) TestSSO(ctx context.Context, s SSOSettings) (string, error) {
	return c.message(ctx, http.MethodPost, "/settings/sso/test", s)
}

// TestTelegram asks the server to send a Telegram test message.
func (c *Client) TestTelegram(ctx context.Context, t TelegramTest) (string, error) {
	return c.message(ctx, http.MethodPost, "/settings/telegram/test", t)
}

// TestDiscord asks the server to send a Discord test message.
func (c *Client) TestDiscord(ctx context.Context, d DiscordTest) (string, error) {
	return c.message(ctx, http.MethodPost, "/settings/discord/test", d)
}

// Users lists every account.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.getJSON(ctx, "/admin/users", &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser creates an account and returns it.
func (c *Client) CreateUser(ctx context.Context, req CreateUserRequest) (*User, error) {
	var u User
	ok, err := c.sendJSON(ctx, http.MethodPost, "/admin/users", req, &u)
	if err != nil || !ok {
		return nil, err
	}
	return &u, nil
}

// ChangeRole flips a user between user and admin.
func (c *Client) ChangeRole(ctx context.Context, id int) (*RoleChange, error) {
	var rc RoleChange
	ok, err := c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/admin/users/%d/change-role", id), nil, &rc)
	if err != nil || !ok {
		return nil, err
	}
	return &rc, nil
}

// ToggleActive flips a user's active flag.
func (c *Client) ToggleActive(ctx context.Context, id int) (*ActiveChange, error) {
	var ac ActiveChange
	ok, err := c.sendJSON(ctx, http.MethodPut, fmt.Sprintf("/admin/users/%d/toggle-active", id), nil, &ac)
	if err != nil || !ok {
		return nil, err
	}
	return &ac, nil
}

// ResetPassword sets a new password for a user.
func (c *Client) ResetPassword(ctx context.Context, id int, password string) (string, error) {
	return c.message(ctx, http.MethodPut, fmt.Sprintf("/admin/users/%d/reset-password", id),
		ResetPasswordRequest{NewPassword: password})
}

// DeleteUser deletes a user.
func (c *Client) DeleteUser(ctx context.Context, id int) (string, error) {
	return c.message(ctx, http.MethodDelete, fmt.Sprintf("/admin/users/%d", id), nil)
}

// AuditLog returns audit entries, newest first.
func (c *Client) AuditLog(ctx context.Context) ([]AuditEntry, error) {
	var entries []AuditEntry
	if err := c.getJSON(ctx, "/admin/audit-log", &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

// ExportAuditLog returns the server's CSV export verbatim.
func (c *Client) ExportAuditLog(ctx context.Context) ([]byte, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/admin/audit-log/export"})
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// ClearAuditLog deletes every audit entry.
func (c *Client) ClearAuditLog(ctx context.Context) (string, error) {
	return c.message(ctx, http.MethodDelete, "/admin/audit-log/clear", nil)
}
