package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// Roles assigned by the server.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Timestamp decodes the server's datetimes, which are naive UTC values such
// as "2024-05-01T12:00:00.123456", RFC 3339 values, or null.
type Timestamp struct {
	time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timestamp) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		t.Time = time.Time{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", s)
}

// MarshalJSON implements json.Marshaler.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339))
}

// LoginRequest is the body of POST /login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenResponse is returned by POST /login.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

// Me is the caller's own account as returned by GET /me.
type Me struct {
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	IsSuperadmin bool      `json:"is_superadmin"`
	CreatedAt    Timestamp `json:"created_at"`
	LastLogin    Timestamp `json:"last_login"`
}

// User is an account row from GET /admin/users.
type User struct {
	ID           int       `json:"id"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	IsActive     bool      `json:"is_active"`
	IsSuperadmin bool      `json:"is_superadmin"`
	CreatedAt    Timestamp `json:"created_at"`
	LastLogin    Timestamp `json:"last_login"`
}

// CreateUserRequest is the body of POST /admin/users.
type CreateUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

// RoleChange is returned by PUT /admin/users/{id}/change-role.
type RoleChange struct {
	Detail  string `json:"detail"`
	NewRole string `json:"new_role"`
}

// ActiveChange is returned by PUT /admin/users/{id}/toggle-active.
type ActiveChange struct {
	Detail   string `json:"detail"`
	IsActive bool   `json:"is_active"`
}

// AuditEntry is a row of the audit log.
type AuditEntry struct {
	Timestamp   Timestamp `json:"timestamp"`
	Action      string    `json:"action"`
	PerformedBy string    `json:"performed_by"`
	Details     string    `json:"details"`
}

// Usage is a used/total pair in GB.
type Usage struct {
	Used  float64 `json:"used"`
	Total float64 `json:"total"`
}

// Percent returns used/total as 0-100, or 0 when total is unknown.
func (u Usage) Percent() float64 {
	if u.Total <= 0 {
		return 0
	}
	return u.Used / u.Total * 100
}

// NodeStats is a hypervisor's aggregate load. CPU is a percentage.
type NodeStats struct {
	CPU  float64 `json:"cpu"`
	RAM  Usage   `json:"ram"`
	Disk Usage   `json:"disk"`
}

// Guest is a VM (qemu) or container (lxc). CPU is a 0-1 fraction.
type Guest struct {
	Name   string  `json:"name"`
	Status string  `json:"status"`
	Type   string  `json:"type"`
	CPU    float64 `json:"cpu"`
	RAM    Usage   `json:"ram"`
	Disk   Usage   `json:"disk"`
}

// Running reports whether the guest is up.
func (g Guest) Running() bool {
	return g.Status == "running"
}

// NodeStatus is one element of GET /dashboard/proxmox-status.
type NodeStatus struct {
	Node  string    `json:"node"`
	Stats NodeStats `json:"stats"`
	VMs   []Guest   `json:"vms"`
}

// SortGuests returns a copy of nodes with each node's guests ordered
// running-first, keeping the server's order otherwise.
func SortGuests(nodes []NodeStatus) []NodeStatus {
	out := make([]NodeStatus, len(nodes))
	for i, n := range nodes {
		guests := append([]Guest(nil), n.VMs...)
		sort.SliceStable(guests, func(a, b int) bool {
			return guests[a].Running() && !guests[b].Running()
		})
		n.VMs = guests
		out[i] = n
	}
	return out
}

// Alerts are the per-resource alert toggles.
type Alerts struct {
	CPU  bool `json:"cpu"`
	RAM  bool `json:"ram"`
	Disk bool `json:"disk"`
}

// Settings is the system settings record. Pointer fields are nullable on
// the server.
type Settings struct {
	ID int `json:"id,omitempty"`

	TelegramBotToken *string `json:"telegram_bot_token"`
	TelegramAPIID    *string `json:"telegram_api_id"`
	TelegramAPIHash  *string `json:"telegram_api_hash"`
	TelegramChatID   *string `json:"telegram_chat_id"`
	TelegramEnabled  bool    `json:"telegram_enabled"`

	DiscordBotToken  *string `json:"discord_bot_token"`
	DiscordGuildID   *string `json:"discord_guild_id"`
	DiscordChannelID *string `json:"discord_channel_id"`
	DiscordEnabled   bool    `json:"discord_enabled"`

	ProxmoxHost        *string `json:"proxmox_host"`
	ProxmoxTokenID     *string `json:"proxmox_token_id"`
	ProxmoxTokenSecret *string `json:"proxmox_token_secret"`

	OIDCName         *string `json:"oidc_name"`
	OIDCClientID     *string `json:"oidc_client_id"`
	OIDCClientSecret *string `json:"oidc_client_secret"`
	OIDCDiscoveryURL *string `json:"oidc_discovery_url"`
	OIDCRedirectURI  *string `json:"oidc_redirect_uri"`
	OIDCScopes       *string `json:"oidc_scopes"`
	OIDCResponseType *string `json:"oidc_response_type"`

	CPUThreshold  *int `json:"cpu_threshold"`
	RAMThreshold  *int `json:"ram_threshold"`
	DiskThreshold *int `json:"disk_threshold"`

	// Present on GET only.
	CPUAlert  bool `json:"cpu_alert,omitempty"`
	RAMAlert  bool `json:"ram_alert,omitempty"`
	DiskAlert bool `json:"disk_alert,omitempty"`
}

// Default thresholds applied by the server when unset.
const (
	DefaultCPUThreshold  = 90
	DefaultRAMThreshold  = 90
	DefaultDiskThreshold = 85
)

// Thresholds returns cpu, ram and disk thresholds with server defaults
// filled in.
func (s Settings) Thresholds() (cpu, ram, disk int) {
	cpu, ram, disk = DefaultCPUThreshold, DefaultRAMThreshold, DefaultDiskThreshold
	if s.CPUThreshold != nil {
		cpu = *s.CPUThreshold
	}
	if s.RAMThreshold != nil {
		ram = *s.RAMThreshold
	}
	if s.DiskThreshold != nil {
		disk = *s.DiskThreshold
	}
	return cpu, ram, disk
}

// ProxmoxSettings is the body of PUT /settings/proxmox and its test.
type ProxmoxSettings struct {
	Host        string `json:"proxmox_host"`
	TokenID     string `json:"proxmox_token_id"`
	TokenSecret string `json:"proxmox_token_secret"`
}

// SSOSettings is the body of PUT /settings/sso and its test.
type SSOSettings struct {
	Name         string `json:"oidc_name"`
	ClientID     string `json:"oidc_client_id"`
	ClientSecret string `json:"oidc_client_secret"`
	DiscoveryURL string `json:"oidc_discovery_url"`
	RedirectURI  string `json:"oidc_redirect_uri"`
	Scopes       string `json:"oidc_scopes"`
	ResponseType string `json:"oidc_response_type"`
}

// TelegramTest is the body of POST /settings/telegram/test.
type TelegramTest struct {
	BotToken string `json:"bot_token"`
	APIID    string `json:"api_id"`
	APIHash  string `json:"api_hash"`
	ChatID   string `json:"chat_id"`
}

// DiscordTest is the body of POST /settings/discord/test.
type DiscordTest struct {
	BotToken  string `json:"bot_token"`
	GuildID   string `json:"guild_id"`
	ChannelID string `json:"channel_id"`
}

// Message is the {message} reply of test and reset endpoints, and the
// {detail} reply of admin actions.
type Message struct {
	Message string `json:"message"`
	Detail  string `json:"detail"`
	Status  string `json:"status"`
}

// Text returns whichever of message, detail or status is set.
func (m Message) Text() string {
	switch {
	case m.Message != "":
		return m.Message
	case m.Detail != "":
		return m.Detail
	default:
		return m.Status
	}
}

// ChangePasswordRequest is the body of POST /change-password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// ResetPasswordRequest is the body of PUT /admin/users/{id}/reset-password.
type ResetPasswordRequest struct {
	NewPassword string `json:"new_password"`
}
