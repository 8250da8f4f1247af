package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rileyhilliard/proxmon/internal/authz"
	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/session"
	"github.com/rileyhilliard/proxmon/internal/ssocallback"
	"github.com/rileyhilliard/proxmon/internal/ui"
	"github.com/spf13/cobra"
)

var (
	loginEmail         string
	loginPasswordStdin bool
	loginSSO           bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the ProxMon server",
	Long: `Sign in with an email and password, or through the server's single
sign-on provider.

With --sso, proxmon listens on sso.listen (default 127.0.0.1:5173) for the
redirect the server sends after the provider login. That address must match
the frontend URL the server is configured with.

Examples:
  proxmon login
  proxmon login --email ops@example.com
  echo "$PASSWORD" | proxmon login --email ops@example.com --password-stdin
  proxmon login --sso`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		var id session.Identity
		if loginSSO {
			id, err = loginWithSSO(cmd, a)
		} else {
			id, err = loginWithPassword(cmd, a, cmd.InOrStdin())
		}
		if err != nil {
			return err
		}
		return emit(cmd, identityJSON(id), func(w io.Writer) {
			fmt.Fprintf(w, "%s Logged in to %s as %s\n",
				ui.SuccessStyle.Render(ui.SymbolSuccess), a.cfg.Server, describeIdentity(id))
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credential",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.manager.Logout(); err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, "Cannot remove credentials", "Check permissions on "+a.storePath)
		}
		return success(cmd, "Logged out of "+a.cfg.Server)
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account and what it may do",
	Long: `Show what the stored token claims and what the server confirms.

The token is decoded locally without verification and is only a hint. The
capabilities listed are derived from the server's answer.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		return whoami(cmd, a)
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "account email")
	loginCmd.Flags().BoolVar(&loginPasswordStdin, "password-stdin", false, "read the password from stdin")
	loginCmd.Flags().BoolVar(&loginSSO, "sso", false, "sign in through single sign-on")
	loginCmd.MarkFlagsMutuallyExclusive("sso", "email")
	loginCmd.MarkFlagsMutuallyExclusive("sso", "password-stdin")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
}

func loginWithPassword(cmd *cobra.Command, a *app, stdin io.Reader) (session.Identity, error) {
	email := strings.TrimSpace(loginEmail)
	var err error
	if email == "" {
		if email, err = ui.Input("Email", "you@example.com"); err != nil {
			return session.Identity{}, err
		}
	}

	var password string
	if loginPasswordStdin {
		password, err = readLine(stdin)
	} else {
		password, err = ui.Password("Password")
	}
	if err != nil {
		return session.Identity{}, err
	}

	return a.manager.Login(cmd.Context(), email, password)
}

// readLine reads one line, without its line ending.
func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", errors.WrapWithCode(err, errors.ErrInput, "Cannot read password from stdin", "")
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", errors.New(errors.ErrInput, "No password on stdin", "Pipe the password in, e.g. echo \"$PASSWORD\" | proxmon login --password-stdin")
	}
	return line, nil
}

func loginWithSSO(cmd *cobra.Command, a *app) (session.Identity, error) {
	srv := ssocallback.New(a.log)
	addr, err := srv.Listen(a.cfg.SSO.Listen)
	if err != nil {
		return session.Identity{}, err
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}()

	errOut := cmd.ErrOrStderr()
	fmt.Fprintf(errOut, "Open this URL in your browser to sign in:\n\n  %s\n\n", ui.AccentStyle.Render(a.client.SSOLoginURL()))
	fmt.Fprintf(errOut, "%s\n", ui.MutedStyle.Render("Listening for the redirect on http://"+addr))

	ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.SSO.Timeout)
	defer cancel()

	spin := ui.NewSpinner(errOut, "Waiting for the SSO login to finish")
	spin.Start()
	token, err := srv.Wait(ctx)
	if err != nil {
		spin.Fail()
		return session.Identity{}, err
	}
	id, err := a.manager.AcceptSSOToken(cmd.Context(), token)
	if err != nil {
		spin.Fail()
		return session.Identity{}, err
	}
	spin.Success()
	return id, nil
}

// describeIdentity renders "email (role)" with the superadmin mark.
func describeIdentity(id session.Identity) string {
	s := fmt.Sprintf("%s (%s)", id.Email, id.Role)
	if id.IsSuperadmin {
		s += " " + ui.SymbolCrown + " superadmin"
	}
	return s
}

// IdentityJSON is the --json form of a confirmed identity.
type IdentityJSON struct {
	Email        string     `json:"email"`
	Role         string     `json:"role"`
	IsSuperadmin bool       `json:"is_superadmin"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	LastLogin    *time.Time `json:"last_login,omitempty"`
}

func identityJSON(id session.Identity) IdentityJSON {
	out := IdentityJSON{Email: id.Email, Role: id.Role, IsSuperadmin: id.IsSuperadmin}
	if !id.CreatedAt.IsZero() {
		t := id.CreatedAt
		out.CreatedAt = &t
	}
	if !id.LastLogin.IsZero() {
		t := id.LastLogin
		out.LastLogin = &t
	}
	return out
}

// WhoamiOutput is the --json form of 'proxmon whoami'.
type WhoamiOutput struct {
	Server       string           `json:"server"`
	Token        *TokenJSON       `json:"token,omitempty"`
	Confirmed    *IdentityJSON    `json:"confirmed,omitempty"`
	Capabilities CapabilitiesJSON `json:"capabilities"`
}

// TokenJSON is what the stored token claims, unverified.
type TokenJSON struct {
	Subject   string     `json:"subject"`
	Role      string     `json:"role"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Expired   bool       `json:"expired"`
}

// CapabilitiesJSON mirrors authz.Capabilities.
type CapabilitiesJSON struct {
	EditSystemSettings bool `json:"edit_system_settings"`
	ManageUsers        bool `json:"manage_users"`
	ViewAuditLog       bool `json:"view_audit_log"`
	ClearAuditLog      bool `json:"clear_audit_log"`
	AssignAdminRole    bool `json:"assign_admin_role"`
}

func capabilitiesJSON(c authz.Capabilities) CapabilitiesJSON {
	return CapabilitiesJSON{
		EditSystemSettings: c.CanEditSystemSettings,
		ManageUsers:        c.CanManageUsers,
		ViewAuditLog:       c.CanViewAuditLog,
		ClearAuditLog:      c.CanClearAuditLog,
		AssignAdminRole:    c.CanAssignAdminRole,
	}
}

func whoami(cmd *cobra.Command, a *app) error {
	claims, ok := a.resolver.Provisional()
	if !ok {
		if err := a.requireLogin(); err != nil {
			return err
		}
		return errors.New(errors.ErrAuth, "The stored credential is not a readable token", "Run 'proxmon login'")
	}

	out := WhoamiOutput{Server: a.cfg.Server}
	tok := &TokenJSON{Subject: claims.Subject, Role: claims.Role, Expired: claims.Expired(time.Now())}
	if !claims.ExpiresAt.IsZero() {
		exp := claims.ExpiresAt
		tok.ExpiresAt = &exp
	}
	out.Token = tok

	id, caps, confirmErr := a.confirm(cmd.Context())
	if confirmErr == nil {
		j := identityJSON(id)
		out.Confirmed = &j
		out.Capabilities = capabilitiesJSON(caps)
	}

	if machineMode {
		if confirmErr != nil {
			return confirmErr
		}
		return WriteJSONSuccess(cmd.OutOrStdout(), out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "%s %s\n", ui.BoldStyle.Render("Server:"), a.cfg.Server)
	fmt.Fprintf(w, "%s %s (%s) %s\n", ui.BoldStyle.Render("Token: "), claims.Subject, claims.Role,
		ui.MutedStyle.Render(tokenExpiry(claims, time.Now())))

	if confirmErr != nil {
		fmt.Fprintf(w, "%s %s\n", ui.BoldStyle.Render("Confirmed:"), ui.WarningStyle.Render("could not confirm this identity"))
		return confirmErr
	}

	fmt.Fprintf(w, "%s %s\n", ui.BoldStyle.Render("Confirmed:"), describeIdentity(id))
	if claims.Role != id.Role {
		fmt.Fprintf(w, "  %s\n", ui.WarningStyle.Render(
			fmt.Sprintf("The token says %s but the server says %s. The server wins.", claims.Role, id.Role)))
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, ui.BoldStyle.Render("Capabilities:"))
	fmt.Fprintf(w, "  %s edit system settings\n", yesNo(caps.CanEditSystemSettings))
	fmt.Fprintf(w, "  %s manage users\n", yesNo(caps.CanManageUsers))
	fmt.Fprintf(w, "  %s view the audit log\n", yesNo(caps.CanViewAuditLog))
	fmt.Fprintf(w, "  %s clear the audit log\n", yesNo(caps.CanClearAuditLog))
	fmt.Fprintf(w, "  %s assign the admin role\n", yesNo(caps.CanAssignAdminRole))
	return nil
}

func tokenExpiry(c session.Claims, now time.Time) string {
	switch {
	case c.ExpiresAt.IsZero():
		return "unverified, no expiry"
	case c.Expired(now):
		return "unverified, expired " + ui.FormatAgo(c.ExpiresAt, now)
	default:
		return "unverified, expires in " + c.ExpiresAt.Sub(now).Round(time.Minute).String()
	}
}
