package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/authz"
	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/mutation"
	"github.com/rileyhilliard/proxmon/internal/session"
	"github.com/rileyhilliard/proxmon/internal/ui"
	"github.com/spf13/cobra"
)

var (
	createEmail         string
	createAdmin         bool
	createPasswordStdin bool
	resetPasswordStdin  bool
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage user accounts (admins only)",
	Long: `List and manage user accounts.

Accounts are named by email or numeric id. Nobody can change their own
account here, superadmin accounts cannot be changed, and only a superadmin
can change another admin or create one.`,
}

var usersListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List user accounts",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.gate(cmd.Context(), authz.ActionListUsers); err != nil {
			return err
		}
		users, err := a.client.Users(cmd.Context())
		if err != nil {
			return err
		}
		return emit(cmd, users, func(w io.Writer) { printUsers(w, users) })
	},
}

var usersCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user account",
	Long: `Create a user account. The password is prompted for, or read from
stdin with --password-stdin.

Examples:
  proxmon users create --email ops@example.com
  echo "$PW" | proxmon users create --email lead@example.com --admin --password-stdin`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		action := authz.ActionCreateUser
		if createAdmin {
			action = authz.ActionCreateAdmin
		}
		if _, err := a.gate(cmd.Context(), action); err != nil {
			return err
		}

		email := strings.TrimSpace(createEmail)
		if email == "" {
			if email, err = ui.Input("Email", "user@example.com"); err != nil {
				return err
			}
		}
		password, err := readPassword(cmd, createPasswordStdin, "Password for "+email)
		if err != nil {
			return err
		}

		req := api.CreateUserRequest{Email: email, Password: password, Role: api.RoleUser}
		if createAdmin {
			req.Role = api.RoleAdmin
		}
		u, err := a.client.CreateUser(cmd.Context(), req)
		if err != nil {
			return err
		}
		if u == nil {
			u = &api.User{Email: email, Role: req.Role, IsActive: true}
		}
		return emit(cmd, u, func(w io.Writer) {
			fmt.Fprintf(w, "%s Created %s (%s)\n", ui.SuccessStyle.Render(ui.SymbolSuccess), u.Email, u.Role)
		})
	},
}

var usersDeleteCmd = &cobra.Command{
	Use:   "delete <email|id>",
	Short: "Delete a user account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, u, err := targetUser(cmd, args[0], authz.ActionDeleteUser)
		if err != nil {
			return err
		}
		ok, err := confirmAction("Delete "+u.Email+"?", "The account and its sessions are removed.")
		if err != nil {
			return err
		}
		if !ok {
			return cancelled(cmd)
		}
		msg, err := a.client.DeleteUser(cmd.Context(), u.ID)
		if err != nil {
			return err
		}
		return success(cmd, fallback(msg, "Deleted "+u.Email))
	},
}

var usersToggleActiveCmd = &cobra.Command{
	Use:   "toggle-active <email|id>",
	Short: "Enable or disable a user account",
	Long: `Enable a disabled account, or disable an active one. A disabled user's
session ends the next time their client talks to the server.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, u, err := targetUser(cmd, args[0], authz.ActionToggleActive)
		if err != nil {
			return err
		}
		next, detail, err := toggleActive(cmd.Context(), a.client, u)
		if err != nil {
			return err
		}
		state := "disabled"
		if next.IsActive {
			state = "active"
		}
		return emit(cmd, next, func(w io.Writer) {
			fmt.Fprintf(w, "%s %s\n", ui.SuccessStyle.Render(ui.SymbolSuccess), fallback(detail, next.Email+" is now "+state))
		})
	},
}

var usersChangeRoleCmd = &cobra.Command{
	Use:   "change-role <email|id>",
	Short: "Switch a user between the user and admin roles",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, u, err := targetUser(cmd, args[0], authz.ActionChangeRole)
		if err != nil {
			return err
		}
		next, detail, err := changeRole(cmd.Context(), a.client, u)
		if err != nil {
			return err
		}
		return emit(cmd, next, func(w io.Writer) {
			fmt.Fprintf(w, "%s %s\n", ui.SuccessStyle.Render(ui.SymbolSuccess), fallback(detail, next.Email+" is now "+next.Role))
		})
	},
}

var usersResetPasswordCmd = &cobra.Command{
	Use:   "reset-password <email|id>",
	Short: "Set a new password for a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, u, err := targetUser(cmd, args[0], authz.ActionResetPassword)
		if err != nil {
			return err
		}
		password, err := readPassword(cmd, resetPasswordStdin, "New password for "+u.Email)
		if err != nil {
			return err
		}
		msg, err := a.client.ResetPassword(cmd.Context(), u.ID, password)
		if err != nil {
			return err
		}
		return success(cmd, fallback(msg, "Password reset for "+u.Email))
	},
}

func init() {
	usersCreateCmd.Flags().StringVar(&createEmail, "email", "", "email of the new account")
	usersCreateCmd.Flags().BoolVar(&createAdmin, "admin", false, "create an admin (superadmins only)")
	usersCreateCmd.Flags().BoolVar(&createPasswordStdin, "password-stdin", false, "read the password from stdin")
	usersResetPasswordCmd.Flags().BoolVar(&resetPasswordStdin, "password-stdin", false, "read the password from stdin")

	usersCmd.AddCommand(usersListCmd, usersCreateCmd, usersDeleteCmd,
		usersToggleActiveCmd, usersChangeRoleCmd, usersResetPasswordCmd)
	rootCmd.AddCommand(usersCmd)
}

// targetUser confirms the caller, finds the named account and checks that
// action is allowed against it. Nothing is changed on the server until all
// three succeed.
func targetUser(cmd *cobra.Command, ref string, action authz.Action) (*app, api.User, error) {
	a, err := newApp()
	if err != nil {
		return nil, api.User{}, err
	}
	_, caps, err := a.confirm(cmd.Context())
	if err != nil {
		return nil, api.User{}, err
	}
	if err := authz.Check(caps, authz.ActionListUsers, nil); err != nil {
		return nil, api.User{}, err
	}
	users, err := a.client.Users(cmd.Context())
	if err != nil {
		return nil, api.User{}, err
	}
	u, err := findUser(users, ref)
	if err != nil {
		return nil, api.User{}, err
	}
	target := session.FromUser(u)
	if err := authz.Check(caps, action, &target); err != nil {
		return nil, api.User{}, err
	}
	return a, u, nil
}

// findUser matches ref against ids first, then emails case-insensitively.
func findUser(users []api.User, ref string) (api.User, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil {
		for _, u := range users {
			if u.ID == id {
				return u, nil
			}
		}
	}
	for _, u := range users {
		if strings.EqualFold(u.Email, ref) {
			return u, nil
		}
	}
	return api.User{}, errors.New(errors.ErrInput,
		fmt.Sprintf("No user '%s'", ref),
		"Run 'proxmon users list' to see accounts")
}

func userTarget(id int) string {
	return "user:" + strconv.Itoa(id)
}

// toggleActive flips the account's active flag and keeps what the server
// answered.
func toggleActive(ctx context.Context, client *api.Client, u api.User) (api.User, string, error) {
	var detail string
	res := mutation.Apply(ctx, mutation.New(), userTarget(u.ID), mutation.NewCell(u),
		func(x api.User) api.User { x.IsActive = !x.IsActive; return x },
		func(ctx context.Context, x api.User) (*api.User, error) {
			ch, err := client.ToggleActive(ctx, u.ID)
			if err != nil || ch == nil {
				return nil, err
			}
			detail = ch.Detail
			x.IsActive = ch.IsActive
			return &x, nil
		})
	return res.Value, detail, res.Err
}

// changeRole switches between user and admin. The server decides the new
// role; the local guess only stands when it has no answer.
func changeRole(ctx context.Context, client *api.Client, u api.User) (api.User, string, error) {
	var detail string
	res := mutation.Apply(ctx, mutation.New(), userTarget(u.ID), mutation.NewCell(u),
		func(x api.User) api.User {
			if x.Role == api.RoleAdmin {
				x.Role = api.RoleUser
			} else {
				x.Role = api.RoleAdmin
			}
			return x
		},
		func(ctx context.Context, x api.User) (*api.User, error) {
			rc, err := client.ChangeRole(ctx, u.ID)
			if err != nil || rc == nil || rc.NewRole == "" {
				return nil, err
			}
			detail = rc.Detail
			x.Role = rc.NewRole
			return &x, nil
		})
	return res.Value, detail, res.Err
}

// readPassword reads one line from stdin when fromStdin is set and
// prompts otherwise. Empty passwords are refused.
func readPassword(cmd *cobra.Command, fromStdin bool, title string) (string, error) {
	var (
		pw  string
		err error
	)
	if fromStdin {
		pw, err = readLine(cmd.InOrStdin())
	} else {
		pw, err = ui.Password(title)
	}
	if err != nil {
		return "", err
	}
	if pw == "" {
		return "", errors.New(errors.ErrInput, "Password cannot be empty", "")
	}
	return pw, nil
}

func printUsers(w io.Writer, users []api.User) {
	if len(users) == 0 {
		fmt.Fprintln(w, ui.MutedStyle.Render("No users."))
		return
	}
	rows := make([][]string, 0, len(users))
	for _, u := range users {
		role := u.Role
		if u.IsSuperadmin {
			role += " " + ui.AccentStyle.Render(ui.SymbolCrown)
		}
		active := ui.SuccessStyle.Render("active")
		if !u.IsActive {
			active = ui.ErrorStyle.Render("disabled")
		}
		last := ui.MutedStyle.Render("never")
		if !u.LastLogin.IsZero() {
			last = ui.FormatAgo(u.LastLogin.Time, time.Now())
		}
		rows = append(rows, []string{strconv.Itoa(u.ID), u.Email, role, active, ui.FormatTime(u.CreatedAt.Time), last})
	}
	fmt.Fprintln(w, ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "ID"}, {Title: "Email"}, {Title: "Role"}, {Title: "Status"}, {Title: "Created"}, {Title: "Last login"},
	}, rows))
}
