package cli

import (
	"bufio"
	"strings"

	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/ui"
	"github.com/spf13/cobra"
)

var passwordStdin bool

var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Manage your password",
}

var passwordChangeCmd = &cobra.Command{
	Use:   "change",
	Short: "Change your password",
	Long: `Change your own password. You are asked for the current password and
the new one twice.

With --password-stdin, three lines are read from stdin: the current
password, the new password and the new password again.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireLogin(); err != nil {
			return err
		}

		var current, next, again string
		if passwordStdin {
			lines, err := readLines(cmd, 3)
			if err != nil {
				return err
			}
			current, next, again = lines[0], lines[1], lines[2]
		} else {
			if current, err = ui.Password("Current password"); err != nil {
				return err
			}
			if next, err = ui.Password("New password"); err != nil {
				return err
			}
			if again, err = ui.Password("New password again"); err != nil {
				return err
			}
		}

		msg, err := a.manager.ChangePassword(cmd.Context(), current, next, again)
		if err != nil {
			return err
		}
		return success(cmd, fallback(msg, "Password changed"))
	},
}

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage your own account",
}

var accountDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete your own account",
	Long: `Delete your own account and forget the stored credential. There is no
undo.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		id, _, err := a.confirm(cmd.Context())
		if err != nil {
			return err
		}
		ok, err := confirmAction("Delete the account "+id.Email+"?", "This cannot be undone.")
		if err != nil {
			return err
		}
		if !ok {
			return cancelled(cmd)
		}
		if err := a.manager.DeleteAccount(cmd.Context()); err != nil {
			return err
		}
		return success(cmd, "Deleted "+id.Email)
	},
}

func init() {
	passwordChangeCmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read current, new and repeated password from stdin")
	passwordCmd.AddCommand(passwordChangeCmd)
	accountCmd.AddCommand(accountDeleteCmd)
	rootCmd.AddCommand(passwordCmd, accountCmd)
}

// readLines reads exactly n lines from the command's stdin.
func readLines(cmd *cobra.Command, n int) ([]string, error) {
	sc := bufio.NewScanner(cmd.InOrStdin())
	out := make([]string, 0, n)
	for len(out) < n && sc.Scan() {
		out = append(out, strings.TrimRight(sc.Text(), "\r"))
	}
	if err := sc.Err(); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrInput, "Cannot read stdin", "")
	}
	if len(out) < n {
		return nil, errors.New(errors.ErrInput, "Expected the current password, the new password and the new password again on stdin", "")
	}
	return out, nil
}
