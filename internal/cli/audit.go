package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/authz"
	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/ui"
	"github.com/spf13/cobra"
)

var (
	auditLimit  int
	auditOutput string
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Read, export or clear the audit log",
	Long: `Read, export or clear the server's audit log.

Admins can read and export the log. Only a superadmin can clear it.`,
}

var auditListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "Show audit log entries, newest first",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.gate(cmd.Context(), authz.ActionViewAuditLog); err != nil {
			return err
		}
		entries, err := a.client.AuditLog(cmd.Context())
		if err != nil {
			return err
		}
		if auditLimit > 0 && len(entries) > auditLimit {
			entries = entries[:auditLimit]
		}
		return emit(cmd, entries, func(w io.Writer) { printAudit(w, entries) })
	},
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Download the audit log as CSV",
	Long: `Download the audit log as the server formats it. Writes to stdout
unless -o is given.

Examples:
  proxmon audit export > audit.csv
  proxmon audit export -o audit.csv`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.gate(cmd.Context(), authz.ActionViewAuditLog); err != nil {
			return err
		}
		data, err := a.client.ExportAuditLog(cmd.Context())
		if err != nil {
			return err
		}
		if auditOutput == "" || auditOutput == "-" {
			_, err := cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(auditOutput, data, 0600); err != nil {
			return errors.WrapWithCode(err, errors.ErrInput, "Cannot write "+auditOutput, "")
		}
		return success(cmd, fmt.Sprintf("Wrote %d bytes to %s", len(data), auditOutput))
	},
}

var auditClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every audit log entry (superadmins only)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if _, err := a.gate(cmd.Context(), authz.ActionClearAuditLog); err != nil {
			return err
		}
		ok, err := confirmAction("Clear the audit log?", "Every entry is deleted. Export it first if you need a copy.")
		if err != nil {
			return err
		}
		if !ok {
			return cancelled(cmd)
		}
		msg, err := a.client.ClearAuditLog(cmd.Context())
		if err != nil {
			return err
		}
		return success(cmd, fallback(msg, "Audit log cleared"))
	},
}

func init() {
	auditListCmd.Flags().IntVarP(&auditLimit, "limit", "n", 0, "show at most this many entries")
	auditExportCmd.Flags().StringVarP(&auditOutput, "output", "o", "", "file to write (default stdout)")

	auditCmd.AddCommand(auditListCmd, auditExportCmd, auditClearCmd)
	rootCmd.AddCommand(auditCmd)
}

func printAudit(w io.Writer, entries []api.AuditEntry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, ui.MutedStyle.Render("The audit log is empty."))
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{ui.FormatTime(e.Timestamp.Time), e.Action, e.PerformedBy, e.Details})
	}
	fmt.Fprintln(w, ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "Time"}, {Title: "Action"}, {Title: "By"}, {Title: "Details"},
	}, rows))
}
