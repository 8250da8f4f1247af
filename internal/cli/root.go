package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/logger"
	"github.com/rileyhilliard/proxmon/internal/ui"
	"github.com/spf13/cobra"
)

// Exit codes.
const (
	ExitOK         = 0
	ExitError      = 1
	ExitAuth       = 2 // not logged in, bad credentials, or the session ended
	ExitPermission = 3
)

// Global flags
var (
	cfgFile    string
	serverFlag string
	verbose    bool
	noColor    bool
	assumeYes  bool
	noPersist  bool
)

var rootCmd = &cobra.Command{
	Use:   "proxmon",
	Short: "Terminal console for a ProxMon server",
	Long: `proxmon signs in to a ProxMon server and shows your Proxmox nodes,
guests and alert settings, either as an interactive dashboard or as
scriptable commands.

Admins can also manage accounts, notification channels and the audit log.

Get started:
  proxmon config init --server https://proxmon.lan:8000
  proxmon login
  proxmon dashboard`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		logger.Configure(logger.Options{Debug: verbose})
		if noColor || machineMode {
			ui.DisableColors()
		}
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.config/proxmon/config.yaml)")
	pf.StringVar(&serverFlag, "server", "", "ProxMon server URL, overrides the config file")
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVar(&noColor, "no-color", false, "disable colored output")
	pf.BoolVar(&machineMode, "json", false, "write machine-readable JSON")
	pf.BoolVarP(&assumeYes, "yes", "y", false, "answer yes to confirmation prompts")
	pf.BoolVar(&noPersist, "no-persist", false, "keep the credential in memory only (seeded from $"+TokenEnv+")")
}

// Execute runs the root command and exits the process with the mapped
// exit code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	os.Exit(handleError(err, os.Stdout, os.Stderr))
}

// handleError prints err the way the current output mode wants and returns
// the exit code.
func handleError(err error, stdout, stderr io.Writer) int {
	if err == nil {
		return ExitOK
	}
	if code, ok := errors.GetExitCode(err); ok {
		return code
	}

	if machineMode {
		_ = WriteJSONFromError(stdout, err)
		return exitCodeFor(err)
	}

	fmt.Fprint(stderr, ui.ErrorStyle.Render(strings.TrimRight(err.Error(), "\n"))+"\n")
	if isUnknownCommandError(err) {
		if name := extractUnknownCommand(err); name != "" {
			fmt.Fprintf(stderr, "\n  '%s' is not a proxmon command.\n", name)
		}
		fmt.Fprintln(stderr, "  Run 'proxmon --help' to see what's available.")
	}
	return exitCodeFor(err)
}

// exitCodeFor maps an error's code to the process exit code.
func exitCodeFor(err error) int {
	switch errors.Code(err) {
	case errors.ErrAuth, errors.ErrAuthDisabled:
		return ExitAuth
	case errors.ErrPermission:
		return ExitPermission
	default:
		return ExitError
	}
}

// isUnknownCommandError reports whether cobra rejected the command line.
func isUnknownCommandError(err error) bool {
	msg := err.Error()
	return strings.HasPrefix(msg, "unknown command") || strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag")
}

// extractUnknownCommand pulls the quoted name out of cobra's
// `unknown command "foo" for "proxmon"` message.
func extractUnknownCommand(err error) string {
	msg := err.Error()
	start := strings.Index(msg, `"`)
	if start < 0 {
		return ""
	}
	end := strings.Index(msg[start+1:], `"`)
	if end < 0 {
		return ""
	}
	return msg[start+1 : start+1+end]
}
