package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rileyhilliard/proxmon/internal/dashboard"
	"github.com/rileyhilliard/proxmon/internal/exporter"
	"github.com/rileyhilliard/proxmon/internal/logger"
	"github.com/rileyhilliard/proxmon/internal/notify"
	"github.com/rileyhilliard/proxmon/internal/poll"
	"github.com/spf13/cobra"
)

// logFile is written while the dashboard owns the terminal.
const logFile = "proxmon.log"

var dashboardExporter string

var dashboardCmd = &cobra.Command{
	Use:     "dashboard",
	Aliases: []string{"ui"},
	Short:   "Interactive console for nodes, alerts, users and the audit log",
	Long: `Start the interactive dashboard.

Shows every node with its guests and the CPU, RAM and disk alert toggles.
Confirmed admins also get the Users and Audit tabs.

Keyboard shortcuts:
  q / Ctrl+C  Quit
  r           Refresh now
  tab / 1-3   Switch tab
  c / m / d   Toggle CPU / RAM / disk alerts
  a / o / x   Toggle active, change role, delete the selected user
  up/k        Move up
  down/j      Move down
  ?           Show help

Logs are written to proxmon.log in the config directory while the
dashboard runs.

Examples:
  proxmon dashboard
  proxmon dashboard --exporter :9221`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireLogin(); err != nil {
			return err
		}

		if err := os.MkdirAll(a.dir, 0700); err == nil {
			if closer, err := logger.OpenFile(filepath.Join(a.dir, logFile)); err == nil {
				defer closer.Close()
			}
		}

		log := logger.New("dashboard")
		notices := notify.New(notify.WithTTL(a.cfg.NoticeTTL), notify.WithLogger(log))
		sched := poll.New(poll.WithNotifier(notices), poll.WithLogger(log))
		opts := dashboard.Options{
			Client:    a.client,
			Resolver:  a.resolver,
			Notices:   notices,
			Intervals: a.cfg.Intervals,
			Log:       log,
			Scheduler: sched,
		}

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		if dashboardExporter != "" {
			exp := exporter.New(sched, logger.New("exporter"))
			opts.Observer = exp
			go func() {
				if err := exp.Serve(ctx, dashboardExporter); err != nil {
					notices.Error(fmt.Sprintf("Exporter stopped: %s", dashboardExporter))
				}
			}()
		}

		ended, err := dashboard.Run(ctx, opts)
		if err != nil {
			return err
		}
		if ended != nil {
			return terminationError(*ended)
		}
		return nil
	},
}

func init() {
	dashboardCmd.Flags().StringVar(&dashboardExporter, "exporter", "", "also serve Prometheus metrics on this address")
	rootCmd.AddCommand(dashboardCmd)
}
