package cli

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/feeds"
	"github.com/rileyhilliard/proxmon/internal/notify"
	"github.com/rileyhilliard/proxmon/internal/poll"
	"github.com/rileyhilliard/proxmon/internal/ui"
	"github.com/spf13/cobra"
)

var statusWatch bool

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show node and guest metrics",
	Long: `Print the current metrics of every Proxmox node and its guests, with
the alert toggles.

With --watch, keep printing a fresh snapshot on the metrics interval until
interrupted or until the session ends.

Examples:
  proxmon status
  proxmon status --json
  proxmon status --watch`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireLogin(); err != nil {
			return err
		}
		if statusWatch {
			return watchStatus(cmd, a)
		}
		return statusOnce(cmd, a)
	},
}

func init() {
	statusCmd.Flags().BoolVarP(&statusWatch, "watch", "w", false, "keep refreshing until interrupted")
	rootCmd.AddCommand(statusCmd)
}

// StatusOutput is the --json form of 'proxmon status'.
type StatusOutput struct {
	Nodes      []api.NodeStatus `json:"nodes"`
	Alerts     *api.Alerts      `json:"alerts,omitempty"`
	Thresholds Thresholds       `json:"thresholds"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// Thresholds are the alert thresholds in percent.
type Thresholds struct {
	CPU  int `json:"cpu"`
	RAM  int `json:"ram"`
	Disk int `json:"disk"`
}

func defaultThresholds() Thresholds {
	return Thresholds{CPU: api.DefaultCPUThreshold, RAM: api.DefaultRAMThreshold, Disk: api.DefaultDiskThreshold}
}

func statusOnce(cmd *cobra.Command, a *app) error {
	ctx := cmd.Context()
	nodes, err := a.client.ProxmoxStatus(ctx)
	if err != nil {
		return err
	}
	out := StatusOutput{Nodes: api.SortGuests(nodes), Thresholds: defaultThresholds(), UpdatedAt: time.Now()}

	// Alerts and thresholds only decorate the output.
	if alerts, err := a.client.Alerts(ctx); err == nil {
		out.Alerts = alerts
	} else {
		a.log.Debug("alerts unavailable: %v", err)
	}
	if s, err := a.client.Settings(ctx); err == nil {
		out.Thresholds.CPU, out.Thresholds.RAM, out.Thresholds.Disk = s.Thresholds()
	} else {
		a.log.Debug("settings unavailable: %v", err)
	}

	return emit(cmd, out, func(w io.Writer) { printStatus(w, out) })
}

// watchStatus runs the feeds on a scheduler and prints each metrics result.
func watchStatus(cmd *cobra.Command, a *app) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	var (
		mu    sync.Mutex
		ended *api.Termination
	)
	a.client.OnTerminate(func(t api.Termination) {
		mu.Lock()
		ended = &t
		mu.Unlock()
		cancel()
	})

	errOut := cmd.ErrOrStderr()
	notices := notify.New(notify.WithTTL(a.cfg.NoticeTTL), notify.WithLogger(a.log))
	notices.OnPost(func(n notify.Notice) { fmt.Fprintln(errOut, ui.RenderNotice(n)) })

	sched := poll.New(poll.WithNotifier(notices), poll.WithLogger(a.log))
	if err := a.resolver.Watch(sched, a.cfg.Intervals.Identity); err != nil {
		return err
	}

	// Applies run one at a time, so these need no lock of their own.
	var (
		alerts     *api.Alerts
		thresholds = defaultThresholds()
	)
	err := feeds.Register(sched, a.client, a.resolver, a.cfg.Intervals, feeds.Handlers{
		Nodes: func(nodes []api.NodeStatus) {
			out := StatusOutput{Nodes: api.SortGuests(nodes), Alerts: alerts, Thresholds: thresholds, UpdatedAt: time.Now()}
			_ = emit(cmd, out, func(w io.Writer) {
				fmt.Fprintln(w, ui.MutedStyle.Render("── "+ui.FormatTime(out.UpdatedAt)+" ──"))
				printStatus(w, out)
			})
		},
		Alerts: func(al api.Alerts) { alerts = &al },
		Settings: func(s api.Settings) {
			thresholds.CPU, thresholds.RAM, thresholds.Disk = s.Thresholds()
		},
	})
	if err != nil {
		return err
	}

	sched.Start(ctx)
	<-ctx.Done()
	sched.Stop()

	mu.Lock()
	defer mu.Unlock()
	if ended != nil {
		return terminationError(*ended)
	}
	return nil
}

func printStatus(w io.Writer, out StatusOutput) {
	if len(out.Nodes) == 0 {
		fmt.Fprintln(w, ui.MutedStyle.Render("No nodes reported. Check the Proxmox API settings with 'proxmon settings proxmox test'."))
		return
	}

	rows := make([][]string, 0, len(out.Nodes))
	for _, n := range out.Nodes {
		running := 0
		for _, g := range n.VMs {
			if g.Running() {
				running++
			}
		}
		rows = append(rows, []string{
			n.Node,
			colorPercent(n.Stats.CPU, out.Thresholds.CPU),
			colorPercent(n.Stats.RAM.Percent(), out.Thresholds.RAM) + " " + ui.FormatUsage(n.Stats.RAM.Used, n.Stats.RAM.Total),
			colorPercent(n.Stats.Disk.Percent(), out.Thresholds.Disk) + " " + ui.FormatUsage(n.Stats.Disk.Used, n.Stats.Disk.Total),
			fmt.Sprintf("%d / %d", running, len(n.VMs)),
		})
	}
	fmt.Fprintln(w, ui.RenderSimpleTable([]ui.TableColumn{
		{Title: "Node"}, {Title: "CPU"}, {Title: "RAM"}, {Title: "Disk"}, {Title: "Running"},
	}, rows))

	var guests [][]string
	for _, n := range out.Nodes {
		for _, g := range n.VMs {
			status := ui.ErrorStyle.Render(ui.SymbolStopped) + " " + g.Status
			if g.Running() {
				status = ui.SuccessStyle.Render(ui.SymbolRunning) + " " + g.Status
			}
			guests = append(guests, []string{
				n.Node, g.Name, g.Type, status,
				ui.FormatPercent(g.CPU * 100),
				ui.FormatUsage(g.RAM.Used, g.RAM.Total),
			})
		}
	}
	if len(guests) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, ui.RenderSimpleTable([]ui.TableColumn{
			{Title: "Node"}, {Title: "Guest"}, {Title: "Type"}, {Title: "Status"}, {Title: "CPU"}, {Title: "RAM"},
		}, guests))
	}

	if out.Alerts != nil {
		fmt.Fprintf(w, "\nAlerts: CPU %s (%d%%)  RAM %s (%d%%)  Disk %s (%d%%)\n",
			onOff(out.Alerts.CPU), out.Thresholds.CPU,
			onOff(out.Alerts.RAM), out.Thresholds.RAM,
			onOff(out.Alerts.Disk), out.Thresholds.Disk)
	}
}

func colorPercent(p float64, threshold int) string {
	return lipgloss.NewStyle().Foreground(ui.ThresholdColor(p, float64(threshold))).Render(ui.FormatPercent(p))
}
