package cli

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/exporter"
	"github.com/rileyhilliard/proxmon/internal/feeds"
	"github.com/rileyhilliard/proxmon/internal/logger"
	"github.com/rileyhilliard/proxmon/internal/notify"
	"github.com/rileyhilliard/proxmon/internal/poll"
	"github.com/spf13/cobra"
)

var exporterListen string

var exporterCmd = &cobra.Command{
	Use:   "exporter",
	Short: "Serve node metrics and feed health to Prometheus",
	Long: `Poll the server headlessly and publish the results for Prometheus.

  GET /metrics   node, guest and alert gauges plus per-feed health
  GET /healthz   feed health as JSON, 503 while any feed is failing

Node gauges only change on a successful metrics fetch. The exporter stops
with exit code 2 when the session ends.

Examples:
  proxmon exporter
  proxmon exporter --listen 127.0.0.1:9300`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		if err := a.requireLogin(); err != nil {
			return err
		}
		addr := exporterListen
		if addr == "" {
			addr = a.cfg.Exporter.Listen
		}
		return runExporter(cmd.Context(), cmd.OutOrStdout(), a, addr)
	},
}

func init() {
	exporterCmd.Flags().StringVar(&exporterListen, "listen", "", "listen address (default exporter.listen, "+exporter.DefaultListen+")")
	rootCmd.AddCommand(exporterCmd)
}

func runExporter(parent context.Context, w io.Writer, a *app, addr string) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	log := logger.New("exporter")
	var (
		mu    sync.Mutex
		ended *api.Termination
	)
	a.client.OnTerminate(func(t api.Termination) {
		log.Error("%s", t.Message)
		mu.Lock()
		ended = &t
		mu.Unlock()
		cancel()
	})

	notices := notify.New(notify.WithTTL(a.cfg.NoticeTTL), notify.WithLogger(log))
	sched := poll.New(poll.WithNotifier(notices), poll.WithLogger(log))
	exp := exporter.New(sched, log)

	if err := a.resolver.Watch(sched, a.cfg.Intervals.Identity); err != nil {
		return err
	}
	err := feeds.Register(sched, a.client, a.resolver, a.cfg.Intervals, feeds.Handlers{
		Nodes:  exp.ObserveNodes,
		Alerts: func(al api.Alerts) { exp.ObserveAlerts(&al) },
	})
	if err != nil {
		return err
	}

	if !machineMode {
		fmt.Fprintf(w, "Serving metrics on http://%s/metrics\n", addr)
	}
	sched.Start(ctx)
	serveErr := exp.Serve(ctx, addr)
	sched.Stop()

	mu.Lock()
	defer mu.Unlock()
	if ended != nil {
		return terminationError(*ended)
	}
	return serveErr
}
