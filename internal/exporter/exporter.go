// Package exporter republishes the live feeds as Prometheus metrics.
//
// Node gauges change only when a metrics fetch succeeds, so a failing feed
// leaves the last good values in place while proxmon_feed_up drops to 0.
package exporter

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/logger"
	"github.com/rileyhilliard/proxmon/internal/poll"
)

// DefaultListen is the exporter's default address.
const DefaultListen = ":9221"

const namespace = "proxmon"

// FeedSource reports feed health at scrape time.
type FeedSource interface {
	Snapshot() []poll.FeedStatus
}

// Exporter holds the metric families.
type Exporter struct {
	reg   *prometheus.Registry
	feeds FeedSource
	log   logger.Logger

	nodeCPU      *prometheus.GaugeVec
	nodeRAMUsed  *prometheus.GaugeVec
	nodeRAMTotal *prometheus.GaugeVec
	nodeDiskUsed *prometheus.GaugeVec
	nodeDiskTot  *prometheus.GaugeVec
	guests       *prometheus.GaugeVec
	guestCPU     *prometheus.GaugeVec
	alertEnabled *prometheus.GaugeVec
	lastUpdate   prometheus.Gauge
}

// New creates an exporter reading feed health from feeds.
func New(feeds FeedSource, log logger.Logger) *Exporter {
	if log == nil {
		log = logger.New("exporter")
	}
	gauge := func(name, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{Namespace: namespace, Name: name, Help: help}, labels)
	}

	e := &Exporter{
		reg:          prometheus.NewRegistry(),
		feeds:        feeds,
		log:          log,
		nodeCPU:      gauge("node_cpu_percent", "Node CPU load in percent.", "node"),
		nodeRAMUsed:  gauge("node_memory_used_gigabytes", "Node memory in use.", "node"),
		nodeRAMTotal: gauge("node_memory_total_gigabytes", "Node memory size.", "node"),
		nodeDiskUsed: gauge("node_disk_used_gigabytes", "Node storage in use.", "node"),
		nodeDiskTot:  gauge("node_disk_total_gigabytes", "Node storage size.", "node"),
		guests:       gauge("guests", "Guests per node by type and status.", "node", "type", "status"),
		guestCPU:     gauge("guest_cpu_ratio", "Guest CPU load as a 0-1 fraction.", "node", "guest", "type"),
		alertEnabled: gauge("alert_enabled", "Whether an alert toggle is on.", "resource"),
		lastUpdate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "metrics_last_success_timestamp_seconds",
			Help: "Unix time of the last successful metrics fetch.",
		}),
	}

	e.reg.MustRegister(
		e.nodeCPU, e.nodeRAMUsed, e.nodeRAMTotal, e.nodeDiskUsed, e.nodeDiskTot,
		e.guests, e.guestCPU, e.alertEnabled, e.lastUpdate,
		&feedCollector{source: feeds},
		collectors.NewGoCollector(),
	)
	return e
}

// Registry exposes the registry for tests and extra collectors.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.reg
}

// ObserveNodes replaces the node and guest gauges with nodes.
func (e *Exporter) ObserveNodes(nodes []api.NodeStatus) {
	for _, v := range []*prometheus.GaugeVec{
		e.nodeCPU, e.nodeRAMUsed, e.nodeRAMTotal, e.nodeDiskUsed, e.nodeDiskTot, e.guests, e.guestCPU,
	} {
		v.Reset()
	}

	for _, n := range nodes {
		e.nodeCPU.WithLabelValues(n.Node).Set(n.Stats.CPU)
		e.nodeRAMUsed.WithLabelValues(n.Node).Set(n.Stats.RAM.Used)
		e.nodeRAMTotal.WithLabelValues(n.Node).Set(n.Stats.RAM.Total)
		e.nodeDiskUsed.WithLabelValues(n.Node).Set(n.Stats.Disk.Used)
		e.nodeDiskTot.WithLabelValues(n.Node).Set(n.Stats.Disk.Total)

		for _, g := range n.VMs {
			e.guests.WithLabelValues(n.Node, g.Type, g.Status).Inc()
			e.guestCPU.WithLabelValues(n.Node, g.Name, g.Type).Set(g.CPU)
		}
	}
	e.lastUpdate.SetToCurrentTime()
}

// ObserveAlerts records the alert toggles.
func (e *Exporter) ObserveAlerts(a *api.Alerts) {
	if a == nil {
		return
	}
	e.alertEnabled.WithLabelValues("cpu").Set(boolGauge(a.CPU))
	e.alertEnabled.WithLabelValues("ram").Set(boolGauge(a.RAM))
	e.alertEnabled.WithLabelValues("disk").Set(boolGauge(a.Disk))
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// Handler serves /metrics and /healthz.
func (e *Exporter) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(e.reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", e.handleHealth)
	return r
}

type feedHealth struct {
	Key         string `json:"key"`
	Healthy     bool   `json:"healthy"`
	InFlight    bool   `json:"in_flight"`
	Runs        int    `json:"runs"`
	Skips       int    `json:"skips"`
	Failures    int    `json:"failures"`
	LastSuccess string `json:"last_success,omitempty"`
	LastError   string `json:"last_error,omitempty"`
}

type healthResponse struct {
	Status string       `json:"status"`
	Feeds  []feedHealth `json:"feeds"`
}

func (e *Exporter) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Feeds: []feedHealth{}}
	for _, f := range e.feeds.Snapshot() {
		h := feedHealth{
			Key: f.Key, Healthy: f.Healthy(), InFlight: f.InFlight,
			Runs: f.Runs, Skips: f.Skips, Failures: f.Failures,
		}
		if !f.LastSuccess.IsZero() {
			h.LastSuccess = f.LastSuccess.UTC().Format(time.RFC3339)
		}
		if f.LastError != nil {
			h.LastError = errors.Message(f.LastError)
		}
		if !h.Healthy {
			resp.Status = "degraded"
		}
		resp.Feeds = append(resp.Feeds, h)
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}

// Serve listens on addr until ctx is done.
func (e *Exporter) Serve(ctx context.Context, addr string) error {
	if addr == "" {
		addr = DefaultListen
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           e.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		e.log.Info("exporter listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return errors.WrapWithCode(err, errors.ErrConfig, "Exporter stopped", "Check exporter.listen in the config")
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// feedCollector turns scheduler snapshots into per-feed metrics.
type feedCollector struct {
	source FeedSource
}

var (
	feedUpDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "feed_up"),
		"Whether the feed's last fetch succeeded.", []string{"feed"}, nil)
	feedRunsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "feed_runs_total"),
		"Fetches issued by the feed.", []string{"feed"}, nil)
	feedSkipsDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "feed_skips_total"),
		"Ticks skipped because a fetch was still in flight.", []string{"feed"}, nil)
	feedFailuresDesc = prometheus.NewDesc(
		prometheus.BuildFQName(namespace, "", "feed_failures_total"),
		"Failed fetches.", []string{"feed"}, nil)
)

func (c *feedCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- feedUpDesc
	ch <- feedRunsDesc
	ch <- feedSkipsDesc
	ch <- feedFailuresDesc
}

func (c *feedCollector) Collect(ch chan<- prometheus.Metric) {
	for _, f := range c.source.Snapshot() {
		ch <- prometheus.MustNewConstMetric(feedUpDesc, prometheus.GaugeValue, boolGauge(f.Healthy()), f.Key)
		ch <- prometheus.MustNewConstMetric(feedRunsDesc, prometheus.CounterValue, float64(f.Runs), f.Key)
		ch <- prometheus.MustNewConstMetric(feedSkipsDesc, prometheus.CounterValue, float64(f.Skips), f.Key)
		ch <- prometheus.MustNewConstMetric(feedFailuresDesc, prometheus.CounterValue, float64(f.Failures), f.Key)
	}
}
