package dashboard

import (
	"context"
	stderrors "errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/config"
	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/feeds"
	"github.com/rileyhilliard/proxmon/internal/logger"
	"github.com/rileyhilliard/proxmon/internal/mutation"
	"github.com/rileyhilliard/proxmon/internal/notify"
	"github.com/rileyhilliard/proxmon/internal/poll"
	"github.com/rileyhilliard/proxmon/internal/session"
)

// Observer also receives metrics and alerts results, e.g. an exporter
// running next to the dashboard.
type Observer interface {
	ObserveNodes([]api.NodeStatus)
	ObserveAlerts(*api.Alerts)
}

// Options configure Run.
type Options struct {
	Client    *api.Client
	Resolver  *session.Resolver
	Notices   *notify.Center
	Intervals config.IntervalsConfig
	Observer  Observer
	Log       logger.Logger

	// Scheduler runs the feeds. Run creates one when nil; pass one to
	// share it with something else, such as an exporter reading its
	// snapshot.
	Scheduler *poll.Scheduler

	// ProgramOptions are passed to tea.NewProgram.
	ProgramOptions []tea.ProgramOption
}

// Run shows the dashboard until the user quits or the session ends. It
// returns the termination when the session ended.
func Run(ctx context.Context, opts Options) (*api.Termination, error) {
	log := opts.Log
	if log == nil {
		log = logger.New("dashboard")
	}
	notices := opts.Notices
	if notices == nil {
		notices = notify.New(notify.WithLogger(log))
	}

	sched := opts.Scheduler
	if sched == nil {
		sched = poll.New(poll.WithNotifier(notices), poll.WithLogger(log))
	}
	coord := mutation.New(mutation.WithNotifier(notices), mutation.WithLogger(log))

	model := NewModel(Deps{
		Client:      opts.Client,
		Coordinator: coord,
		Notices:     notices,
		Feeds:       sched,
	}, opts.Resolver.State())

	programOpts := append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts.ProgramOptions...)
	p := tea.NewProgram(model, programOpts...)

	// Feed applies hold the scheduler's delivery lock, so they send
	// directly. Notices can be posted from inside Update and must not
	// block it.
	notices.OnPost(func(notify.Notice) { go p.Send(noticesMsg{}) })
	unsubscribe := opts.Resolver.Subscribe(func(s session.State) { p.Send(stateMsg{state: s}) })
	defer unsubscribe()
	// Termination is observed on a fetch or write goroutine, never inside
	// an apply, so Stop can wait for in-flight deliveries here. Nothing a
	// feed sends afterwards reaches the model.
	opts.Client.OnTerminate(func(t api.Termination) {
		sched.Stop()
		go p.Send(terminatedMsg{termination: t})
	})

	if err := opts.Resolver.Watch(sched, opts.Intervals.Identity); err != nil {
		return nil, err
	}
	err := feeds.Register(sched, opts.Client, opts.Resolver, opts.Intervals, feeds.Handlers{
		Nodes: func(nodes []api.NodeStatus) {
			if opts.Observer != nil {
				opts.Observer.ObserveNodes(nodes)
			}
			p.Send(nodesMsg{nodes: nodes, at: time.Now()})
		},
		Alerts: func(a api.Alerts) {
			if opts.Observer != nil {
				opts.Observer.ObserveAlerts(&a)
			}
			p.Send(alertsMsg{alerts: a})
		},
		Settings: func(s api.Settings) { p.Send(settingsMsg{settings: s}) },
		Users:    func(l feeds.UserList) { p.Send(usersMsg{list: l}) },
		Audit:    func(l feeds.AuditLog) { p.Send(auditMsg{log: l}) },
	})
	if err != nil {
		return nil, err
	}

	sched.Start(ctx)
	final, runErr := p.Run()
	sched.Stop()

	if m, ok := final.(Model); ok {
		if t, ended := m.Terminated(); ended {
			return &t, nil
		}
	}
	if runErr != nil && !stderrors.Is(runErr, tea.ErrProgramKilled) {
		return nil, errors.WrapWithCode(runErr, errors.ErrInput, "Dashboard stopped unexpectedly", "")
	}
	return nil, nil
}
