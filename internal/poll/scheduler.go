// Package poll runs independent periodic refresh feeds.
//
// Each feed fetches on its own ticker, fires once immediately on Start, and
// never has more than one fetch in flight: a tick that finds the previous
// fetch still running is skipped, not queued. A failing feed records the
// error and raises a notice without affecting its siblings. Stop cancels
// in-flight fetches, and once it returns no result is applied and no
// notice is raised for the stopped run.
package poll

import (
	"context"
	stderrors "errors"
	"fmt"
	"sync"
	"time"

	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/logger"
)

// Notifier receives transient failure notices.
type Notifier interface {
	Error(message string)
}

// FeedStatus is a read-only view of one feed.
type FeedStatus struct {
	Key         string
	Interval    time.Duration
	InFlight    bool
	Runs        int
	Skips       int
	Failures    int
	LastSuccess time.Time
	LastError   error
}

// Healthy reports whether the feed's most recent fetch succeeded.
func (f FeedStatus) Healthy() bool {
	return f.LastError == nil && !f.LastSuccess.IsZero()
}

type feed struct {
	key      string
	interval time.Duration
	fetch    func(ctx context.Context) (any, error)
	apply    func(any)

	inFlight bool
	// flightGen is the generation that issued the current fetch.
	flightGen uint64

	runs        int
	skips       int
	failures    int
	lastSuccess time.Time
	lastErr     error
}

// Scheduler owns a set of feeds.
type Scheduler struct {
	mu      sync.Mutex
	feeds   map[string]*feed
	order   []string
	running bool
	gen     uint64
	ctx     context.Context
	cancel  context.CancelFunc

	// deliver serializes apply and notices. Stop acquires it after bumping
	// the generation, so nothing from the old run is delivered afterwards.
	deliver sync.Mutex

	notifier Notifier
	log      logger.Logger
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithNotifier sets where failure notices go.
func WithNotifier(n Notifier) Option {
	return func(s *Scheduler) { s.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler) { s.log = l }
}

// New creates an empty scheduler.
func New(opts ...Option) *Scheduler {
	s := &Scheduler{
		feeds: make(map[string]*feed),
		log:   logger.New("poll"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Schedule registers a feed whose fetch produces no value to apply.
func (s *Scheduler) Schedule(key string, interval time.Duration, fetch func(ctx context.Context) error) error {
	return s.add(key, interval, func(ctx context.Context) (any, error) {
		return nil, fetch(ctx)
	}, nil)
}

// Register registers a typed feed. apply runs with each successful result,
// serialized with every other feed's apply.
func Register[T any](s *Scheduler, key string, interval time.Duration, fetch func(ctx context.Context) (T, error), apply func(T)) error {
	var wrapped func(any)
	if apply != nil {
		wrapped = func(v any) { apply(v.(T)) }
	}
	return s.add(key, interval, func(ctx context.Context) (any, error) {
		return fetch(ctx)
	}, wrapped)
}

func (s *Scheduler) add(key string, interval time.Duration, fetch func(context.Context) (any, error), apply func(any)) error {
	if interval <= 0 {
		return fmt.Errorf("feed %q: interval must be positive", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.feeds[key]; exists {
		return fmt.Errorf("feed %q already registered", key)
	}
	f := &feed{key: key, interval: interval, fetch: fetch, apply: apply}
	s.feeds[key] = f
	s.order = append(s.order, key)

	if s.running {
		go s.loop(s.ctx, f, s.gen)
	}
	return nil
}

// Start fires every feed immediately and then on its interval until ctx
// is done or Stop is called. Starting a running scheduler is a no-op.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return
	}
	s.gen++
	s.running = true
	s.ctx, s.cancel = context.WithCancel(ctx)

	for _, key := range s.order {
		f := s.feeds[key]
		// Fetches orphaned by a previous Stop no longer count.
		f.inFlight = false
		go s.loop(s.ctx, f, s.gen)
	}
}

// Stop halts all feeds and cancels in-flight fetches. After Stop returns no
// apply or notice from this run happens. Stop must not be called from
// inside an apply function.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.gen++
	s.cancel()
	s.mu.Unlock()

	// Wait out a delivery that started before the generation changed.
	s.deliver.Lock()
	s.deliver.Unlock() //nolint:staticcheck // barrier
}

// Running reports whether the scheduler is started.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Trigger forces one refresh of key now, under the same no-overlap rule as
// a tick. It reports whether a fetch was issued.
func (s *Scheduler) Trigger(key string) bool {
	s.mu.Lock()
	f, ok := s.feeds[key]
	ctx, gen, running := s.ctx, s.gen, s.running
	s.mu.Unlock()

	if !ok || !running {
		return false
	}
	return s.fire(ctx, f, gen)
}

// TriggerAll forces a refresh of every feed.
func (s *Scheduler) TriggerAll() {
	s.mu.Lock()
	keys := append([]string(nil), s.order...)
	s.mu.Unlock()
	for _, k := range keys {
		s.Trigger(k)
	}
}

// Snapshot returns the state of every feed in registration order.
func (s *Scheduler) Snapshot() []FeedStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]FeedStatus, 0, len(s.order))
	for _, key := range s.order {
		f := s.feeds[key]
		out = append(out, FeedStatus{
			Key:         f.key,
			Interval:    f.interval,
			InFlight:    f.inFlight,
			Runs:        f.runs,
			Skips:       f.skips,
			Failures:    f.failures,
			LastSuccess: f.lastSuccess,
			LastError:   f.lastErr,
		})
	}
	return out
}

func (s *Scheduler) loop(ctx context.Context, f *feed, gen uint64) {
	s.fire(ctx, f, gen)

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.fire(ctx, f, gen)
		}
	}
}

// fire issues a fetch for f unless one is already in flight.
func (s *Scheduler) fire(ctx context.Context, f *feed, gen uint64) bool {
	s.mu.Lock()
	if gen != s.gen || !s.running {
		s.mu.Unlock()
		return false
	}
	if f.inFlight {
		f.skips++
		s.mu.Unlock()
		s.log.Debug("feed %s: previous fetch still in flight, skipping", f.key)
		return false
	}
	f.inFlight = true
	f.flightGen = gen
	f.runs++
	s.mu.Unlock()

	go s.run(ctx, f, gen)
	return true
}

func (s *Scheduler) run(ctx context.Context, f *feed, gen uint64) {
	v, err := f.fetch(ctx)

	s.deliver.Lock()
	defer s.deliver.Unlock()

	s.mu.Lock()
	if f.flightGen == gen {
		f.inFlight = false
	}
	current := gen == s.gen && s.running
	if !current {
		s.mu.Unlock()
		return
	}
	if err != nil {
		f.failures++
		f.lastErr = err
	} else {
		f.lastErr = nil
		f.lastSuccess = time.Now()
	}
	s.mu.Unlock()

	if err != nil {
		s.report(f.key, err)
		return
	}
	if f.apply != nil {
		f.apply(v)
	}
}

func (s *Scheduler) report(key string, err error) {
	if stderrors.Is(err, context.Canceled) {
		return
	}
	if errors.IsAuth(err) {
		// The session-termination path informs the user.
		s.log.Debug("feed %s: %v", key, err)
		return
	}
	s.log.Warn("feed %s failed: %s", key, errors.Message(err))
	if s.notifier != nil {
		s.notifier.Error(errors.Message(err))
	}
}
