// Package mutation applies optimistic local changes and reconciles them with
// the server's answer.
//
// Each mutation moves Idle -> Pending -> Committed or Reverted. While one
// mutation on a target is pending, another on the same target is Rejected
// rather than queued, so two writes never interleave unnoticed.
package mutation

import (
	"context"
	"sync"

	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/logger"
)

// State is where a mutation ended up.
type State int

const (
	Idle State = iota
	Pending
	Committed
	Reverted
	Rejected
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Committed:
		return "committed"
	case Reverted:
		return "reverted"
	case Rejected:
		return "rejected"
	default:
		return "idle"
	}
}

// Cell holds one piece of local state shared by a feed and the mutations
// that edit it. Feeds overwrite it with Set; the last writer wins.
type Cell[T any] struct {
	mu      sync.Mutex
	value   T
	version uint64
}

// NewCell creates a cell holding v.
func NewCell[T any](v T) *Cell[T] {
	return &Cell[T]{value: v}
}

// Get returns the current value.
func (c *Cell[T]) Get() T {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// Set replaces the value.
func (c *Cell[T]) Set(v T) {
	c.mu.Lock()
	c.value = v
	c.version++
	c.mu.Unlock()
}

func (c *Cell[T]) swap(fn func(T) T) (prev, next T, version uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev = c.value
	c.value = fn(prev)
	c.version++
	return prev, c.value, c.version
}

// Update applies fn to the current value under the cell's lock.
func (c *Cell[T]) Update(fn func(T) T) {
	c.swap(fn)
}

// restore sets v only if nothing has written the cell since version.
func (c *Cell[T]) restore(v T, version uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.version != version {
		return false
	}
	c.value = v
	c.version++
	return true
}

// Notifier receives the messages a failed or refused mutation produces.
type Notifier interface {
	Error(message string)
}

// Coordinator tracks which targets have a mutation pending.
type Coordinator struct {
	mu       sync.Mutex
	pending  map[string]struct{}
	notifier Notifier
	log      logger.Logger
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithNotifier sets where failure messages go.
func WithNotifier(n Notifier) Option {
	return func(c *Coordinator) { c.notifier = n }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(c *Coordinator) { c.log = l }
}

// New creates a coordinator.
func New(opts ...Option) *Coordinator {
	c := &Coordinator{
		pending: make(map[string]struct{}),
		log:     logger.New("mutation"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pending reports whether target has a mutation in flight.
func (c *Coordinator) Pending(target string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.pending[target]
	return ok
}

func (c *Coordinator) acquire(target string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, busy := c.pending[target]; busy {
		return false
	}
	c.pending[target] = struct{}{}
	return true
}

func (c *Coordinator) release(target string) {
	c.mu.Lock()
	delete(c.pending, target)
	c.mu.Unlock()
}

func (c *Coordinator) fail(target string, err error) {
	if errors.IsAuth(err) {
		c.log.Debug("mutation %s: %v", target, err)
		return
	}
	c.log.Warn("mutation %s failed: %s", target, errors.Message(err))
	if c.notifier != nil {
		c.notifier.Error(errors.Message(err))
	}
}

// Result is the outcome of one mutation. Value is the cell's value when
// the mutation settled.
type Result[T any] struct {
	State State
	Value T
	Err   error
}

// Op is a mutation whose optimistic value is already visible.
type Op[T any] struct {
	c       *Coordinator
	target  string
	cell    *Cell[T]
	prev    T
	next    T
	version uint64
	revert  func(T) T
	done    bool
}

// Begin reserves target and applies update to cell right away. It fails
// with BUSY when target already has a mutation pending.
func Begin[T any](c *Coordinator, target string, cell *Cell[T], update func(T) T) (*Op[T], error) {
	if !c.acquire(target) {
		err := errors.New(errors.ErrBusy, "A change to "+target+" is still being saved", "Wait for it to finish and try again")
		if c.notifier != nil {
			c.notifier.Error(errors.Message(err))
		}
		return nil, err
	}
	prev, next, version := cell.swap(update)
	return &Op[T]{c: c, target: target, cell: cell, prev: prev, next: next, version: version}, nil
}

// BeginPatch is Begin for a cell that several targets share, such as one
// row of a list. On failure revert is applied to whatever the cell holds
// then, instead of restoring the whole previous value.
func BeginPatch[T any](c *Coordinator, target string, cell *Cell[T], update, revert func(T) T) (*Op[T], error) {
	op, err := Begin(c, target, cell, update)
	if err != nil {
		return nil, err
	}
	op.revert = revert
	return op, nil
}

// Optimistic returns the value applied by Begin.
func (op *Op[T]) Optimistic() T {
	return op.next
}

// Finish sends the optimistic value through write and settles the cell.
// A failed write restores the previous value unless something else has
// written the cell since; an op started with BeginPatch applies its revert
// patch instead. A nil reply keeps the optimistic value.
func (op *Op[T]) Finish(ctx context.Context, write func(ctx context.Context, v T) (*T, error)) Result[T] {
	if op.done {
		return Result[T]{State: Idle, Value: op.cell.Get()}
	}
	op.done = true
	defer op.c.release(op.target)

	reply, err := write(ctx, op.next)
	if err != nil {
		if op.revert != nil {
			op.cell.Update(op.revert)
		} else if !op.cell.restore(op.prev, op.version) {
			op.c.log.Debug("mutation %s: cell changed while pending, keeping newer value", op.target)
		}
		op.c.fail(op.target, err)
		return Result[T]{State: Reverted, Value: op.cell.Get(), Err: err}
	}

	if reply != nil {
		op.cell.Set(*reply)
	}
	return Result[T]{State: Committed, Value: op.cell.Get()}
}

// Apply runs Begin and Finish.
func Apply[T any](ctx context.Context, c *Coordinator, target string, cell *Cell[T], update func(T) T, write func(ctx context.Context, v T) (*T, error)) Result[T] {
	op, err := Begin(c, target, cell, update)
	if err != nil {
		return Result[T]{State: Rejected, Value: cell.Get(), Err: err}
	}
	return op.Finish(ctx, write)
}
