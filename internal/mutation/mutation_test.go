package mutation

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type notes struct {
	mu   sync.Mutex
	msgs []string
}

func (n *notes) Error(m string) {
	n.mu.Lock()
	n.msgs = append(n.msgs, m)
	n.mu.Unlock()
}

func (n *notes) all() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.msgs...)
}

type alerts struct {
	CPU, RAM bool
}

func newCoordinator() (*Coordinator, *notes) {
	n := &notes{}
	return New(WithNotifier(n), WithLogger(logger.Noop())), n
}

func toggleCPU(a alerts) alerts {
	a.CPU = !a.CPU
	return a
}

func TestApply_CommitWithReply(t *testing.T) {
	c, n := newCoordinator()
	cell := NewCell(alerts{})

	res := Apply(context.Background(), c, "alerts", cell, toggleCPU,
		func(ctx context.Context, v alerts) (*alerts, error) {
			assert.True(t, v.CPU, "write sees the optimistic value")
			assert.True(t, cell.Get().CPU, "optimistic value is visible before the write returns")
			return &alerts{CPU: true, RAM: true}, nil
		})

	assert.Equal(t, Committed, res.State)
	assert.NoError(t, res.Err)
	assert.Equal(t, alerts{CPU: true, RAM: true}, cell.Get(), "server representation wins")
	assert.Equal(t, cell.Get(), res.Value)
	assert.Empty(t, n.all())
	assert.False(t, c.Pending("alerts"))
}

func TestApply_CommitWithoutBody(t *testing.T) {
	c, _ := newCoordinator()
	cell := NewCell(alerts{RAM: true})

	res := Apply(context.Background(), c, "alerts", cell, toggleCPU,
		func(ctx context.Context, v alerts) (*alerts, error) { return nil, nil })

	assert.Equal(t, Committed, res.State)
	assert.Equal(t, alerts{CPU: true, RAM: true}, cell.Get())
}

func TestApply_RevertOnFailure(t *testing.T) {
	c, n := newCoordinator()
	before := alerts{RAM: true}
	cell := NewCell(before)

	res := Apply(context.Background(), c, "alerts", cell, toggleCPU,
		func(ctx context.Context, v alerts) (*alerts, error) {
			return nil, errors.NewHTTP(errors.ErrValidation, 422, "cpu_alert: field required", "Request rejected")
		})

	assert.Equal(t, Reverted, res.State)
	assert.Equal(t, before, cell.Get(), "final state equals pre-update state")
	assert.True(t, errors.IsCode(res.Err, errors.ErrValidation))
	assert.Equal(t, []string{"cpu_alert: field required"}, n.all())
	assert.False(t, c.Pending("alerts"))
}

func TestApply_AuthFailureRevertsSilently(t *testing.T) {
	c, n := newCoordinator()
	cell := NewCell(alerts{})

	res := Apply(context.Background(), c, "alerts", cell, toggleCPU,
		func(ctx context.Context, v alerts) (*alerts, error) {
			return nil, errors.New(errors.ErrAuth, "Session expired", "")
		})

	assert.Equal(t, Reverted, res.State)
	assert.Equal(t, alerts{}, cell.Get())
	assert.Empty(t, n.all(), "the termination path reports auth failures")
}

func TestApply_RejectsConcurrentOnSameTarget(t *testing.T) {
	c, n := newCoordinator()
	cell := NewCell(alerts{})

	entered := make(chan struct{})
	release := make(chan struct{})
	done := make(chan Result[alerts])
	go func() {
		done <- Apply(context.Background(), c, "alerts", cell, toggleCPU,
			func(ctx context.Context, v alerts) (*alerts, error) {
				close(entered)
				<-release
				return nil, nil
			})
	}()
	<-entered
	assert.True(t, c.Pending("alerts"))

	second := Apply(context.Background(), c, "alerts", cell, toggleCPU,
		func(ctx context.Context, v alerts) (*alerts, error) {
			t.Fatal("second write must not be sent")
			return nil, nil
		})
	assert.Equal(t, Rejected, second.State)
	assert.True(t, errors.IsCode(second.Err, errors.ErrBusy))
	assert.True(t, cell.Get().CPU, "rejected mutation leaves the pending value alone")
	assert.Len(t, n.all(), 1)

	other := Apply(context.Background(), c, "user:7", NewCell(false),
		func(b bool) bool { return !b },
		func(ctx context.Context, v bool) (*bool, error) { return nil, nil })
	assert.Equal(t, Committed, other.State, "other targets are independent")

	close(release)
	select {
	case first := <-done:
		assert.Equal(t, Committed, first.State)
	case <-time.After(2 * time.Second):
		t.Fatal("first mutation never settled")
	}
	assert.False(t, c.Pending("alerts"))
}

func TestOp_RevertKeepsNewerFeedValue(t *testing.T) {
	c, _ := newCoordinator()
	cell := NewCell(alerts{})

	op, err := Begin(c, "alerts", cell, toggleCPU)
	require.NoError(t, err)
	assert.True(t, op.Optimistic().CPU)

	fresh := alerts{RAM: true}
	cell.Set(fresh) // a feed refresh landed while pending

	res := op.Finish(context.Background(), func(ctx context.Context, v alerts) (*alerts, error) {
		return nil, errors.New(errors.ErrServer, "Server error (500)", "")
	})
	assert.Equal(t, Reverted, res.State)
	assert.Equal(t, fresh, cell.Get())
}

func TestBeginPatch_RevertsOnlyItsOwnPart(t *testing.T) {
	c, n := newCoordinator()
	cell := NewCell(map[int]bool{1: true, 2: true})
	set := func(id int, v bool) func(map[int]bool) map[int]bool {
		return func(m map[int]bool) map[int]bool {
			out := map[int]bool{}
			for k, x := range m {
				out[k] = x
			}
			out[id] = v
			return out
		}
	}

	one, err := BeginPatch(c, "row:1", cell, set(1, false), set(1, true))
	require.NoError(t, err)
	two, err := BeginPatch(c, "row:2", cell, set(2, false), set(2, true))
	require.NoError(t, err)

	res := one.Finish(context.Background(), func(ctx context.Context, v map[int]bool) (*map[int]bool, error) {
		return nil, errors.New(errors.ErrValidation, "Refused", "")
	})
	assert.Equal(t, Reverted, res.State)
	assert.Equal(t, map[int]bool{1: true, 2: false}, cell.Get(), "row 2 keeps its pending value")

	res = two.Finish(context.Background(), func(ctx context.Context, v map[int]bool) (*map[int]bool, error) {
		return nil, nil
	})
	assert.Equal(t, Committed, res.State)
	assert.Equal(t, map[int]bool{1: true, 2: false}, cell.Get())
	assert.Equal(t, []string{"Refused"}, n.all())
}

func TestOp_FinishTwice(t *testing.T) {
	c, _ := newCoordinator()
	cell := NewCell(alerts{})

	op, err := Begin(c, "alerts", cell, toggleCPU)
	require.NoError(t, err)

	write := func(ctx context.Context, v alerts) (*alerts, error) { return nil, nil }
	assert.Equal(t, Committed, op.Finish(context.Background(), write).State)
	assert.Equal(t, Idle, op.Finish(context.Background(), write).State)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "pending", Pending.String())
	assert.Equal(t, "committed", Committed.String())
	assert.Equal(t, "reverted", Reverted.String())
	assert.Equal(t, "rejected", Rejected.String())
}
