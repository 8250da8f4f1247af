package notify

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rileyhilliard/proxmon/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (f *fakeClock) now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.t
}

func (f *fakeClock) advance(d time.Duration) {
	f.mu.Lock()
	f.t = f.t.Add(d)
	f.mu.Unlock()
}

func newCenter(ttl time.Duration) (*Center, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	return New(WithTTL(ttl), WithClock(clk.now)), clk
}

func TestCenter_Expiry(t *testing.T) {
	c, clk := newCenter(4 * time.Second)

	c.Error("Server error (500)")
	c.Success("Saved")
	require.Len(t, c.Active(), 2)

	clk.advance(3 * time.Second)
	assert.Len(t, c.Active(), 2)

	clk.advance(time.Second)
	assert.Empty(t, c.Active(), "notices auto-dismiss after the TTL")
}

func TestCenter_DedupeExtends(t *testing.T) {
	c, clk := newCenter(4 * time.Second)

	c.Error("network down")
	clk.advance(3 * time.Second)
	c.Error("network down")
	c.Info("network down")

	active := c.Active()
	require.Len(t, active, 2, "same text at another level is a separate notice")
	assert.Equal(t, 2, active[0].Count)
	assert.Equal(t, LevelError, active[0].Level)

	clk.advance(2 * time.Second)
	active = c.Active()
	require.Len(t, active, 2, "the repeat pushed the expiry out")
}

func TestCenter_Bounded(t *testing.T) {
	c, _ := newCenter(time.Minute)
	for i := 0; i < 8; i++ {
		c.Info(fmt.Sprintf("n%d", i))
	}
	active := c.Active()
	require.Len(t, active, maxNotices)
	assert.Equal(t, "n3", active[0].Message)
	assert.Equal(t, "n7", active[len(active)-1].Message)
}

func TestCenter_EmptyDropped(t *testing.T) {
	c, _ := newCenter(time.Minute)
	c.Error("")
	assert.Empty(t, c.Active())
}

func TestCenter_OnPostAndLog(t *testing.T) {
	buf := logger.NewBufferLogger()
	c := New(WithLogger(buf))

	var got []Notice
	c.OnPost(func(n Notice) { got = append(got, n) })

	c.Error("boom")
	c.Success("ok")

	require.Len(t, got, 2)
	assert.Equal(t, LevelError, got[0].Level)
	assert.True(t, buf.Contains("warn", "boom"))
	assert.True(t, buf.Contains("info", "ok"))

	c.Dismiss()
	assert.Empty(t, c.Active())
}

func TestCenter_Concurrent(t *testing.T) {
	c := New(WithTTL(time.Minute))
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Error("same")
			_ = c.Active()
		}()
	}
	wg.Wait()

	active := c.Active()
	require.Len(t, active, 1)
	assert.Equal(t, 20, active[0].Count)
}
