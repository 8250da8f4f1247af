// Package notify keeps the short-lived notices shown to the user.
package notify

import (
	"sync"
	"time"

	"github.com/rileyhilliard/proxmon/internal/logger"
)

// DefaultTTL is how long a notice stays visible.
const DefaultTTL = 4 * time.Second

// maxNotices bounds how many notices are kept at once; the oldest go first.
const maxNotices = 5

// Level is a notice's severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Notice is one message.
type Notice struct {
	Level   Level
	Message string
	// Count is how many times the same message arrived while visible.
	Count   int
	Created time.Time
	Expires time.Time
}

// Center collects notices from any goroutine. Repeats of a visible notice
// extend it instead of stacking.
type Center struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	notices []Notice
	onPost  []func(Notice)
	log     logger.Logger
}

// Option configures a Center.
type Option func(*Center)

// WithTTL sets how long notices stay visible.
func WithTTL(ttl time.Duration) Option {
	return func(c *Center) {
		if ttl > 0 {
			c.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Center) { c.now = now }
}

// WithLogger mirrors notices to l.
func WithLogger(l logger.Logger) Option {
	return func(c *Center) { c.log = l }
}

// New creates a center.
func New(opts ...Option) *Center {
	c := &Center{ttl: DefaultTTL, now: time.Now, log: logger.Noop()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// OnPost registers fn to run after each notice is posted.
func (c *Center) OnPost(fn func(Notice)) {
	c.mu.Lock()
	c.onPost = append(c.onPost, fn)
	c.mu.Unlock()
}

// Error posts an error notice.
func (c *Center) Error(message string) { c.Post(LevelError, message) }

// Info posts an informational notice.
func (c *Center) Info(message string) { c.Post(LevelInfo, message) }

// Success posts a success notice.
func (c *Center) Success(message string) { c.Post(LevelSuccess, message) }

// Post adds a notice. Empty messages are dropped.
func (c *Center) Post(level Level, message string) {
	if message == "" {
		return
	}
	now := c.now()

	c.mu.Lock()
	c.pruneLocked(now)
	var posted Notice
	found := false
	for i := range c.notices {
		n := &c.notices[i]
		if n.Level == level && n.Message == message {
			n.Count++
			n.Expires = now.Add(c.ttl)
			posted, found = *n, true
			break
		}
	}
	if !found {
		posted = Notice{Level: level, Message: message, Count: 1, Created: now, Expires: now.Add(c.ttl)}
		c.notices = append(c.notices, posted)
		if len(c.notices) > maxNotices {
			c.notices = c.notices[len(c.notices)-maxNotices:]
		}
	}
	handlers := append([]func(Notice){}, c.onPost...)
	c.mu.Unlock()

	switch level {
	case LevelError:
		c.log.Warn("%s", message)
	default:
		c.log.Info("%s", message)
	}
	for _, fn := range handlers {
		fn(posted)
	}
}

// Active returns the visible notices, oldest first.
func (c *Center) Active() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pruneLocked(c.now())
	return append([]Notice(nil), c.notices...)
}

// Dismiss removes every notice.
func (c *Center) Dismiss() {
	c.mu.Lock()
	c.notices = nil
	c.mu.Unlock()
}

func (c *Center) pruneLocked(now time.Time) {
	kept := c.notices[:0]
	for _, n := range c.notices {
		if now.Before(n.Expires) {
			kept = append(kept, n)
		}
	}
	c.notices = kept
}
