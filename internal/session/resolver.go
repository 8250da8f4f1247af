// Package session resolves who the caller is and owns the login lifecycle.
//
// A stored credential is first decoded without verification into a
// Provisional state, which is good for rendering a name and nothing else.
// Confirm asks the server (/me) and replaces the snapshot with a Confirmed
// identity. Anything that gates a privileged action must use Confirmed,
// which never returns decoded claims.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/logger"
	"github.com/rileyhilliard/proxmon/internal/poll"
	"github.com/rileyhilliard/proxmon/internal/tokenstore"
)

// IdentityFeed is the scheduler key of the revalidation feed.
const IdentityFeed = "identity"

// DefaultRevalidateInterval is how often a live console re-reads /me.
const DefaultRevalidateInterval = 30 * time.Second

// Resolver tracks the identity state for one token store.
type Resolver struct {
	client *api.Client
	store  tokenstore.Store
	log    logger.Logger

	mu    sync.Mutex
	state State
	subs  map[int]func(State)
	next  int
}

// NewResolver creates a resolver and loads the provisional state from the
// store. It resets itself whenever client ends the session.
func NewResolver(client *api.Client) *Resolver {
	r := &Resolver{
		client: client,
		store:  client.Store(),
		log:    logger.New("session"),
		subs:   make(map[int]func(State)),
	}
	r.Load()
	client.OnTerminate(func(api.Termination) { r.Reset() })
	return r
}

// Load re-reads the store and sets the provisional state, dropping any
// confirmation. An unreadable credential leaves the state at None.
func (r *Resolver) Load() State {
	token, ok := r.store.Get()
	next := State{Kind: None}
	if ok {
		if claims, err := DecodeClaims(token); err == nil {
			next = State{Kind: Provisional, Claims: claims}
		} else {
			r.log.Warn("stored credential is not a readable token: %v", err)
		}
	}
	r.set(next)
	return next
}

// Provisional decodes the stored credential without verifying it.
func (r *Resolver) Provisional() (Claims, bool) {
	token, ok := r.store.Get()
	if !ok {
		return Claims{}, false
	}
	claims, err := DecodeClaims(token)
	if err != nil {
		return Claims{}, false
	}
	return claims, true
}

// Confirm fetches /me and atomically replaces the snapshot with the
// confirmed identity. On failure the previous snapshot stays, except that a
// session-ending failure resets it through the termination handler. If the
// stored credential changes while /me is in flight the reply is dropped and
// Confirm returns an AUTH error.
func (r *Resolver) Confirm(ctx context.Context) (Identity, error) {
	token, _ := r.store.Get()

	me, err := r.client.Me(ctx)
	if err != nil {
		return Identity{}, err
	}
	id := FromMe(*me)

	next := State{Kind: Confirmed, Identity: id}

	r.mu.Lock()
	if current, _ := r.store.Get(); current != token {
		// Logged out or switched accounts while /me was in flight.
		r.mu.Unlock()
		return Identity{}, errors.New(errors.ErrAuth,
			"The session changed while checking who you are",
			"Run the command again")
	}
	prev := r.state
	r.state = next
	subs := r.subscribersLocked()
	r.mu.Unlock()

	if prev.Role() == api.RoleAdmin && id.Role != api.RoleAdmin {
		r.log.Warn("role for %s downgraded from %s to %s", id.Email, prev.Role(), id.Role)
	}
	if prev.Kind == Confirmed && prev.Identity.IsSuperadmin && !id.IsSuperadmin {
		r.log.Warn("superadmin flag removed for %s", id.Email)
	}

	notify(subs, next)
	return id, nil
}

// State returns the current snapshot.
func (r *Resolver) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Confirmed returns the server-confirmed identity, if any.
func (r *Resolver) Confirmed() (Identity, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state.Kind != Confirmed {
		return Identity{}, false
	}
	return r.state.Identity, true
}

// Reset drops the snapshot.
func (r *Resolver) Reset() {
	r.set(State{Kind: None})
}

// Subscribe calls fn after every state change until the returned function
// is called.
func (r *Resolver) Subscribe(fn func(State)) func() {
	r.mu.Lock()
	id := r.next
	r.next++
	r.subs[id] = fn
	r.mu.Unlock()

	return func() {
		r.mu.Lock()
		delete(r.subs, id)
		r.mu.Unlock()
	}
}

// Watch registers the revalidation feed on s and makes any 403 from a
// non-identity endpoint trigger it right away.
func (r *Resolver) Watch(s *poll.Scheduler, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultRevalidateInterval
	}
	if err := poll.Register(s, IdentityFeed, interval, r.Confirm, nil); err != nil {
		return err
	}
	r.client.OnForbidden(func() {
		// Trigger starts the fetch on its own goroutine.
		s.Trigger(IdentityFeed)
	})
	return nil
}

func (r *Resolver) set(next State) {
	r.mu.Lock()
	r.state = next
	subs := r.subscribersLocked()
	r.mu.Unlock()

	notify(subs, next)
}

func (r *Resolver) subscribersLocked() []func(State) {
	subs := make([]func(State), 0, len(r.subs))
	for _, fn := range r.subs {
		subs = append(subs, fn)
	}
	return subs
}

func notify(subs []func(State), s State) {
	for _, fn := range subs {
		fn(s)
	}
}
