package session

import (
	"context"
	"strings"

	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/logger"
	"github.com/rileyhilliard/proxmon/internal/tokenstore"
)

// Manager runs the explicit session flows. Along with the API client's
// termination path it is the only writer of the token store.
type Manager struct {
	client   *api.Client
	store    tokenstore.Store
	resolver *Resolver
	log      logger.Logger
}

// NewManager creates a manager over client and resolver.
func NewManager(client *api.Client, resolver *Resolver) *Manager {
	return &Manager{
		client:   client,
		store:    client.Store(),
		resolver: resolver,
		log:      logger.New("session"),
	}
}

// Resolver returns the identity resolver.
func (m *Manager) Resolver() *Resolver {
	return m.resolver
}

// Login exchanges credentials for a token, stores it, and confirms who it
// belongs to. Bad credentials and disabled accounts leave any existing
// session untouched.
func (m *Manager) Login(ctx context.Context, email, password string) (Identity, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return Identity{}, errors.New(errors.ErrInput,
			"Email and password are required", "")
	}

	tok, err := m.client.Login(ctx, email, password)
	if err != nil {
		return Identity{}, err
	}
	return m.adopt(ctx, tok.AccessToken)
}

// AcceptSSOToken stores a token delivered by the SSO redirect and confirms
// it. The token must at least decode as a JWT.
func (m *Manager) AcceptSSOToken(ctx context.Context, token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, errors.New(errors.ErrInput, "SSO returned no token", "Try 'proxmon login --sso' again")
	}
	if _, err := DecodeClaims(token); err != nil {
		return Identity{}, err
	}
	return m.adopt(ctx, token)
}

func (m *Manager) adopt(ctx context.Context, token string) (Identity, error) {
	if err := m.store.Set(token); err != nil {
		return Identity{}, errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot save credentials", "Check permissions on the proxmon config directory")
	}
	m.resolver.Load()

	id, err := m.resolver.Confirm(ctx)
	if err != nil {
		return Identity{}, err
	}
	m.log.Info("logged in as %s (%s)", id.Email, id.Role)
	return id, nil
}

// Logout forgets the credential. The server keeps no session state, so
// nothing is sent.
func (m *Manager) Logout() error {
	if err := m.store.Clear(); err != nil {
		return err
	}
	m.resolver.Reset()
	return nil
}

// DeleteAccount deletes the caller's own account. The credential is only
// cleared once the server confirms.
func (m *Manager) DeleteAccount(ctx context.Context) error {
	if err := m.client.DeleteAccount(ctx); err != nil {
		return err
	}
	return m.Logout()
}

// ChangePassword changes the caller's password after checking the new
// password and its confirmation match. A mismatch sends no request.
func (m *Manager) ChangePassword(ctx context.Context, current, next, confirm string) (string, error) {
	if next == "" {
		return "", errors.New(errors.ErrValidation, "New password must not be empty", "")
	}
	if next != confirm {
		return "", errors.New(errors.ErrValidation, "Passwords do not match", "Type the same new password twice")
	}
	return m.client.ChangePassword(ctx, current, next)
}
