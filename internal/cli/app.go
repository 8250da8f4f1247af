package cli

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/proxmon/internal/api"
	"github.com/rileyhilliard/proxmon/internal/authz"
	"github.com/rileyhilliard/proxmon/internal/config"
	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/rileyhilliard/proxmon/internal/logger"
	"github.com/rileyhilliard/proxmon/internal/session"
	"github.com/rileyhilliard/proxmon/internal/tokenstore"
	"github.com/rileyhilliard/proxmon/internal/ui"
)

// transport replaces the HTTP transport when set. Tests point it at a mock.
var transport http.RoundTripper

// TokenEnv seeds the in-memory credential used with --no-persist.
const TokenEnv = "PROXMON_TOKEN"

// app is what a command needs to talk to the server.
type app struct {
	cfg     *config.Config
	cfgPath string
	dir     string

	store     tokenstore.Store
	storePath string
	client    *api.Client
	resolver  *session.Resolver
	manager   *session.Manager
	log       logger.Logger
}

// loadConfig reads the config, applies --server and validates it.
func loadConfig() (*config.Config, string, error) {
	cfg, path, err := config.LoadOrDefault(cfgFile)
	if err != nil {
		return nil, "", err
	}
	if serverFlag != "" {
		cfg.Server = strings.TrimRight(strings.TrimSpace(serverFlag), "/")
	}
	if err := config.Validate(cfg); err != nil {
		return nil, "", err
	}
	if !noColor && !machineMode {
		ui.ApplyColorMode(cfg.Output.Color)
	}
	return cfg, path, nil
}

// newApp wires config, credentials and the API client.
func newApp() (*app, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := config.RequireServer(cfg); err != nil {
		return nil, err
	}
	dir, err := config.Dir()
	if err != nil {
		return nil, err
	}

	log := logger.New("cli")
	store, storePath, err := openStore(dir, cfg.Server)
	if err != nil {
		return nil, err
	}

	opts := []api.Option{
		api.WithTimeout(cfg.Timeout),
		api.WithInsecureSkipVerify(cfg.InsecureSkipVerify),
		api.WithLogger(logger.New("api")),
	}
	if transport != nil {
		opts = append(opts, api.WithHTTPClient(&http.Client{Transport: transport, Timeout: cfg.Timeout}))
	}
	client := api.New(cfg.Server, store, opts...)
	resolver := session.NewResolver(client)

	return &app{
		cfg:       cfg,
		cfgPath:   path,
		dir:       dir,
		store:     store,
		storePath: storePath,
		client:    client,
		resolver:  resolver,
		manager:   session.NewManager(client, resolver),
		log:       log,
	}, nil
}

// openStore returns the credential store for server. With --no-persist the
// credential lives in memory only, seeded from PROXMON_TOKEN.
func openStore(dir, server string) (tokenstore.Store, string, error) {
	if !noPersist {
		path := filepath.Join(dir, tokenstore.CredentialsFile)
		return tokenstore.NewFileStore(path, server), path, nil
	}
	mem := tokenstore.NewMemoryStore()
	if tok := strings.TrimSpace(os.Getenv(TokenEnv)); tok != "" {
		if err := mem.Set(tok); err != nil {
			return nil, "", err
		}
	}
	return mem, "", nil
}

// requireLogin fails fast when no credential is stored.
func (a *app) requireLogin() error {
	if _, ok := a.store.Get(); !ok {
		hint := "Run 'proxmon login'"
		if noPersist {
			hint = "Set " + TokenEnv + " or drop --no-persist"
		}
		return errors.New(errors.ErrAuth, "Not logged in to "+a.cfg.Server, hint)
	}
	return nil
}

// confirm asks the server who we are. Every privileged command starts
// here, so the decision is never made from the stored token alone.
func (a *app) confirm(ctx context.Context) (session.Identity, authz.Capabilities, error) {
	if err := a.requireLogin(); err != nil {
		return session.Identity{}, authz.Capabilities{}, err
	}
	id, err := a.resolver.Confirm(ctx)
	if err != nil {
		return session.Identity{}, authz.Capabilities{}, err
	}
	return id, authz.FromState(a.resolver.State()), nil
}

// gate confirms the caller and checks an untargeted action.
func (a *app) gate(ctx context.Context, action authz.Action) (session.Identity, error) {
	id, caps, err := a.confirm(ctx)
	if err != nil {
		return id, err
	}
	return id, authz.Check(caps, action, nil)
}

// confirmAction asks before a destructive step unless --yes was given.
func confirmAction(title, description string) (bool, error) {
	if assumeYes {
		return true, nil
	}
	return ui.Confirm(title, description)
}

// terminationError turns an ended session into the error the CLI exits
// with.
func terminationError(t api.Termination) error {
	if t.Reason == api.ReasonDisabled {
		return errors.New(errors.ErrAuthDisabled, t.Message, "")
	}
	return errors.New(errors.ErrAuth, t.Message, "Run 'proxmon login'")
}
