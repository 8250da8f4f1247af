package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/rileyhilliard/proxmon/internal/errors"
)

// MinInterval is the shortest accepted feed interval.
const MinInterval = time.Second

var validColorModes = map[string]bool{"auto": true, "always": true, "never": true}

// Validate checks the config for errors and returns structured error messages.
// An empty server is allowed here; commands that talk to the API call
// RequireServer.
func Validate(cfg *Config) error {
	if cfg.Version > CurrentConfigVersion {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("This config is from the future (version %d, but proxmon only knows up to %d)", cfg.Version, CurrentConfigVersion),
			"Upgrade proxmon")
	}

	if cfg.Server != "" {
		if err := validateServer(cfg.Server); err != nil {
			return err
		}
	}

	if cfg.Timeout <= 0 {
		return errors.New(errors.ErrConfig,
			"timeout must be positive",
			"Set timeout to something like 15s")
	}

	intervals := []struct {
		key string
		val time.Duration
	}{
		{"intervals.metrics", cfg.Intervals.Metrics},
		{"intervals.alerts", cfg.Intervals.Alerts},
		{"intervals.identity", cfg.Intervals.Identity},
		{"intervals.settings", cfg.Intervals.Settings},
		{"intervals.users", cfg.Intervals.Users},
	}
	for _, iv := range intervals {
		if iv.val < MinInterval {
			return errors.New(errors.ErrConfig,
				fmt.Sprintf("%s is %s, which is below the %s minimum", iv.key, iv.val, MinInterval),
				"Use a value like 30s or 1m")
		}
	}

	if cfg.NoticeTTL <= 0 {
		return errors.New(errors.ErrConfig,
			"notice_ttl must be positive",
			"Set notice_ttl to something like 4s")
	}

	if !validColorModes[cfg.Output.Color] {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Unknown output.color %q", cfg.Output.Color),
			"Use one of: auto, always, never")
	}

	return nil
}

// RequireServer fails when no server URL is configured.
func RequireServer(cfg *Config) error {
	if cfg.Server == "" {
		return errors.New(errors.ErrConfig,
			"No ProxMon server configured",
			"Run 'proxmon config init --server https://host:8000', set PROXMON_SERVER, or pass --server")
	}
	return validateServer(cfg.Server)
}

func validateServer(server string) error {
	u, err := url.Parse(server)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return errors.New(errors.ErrConfig,
			fmt.Sprintf("Server %q is not an http(s) URL", server),
			"Use a full URL such as https://proxmon.lan:8000")
	}
	return nil
}
