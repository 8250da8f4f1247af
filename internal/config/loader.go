package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// GlobalConfigDir is the directory for config, credentials and logs,
	// relative to the home directory.
	GlobalConfigDir = ".config/proxmon"
	// GlobalConfigFile is the config file name.
	GlobalConfigFile = "config.yaml"
	// EnvPrefix prefixes every environment override (PROXMON_SERVER, ...).
	EnvPrefix = "PROXMON"
	// DirEnv overrides the config directory.
	DirEnv = "PROXMON_CONFIG_DIR"
)

// Dir returns the proxmon config directory. PROXMON_CONFIG_DIR wins over
// ~/.config/proxmon.
func Dir() (string, error) {
	if d := os.Getenv(DirEnv); d != "" {
		return d, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot determine home directory",
			"Set "+DirEnv+" to choose a config directory")
	}
	return filepath.Join(home, GlobalConfigDir), nil
}

// Find locates the config file using the search order:
// 1. Explicit path (from --config flag)
// 2. <config dir>/config.yaml
//
// Returns the path to the config file, or empty string if not found.
func Find(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			if os.IsNotExist(err) {
				return "", errors.WrapWithCode(err, errors.ErrConfig,
					"Specified config file not found: "+explicit,
					"Check the path is correct")
			}
			return "", errors.WrapWithCode(err, errors.ErrConfig,
				"Cannot access config file: "+explicit,
				"Check file permissions")
		}
		return explicit, nil
	}

	dir, err := Dir()
	if err != nil {
		return "", err
	}
	path := filepath.Join(dir, GlobalConfigFile)
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	return "", nil
}

// Load reads config from path. An empty path loads defaults plus
// environment overrides only.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if os.IsNotExist(err) {
				return nil, errors.WrapWithCode(err, errors.ErrConfig,
					"Config file not found",
					"Run 'proxmon config init' to create a config file, or specify one with --config")
			}
			return nil, errors.WrapWithCode(err, errors.ErrConfig,
				"Failed to read config file",
				"Check the file exists and is valid YAML")
		}
	}

	cfg := DefaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig,
			"Invalid config format",
			"Check the YAML syntax in "+displayPath(path))
	}
	cfg.Server = strings.TrimRight(strings.TrimSpace(cfg.Server), "/")

	return cfg, nil
}

// LoadOrDefault loads the config found from explicit, or defaults when no
// file exists. Environment overrides apply either way.
func LoadOrDefault(explicit string) (*Config, string, error) {
	path, err := Find(explicit)
	if err != nil {
		return nil, "", err
	}
	cfg, err := Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// newViper returns a viper instance with every key defaulted, so that
// AutomaticEnv can resolve PROXMON_INTERVALS_METRICS and friends during
// Unmarshal.
func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	d := DefaultConfig()
	v.SetDefault("version", d.Version)
	v.SetDefault("server", d.Server)
	v.SetDefault("timeout", d.Timeout)
	v.SetDefault("insecure_skip_verify", d.InsecureSkipVerify)
	v.SetDefault("intervals.metrics", d.Intervals.Metrics)
	v.SetDefault("intervals.alerts", d.Intervals.Alerts)
	v.SetDefault("intervals.identity", d.Intervals.Identity)
	v.SetDefault("intervals.settings", d.Intervals.Settings)
	v.SetDefault("intervals.users", d.Intervals.Users)
	v.SetDefault("notice_ttl", d.NoticeTTL)
	v.SetDefault("sso.listen", d.SSO.Listen)
	v.SetDefault("sso.timeout", d.SSO.Timeout)
	v.SetDefault("exporter.listen", d.Exporter.Listen)
	v.SetDefault("output.color", d.Output.Color)
	return v
}

// WriteStarter writes a starter config file to path with the given server.
// It refuses to overwrite an existing file unless force is set.
func WriteStarter(path, server string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return errors.New(errors.ErrConfig,
				"Config file already exists: "+path,
				"Use --force to overwrite it")
		}
	}

	cfg := DefaultConfig()
	cfg.Server = strings.TrimRight(server, "/")
	if err := Validate(cfg); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	header := []byte("# proxmon configuration. Every key can be overridden with PROXMON_<KEY>.\n")

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot create config directory",
			"Check permissions on "+filepath.Dir(path))
	}
	if err := os.WriteFile(path, append(header, data...), 0600); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig,
			"Cannot write config file",
			"Check permissions on "+path)
	}
	return nil
}

// DefaultPath returns <config dir>/config.yaml.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, GlobalConfigFile), nil
}

func displayPath(path string) string {
	if path == "" {
		return "the environment"
	}
	return path
}
