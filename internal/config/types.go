package config

import "time"

// CurrentConfigVersion is the schema version for the config file.
// Increment when making breaking changes to the config structure.
const CurrentConfigVersion = 1

// Config represents the complete config.yaml file.
type Config struct {
	Version int `yaml:"version" mapstructure:"version"`

	// Server is the base URL of the ProxMon API, e.g. https://proxmon.lan:8000.
	Server string `yaml:"server" mapstructure:"server"`

	// Timeout bounds every HTTP request.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`

	// InsecureSkipVerify disables TLS verification for self-signed servers.
	InsecureSkipVerify bool `yaml:"insecure_skip_verify" mapstructure:"insecure_skip_verify"`

	Intervals IntervalsConfig `yaml:"intervals" mapstructure:"intervals"`

	// NoticeTTL is how long a transient notice stays visible.
	NoticeTTL time.Duration `yaml:"notice_ttl" mapstructure:"notice_ttl"`

	SSO      SSOConfig      `yaml:"sso" mapstructure:"sso"`
	Exporter ExporterConfig `yaml:"exporter" mapstructure:"exporter"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
}

// IntervalsConfig holds the refresh period of each polling feed.
type IntervalsConfig struct {
	Metrics  time.Duration `yaml:"metrics" mapstructure:"metrics"`
	Alerts   time.Duration `yaml:"alerts" mapstructure:"alerts"`
	Identity time.Duration `yaml:"identity" mapstructure:"identity"`
	Settings time.Duration `yaml:"settings" mapstructure:"settings"`
	Users    time.Duration `yaml:"users" mapstructure:"users"`
}

// SSOConfig controls the loopback listener used by 'proxmon login --sso'.
type SSOConfig struct {
	// Listen is the address the backend redirects the browser to.
	Listen string `yaml:"listen" mapstructure:"listen"`

	// Timeout is how long to wait for the browser to come back.
	Timeout time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// ExporterConfig controls 'proxmon exporter'.
type ExporterConfig struct {
	Listen string `yaml:"listen" mapstructure:"listen"`
}

// OutputConfig controls terminal output formatting.
type OutputConfig struct {
	// Color mode: auto, always, never
	Color string `yaml:"color" mapstructure:"color"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Version:   CurrentConfigVersion,
		Timeout:   15 * time.Second,
		NoticeTTL: 4 * time.Second,
		Intervals: IntervalsConfig{
			Metrics:  60 * time.Second,
			Alerts:   60 * time.Second,
			Identity: 30 * time.Second,
			Settings: 120 * time.Second,
			Users:    30 * time.Second,
		},
		SSO: SSOConfig{
			Listen:  "127.0.0.1:5173",
			Timeout: 5 * time.Minute,
		},
		Exporter: ExporterConfig{
			Listen: ":9221",
		},
		Output: OutputConfig{
			Color: "auto",
		},
	}
}
