package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rileyhilliard/proxmon/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, CurrentConfigVersion, cfg.Version)
	assert.Empty(t, cfg.Server)
	assert.Equal(t, 15*time.Second, cfg.Timeout)
	assert.False(t, cfg.InsecureSkipVerify)
	assert.Equal(t, 60*time.Second, cfg.Intervals.Metrics)
	assert.Equal(t, 60*time.Second, cfg.Intervals.Alerts)
	assert.Equal(t, 30*time.Second, cfg.Intervals.Identity)
	assert.Equal(t, 120*time.Second, cfg.Intervals.Settings)
	assert.Equal(t, 30*time.Second, cfg.Intervals.Users)
	assert.Equal(t, 4*time.Second, cfg.NoticeTTL)
	assert.Equal(t, "127.0.0.1:5173", cfg.SSO.Listen)
	assert.Equal(t, ":9221", cfg.Exporter.Listen)
	assert.Equal(t, "auto", cfg.Output.Color)
	assert.NoError(t, Validate(cfg))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")

	content := `
version: 1
server: https://proxmon.lan:8000/
timeout: 5s
insecure_skip_verify: true
intervals:
  metrics: 10s
  identity: 45s
notice_ttl: 2s
sso:
  listen: 127.0.0.1:6000
output:
  color: never
`
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))

	cfg, err := Load(configPath)
	require.NoError(t, err)

	assert.Equal(t, "https://proxmon.lan:8000", cfg.Server, "trailing slash is trimmed")
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.True(t, cfg.InsecureSkipVerify)
	assert.Equal(t, 10*time.Second, cfg.Intervals.Metrics)
	assert.Equal(t, 45*time.Second, cfg.Intervals.Identity)
	assert.Equal(t, 60*time.Second, cfg.Intervals.Alerts, "unset keys keep defaults")
	assert.Equal(t, 2*time.Second, cfg.NoticeTTL)
	assert.Equal(t, "127.0.0.1:6000", cfg.SSO.Listen)
	assert.Equal(t, "never", cfg.Output.Color)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PROXMON_SERVER", "http://10.0.0.5:8000")
	t.Setenv("PROXMON_INTERVALS_METRICS", "15s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://10.0.0.5:8000", cfg.Server)
	assert.Equal(t, 15*time.Second, cfg.Intervals.Metrics)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestFind(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(DirEnv, dir)

	path, err := Find("")
	require.NoError(t, err)
	assert.Empty(t, path, "no file yet")

	cfgPath := filepath.Join(dir, GlobalConfigFile)
	require.NoError(t, os.WriteFile(cfgPath, []byte("server: http://x:1\n"), 0644))

	path, err = Find("")
	require.NoError(t, err)
	assert.Equal(t, cfgPath, path)

	_, err = Find(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
}

func TestLoadOrDefault(t *testing.T) {
	t.Setenv(DirEnv, t.TempDir())

	cfg, path, err := LoadOrDefault("")
	require.NoError(t, err)
	assert.Empty(t, path)
	assert.Equal(t, DefaultConfig().Intervals, cfg.Intervals)
}

func TestWriteStarter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "proxmon", "config.yaml")

	require.NoError(t, WriteStarter(path, "https://proxmon.lan:8000/", false))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://proxmon.lan:8000", cfg.Server)
	assert.Equal(t, DefaultConfig().Intervals, cfg.Intervals, "durations round-trip through YAML")

	err = WriteStarter(path, "https://other:8000", false)
	assert.True(t, errors.IsCode(err, errors.ErrConfig), "refuses to overwrite")

	require.NoError(t, WriteStarter(path, "https://other:8000", true))
	cfg, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://other:8000", cfg.Server)
}

func TestWriteStarter_RejectsBadServer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	err := WriteStarter(path, "ftp://nope", false)
	assert.True(t, errors.IsCode(err, errors.ErrConfig))
	assert.NoFileExists(t, path)
}
