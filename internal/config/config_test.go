package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidkarpay/warden/internal/guard"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "warden.toml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, guard.DefaultInterval, cfg.MonitorInterval())
	assert.Equal(t, ":8080", cfg.HTTP.Addr)
	assert.NoError(t, cfg.Thresholds.Validate())
}

func TestLoadFullConfig(t *testing.T) {
	p := writeConfig(t, `
config_version = "1.2.0"

[thresholds]
max_file_handles = 64
max_memory_mb = 512.0
max_cpu_percent = 50.0
warning_fraction = 0.7
cleanup_fraction = 0.85

[monitor]
interval = "5s"

[http]
addr = "127.0.0.1:9999"

[limits]
raise_nofile = 4096

[notify]
backend = "nats"
url = "nats://127.0.0.1:4222"
subject = "ops.warden"
burst = 5
min_interval = "30s"
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 64, cfg.Thresholds.MaxFileHandles)
	assert.Equal(t, 512.0, cfg.Thresholds.MaxMemoryMB)
	assert.Equal(t, 0.85, cfg.Thresholds.CleanupFraction)
	assert.Equal(t, 5*time.Second, cfg.MonitorInterval())
	assert.Equal(t, "127.0.0.1:9999", cfg.HTTP.Addr)
	assert.EqualValues(t, 4096, cfg.Limits.RaiseNoFile)
	assert.Equal(t, "nats", cfg.Notify.Backend)
	assert.Equal(t, "ops.warden", cfg.Notify.Subject)
	assert.Equal(t, 5, cfg.Notify.Burst)
	assert.Equal(t, 30*time.Second, cfg.NotifyMinInterval())
}

func TestLoadPartialConfigNormalized(t *testing.T) {
	p := writeConfig(t, `
[thresholds]
max_memory_mb = 4096.0
`)
	cfg, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 4096.0, cfg.Thresholds.MaxMemoryMB)
	assert.Equal(t, guard.DefaultMaxFileHandles, cfg.Thresholds.MaxFileHandles)
	assert.Equal(t, guard.DefaultWarningFraction, cfg.Thresholds.WarningFraction)
	assert.Equal(t, guard.DefaultInterval, cfg.MonitorInterval())
}

func TestLoadMalformed(t *testing.T) {
	p := writeConfig(t, "max_memory_mb = [[[")
	_, err := Load(p)
	assert.Error(t, err)
}

func TestLoadRejectsBadThresholds(t *testing.T) {
	p := writeConfig(t, `
[thresholds]
warning_fraction = 0.95
cleanup_fraction = 0.9
`)
	_, err := Load(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "warning_fraction")
}

func TestLoadVersionGate(t *testing.T) {
	for _, v := range []string{"1.0.0", "1.9.3"} {
		p := writeConfig(t, `config_version = "`+v+`"`)
		_, err := Load(p)
		assert.NoError(t, err, v)
	}
	for _, v := range []string{"2.0.0", "0.9.0", "not-a-version"} {
		p := writeConfig(t, `config_version = "`+v+`"`)
		_, err := Load(p)
		assert.Error(t, err, v)
	}
}

func TestLoadRejectsBadDurations(t *testing.T) {
	p := writeConfig(t, `
[monitor]
interval = "soon"
`)
	_, err := Load(p)
	assert.Error(t, err)

	p = writeConfig(t, `
[notify]
min_interval = "-10s"
`)
	_, err = Load(p)
	assert.Error(t, err)
}
