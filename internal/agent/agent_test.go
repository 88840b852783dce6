package agent

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAgentFromConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "warden.toml")
	body := `
[thresholds]
max_file_handles = 16

[monitor]
interval = "50ms"

[http]
addr = ":7171"
`
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))

	a, err := New(Options{ConfigPath: p, HTTPAddr: "127.0.0.1:0"})
	require.NoError(t, err)
	defer a.Close()

	assert.Equal(t, 16, a.Registry().Cap())
	// Explicit option beats the configured address.
	assert.Equal(t, "127.0.0.1:0", a.Config().HTTP.Addr)
	assert.True(t, a.Monitor().Running())
	assert.NotNil(t, a.Tracker())

	require.NoError(t, a.Close())
	assert.False(t, a.Monitor().Running())
	require.NoError(t, a.Close())
}

func TestNewAgentRejectsBadConfig(t *testing.T) {
	p := filepath.Join(t.TempDir(), "warden.toml")
	body := `
[thresholds]
warning_fraction = 0.95
cleanup_fraction = 0.9
`
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))

	_, err := New(Options{ConfigPath: p})
	assert.Error(t, err)
}

func TestNewAgentMissingConfigUsesDefaults(t *testing.T) {
	t.Setenv("WARDEN_HTTP_ADDR", "")
	a, err := New(Options{ConfigPath: filepath.Join(t.TempDir(), "absent.toml")})
	require.NoError(t, err)
	defer a.Close()
	assert.Equal(t, 100, a.Registry().Cap())
	assert.Equal(t, ":8080", a.Config().HTTP.Addr)
}
