package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEnvLine(t *testing.T) {
	cases := []struct {
		in       string
		key, val string
		ok       bool
	}{
		{"FOO=bar", "FOO", "bar", true},
		{"  FOO = bar  ", "FOO", "bar", true},
		{`FOO="bar baz"`, "FOO", "bar baz", true},
		{"FOO='x'", "FOO", "x", true},
		{"export FOO=bar", "FOO", "bar", true},
		{"FOO=", "FOO", "", true},
		{"# comment", "", "", false},
		{"   ", "", "", false},
		{"=value", "", "", false},
		{"NOEQUALS", "", "", false},
	}
	for _, tc := range cases {
		key, val, ok := parseEnvLine(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if tc.ok {
			assert.Equal(t, tc.key, key, tc.in)
			assert.Equal(t, tc.val, val, tc.in)
		}
	}
}

func TestLoadDotEnv(t *testing.T) {
	p := filepath.Join(t.TempDir(), ".env")
	body := "WARDEN_TEST_A=one\n# skip me\nWARDEN_TEST_B=\"two words\"\n"
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	defer os.Unsetenv("WARDEN_TEST_B")

	t.Setenv("WARDEN_TEST_A", "preset")
	require.NoError(t, LoadDotEnv(p, false))
	assert.Equal(t, "preset", os.Getenv("WARDEN_TEST_A"))
	assert.Equal(t, "two words", os.Getenv("WARDEN_TEST_B"))

	require.NoError(t, LoadDotEnv(p, true))
	assert.Equal(t, "one", os.Getenv("WARDEN_TEST_A"))
}

func TestLoadDotEnvMissing(t *testing.T) {
	assert.Error(t, LoadDotEnv(filepath.Join(t.TempDir(), ".env"), false))
}
