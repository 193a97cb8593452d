package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	t.Setenv("GATEKEEPER_CONFIG", "")

	dir := t.TempDir()
	full := writeTempJSON(t, dir, "full.json", map[string]any{
		"endpoint_addr_http":        "www.example:9000",
		"endpoint_addr_health":      ":7000",
		"database_dsn":              "memory",
		"secret_key":                "my_secret_key",
		"session_validity_duration": "2h",
		"sweep_interval":            "30s",
		"invite_validity_duration":  "72h",
		"remote_base_url":           "http://media:8096",
		"remote_api_key":            "token",
		"remote_timeout":            "3s",
		"remote_rate_limit":         5.5,
		"bootstrap_admin_user":      "root",
		"bootstrap_admin_password":  "rootpassword",
		"log_level":                 "warn",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", full}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.EndpointAddrHTTP)
		assert.Equal(t, ":7000", cfg.EndpointAddrHealth)
		assert.Equal(t, "memory", cfg.DatabaseDSN)
		assert.Equal(t, "my_secret_key", cfg.SecretKey)
		assert.Equal(t, 2*time.Hour, cfg.SessionValidityDuration)
		assert.Equal(t, 30*time.Second, cfg.SweepInterval)
		assert.Equal(t, 72*time.Hour, cfg.InviteValidityDuration)
		assert.Equal(t, "http://media:8096", cfg.RemoteBaseURL)
		assert.Equal(t, "token", cfg.RemoteAPIKey)
		assert.Equal(t, 3*time.Second, cfg.RemoteTimeout)
		assert.Equal(t, 5.5, cfg.RemoteRateLimit)
		assert.Equal(t, "root", cfg.BootstrapAdminUser)
		assert.Equal(t, "rootpassword", cfg.BootstrapAdminPassword)
		assert.Equal(t, "warn", cfg.LogLevel)
	})

	t.Run("partial file keeps other values", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{"sweep_interval": "5m"})
		os.Args = []string{"testbin", "-c", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
		assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
		assert.Equal(t, 10*time.Second, cfg.RemoteTimeout)
	})

	t.Run("no config flag → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{EndpointAddrHTTP: "defaults:1234", SweepInterval: time.Minute}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrHTTP)
		assert.Equal(t, time.Minute, cfg.SweepInterval)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})

	t.Run("missing file → panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", filepath.Join(dir, "nope.json")}
		require.Panics(t, func() { parseJson(&Config{}) })
	})
}
