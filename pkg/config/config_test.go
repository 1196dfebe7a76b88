package config

import (
	"flag"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logql-cli.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 20, cfg.Complete.Limit)
	assert.Equal(t, 150*time.Millisecond, cfg.Complete.Debounce)
	assert.Equal(t, BackendReadline, cfg.REPL.Backend)
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
loki:
  url: https://loki.example.com
  org_id: team-a
  lookback: 6h
complete:
  limit: 10
  debounce: 50ms
`)
	cfg := Default()
	require.NoError(t, Load(path, &cfg))
	assert.Equal(t, "https://loki.example.com", cfg.Loki.URL)
	assert.Equal(t, "team-a", cfg.Loki.OrgID)
	assert.Equal(t, 6*time.Hour, cfg.Loki.Lookback)
	assert.Equal(t, 10*time.Second, cfg.Loki.Timeout, "unset keys keep defaults")
	assert.Equal(t, 10, cfg.Complete.Limit)
	assert.Equal(t, 50*time.Millisecond, cfg.Complete.Debounce)
}

func TestLoad_Errors(t *testing.T) {
	cfg := Default()
	assert.Error(t, Load(filepath.Join(t.TempDir(), "missing.yaml"), &cfg))
	assert.ErrorContains(t, Load(writeConfig(t, "loki:\n  nope: 1\n"), &cfg), "decode config")
	assert.NoError(t, Load(writeConfig(t, ""), &cfg))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"bad scheme", func(c *Config) { c.Loki.URL = "ftp://x" }, "loki.url"},
		{"negative timeout", func(c *Config) { c.Loki.Timeout = -time.Second }, "loki.timeout"},
		{"negative debounce", func(c *Config) { c.Complete.Debounce = -1 }, "complete.debounce"},
		{"zero limit", func(c *Config) { c.Complete.Limit = 0 }, "complete.limit"},
		{"negative qps", func(c *Config) { c.Loki.QPS = -1 }, "loki.qps"},
		{"unknown backend", func(c *Config) { c.REPL.Backend = "tui" }, "repl.backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestFlags_OverrideFile(t *testing.T) {
	path := writeConfig(t, `
loki:
  url: http://from-file:3100
  org_id: file-tenant
complete:
  limit: 5
`)
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-config", path, "-org-id", "flag-tenant", "-debounce", "1s"}))

	cfg, err := f.Resolve()
	require.NoError(t, err)
	assert.Equal(t, "http://from-file:3100", cfg.Loki.URL, "file value kept when flag not set")
	assert.Equal(t, "flag-tenant", cfg.Loki.OrgID)
	assert.Equal(t, 5, cfg.Complete.Limit)
	assert.Equal(t, time.Second, cfg.Complete.Debounce)
}

func TestFlags_ResolveValidates(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	f := RegisterFlags(fs)
	require.NoError(t, fs.Parse([]string{"-limit", "0"}))
	_, err := f.Resolve()
	assert.ErrorContains(t, err, "invalid configuration")
}
