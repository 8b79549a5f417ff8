package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecli/neurolink/internal/lifecycle"
)

func writeINI(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), ConfigFileName)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "192.168.1.15", cfg.IPAddress)
	assert.Equal(t, "AB:CD:EF:12:34:56", cfg.MACAddress)
	assert.Equal(t, 100, cfg.LogCapacity)
	assert.Equal(t, lifecycle.DefaultTimings(), cfg.Timings())
}

func TestLoadFromFile(t *testing.T) {
	path := writeINI(t, `
WEB_ADDR = 127.0.0.1:9090
ip_address = 10.1.2.3
mac_address = 00:11:22:33:44:55
log_capacity = 50
pre_broadcast_ms = 100
halt_ms = 200
request_logging = false
cors_origins = http://a.example, http://b.example
`)

	cfg := Default()
	require.NoError(t, cfg.LoadFromFile(path))

	assert.Equal(t, "127.0.0.1:9090", cfg.WebAddr, "keys are case insensitive")
	assert.Equal(t, "10.1.2.3", cfg.IPAddress)
	assert.Equal(t, "00:11:22:33:44:55", cfg.MACAddress)
	assert.Equal(t, 50, cfg.LogCapacity)
	assert.Equal(t, 100*time.Millisecond, cfg.Timings().PreBroadcast)
	assert.Equal(t, 200*time.Millisecond, cfg.Timings().Halt)
	assert.Equal(t, 3*time.Second, cfg.Timings().Confirm, "unset keys keep defaults")
	assert.False(t, cfg.RequestLogging)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, path, cfg.Source)
}

func TestLoadFromMissingFile(t *testing.T) {
	cfg := Default()
	err := cfg.LoadFromFile(filepath.Join(t.TempDir(), "nope.ini"))
	assert.Error(t, err)
}

func TestLoadFromEnvOverridesFile(t *testing.T) {
	path := writeINI(t, "ip_address = 10.1.2.3\njitter_interval_ms = 500\n")
	t.Setenv("NEUROLINK_IP_ADDRESS", "10.9.9.9")
	t.Setenv("NEUROLINK_CONFIRM_TTL_SECONDS", "5")
	t.Setenv("NEUROLINK_VERBOSE", "true")
	t.Setenv("NEUROLINK_HALT_MS", "not-a-number")

	cfg, err := New(path)
	require.NoError(t, err)

	assert.Equal(t, "10.9.9.9", cfg.IPAddress)
	assert.Equal(t, 500*time.Millisecond, cfg.Timings().Jitter)
	assert.Equal(t, 5*time.Second, cfg.Timings().ConfirmTTL)
	assert.Equal(t, 3*time.Second, cfg.Timings().Halt, "malformed ints are ignored")
	assert.True(t, cfg.Verbose)
}

func TestNewWithExplicitMissingFileFails(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "missing.ini"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero log capacity", func(c *Config) { c.LogCapacity = 0 }},
		{"negative halt", func(c *Config) { c.HaltMs = -1 }},
		{"zero jitter", func(c *Config) { c.JitterIntervalMs = 0 }},
		{"zero ttl", func(c *Config) { c.ConfirmTTLSeconds = 0 }},
		{"bad ip", func(c *Config) { c.IPAddress = "not-an-ip" }},
		{"bad mac", func(c *Config) { c.MACAddress = "zz:zz" }},
		{"empty addr", func(c *Config) { c.WebAddr = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), ErrInvalid)
		})
	}
}

func TestLocatePrefersExplicit(t *testing.T) {
	assert.Equal(t, "/some/where.ini", Locate("/some/where.ini"))
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a , ,b "))
	assert.Nil(t, splitList(""))
}
