package commands

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecli/neurolink/internal/api"
	"github.com/edgecli/neurolink/internal/config"
	"github.com/edgecli/neurolink/internal/core"
	"github.com/edgecli/neurolink/internal/device"
	"github.com/edgecli/neurolink/internal/llm"
)

// run executes the root command with args and returns its output. Flags are
// reset afterwards because cobra keeps them on the shared command tree.
func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(stdin))
	rootCmd.SetArgs(append([]string{"--no-color"}, args...))
	defer resetFlags(rootCmd)

	err := rootCmd.Execute()
	return out.String(), err
}

func resetFlags(cmd *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	cmd.PersistentFlags().VisitAll(reset)
	cmd.Flags().VisitAll(reset)
	for _, c := range cmd.Commands() {
		resetFlags(c)
	}
}

func startServer(t *testing.T) (string, *core.Core) {
	t.Helper()

	cfg := config.Default()
	cfg.PreBroadcastMs = 5
	cfg.ConfirmMs = 5
	cfg.PreHaltMs = 5
	cfg.HaltMs = 5
	cfg.BannerMs = 1
	cfg.JitterIntervalMs = 3600000

	c, err := core.Build(cfg, core.WithProvider(llm.NewEchoChat()))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	e := echo.New()
	e.HTTPErrorHandler = api.ErrorHandler
	h := api.NewHandler(api.Deps{
		Device:    c.Controller,
		Logs:      c.Logs,
		Chat:      c.Assistant,
		Telemetry: c.Telemetry,
		Provider:  c.Provider,
		Version:   "test",
	})
	api.RegisterRoutes(e, h, nil)
	srv := httptest.NewServer(e)

	t.Cleanup(func() {
		srv.Close()
		cancel()
		c.Wait()
	})
	return srv.URL, c
}

func TestVersion(t *testing.T) {
	out, err := run(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "NeuroLink")
	assert.Contains(t, out, "Version:  dev")
}

func TestDebugConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neurolink.ini")
	require.NoError(t, os.WriteFile(path, []byte("mac_address = 00:11:22:33:44:55\nhalt_ms = 250\n"), 0o600))
	t.Setenv("NEUROLINK_IP_ADDRESS", "10.0.0.9")

	out, err := run(t, "", "debug", "config", "--config", path, "-v")
	require.NoError(t, err)
	assert.Contains(t, out, "00:11:22:33:44:55")
	assert.Contains(t, out, "10.0.0.9")
	assert.Contains(t, out, "halt_ms:             250")
	assert.Contains(t, out, "verbose:             true")
}

func TestDebugEnvRedacts(t *testing.T) {
	t.Setenv("CHAT_API_KEY", "super-secret-value")
	t.Setenv("NEUROLINK_WEB_ADDR", ":9999")

	out, err := run(t, "", "debug", "env")
	require.NoError(t, err)
	assert.Contains(t, out, "CHAT_API_KEY=[REDACTED]")
	assert.Contains(t, out, "NEUROLINK_WEB_ADDR=:9999")
	assert.NotContains(t, out, "super-secret-value")
}

func TestDeviceLifecycle(t *testing.T) {
	url, c := startServer(t)

	out, err := run(t, "", "device", "status", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "离线")
	assert.Contains(t, out, "Lock:      engaged")

	out, err = run(t, "", "device", "on", "--wait", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Wake sequence started")
	assert.Contains(t, out, "Device is 在线")

	// Locked: the confirmation goes through but the intent is ignored.
	out, err = run(t, "", "device", "off", "--yes", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "safety lock is engaged")
	assert.Equal(t, device.StatusOnline, c.Controller.Snapshot().Device.Status)

	out, err = run(t, "", "device", "lock", "off", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Safety lock: released")

	out, err = run(t, "n\n", "device", "off", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Confirm: power_off")
	assert.Contains(t, out, "Aborted")
	assert.Equal(t, device.StatusOnline, c.Controller.Snapshot().Device.Status)

	out, err = run(t, "y\n", "device", "off", "--wait", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "Shutdown sequence started")
	assert.Contains(t, out, "Device is 离线")
	assert.True(t, c.Controller.Snapshot().Locked, "lock re-engages once offline")
}

func TestDeviceLockRejectsBadArg(t *testing.T) {
	_, err := run(t, "", "device", "lock", "maybe", "--server", "http://127.0.0.1:1")
	assert.Error(t, err)
}

func TestLogs(t *testing.T) {
	url, c := startServer(t)
	require.Eventually(t, func() bool { return c.Logs.Len() >= 3 }, time.Second, 5*time.Millisecond)

	out, err := run(t, "", "logs", "--server", url)
	require.NoError(t, err)
	assert.Equal(t, c.Logs.Len(), strings.Count(out, "\n"))
	assert.Contains(t, out, "] > ")
}

func TestChatSingleShotAndREPL(t *testing.T) {
	url, c := startServer(t)

	out, err := run(t, "", "chat", "--server", url, "hello", "there")
	require.NoError(t, err)
	assert.NotEmpty(t, strings.TrimSpace(out))
	assert.Equal(t, 3, c.Assistant.Memory().Len())

	out, err = run(t, "status\nhistory\nexit\n", "chat", "--server", url)
	require.NoError(t, err)
	assert.Contains(t, out, "NeuroLink v")
	assert.Contains(t, out, "Status:")
	assert.Contains(t, out, "You: hello there")
	assert.Contains(t, out, "Goodbye!")
}

func TestParseOnOff(t *testing.T) {
	for in, want := range map[string]bool{"on": true, "OFF": false, "1": true, "release": false} {
		got, err := parseOnOff(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
	_, err := parseOnOff("maybe")
	assert.Error(t, err)
}
