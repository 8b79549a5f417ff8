package remote

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edgecli/neurolink/internal/api"
	"github.com/edgecli/neurolink/internal/config"
	"github.com/edgecli/neurolink/internal/core"
	"github.com/edgecli/neurolink/internal/device"
	"github.com/edgecli/neurolink/internal/llm"
)

func newServer(t *testing.T) (*Client, *core.Core) {
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
	return New(srv.URL+"/", srv.Client()), c
}

func waitStatus(t *testing.T, cl *Client, want device.Status) {
	t.Helper()
	require.Eventually(t, func() bool {
		d, err := cl.Device(context.Background())
		return err == nil && d.Device.Status == want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestNewNormalisesBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080", New("localhost:8080", nil).BaseURL())
	assert.Equal(t, "https://x.example", New(" https://x.example/ ", nil).BaseURL())
}

func TestHealthAndDevice(t *testing.T) {
	cl, _ := newServer(t)
	ctx := context.Background()

	h, err := cl.Health(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, "echo", h.Provider)

	d, err := cl.Device(ctx)
	require.NoError(t, err)
	assert.Equal(t, device.StatusOffline, d.Device.Status)
	assert.True(t, d.Locked)
	assert.Equal(t, "离线", d.StatusLabel)
}

func TestPowerCycle(t *testing.T) {
	cl, _ := newServer(t)
	ctx := context.Background()

	res, err := cl.PowerOn(ctx)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	waitStatus(t, cl, device.StatusOnline)

	locked, err := cl.SetLock(ctx, nil)
	require.NoError(t, err)
	assert.False(t, locked)

	ticket, err := cl.RequestPowerOff(ctx)
	require.NoError(t, err)
	assert.Equal(t, "power_off", ticket.Action)

	res, err = cl.ConfirmPowerOff(ctx, ticket.Token)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	waitStatus(t, cl, device.StatusOffline)

	_, err = cl.ConfirmPowerOff(ctx, ticket.Token)
	assert.True(t, IsConfirmationInvalid(err), "tickets are single use")
}

func TestExplicitLock(t *testing.T) {
	cl, _ := newServer(t)
	on := true
	locked, err := cl.SetLock(context.Background(), &on)
	require.NoError(t, err)
	assert.True(t, locked)
}

func TestLogsOverMsgpack(t *testing.T) {
	cl, c := newServer(t)
	require.Eventually(t, func() bool { return c.Logs.Len() >= 3 }, time.Second, 5*time.Millisecond)

	entries, err := cl.Logs(context.Background(), 0)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(entries), 3)

	newer, err := cl.Logs(context.Background(), entries[0].Seq)
	require.NoError(t, err)
	assert.Len(t, newer, len(entries)-1)
	assert.Equal(t, entries[1].Message, newer[0].Message)
}

func TestChat(t *testing.T) {
	cl, _ := newServer(t)
	ctx := context.Background()

	reply, err := cl.Chat(ctx, "hello")
	require.NoError(t, err)
	assert.False(t, reply.Degraded)
	assert.NotEmpty(t, reply.ID)

	tr, err := cl.Transcript(ctx)
	require.NoError(t, err)
	assert.Len(t, tr.Messages, 3)

	_, err = cl.Chat(ctx, "   ")
	var apiErr *api.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "VALIDATION_ERROR", apiErr.Code)
	assert.Equal(t, 400, apiErr.Status)

	health, err := cl.ChatHealth(ctx)
	require.NoError(t, err)
	assert.True(t, health.Ok)
}
