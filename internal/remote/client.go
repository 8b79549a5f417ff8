// Package remote is a typed client for the NeuroLink HTTP API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/edgecli/neurolink/internal/api"
	"github.com/edgecli/neurolink/internal/approval"
	"github.com/edgecli/neurolink/internal/chatmem"
	"github.com/edgecli/neurolink/internal/eventlog"
	"github.com/edgecli/neurolink/internal/llm"
)

// DefaultTimeout bounds every request except Chat.
const DefaultTimeout = 10 * time.Second

// ChatTimeout bounds Chat; the server waits on the completion service.
const ChatTimeout = 3 * time.Minute

// Client talks to a running neurolink web server.
type Client struct {
	base string
	http *http.Client
}

// New creates a client for baseURL. A bare host:port gets an http:// scheme.
func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{}
	}
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{base: base, http: hc}
}

// BaseURL returns the normalised server URL.
func (c *Client) BaseURL() string { return c.base }

// Health is the body of GET /api/health.
type Health struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Provider string `json:"provider"`
}

// Transcript is the body of GET /api/chat.
type Transcript struct {
	Messages      []chatmem.Message `json:"messages"`
	LastUpdatedMs int64             `json:"last_updated_ms"`
	Busy          bool              `json:"busy"`
}

// Health pings the server.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	var out Health
	if err := c.do(ctx, http.MethodGet, "/api/health", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Device returns the current snapshot.
func (c *Client) Device(ctx context.Context) (*api.DeviceResponse, error) {
	var out api.DeviceResponse
	if err := c.do(ctx, http.MethodGet, "/api/device", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// PowerOn fires the wake intent.
func (c *Client) PowerOn(ctx context.Context) (*api.AcceptedResponse, error) {
	var out api.AcceptedResponse
	if err := c.do(ctx, http.MethodPost, "/api/device/power-on", nil, http.StatusAccepted, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RequestPowerOff obtains a confirmation ticket for the shutdown intent.
func (c *Client) RequestPowerOff(ctx context.Context) (*approval.Ticket, error) {
	var out approval.Ticket
	if err := c.do(ctx, http.MethodPost, "/api/device/power-off", nil, http.StatusAccepted, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ConfirmPowerOff redeems a ticket.
func (c *Client) ConfirmPowerOff(ctx context.Context, token string) (*api.AcceptedResponse, error) {
	var out api.AcceptedResponse
	body := api.ConfirmRequest{ConfirmationID: token}
	if err := c.do(ctx, http.MethodPost, "/api/device/power-off/confirm", body, http.StatusAccepted, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SetLock sets the safety lock, or toggles it when locked is nil, and
// returns the resulting value.
func (c *Client) SetLock(ctx context.Context, locked *bool) (bool, error) {
	var out struct {
		Locked bool `json:"locked"`
	}
	var body any
	if locked != nil {
		body = api.LockRequest{Locked: locked}
	}
	if err := c.do(ctx, http.MethodPost, "/api/device/lock", body, http.StatusOK, &out); err != nil {
		return false, err
	}
	return out.Locked, nil
}

// Logs fetches entries newer than since (0 for all) in msgpack form.
func (c *Client) Logs(ctx context.Context, since uint64) ([]eventlog.Entry, error) {
	path := "/api/logs?format=msgpack"
	if since > 0 {
		path += "&since=" + strconv.FormatUint(since, 10)
	}

	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, decodeError(resp.StatusCode, data)
	}

	var entries []eventlog.Entry
	if err := msgpack.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode msgpack logs: %w", err)
	}
	return entries, nil
}

// Chat sends one operator message.
func (c *Client) Chat(ctx context.Context, text string) (*api.ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, ChatTimeout)
	defer cancel()

	var out api.ChatResponse
	if err := c.do(ctx, http.MethodPost, "/api/chat", api.ChatRequest{Text: text}, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Transcript returns the chat history.
func (c *Client) Transcript(ctx context.Context) (*Transcript, error) {
	var out Transcript
	if err := c.do(ctx, http.MethodGet, "/api/chat", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ChatHealth reports the completion service status as seen by the server.
func (c *Client) ChatHealth(ctx context.Context) (*llm.HealthResult, error) {
	var out llm.HealthResult
	if err := c.do(ctx, http.MethodGet, "/api/chat/health", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, want int, out any) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultTimeout)
		defer cancel()
	}

	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response body: %w", err)
	}
	if resp.StatusCode != want {
		return decodeError(resp.StatusCode, data)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}

func (c *Client) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request to %s: %w", c.base+path, err)
	}
	return resp, nil
}

// decodeError turns an error body into *api.APIError when it has that shape.
func decodeError(status int, data []byte) error {
	var apiErr api.APIError
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Code != "" {
		apiErr.Status = status
		return &apiErr
	}
	return &api.APIError{
		Status:  status,
		Code:    "HTTP_ERROR",
		Message: strings.TrimSpace(string(data)),
	}
}

// IsConfirmationInvalid reports whether err is a rejected power-off ticket.
func IsConfirmationInvalid(err error) bool {
	var apiErr *api.APIError
	return errors.As(err, &apiErr) && apiErr.Code == "CONFIRMATION_INVALID"
}
