// handlers.go - Device, log and chat handlers
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/edgecli/neurolink/internal/assistant"
	"github.com/edgecli/neurolink/internal/lifecycle"
	"github.com/edgecli/neurolink/internal/llm"
	"github.com/edgecli/neurolink/internal/redact"
)

// MIMEApplicationMsgpack is the content type of msgpack bodies
const MIMEApplicationMsgpack = "application/msgpack"

const (
	chatTimeout   = 60 * time.Second
	healthTimeout = 10 * time.Second
)

// Deps wires the handler to the core
type Deps struct {
	Device    DeviceController
	Logs      LogSource
	Chat      ChatService
	Telemetry TelemetrySource
	Provider  llm.ChatProvider // nil when no provider is configured
	Version   string
}

// Handler serves the HTTP API
type Handler struct {
	device    DeviceController
	logs      LogSource
	chat      ChatService
	telemetry TelemetrySource
	provider  llm.ChatProvider
	version   string
}

// NewHandler creates a handler
func NewHandler(d Deps) *Handler {
	return &Handler{
		device:    d.Device,
		logs:      d.Logs,
		chat:      d.Chat,
		telemetry: d.Telemetry,
		provider:  d.Provider,
		version:   d.Version,
	}
}

// DeviceResponse is the body of GET /api/device
type DeviceResponse struct {
	lifecycle.Snapshot
	StatusLabel string `json:"status_label"`
}

// AcceptedResponse reports whether an intent changed anything
type AcceptedResponse struct {
	Accepted bool               `json:"accepted"`
	Device   lifecycle.Snapshot `json:"device"`
}

// ConfirmRequest is the body of POST /api/device/power-off/confirm
type ConfirmRequest struct {
	ConfirmationID string `json:"confirmation_id"`
}

// LockRequest is the body of POST /api/device/lock
type LockRequest struct {
	Locked *bool `json:"locked"`
}

// ChatRequest is the body of POST /api/chat
type ChatRequest struct {
	Text string `json:"text"`
}

// ChatResponse is returned from POST /api/chat
type ChatResponse struct {
	Reply    string `json:"reply"`
	Degraded bool   `json:"degraded"`
	Reason   string `json:"reason,omitempty"`
	ID       string `json:"id"`
}

// HandleHealth returns server health status
func (h *Handler) HandleHealth(c echo.Context) error {
	provider := "none"
	if h.provider != nil {
		provider = h.provider.Name()
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ok",
		"version":  h.version,
		"provider": provider,
	})
}

// HandleGetDevice returns the current device snapshot
func (h *Handler) HandleGetDevice(c echo.Context) error {
	snap := h.device.Snapshot()
	return c.JSON(http.StatusOK, DeviceResponse{Snapshot: snap, StatusLabel: snap.Device.Status.Label()})
}

// HandlePowerOn fires the wake intent
func (h *Handler) HandlePowerOn(c echo.Context) error {
	accepted := h.device.PowerOn()
	return c.JSON(http.StatusAccepted, AcceptedResponse{Accepted: accepted, Device: h.device.Snapshot()})
}

// HandleRequestPowerOff mints a confirmation ticket for the shutdown intent
func (h *Handler) HandleRequestPowerOff(c echo.Context) error {
	ticket, err := h.device.RequestPowerOff()
	if err != nil {
		return NewInternalError("failed to create confirmation", err)
	}
	return c.JSON(http.StatusAccepted, ticket)
}

// HandleConfirmPowerOff consumes a ticket and fires the shutdown intent
func (h *Handler) HandleConfirmPowerOff(c echo.Context) error {
	var req ConfirmRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}
	if strings.TrimSpace(req.ConfirmationID) == "" {
		return NewValidationError("confirmation_id")
	}

	accepted, err := h.device.ConfirmPowerOff(req.ConfirmationID)
	if errors.Is(err, lifecycle.ErrConfirmationInvalid) {
		return NewConfirmationInvalidError(err)
	}
	if err != nil {
		return NewInternalError("confirmation failed", err)
	}
	return c.JSON(http.StatusAccepted, AcceptedResponse{Accepted: accepted, Device: h.device.Snapshot()})
}

// HandleLock sets the safety lock, or toggles it when no value is given
func (h *Handler) HandleLock(c echo.Context) error {
	var req LockRequest
	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return NewBadRequestError("failed to read body", err)
	}
	if len(strings.TrimSpace(string(body))) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			return NewBadRequestError("invalid request body", err)
		}
	}

	var locked bool
	if req.Locked == nil {
		locked = h.device.ToggleLock()
	} else {
		locked = h.device.SetLocked(*req.Locked)
	}
	return c.JSON(http.StatusOK, map[string]bool{"locked": locked})
}

// HandleTelemetry returns telemetry samples newer than ?since (unix ms)
func (h *Handler) HandleTelemetry(c echo.Context) error {
	if h.telemetry == nil {
		return NewServiceUnavailableError("telemetry history is disabled")
	}

	var since int64
	if raw := c.QueryParam("since"); raw != "" {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return NewValidationError("since")
		}
		since = v
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"samples": h.telemetry.History(since),
		"summary": h.telemetry.Summary(),
	})
}

// HandleGetLogs returns the event log as JSON, or msgpack when asked for
func (h *Handler) HandleGetLogs(c echo.Context) error {
	entries := h.logs.Entries()
	if raw := c.QueryParam("since"); raw != "" {
		seq, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return NewValidationError("since")
		}
		entries = h.logs.Since(seq)
	}

	if wantsMsgpack(c) {
		data, err := msgpack.Marshal(entries)
		if err != nil {
			return NewInternalError("failed to encode msgpack", err)
		}
		return c.Blob(http.StatusOK, MIMEApplicationMsgpack, data)
	}
	return c.JSON(http.StatusOK, entries)
}

// HandleGetChat returns the transcript
func (h *Handler) HandleGetChat(c echo.Context) error {
	mem := h.chat.Memory()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"messages":        mem.Messages(),
		"last_updated_ms": mem.LastUpdatedMs(),
		"busy":            h.chat.Busy(),
	})
}

// HandleChat sends one operator message to the assistant
func (h *Handler) HandleChat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return NewBadRequestError("invalid request body", err)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), chatTimeout)
	defer cancel()

	reply, err := h.chat.Send(ctx, req.Text)
	if errors.Is(err, assistant.ErrEmptyMessage) {
		return NewValidationError("text")
	}
	if err != nil {
		log.Printf("[ERROR] HandleChat: %v", err)
		return NewInternalError("chat failed", err)
	}

	return c.JSON(http.StatusOK, ChatResponse{
		Reply:    reply.Message.Text,
		Degraded: reply.Degraded,
		Reason:   string(reply.Reason),
		ID:       reply.Message.ID,
	})
}

// HandleChatHealth checks the chat provider status
func (h *Handler) HandleChatHealth(c echo.Context) error {
	if h.provider == nil {
		return c.JSON(http.StatusOK, &llm.HealthResult{
			Ok:       false,
			Provider: "none",
			Error:    "Chat provider is not configured",
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	result, err := h.provider.Health(ctx)
	if err != nil {
		msg := redact.RedactSecrets(err.Error())
		log.Printf("[ERROR] HandleChatHealth: %s", msg)
		return c.JSON(http.StatusOK, &llm.HealthResult{
			Ok:       false,
			Provider: h.provider.Name(),
			Error:    msg,
		})
	}
	return c.JSON(http.StatusOK, result)
}

func wantsMsgpack(c echo.Context) bool {
	if strings.EqualFold(c.QueryParam("format"), "msgpack") {
		return true
	}
	return strings.Contains(c.Request().Header.Get(echo.HeaderAccept), MIMEApplicationMsgpack)
}
