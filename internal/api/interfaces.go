// interfaces.go - What the handlers need from the core
package api

import (
	"context"

	"github.com/edgecli/neurolink/internal/approval"
	"github.com/edgecli/neurolink/internal/assistant"
	"github.com/edgecli/neurolink/internal/chatmem"
	"github.com/edgecli/neurolink/internal/eventlog"
	"github.com/edgecli/neurolink/internal/lifecycle"
	"github.com/edgecli/neurolink/internal/metrics"
	"github.com/edgecli/neurolink/internal/notify"
)

// DeviceController is satisfied by *lifecycle.Controller
type DeviceController interface {
	Snapshot() lifecycle.Snapshot
	Subscribe() *notify.Subscription[lifecycle.Snapshot]
	PowerOn() bool
	RequestPowerOff() (*approval.Ticket, error)
	ConfirmPowerOff(token string) (bool, error)
	SetLocked(locked bool) bool
	ToggleLock() bool
}

// LogSource is satisfied by *eventlog.Log
type LogSource interface {
	Entries() []eventlog.Entry
	Since(seq uint64) []eventlog.Entry
	Subscribe() *notify.Subscription[eventlog.Entry]
}

// ChatService is satisfied by *assistant.Assistant
type ChatService interface {
	Send(ctx context.Context, text string) (assistant.Reply, error)
	Memory() *chatmem.ChatMemory
	Busy() bool
}

// TelemetrySource is satisfied by *metrics.Store
type TelemetrySource interface {
	History(sinceMs int64) []metrics.Sample
	Summary() *metrics.Summary
}
