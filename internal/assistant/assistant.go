// Package assistant runs the operator chat: it keeps the transcript, asks the
// advisor for replies and mirrors short replies into the event log.
package assistant

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"unicode/utf8"

	"github.com/edgecli/neurolink/internal/advisor"
	"github.com/edgecli/neurolink/internal/chatmem"
	"github.com/edgecli/neurolink/internal/device"
	"github.com/edgecli/neurolink/internal/eventlog"
)

// ErrEmptyMessage is returned for blank input.
var ErrEmptyMessage = errors.New("message is empty")

// MirrorLimit is the reply length, in runes, below which the reply itself
// is copied into the event log.
const MirrorLimit = 150

const (
	mirrorPrefix  = "建议: "
	mirrorSummary = "助手面板收到新的综合指南。"
)

// Conversant produces chat replies. *advisor.Advisor satisfies it.
type Conversant interface {
	Converse(ctx context.Context, userText string, prior []chatmem.Turn, snap device.State) advisor.Result
}

// Appender receives mirrored log lines.
type Appender interface {
	Append(message string, typ eventlog.Type) eventlog.Entry
}

// Reply is the outcome of one Send.
type Reply struct {
	Message  chatmem.Message     `json:"message"`
	Degraded bool                `json:"degraded"`
	Reason   advisor.FailureKind `json:"reason,omitempty"`
}

// Assistant serialises sends so only one request is in flight.
type Assistant struct {
	conv   Conversant
	memory *chatmem.ChatMemory
	logs   Appender
	state  func() device.State

	mu   sync.Mutex
	busy atomic.Bool
}

// New wires an assistant. state supplies the device snapshot sent with
// every request.
func New(conv Conversant, memory *chatmem.ChatMemory, logs Appender, state func() device.State) *Assistant {
	if memory == nil {
		memory = chatmem.New(chatmem.DefaultGreeting)
	}
	if state == nil {
		state = func() device.State { return device.NewState("", "") }
	}
	return &Assistant{conv: conv, memory: memory, logs: logs, state: state}
}

// Memory returns the transcript.
func (a *Assistant) Memory() *chatmem.ChatMemory { return a.memory }

// Busy reports whether a Send is in flight.
func (a *Assistant) Busy() bool { return a.busy.Load() }

// Send appends the user's text, asks for a reply and appends it. Only blank
// input is an error; advisory failures come back as a degraded reply.
func (a *Assistant) Send(ctx context.Context, text string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{}, ErrEmptyMessage
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.busy.Store(true)
	defer a.busy.Store(false)

	prior := a.memory.History()
	a.memory.AddMessage(chatmem.RoleUser, text)

	var res advisor.Result
	if a.conv == nil {
		res = advisor.Result{Text: advisor.ChatNoCredential, Degraded: true, Reason: advisor.FailureNoCredential}
	} else {
		res = a.conv.Converse(ctx, text, prior, a.state())
	}

	msg := a.memory.AddMessage(chatmem.RoleModel, res.Text)
	a.mirror(res.Text)

	return Reply{Message: msg, Degraded: res.Degraded, Reason: res.Reason}, nil
}

func (a *Assistant) mirror(reply string) {
	if a.logs == nil {
		return
	}
	if utf8.RuneCountInString(reply) < MirrorLimit {
		a.logs.Append(mirrorPrefix+reply, eventlog.TypeAI)
		return
	}
	a.logs.Append(mirrorPrefix+mirrorSummary, eventlog.TypeAI)
}
