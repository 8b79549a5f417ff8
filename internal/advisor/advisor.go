// Package advisor wraps the completion service for one-shot action
// explanations and multi-turn chat. Neither operation returns an error:
// every failure degrades to a fixed fallback text.
package advisor

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"
	"time"

	"github.com/edgecli/neurolink/internal/chatmem"
	"github.com/edgecli/neurolink/internal/device"
	"github.com/edgecli/neurolink/internal/llm"
	"github.com/edgecli/neurolink/internal/redact"
)

// Action is the lifecycle action being explained.
type Action string

const (
	ActionWake     Action = "wake"
	ActionShutdown Action = "shutdown"
	ActionStatus   Action = "status"
)

// FailureKind classifies why a result degraded.
type FailureKind string

const (
	FailureNone         FailureKind = ""
	FailureNoCredential FailureKind = "no_credential"
	FailureTransport    FailureKind = "transport"
	FailureMalformed    FailureKind = "malformed"
)

// Fallback texts.
const (
	ExplainNoCredential = "模拟模式：API Key 未配置，无法获取实时技术分析。"
	ExplainOffline      = "协议分析模块离线。"
	ExplainEmpty        = "指令已执行。"

	ChatNoCredential = "错误：无法连接到 AI 神经网络核心（缺少 API 密钥）。"
	ChatDisconnected = "错误：神经链接信号丢失 (Network Error)。请稍后重试。"
)

// DefaultTimeout bounds a single completion call.
const DefaultTimeout = 20 * time.Second

// Result is the outcome of an advisory call.
type Result struct {
	Text     string      `json:"text"`
	Degraded bool        `json:"degraded"`
	Reason   FailureKind `json:"reason,omitempty"`
}

// Advisor is safe for concurrent use.
type Advisor struct {
	provider   llm.ChatProvider
	prompts    *PromptStore
	credential bool
	timeout    time.Duration
}

// Option customises an Advisor.
type Option func(*Advisor)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(a *Advisor) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithPrompts sets the prompt store.
func WithPrompts(s *PromptStore) Option {
	return func(a *Advisor) {
		if s != nil {
			a.prompts = s
		}
	}
}

// New creates an Advisor. A nil provider, or one without a credential, makes
// every call return the no-credential fallback.
func New(provider llm.ChatProvider, opts ...Option) *Advisor {
	a := &Advisor{
		provider: provider,
		prompts:  NewPromptStore(nil),
		timeout:  DefaultTimeout,
	}
	a.credential = provider != nil && provider.HasCredential()
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Available reports whether calls can reach the completion service.
func (a *Advisor) Available() bool { return a.credential }

// Provider returns the underlying provider, which may be nil.
func (a *Advisor) Provider() llm.ChatProvider { return a.provider }

// ExplainAction asks for a short protocol-level narration of action.
func (a *Advisor) ExplainAction(ctx context.Context, action Action, snap device.State) Result {
	if !a.credential {
		return Result{Text: ExplainNoCredential, Degraded: true, Reason: FailureNoCredential}
	}

	prompt, err := a.prompts.Current().Explain(action, snap)
	if err != nil {
		log.Printf("[ERROR] advisor: %v", err)
		return Result{Text: ExplainOffline, Degraded: true, Reason: FailureMalformed}
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reply, err := a.provider.Chat(ctx, []llm.ChatMessage{{Role: llm.RoleUser, Content: prompt}})
	if err != nil {
		kind := classify(err)
		if kind == FailureNoCredential {
			return Result{Text: ExplainNoCredential, Degraded: true, Reason: kind}
		}
		log.Printf("[WARN] advisor: explain %s failed: %s", action, redact.RedactSecrets(err.Error()))
		return Result{Text: ExplainOffline, Degraded: true, Reason: kind}
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		return Result{Text: ExplainEmpty}
	}
	return Result{Text: reply}
}

// Converse sends userText after replaying prior. It keeps no state between
// calls.
func (a *Advisor) Converse(ctx context.Context, userText string, prior []chatmem.Turn, snap device.State) Result {
	if !a.credential {
		return Result{Text: ChatNoCredential, Degraded: true, Reason: FailureNoCredential}
	}

	persona, err := a.prompts.Current().Persona(snap)
	if err != nil {
		log.Printf("[ERROR] advisor: %v", err)
		return Result{Text: ChatDisconnected, Degraded: true, Reason: FailureMalformed}
	}

	msgs := make([]llm.ChatMessage, 0, len(prior)+2)
	msgs = append(msgs, llm.ChatMessage{Role: llm.RoleSystem, Content: persona})
	for _, t := range prior {
		role := llm.RoleUser
		if t.Role == chatmem.RoleModel {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.ChatMessage{Role: role, Content: t.Text})
	}
	msgs = append(msgs, llm.ChatMessage{Role: llm.RoleUser, Content: userText})

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	reply, err := a.provider.Chat(ctx, msgs)
	if err != nil {
		kind := classify(err)
		if kind == FailureNoCredential {
			return Result{Text: ChatNoCredential, Degraded: true, Reason: kind}
		}
		log.Printf("[WARN] advisor: chat failed: %s", redact.RedactSecrets(err.Error()))
		return Result{Text: ChatDisconnected, Degraded: true, Reason: kind}
	}

	reply = strings.TrimSpace(reply)
	if reply == "" {
		log.Printf("[WARN] advisor: chat returned empty reply")
		return Result{Text: ChatDisconnected, Degraded: true, Reason: FailureMalformed}
	}
	return Result{Text: reply}
}

func classify(err error) FailureKind {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.Is(err, llm.ErrNoCredential):
		return FailureNoCredential
	case errors.Is(err, llm.ErrEmptyResponse), errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		return FailureMalformed
	default:
		return FailureTransport
	}
}
