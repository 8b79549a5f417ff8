// Package chatmem holds the in-memory chat transcript between the operator
// and the assistant. Nothing is persisted; the transcript resets with the
// process.
package chatmem

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgecli/neurolink/internal/notify"
)

// Role identifies who wrote a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// GreetingID is the fixed ID of the seeded assistant greeting.
const GreetingID = "init"

// DefaultGreeting opens every transcript.
const DefaultGreeting = "我是 Neuromancer。我可以指导你如何配置网络唤醒（Wake-on-LAN）、BIOS 设置，或调试网络问题。有什么可以帮你？"

// Message is a single transcript entry.
type Message struct {
	ID          string    `json:"id"`
	Role        Role      `json:"role"`
	Text        string    `json:"text"`
	Timestamp   time.Time `json:"timestamp"`
	TimestampMs int64     `json:"timestamp_ms"`
}

// Turn is the role/text pair replayed to the completion service.
type Turn struct {
	Role Role
	Text string
}

// ChatMemory is an append-only, oldest-first transcript.
type ChatMemory struct {
	mu            sync.RWMutex
	messages      []Message
	lastUpdatedMs int64
	feed          *notify.Broadcaster[Message]
}

// New creates a transcript seeded with the greeting. An empty greeting
// leaves the transcript empty.
func New(greeting string) *ChatMemory {
	m := &ChatMemory{
		messages: make([]Message, 0, 16),
		feed:     notify.New[Message](32, false),
	}
	if greeting != "" {
		now := time.Now()
		m.messages = append(m.messages, Message{
			ID:          GreetingID,
			Role:        RoleModel,
			Text:        greeting,
			Timestamp:   now,
			TimestampMs: now.UnixMilli(),
		})
		m.lastUpdatedMs = now.UnixMilli()
	}
	return m
}

// AddMessage appends a message and returns it.
func (m *ChatMemory) AddMessage(role Role, text string) Message {
	now := time.Now()
	msg := Message{
		ID:          uuid.NewString(),
		Role:        role,
		Text:        text,
		Timestamp:   now,
		TimestampMs: now.UnixMilli(),
	}

	m.mu.Lock()
	m.messages = append(m.messages, msg)
	m.lastUpdatedMs = msg.TimestampMs
	m.mu.Unlock()

	m.feed.Publish(msg)
	return msg
}

// Messages returns a copy of the transcript.
func (m *ChatMemory) Messages() []Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// History returns the transcript as turns for replay.
func (m *ChatMemory) History() []Turn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	turns := make([]Turn, len(m.messages))
	for i, msg := range m.messages {
		turns[i] = Turn{Role: msg.Role, Text: msg.Text}
	}
	return turns
}

// Len returns the number of messages.
func (m *ChatMemory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.messages)
}

// LastUpdatedMs returns the unix millis of the latest append.
func (m *ChatMemory) LastUpdatedMs() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastUpdatedMs
}

// Subscribe streams messages appended after the call.
func (m *ChatMemory) Subscribe() *notify.Subscription[Message] {
	return m.feed.Subscribe()
}

// Close ends all subscriptions.
func (m *ChatMemory) Close() {
	m.feed.Close()
}
