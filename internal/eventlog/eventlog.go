// Package eventlog is the bounded, append-only operator log shown on the panel.
package eventlog

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgecli/neurolink/internal/notify"
)

// DefaultCapacity is how many earlier entries survive behind the newest
// one. A full log therefore holds DefaultCapacity+1 entries.
const DefaultCapacity = 100

// TimestampLayout is the 24h clock layout stamped on each entry.
const TimestampLayout = "15:04:05"

// Type classifies an entry for display.
type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
	TypeError   Type = "error"
	TypeAI      Type = "ai"
)

// Valid reports whether t is a known entry type.
func (t Type) Valid() bool {
	switch t {
	case TypeInfo, TypeSuccess, TypeWarning, TypeError, TypeAI:
		return true
	}
	return false
}

// Entry is one line of the log.
type Entry struct {
	ID        string    `json:"id" msgpack:"id"`
	Seq       uint64    `json:"seq" msgpack:"seq"`
	Timestamp string    `json:"timestamp" msgpack:"timestamp"`
	Message   string    `json:"message" msgpack:"message"`
	Type      Type      `json:"type" msgpack:"type"`
	CreatedAt time.Time `json:"created_at" msgpack:"created_at"`
}

// Log is safe for concurrent producers; appends are serialised.
type Log struct {
	mu       sync.RWMutex
	entries  *list.List
	capacity int
	seq      uint64
	now      func() time.Time
	feed     *notify.Broadcaster[Entry]
}

// Option customises a Log.
type Option func(*Log)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) { l.now = now }
}

// New creates a log. A non-positive capacity selects DefaultCapacity.
func New(capacity int, opts ...Option) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	l := &Log{
		entries:  list.New(),
		capacity: capacity,
		now:      time.Now,
		feed:     notify.New[Entry](64, false),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Append stamps and stores a new entry, evicting the oldest one when the
// window is full. Unknown types are recorded as info.
func (l *Log) Append(message string, typ Type) Entry {
	if !typ.Valid() {
		typ = TypeInfo
	}

	l.mu.Lock()
	l.seq++
	now := l.now()
	e := Entry{
		ID:        fmt.Sprintf("%d-%s", l.seq, uuid.NewString()[:8]),
		Seq:       l.seq,
		Timestamp: now.Format(TimestampLayout),
		Message:   message,
		Type:      typ,
		CreatedAt: now,
	}
	l.entries.PushBack(e)
	for l.entries.Len() > l.capacity+1 {
		l.entries.Remove(l.entries.Front())
	}
	l.mu.Unlock()

	l.feed.Publish(e)
	return e
}

// Infof appends a formatted info entry.
func (l *Log) Infof(format string, args ...any) Entry {
	return l.Append(fmt.Sprintf(format, args...), TypeInfo)
}

// Entries returns a copy of the log, oldest first.
func (l *Log) Entries() []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Entry, 0, l.entries.Len())
	for e := l.entries.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(Entry))
	}
	return out
}

// Since returns entries with a sequence number greater than seq.
func (l *Log) Since(seq uint64) []Entry {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []Entry
	for e := l.entries.Back(); e != nil; e = e.Prev() {
		entry := e.Value.(Entry)
		if entry.Seq <= seq {
			break
		}
		out = append(out, entry)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Len returns the number of retained entries.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.entries.Len()
}

// Subscribe streams entries appended after the call.
func (l *Log) Subscribe() *notify.Subscription[Entry] {
	return l.feed.Subscribe()
}

// Close ends all subscriptions.
func (l *Log) Close() {
	l.feed.Close()
}
