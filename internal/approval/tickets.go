package approval

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"
)

// DefaultTicketTTL is how long an operator has to confirm a destructive action.
const DefaultTicketTTL = 30 * time.Second

// Ticket is a one-time authorisation to carry out Action.
type Ticket struct {
	Token     string    `json:"confirmation_id"`
	Action    string    `json:"action"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Tickets is a thread-safe ticket store.
type Tickets struct {
	mu      sync.Mutex
	tickets map[string]*Ticket
	ttl     time.Duration
	now     func() time.Time
}

// NewTickets creates a store with the given TTL. A non-positive TTL selects
// DefaultTicketTTL.
func NewTickets(ttl time.Duration) *Tickets {
	if ttl <= 0 {
		ttl = DefaultTicketTTL
	}
	return &Tickets{
		tickets: make(map[string]*Ticket),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Create mints a ticket for action.
func (m *Tickets) Create(action string) (*Ticket, error) {
	b := make([]byte, 18)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	ticket := &Ticket{
		Token:     base64.RawURLEncoding.EncodeToString(b),
		Action:    action,
		ExpiresAt: m.now().Add(m.ttl),
	}

	m.purgeExpiredLocked()
	m.tickets[ticket.Token] = ticket
	return ticket, nil
}

// Consume atomically removes the ticket and reports whether it was valid for
// action. Unknown, expired, and mismatched tokens all return false; a
// mismatched token is still burned.
func (m *Tickets) Consume(token, action string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.purgeExpiredLocked()

	ticket, ok := m.tickets[token]
	if !ok {
		return false
	}
	delete(m.tickets, token)

	if m.now().After(ticket.ExpiresAt) {
		return false
	}
	return ticket.Action == action
}

// Pending returns the number of live tickets.
func (m *Tickets) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.purgeExpiredLocked()
	return len(m.tickets)
}

// purgeExpiredLocked removes all expired tickets. Caller must hold m.mu.
func (m *Tickets) purgeExpiredLocked() {
	now := m.now()
	for token, ticket := range m.tickets {
		if now.After(ticket.ExpiresAt) {
			delete(m.tickets, token)
		}
	}
}
