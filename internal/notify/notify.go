// Package notify fans values out to in-process subscribers over bounded
// channels. A slow subscriber loses its oldest queued value rather than
// blocking the publisher.
package notify

import "sync"

const defaultQueueLen = 16

// Subscription receives published values until it is cancelled.
type Subscription[T any] struct {
	ch chan T
	b  *Broadcaster[T]
}

// C returns the receive channel. It is closed on Cancel or Close.
func (s *Subscription[T]) C() <-chan T { return s.ch }

// Cancel detaches the subscription. Safe to call more than once.
func (s *Subscription[T]) Cancel() { s.b.remove(s) }

// Broadcaster delivers each published value to every live subscription.
type Broadcaster[T any] struct {
	mu        sync.Mutex
	subs      map[*Subscription[T]]struct{}
	qLen      int
	retain    bool
	last      T
	published bool
	closed    bool
}

// New creates a broadcaster with the given per-subscriber queue length.
// When retain is set, the last published value is replayed to new
// subscribers.
func New[T any](queueLen int, retain bool) *Broadcaster[T] {
	if queueLen <= 0 {
		queueLen = defaultQueueLen
	}
	return &Broadcaster[T]{
		subs:   make(map[*Subscription[T]]struct{}),
		qLen:   queueLen,
		retain: retain,
	}
}

// Subscribe registers a new subscription.
func (b *Broadcaster[T]) Subscribe() *Subscription[T] {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &Subscription[T]{ch: make(chan T, b.qLen), b: b}
	if b.closed {
		close(sub.ch)
		return sub
	}
	b.subs[sub] = struct{}{}
	if b.retain && b.published {
		sub.ch <- b.last
	}
	return sub
}

// Publish delivers v to all subscribers without blocking.
func (b *Broadcaster[T]) Publish(v T) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	if b.retain {
		b.last = v
		b.published = true
	}
	for sub := range b.subs {
		deliver(sub.ch, v)
	}
}

// Len returns the number of live subscriptions.
func (b *Broadcaster[T]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Close closes every subscription channel. Later publishes are dropped.
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for sub := range b.subs {
		close(sub.ch)
		delete(b.subs, sub)
	}
}

func (b *Broadcaster[T]) remove(sub *Subscription[T]) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	close(sub.ch)
}

// deliver enqueues v, dropping the oldest queued value if the queue is full.
func deliver[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
