package core

import (
	"sync"

	"github.com/google/uuid"
)

const defaultSendBuffer = 64

// Conn is one live socket as seen by the core layer. The transport drains
// Events and writes them to the wire; the core only ever enqueues.
type Conn struct {
	ID string

	events    chan *Event
	done      chan struct{}
	closeOnce sync.Once

	mu         sync.RWMutex
	userID     int64
	subscribed bool

	// rooms is guarded by the owning Registry's mutex.
	rooms map[int64]struct{}
}

// NewConn constructs an anonymous connection with a bounded outbound queue.
func NewConn(buffer int) *Conn {
	if buffer <= 0 {
		buffer = defaultSendBuffer
	}
	return &Conn{
		ID:     uuid.NewString(),
		events: make(chan *Event, buffer),
		done:   make(chan struct{}),
		rooms:  make(map[int64]struct{}),
	}
}

// Events returns the outbound queue. Events arrive in enqueue order.
func (c *Conn) Events() <-chan *Event {
	return c.events
}

// Done is closed when the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Send enqueues ev without blocking. It fails when the connection is closed
// or its queue is full.
func (c *Conn) Send(ev *Event) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.events <- ev:
		return nil
	case <-c.done:
		return ErrConnClosed
	default:
		return ErrSlowConsumer
	}
}

// Close marks the connection closed. Safe to call more than once.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}

// UserID returns the authenticated user, or false while anonymous.
func (c *Conn) UserID() (int64, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID, c.userID != 0
}

// bindUser sets the user once. Rebinding to a different user fails.
func (c *Conn) bindUser(userID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.userID != 0 && c.userID != userID {
		return false
	}
	c.userID = userID
	return true
}

func (c *Conn) setSubscribed() {
	c.mu.Lock()
	c.subscribed = true
	c.mu.Unlock()
}

// Subscribed reports whether the connection asked for presence updates.
func (c *Conn) Subscribed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscribed
}
