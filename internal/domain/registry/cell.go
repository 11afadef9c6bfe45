/*
Package registry is the presence registry: the live, in-memory mapping
between logical users and their real-time connections, plus the room
membership tables used for conversation-scoped fan-out.

Key architectural concepts:
  - Virtual Cells: every online user is represented by an isolated 'Cell'
    (actor) that encapsulates all concurrent sessions for that identity.
    A user's cell doubles as their personal room.
  - Decoupling & Backpressure: per-user mailboxes ensure that slow
    consumers do not block global fan-out throughput.
  - Concurrency Management: lock-free user lookups via sync.Map, a
    fine-grained RWMutex inside each cell, and a separate table for
    conversation rooms. No lock is ever held across I/O.

The registry holds no durable state and is rebuilt from zero on restart;
it is not a persisted "online status" concept.
*/
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pairly/messaging-service/internal/domain/event"
)

// Celler defines the internal API for user-specific delivery units.
type Celler interface {
	Push(ev event.Eventer) bool
	Attach(conn Connector) (first, ok bool)
	Detach(connID uuid.UUID) (removed, last bool)
	SendTo(connID uuid.UUID, ev event.Eventer) bool
	Connections() []uuid.UUID
	Size() int
	IsIdle(timeout time.Duration) bool
	StopIfEmpty() bool
	Stop()
}

// Cell implements [ISOLATED_DELIVERY] logic for a single user.
type Cell struct {
	// [IDENTITY]
	userID uuid.UUID

	// [MAILBOX]
	// Buffered channel that decouples dispatchers from individual delivery.
	// Acts as a shock absorber so slow consumer latency does not propagate
	// back to the Hub or the bus consumers.
	mailbox chan event.Eventer

	// [SESSIONS]
	// All active transports for the user; one event is multiplexed to every
	// device (mobile, web, desktop).
	sessions map[uuid.UUID]Connector

	// [CONCURRENCY_CONTROL]
	// Read-heavy delivery outnumbers registration, hence RWMutex.
	mu sync.RWMutex

	// [LIFECYCLE_CONTROL]
	// stopped is guarded by mu; once set, Attach refuses new sessions so
	// a connection can never land in an actor whose loop has exited.
	stopped  bool
	doneCh   chan struct{}
	stopOnce sync.Once

	// lastActivityAt records the last time an event was processed for this cell.
	lastActivityAt time.Time

	sendTimeout time.Duration
}

func NewCell(userID uuid.UUID, bufferSize int, sendTimeout time.Duration) *Cell {
	c := &Cell{
		userID:         userID,
		mailbox:        make(chan event.Eventer, bufferSize),
		sessions:       make(map[uuid.UUID]Connector),
		doneCh:         make(chan struct{}),
		lastActivityAt: time.Now(),
		sendTimeout:    sendTimeout,
	}
	go c.loop()
	return c
}

// IsIdle returns true if the user has no active sessions and hasn't received events lately.
func (c *Cell) IsIdle(timeout time.Duration) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions) == 0 && time.Since(c.lastActivityAt) > timeout
}

func (c *Cell) touch() {
	c.mu.Lock()
	c.lastActivityAt = time.Now()
	c.mu.Unlock()
}

func (c *Cell) Push(ev event.Eventer) bool {
	c.touch()
	select {
	case c.mailbox <- ev:
		return true
	default:
		return false
	}
}

// Attach binds a transport to the cell. first reports the 0 -> 1 occupancy
// transition (the user came online). ok is false when the cell has already
// stopped; the caller must retry against a fresh cell.
func (c *Cell) Attach(conn Connector) (first, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return false, false
	}
	c.lastActivityAt = time.Now()
	first = len(c.sessions) == 0
	c.sessions[conn.GetID()] = conn
	return first, true
}

// Detach removes the session. removed is false for unknown sessions; last
// reports the 1 -> 0 occupancy transition (the user went offline).
func (c *Cell) Detach(connID uuid.UUID) (removed, last bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.sessions[connID]; !ok {
		return false, false
	}
	delete(c.sessions, connID)
	c.lastActivityAt = time.Now()
	return true, len(c.sessions) == 0
}

// SendTo delivers to a single session while holding the membership lock.
// Detach takes the write lock, so it cannot complete while a delivery is
// mid-flight — and teardown closes the connector only after Detach returns.
// A session detached before the lookup is simply a miss.
func (c *Cell) SendTo(connID uuid.UUID, ev event.Eventer) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	conn, ok := c.sessions[connID]
	if !ok {
		return false
	}
	return conn.Send(ev, c.sendTimeout)
}

func (c *Cell) Connections() []uuid.UUID {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]uuid.UUID, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	return ids
}

func (c *Cell) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.sessions)
}

func (c *Cell) loop() {
	for {
		select {
		case <-c.doneCh:
			return
		case ev := <-c.mailbox:
			c.deliver(ev)
		}
	}
}

func (c *Cell) deliver(ev event.Eventer) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if len(c.sessions) == 0 {
		return
	}

	for _, conn := range c.sessions {
		conn.Send(ev, c.sendTimeout)
	}
}

// StopIfEmpty stops the actor only when no session re-attached since the
// caller observed the cell empty: an occupied cell stays running, keeping
// its user online through a close/open race.
func (c *Cell) StopIfEmpty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sessions) > 0 {
		return false
	}
	c.stopped = true
	c.stopOnce.Do(func() {
		close(c.doneCh)
	})
	return true
}

// Stop terminates the actor unconditionally (registry shutdown).
func (c *Cell) Stop() {
	c.mu.Lock()
	c.stopped = true
	c.mu.Unlock()
	c.stopOnce.Do(func() {
		close(c.doneCh)
	})
}
