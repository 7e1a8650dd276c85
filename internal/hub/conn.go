package hub

import (
	"sync"
	"sync/atomic"
)

// Conn is one live client connection. Events for it are buffered in a
// bounded channel; when the buffer is full further events are dropped for
// this connection only.
type Conn struct {
	id     string
	events chan Event

	// softMu serializes soft-lock changes with their relays so peers see
	// Selected and Deselected for this connection in the order they happened.
	softMu sync.Mutex

	mu         sync.Mutex
	closed     bool
	flights    map[int64]struct{}
	selections map[int64]map[string]struct{}

	dropped atomic.Int64
}

func newConn(id string, buffer int) *Conn {
	return &Conn{
		id:         id,
		events:     make(chan Event, buffer),
		flights:    map[int64]struct{}{},
		selections: map[int64]map[string]struct{}{},
	}
}

func (c *Conn) ID() string { return c.id }

// Events is closed when the connection is disconnected.
func (c *Conn) Events() <-chan Event { return c.events }

// Dropped reports how many events were discarded because the consumer
// fell behind.
func (c *Conn) Dropped() int64 { return c.dropped.Load() }

func (c *Conn) deliver(ev Event) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false
	}

	select {
	case c.events <- ev:
		return true
	default:
		c.dropped.Add(1)
		return false
	}
}

func (c *Conn) dropSelection(flightID int64, label string) {
	c.mu.Lock()
	delete(c.selections[flightID], label)
	c.mu.Unlock()
}

// Selections returns the seats this connection holds soft locks on.
func (c *Conn) Selections(flightID int64) []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.selections[flightID]))
	for label := range c.selections[flightID] {
		out = append(out, label)
	}

	return out
}
