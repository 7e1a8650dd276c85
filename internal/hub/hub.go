// Package hub fans seat and flight events out to the live connections
// watching a flight. It holds no seat state of its own.
package hub

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/kirinyoku/checkin-go/internal/domain"
)

const DefaultBuffer = 64

var (
	ErrNotMember = &domain.Rejection{
		Kind:    domain.KindProtocolViolation,
		Reason:  "not_member",
		Message: "Join the flight before selecting seats.",
	}
	ErrConnClosed = &domain.Rejection{
		Kind:    domain.KindProtocolViolation,
		Reason:  "connection_closed",
		Message: "Connection is closed.",
	}
	ErrUnknownConn = &domain.Rejection{
		Kind:    domain.KindProtocolViolation,
		Reason:  "unknown_connection",
		Message: "Unknown connection.",
	}
)

type group struct {
	mu      sync.RWMutex
	members map[string]*Conn
}

// Hub tracks flight groups and delivers events to their members.
// Lock order is Conn.softMu, then group.mu, then Conn.mu; Conn.mu is never
// held while acquiring a group lock.
type Hub struct {
	logger *slog.Logger
	buffer int

	mu     sync.RWMutex
	conns  map[string]*Conn
	groups map[int64]*group
}

func New(logger *slog.Logger, buffer int) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if buffer <= 0 {
		buffer = DefaultBuffer
	}

	return &Hub{
		logger: logger,
		buffer: buffer,
		conns:  map[string]*Conn{},
		groups: map[int64]*group{},
	}
}

// Connect registers a new connection with a fresh ID.
func (h *Hub) Connect() *Conn {
	c := newConn(uuid.NewString(), h.buffer)

	h.mu.Lock()
	h.conns[c.id] = c
	h.mu.Unlock()

	return c
}

func (h *Hub) Lookup(id string) (*Conn, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.conns[id]
	if !ok {
		return nil, ErrUnknownConn
	}

	return c, nil
}

func (h *Hub) group(flightID int64, create bool) *group {
	h.mu.RLock()
	g, ok := h.groups[flightID]
	h.mu.RUnlock()
	if ok || !create {
		return g
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if g, ok = h.groups[flightID]; !ok {
		g = &group{members: map[string]*Conn{}}
		h.groups[flightID] = g
	}

	return g
}

// Join adds c to the flight group. Joining twice is a no-op.
func (h *Hub) Join(c *Conn, flightID int64) error {
	g := h.group(flightID, true)

	g.mu.Lock()
	defer g.mu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrConnClosed
	}

	c.flights[flightID] = struct{}{}
	g.members[c.id] = c

	return nil
}

// Leave removes c from the flight group, releasing any soft locks it
// still holds there. Leaving a group never joined is a no-op.
func (h *Hub) Leave(c *Conn, flightID int64) {
	c.softMu.Lock()
	defer c.softMu.Unlock()

	c.mu.Lock()
	held := c.selections[flightID]
	delete(c.selections, flightID)
	delete(c.flights, flightID)
	c.mu.Unlock()

	for label := range held {
		h.PublishOthers(flightID, Deselected(flightID, label, c.id), c)
	}

	if g := h.group(flightID, false); g != nil {
		g.mu.Lock()
		delete(g.members, c.id)
		g.mu.Unlock()
	}
}

// Disconnect tears down c: held soft locks are announced as released,
// c leaves every group, and its event channel is closed.
func (h *Hub) Disconnect(c *Conn) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.events)

	flights := make([]int64, 0, len(c.flights))
	for id := range c.flights {
		flights = append(flights, id)
	}
	c.mu.Unlock()

	for _, id := range flights {
		h.Leave(c, id)
	}

	h.mu.Lock()
	delete(h.conns, c.id)
	h.mu.Unlock()
}

// Publish delivers ev to every member of the flight group and returns how
// many members accepted it. An Occupied seat is no longer soft-locked by
// anyone, so members stop holding it.
func (h *Hub) Publish(flightID int64, ev Event) int {
	return h.PublishOthers(flightID, ev, nil)
}

// PublishOthers is Publish excluding one connection.
func (h *Hub) PublishOthers(flightID int64, ev Event, except *Conn) int {
	g := h.group(flightID, false)
	if g == nil {
		return 0
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	delivered := 0
	for id, c := range g.members {
		if ev.Type == EventSeatOccupied {
			c.dropSelection(flightID, ev.SeatLabel)
		}
		if except != nil && id == except.id {
			continue
		}
		if c.deliver(ev) {
			delivered++
			continue
		}
		h.logger.Debug("hub: event dropped", slog.String("conn", id), slog.String("type", string(ev.Type)), slog.Int64("flight_id", flightID))
	}

	return delivered
}

// Select records a soft lock held by c and relays it to the other members.
func (h *Hub) Select(c *Conn, flightID int64, seatLabel string) error {
	label := domain.NormalizeSeatLabel(seatLabel)

	c.softMu.Lock()
	defer c.softMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnClosed
	}
	if _, ok := c.flights[flightID]; !ok {
		c.mu.Unlock()
		return ErrNotMember
	}
	if c.selections[flightID] == nil {
		c.selections[flightID] = map[string]struct{}{}
	}
	c.selections[flightID][label] = struct{}{}
	c.mu.Unlock()

	h.PublishOthers(flightID, Selected(flightID, label, c.id), c)

	return nil
}

// Deselect drops a soft lock and relays the release to the other members.
func (h *Hub) Deselect(c *Conn, flightID int64, seatLabel string) error {
	label := domain.NormalizeSeatLabel(seatLabel)

	c.softMu.Lock()
	defer c.softMu.Unlock()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnClosed
	}
	if _, ok := c.flights[flightID]; !ok {
		c.mu.Unlock()
		return ErrNotMember
	}
	delete(c.selections[flightID], label)
	c.mu.Unlock()

	h.PublishOthers(flightID, Deselected(flightID, label, c.id), c)

	return nil
}

// Members reports the current size of a flight group.
func (h *Hub) Members(flightID int64) int {
	g := h.group(flightID, false)
	if g == nil {
		return 0
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.members)
}
