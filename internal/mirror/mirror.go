// Package mirror keeps a client-side copy of one flight's seat map in sync
// with the server: an authoritative snapshot, patched by pushed events and
// the local agent's soft-lock selections.
package mirror

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/kirinyoku/checkin-go/internal/domain"
	"github.com/kirinyoku/checkin-go/internal/hub"
)

var (
	ErrNoFlight        = errors.New("mirror has not entered a flight")
	ErrSeatUnavailable = errors.New("seat is not selectable")
	ErrClosed          = errors.New("mirror is closed")
	ErrCommitPending   = errors.New("check-in for the selected seat is in progress")
)

// Transport is the server side of the mirror.
type Transport interface {
	FetchSeats(ctx context.Context, flightID int64) ([]domain.Seat, error)
	JoinFlight(ctx context.Context, flightID int64) error
	LeaveFlight(ctx context.Context, flightID int64) error
	SelectSeat(ctx context.Context, flightID int64, label string) error
	DeselectSeat(ctx context.Context, flightID int64, label string) error
	CheckIn(ctx context.Context, passport, label string) (*domain.CheckInResult, error)
}

type SeatView struct {
	ID    int64
	Label string
	State SeatState
}

const (
	outboxSize  = 64
	sendTimeout = 5 * time.Second
)

// Mirror serializes local actions and pushed events through one mutex.
// Soft-lock commands go out through an ordered outbox and their failures
// are only logged.
type Mirror struct {
	transport Transport
	logger    *slog.Logger

	mu       sync.Mutex
	closed   bool
	active   bool
	loading  bool
	flightID int64
	status   domain.FlightStatus
	buffered []hub.Event
	seats    map[string]*seat
	order    []string
	selected string

	outbox  chan func(context.Context)
	pending sync.WaitGroup
	done    chan struct{}
	changes chan struct{}
}

func New(transport Transport, logger *slog.Logger) *Mirror {
	if logger == nil {
		logger = slog.Default()
	}

	m := &Mirror{
		transport: transport,
		logger:    logger,
		seats:     map[string]*seat{},
		outbox:    make(chan func(context.Context), outboxSize),
		done:      make(chan struct{}),
		changes:   make(chan struct{}, 1),
	}

	go m.sendLoop()

	return m
}

func (m *Mirror) sendLoop() {
	defer close(m.done)

	for send := range m.outbox {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		send(ctx)
		cancel()
		m.pending.Done()
	}
}

// enqueue must be called with m.mu held.
func (m *Mirror) enqueue(name, label string, send func(ctx context.Context) error) {
	if m.closed {
		return
	}

	m.pending.Add(1)
	fn := func(ctx context.Context) {
		if err := send(ctx); err != nil {
			m.logger.Debug("mirror: soft-lock command failed", slog.String("cmd", name), slog.String("seat", label), slog.Any("error", err))
		}
	}

	select {
	case m.outbox <- fn:
	default:
		m.pending.Done()
		m.logger.Debug("mirror: outbox full, command dropped", slog.String("cmd", name), slog.String("seat", label))
	}
}

// Flush waits until every queued soft-lock command has been sent.
func (m *Mirror) Flush() {
	m.pending.Wait()
}

// Changes signals after the seat map changed. Signals are coalesced.
func (m *Mirror) Changes() <-chan struct{} {
	return m.changes
}

func (m *Mirror) changed() {
	select {
	case m.changes <- struct{}{}:
	default:
	}
}

// Enter switches the mirror to a flight. The group is joined before the
// snapshot is fetched and events arriving meanwhile are replayed on top of
// it, so nothing committed during the fetch is lost.
func (m *Mirror) Enter(ctx context.Context, flightID int64) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	if m.active && m.flightID == flightID {
		m.mu.Unlock()
		return nil
	}
	wasActive := m.active
	m.mu.Unlock()

	if wasActive {
		if err := m.Leave(ctx); err != nil {
			return err
		}
	}

	m.mu.Lock()
	m.active = true
	m.loading = true
	m.flightID = flightID
	m.buffered = nil
	m.seats = map[string]*seat{}
	m.order = nil
	m.selected = ""
	m.status = ""
	m.mu.Unlock()

	if err := m.transport.JoinFlight(ctx, flightID); err != nil {
		m.reset()
		return err
	}

	if err := m.Refresh(ctx); err != nil {
		_ = m.transport.LeaveFlight(ctx, flightID)
		m.reset()
		return err
	}

	return nil
}

// Refresh refetches the authoritative seat list. All soft-lock state is
// reset, except the agent's own selection if that seat is still free.
func (m *Mirror) Refresh(ctx context.Context) error {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return ErrNoFlight
	}
	flightID := m.flightID
	m.loading = true
	m.mu.Unlock()

	seats, err := m.transport.FetchSeats(ctx, flightID)
	if err != nil {
		m.mu.Lock()
		m.loading = false
		m.buffered = nil
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active || m.flightID != flightID {
		return ErrNoFlight
	}

	m.seats = make(map[string]*seat, len(seats))
	m.order = make([]string, 0, len(seats))

	domain.SortSeats(seats)
	for _, s := range seats {
		m.seats[s.Label] = &seat{id: s.ID, label: s.Label, occupied: s.Occupied}
		m.order = append(m.order, s.Label)
	}

	if sel, ok := m.seats[m.selected]; ok && !sel.occupied {
		sel.mine = true
	} else {
		m.selected = ""
	}

	for _, ev := range m.buffered {
		m.applyLocked(ev)
	}
	m.buffered = nil
	m.loading = false

	m.changed()

	return nil
}

func (m *Mirror) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = false
	m.loading = false
	m.buffered = nil
	m.seats = map[string]*seat{}
	m.order = nil
	m.selected = ""
}

// Leave releases the agent's selection and leaves the flight group.
func (m *Mirror) Leave(ctx context.Context) error {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return nil
	}

	flightID := m.flightID
	if m.selected != "" {
		label := m.selected
		m.enqueue("deselect", label, func(ctx context.Context) error {
			return m.transport.DeselectSeat(ctx, flightID, label)
		})
	}
	m.active = false
	m.loading = false
	m.buffered = nil
	m.seats = map[string]*seat{}
	m.order = nil
	m.selected = ""
	m.mu.Unlock()

	m.Flush()
	m.changed()

	return m.transport.LeaveFlight(ctx, flightID)
}

// Close leaves the current flight and stops the outbox.
func (m *Mirror) Close(ctx context.Context) error {
	err := m.Leave(ctx)

	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.outbox)
	}
	m.mu.Unlock()

	<-m.done

	return err
}

// Select marks a free seat as the agent's choice and tells the other
// agents. A previous selection is released first.
func (m *Mirror) Select(label string) error {
	label = domain.NormalizeSeatLabel(label)

	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return ErrNoFlight
	}

	s, ok := m.seats[label]
	if !ok {
		return domain.InvalidSeat(label)
	}

	if s.state() == SelectedByMe {
		return nil
	}

	if !s.state().Selectable() {
		return ErrSeatUnavailable
	}

	if cur, ok := m.seats[m.selected]; ok && cur.pending {
		return ErrCommitPending
	}

	m.deselectLocked()

	s.mine = true
	m.selected = label

	flightID := m.flightID
	m.enqueue("select", label, func(ctx context.Context) error {
		return m.transport.SelectSeat(ctx, flightID, label)
	})

	m.changed()

	return nil
}

// Deselect cancels the agent's current selection, if any.
func (m *Mirror) Deselect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.seats[m.selected]; ok && cur.pending {
		return
	}

	if m.deselectLocked() {
		m.changed()
	}
}

func (m *Mirror) deselectLocked() bool {
	if m.selected == "" {
		return false
	}

	label := m.selected
	m.selected = ""

	if s, ok := m.seats[label]; ok {
		s.mine = false
		s.pending = false
	}

	flightID := m.flightID
	m.enqueue("deselect", label, func(ctx context.Context) error {
		return m.transport.DeselectSeat(ctx, flightID, label)
	})

	return true
}

// CheckIn commits the agent's selection for a passenger. With no selection
// the server picks the lowest free seat. The selected seat renders as
// CommitPending until the server answers. A rejection releases the
// selection; a transient failure keeps it.
func (m *Mirror) CheckIn(ctx context.Context, passport string) (*domain.CheckInResult, error) {
	m.mu.Lock()
	if !m.active {
		m.mu.Unlock()
		return nil, ErrNoFlight
	}

	label := m.selected
	if s, ok := m.seats[label]; ok {
		s.pending = true
		m.changed()
	}
	m.mu.Unlock()

	res, err := m.transport.CheckIn(ctx, passport, label)

	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.changed()

	if err != nil {
		s, ok := m.seats[label]
		if ok && s.pending {
			s.pending = false
			// A retryable failure keeps the seat for the next attempt.
			if m.selected == label && !domain.IsRetryable(err) {
				m.deselectLocked()
			}
		}
		return nil, err
	}

	if s, ok := m.seats[res.SeatLabel]; ok {
		s.occupied = true
		s.clearSoftLocks()
	}
	// The hub drops our soft lock when it publishes Occupied.
	if m.selected == label || m.selected == res.SeatLabel {
		m.selected = ""
	}

	return res, nil
}

// Apply folds one pushed event into the mirror.
func (m *Mirror) Apply(ev hub.Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		return
	}

	if ev.FlightID != 0 && ev.FlightID != m.flightID {
		return
	}

	if m.loading {
		m.buffered = append(m.buffered, ev)
		return
	}

	m.applyLocked(ev)
	m.changed()
}

func (m *Mirror) applyLocked(ev hub.Event) {
	if ev.Type == hub.EventFlightStatusUpdated {
		m.status = ev.Status
		return
	}

	s, ok := m.seats[domain.NormalizeSeatLabel(ev.SeatLabel)]
	if !ok {
		return
	}

	s.apply(ev)

	if m.selected == s.label && !s.mine {
		m.selected = ""
	}
}

// Run applies events until ctx is done or events is closed.
func (m *Mirror) Run(ctx context.Context, events <-chan hub.Event) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			m.Apply(ev)
		}
	}
}

func (m *Mirror) FlightID() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.flightID
}

// Status is the last flight status pushed while in this flight.
func (m *Mirror) Status() domain.FlightStatus {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.status
}

func (m *Mirror) Selected() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.selected
}

func (m *Mirror) State(label string) (SeatState, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.seats[domain.NormalizeSeatLabel(label)]
	if !ok {
		return Free, false
	}

	return s.state(), true
}

// Seats returns the seat grid in row, then column order.
func (m *Mirror) Seats() []SeatView {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SeatView, 0, len(m.order))
	for _, label := range m.order {
		s := m.seats[label]
		out = append(out, SeatView{ID: s.id, Label: s.label, State: s.state()})
	}

	return out
}
