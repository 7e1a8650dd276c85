// Package memory provides an in-process seat ledger. Seat and passenger
// records live in per-flight arenas; every read or write of a flight's
// records holds that flight's lock, so a reader never observes a seat that
// is both free and bound to a passenger, and unrelated flights never
// contend.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/kirinyoku/checkin-go/internal/domain"
	"github.com/kirinyoku/checkin-go/internal/repository"
)

type arena struct {
	mu         sync.RWMutex
	flight     domain.Flight
	seats      map[int64]*domain.Seat
	seatLabels map[string]int64
	passengers map[int64]*domain.Passenger
}

type Ledger struct {
	mu         sync.RWMutex
	flights    map[int64]*arena
	seatFlight map[int64]int64
	passports  map[string]int64
	paxFlight  map[int64]int64
	nextSeat   int64
	nextPax    int64
}

func NewLedger() *Ledger {
	return &Ledger{
		flights:    map[int64]*arena{},
		seatFlight: map[int64]int64{},
		passports:  map[string]int64{},
		paxFlight:  map[int64]int64{},
	}
}

// AddFlight registers a flight. Re-adding an ID replaces its attributes but
// keeps its seats and passengers.
func (l *Ledger) AddFlight(f domain.Flight) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if a, ok := l.flights[f.ID]; ok {
		a.mu.Lock()
		a.flight = f
		a.mu.Unlock()
		return
	}

	l.flights[f.ID] = &arena{
		flight:     f,
		seats:      map[int64]*domain.Seat{},
		seatLabels: map[string]int64{},
		passengers: map[int64]*domain.Passenger{},
	}
}

// AddSeat adds a free seat to a flight and returns its ID.
func (l *Ledger) AddSeat(flightID int64, label string) (int64, error) {
	const op = "memory.Ledger.AddSeat"

	label = domain.NormalizeSeatLabel(label)

	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.flights[flightID]
	if !ok {
		return 0, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, dup := a.seatLabels[label]; dup {
		return 0, fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}

	l.nextSeat++
	id := l.nextSeat

	a.seats[id] = &domain.Seat{ID: id, FlightID: flightID, Label: label}
	a.seatLabels[label] = id
	l.seatFlight[id] = flightID

	return id, nil
}

// AddPassenger books a passenger who has not checked in yet and returns its ID.
func (l *Ledger) AddPassenger(flightID int64, fullName, passport string) (int64, error) {
	const op = "memory.Ledger.AddPassenger"

	l.mu.Lock()
	defer l.mu.Unlock()

	a, ok := l.flights[flightID]
	if !ok {
		return 0, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	if _, dup := l.passports[passport]; dup {
		return 0, fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	l.nextPax++
	id := l.nextPax

	a.passengers[id] = &domain.Passenger{
		ID:             id,
		FullName:       fullName,
		PassportNumber: passport,
		FlightID:       flightID,
	}
	l.passports[passport] = id
	l.paxFlight[id] = flightID

	return id, nil
}

func (l *Ledger) arena(flightID int64) (*arena, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	a, ok := l.flights[flightID]
	return a, ok
}

func (l *Ledger) FindPassengerByPassport(_ context.Context, passport string) (*domain.Passenger, error) {
	const op = "memory.Ledger.FindPassengerByPassport"

	l.mu.RLock()
	id, ok := l.passports[passport]
	flightID := l.paxFlight[id]
	a := l.flights[flightID]
	l.mu.RUnlock()

	if !ok || a == nil {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	return clonePassenger(a.passengers[id]), nil
}

func (l *Ledger) GetFlight(_ context.Context, flightID int64) (*domain.Flight, error) {
	const op = "memory.Ledger.GetFlight"

	a, ok := l.arena(flightID)
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	f := a.flight
	return &f, nil
}

func (l *Ledger) GetSeat(_ context.Context, seatID int64) (*domain.Seat, error) {
	const op = "memory.Ledger.GetSeat"

	l.mu.RLock()
	flightID, ok := l.seatFlight[seatID]
	a := l.flights[flightID]
	l.mu.RUnlock()

	if !ok || a == nil {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	return cloneSeat(a.seats[seatID]), nil
}

func (l *Ledger) FindSeat(_ context.Context, flightID int64, label string) (*domain.Seat, error) {
	const op = "memory.Ledger.FindSeat"

	a, ok := l.arena(flightID)
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	id, ok := a.seatLabels[domain.NormalizeSeatLabel(label)]
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return cloneSeat(a.seats[id]), nil
}

func (l *Ledger) FindFreeSeats(_ context.Context, flightID int64) ([]domain.Seat, error) {
	return l.listSeats(flightID, true)
}

func (l *Ledger) ListSeats(_ context.Context, flightID int64) ([]domain.Seat, error) {
	return l.listSeats(flightID, false)
}

func (l *Ledger) listSeats(flightID int64, onlyFree bool) ([]domain.Seat, error) {
	const op = "memory.Ledger.listSeats"

	a, ok := l.arena(flightID)
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	a.mu.RLock()
	out := make([]domain.Seat, 0, len(a.seats))
	for _, s := range a.seats {
		if onlyFree && s.Occupied {
			continue
		}
		out = append(out, *cloneSeat(s))
	}
	a.mu.RUnlock()

	domain.SortSeats(out)

	return out, nil
}

// CommitAssignment is the compare-and-set of a free seat to an occupied one,
// together with the passenger's check-in.
func (l *Ledger) CommitAssignment(_ context.Context, seatID, passengerID int64) error {
	const op = "memory.Ledger.CommitAssignment"

	l.mu.RLock()
	flightID, ok := l.seatFlight[seatID]
	paxFlightID, paxOK := l.paxFlight[passengerID]
	a := l.flights[flightID]
	l.mu.RUnlock()

	if !ok || !paxOK || a == nil {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	if flightID != paxFlightID {
		return fmt.Errorf("%s:%w", op, repository.ErrConflict)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	seat := a.seats[seatID]
	pax := a.passengers[passengerID]

	if seat.Occupied {
		return fmt.Errorf("%s:%w", op, repository.ErrSeatOccupied)
	}

	if pax.CheckedIn {
		return fmt.Errorf("%s:%w", op, repository.ErrAlreadyCheckedIn)
	}

	pid, sid := passengerID, seatID
	seat.Occupied = true
	seat.PassengerID = &pid
	pax.CheckedIn = true
	pax.AssignedSeatID = &sid

	return nil
}

func (l *Ledger) ReleaseSeat(_ context.Context, seatID int64) (*domain.Seat, error) {
	const op = "memory.Ledger.ReleaseSeat"

	l.mu.RLock()
	flightID, ok := l.seatFlight[seatID]
	a := l.flights[flightID]
	l.mu.RUnlock()

	if !ok || a == nil {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	seat := a.seats[seatID]
	if !seat.Occupied {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrSeatNotOccupied)
	}

	before := cloneSeat(seat)

	if seat.PassengerID != nil {
		if pax, ok := a.passengers[*seat.PassengerID]; ok {
			pax.CheckedIn = false
			pax.AssignedSeatID = nil
		}
	}

	seat.Occupied = false
	seat.PassengerID = nil

	return before, nil
}

func (l *Ledger) UpdateFlightStatus(
	_ context.Context,
	flightID int64,
	status domain.FlightStatus,
) (*domain.Flight, error) {
	const op = "memory.Ledger.UpdateFlightStatus"

	a, ok := l.arena(flightID)
	if !ok {
		return nil, fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.flight.Status = status
	f := a.flight

	return &f, nil
}

// Passengers returns a snapshot of a flight's passengers.
func (l *Ledger) Passengers(flightID int64) []domain.Passenger {
	a, ok := l.arena(flightID)
	if !ok {
		return nil
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	out := make([]domain.Passenger, 0, len(a.passengers))
	for _, p := range a.passengers {
		out = append(out, *clonePassenger(p))
	}

	return out
}

func cloneSeat(s *domain.Seat) *domain.Seat {
	cp := *s
	if s.PassengerID != nil {
		id := *s.PassengerID
		cp.PassengerID = &id
	}
	return &cp
}

func clonePassenger(p *domain.Passenger) *domain.Passenger {
	cp := *p
	if p.AssignedSeatID != nil {
		id := *p.AssignedSeatID
		cp.AssignedSeatID = &id
	}
	return &cp
}
