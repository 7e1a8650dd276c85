package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirinyoku/checkin-go/internal/domain"
	"github.com/kirinyoku/checkin-go/internal/repository"
)

// Ledger is the seat ledger backed by Postgres. Every occupancy change is a
// conditional write inside one transaction, so concurrent writers on the
// same seat or passenger are arbitrated by the row locks.
type Ledger struct {
	store *Store
}

func NewLedger(store *Store) *Ledger {
	return &Ledger{store: store}
}

func (l *Ledger) FindPassengerByPassport(ctx context.Context, passport string) (*domain.Passenger, error) {
	return l.store.Passengers().GetByPassport(ctx, passport)
}

func (l *Ledger) GetFlight(ctx context.Context, flightID int64) (*domain.Flight, error) {
	return l.store.Flights().Get(ctx, flightID)
}

func (l *Ledger) GetSeat(ctx context.Context, seatID int64) (*domain.Seat, error) {
	return l.store.Seats().Get(ctx, seatID)
}

func (l *Ledger) FindSeat(ctx context.Context, flightID int64, label string) (*domain.Seat, error) {
	return l.store.Seats().GetByLabel(ctx, flightID, label)
}

func (l *Ledger) FindFreeSeats(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	return l.store.Seats().ListByFlight(ctx, flightID, true)
}

func (l *Ledger) ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	const op = "postgres.Ledger.ListSeats"

	if _, err := l.store.Flights().Get(ctx, flightID); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return l.store.Seats().ListByFlight(ctx, flightID, false)
}

// CommitAssignment occupies the seat, binds it to the passenger and marks
// the passenger checked in, all or nothing.
//
// Returns:
//   - error: repository.ErrSeatOccupied if the seat is no longer free.
//   - error: repository.ErrAlreadyCheckedIn if the passenger checked in concurrently.
//   - error: repository.ErrRetryable on serialization failures.
func (l *Ledger) CommitAssignment(ctx context.Context, seatID, passengerID int64) error {
	const op = "postgres.Ledger.CommitAssignment"

	err := l.store.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		if err := l.store.Seats().With(tx).Occupy(ctx, seatID, passengerID); err != nil {
			return err
		}

		return l.store.Passengers().With(tx).MarkCheckedIn(ctx, passengerID, seatID)
	})
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}

// ReleaseSeat frees an occupied seat and offloads the passenger bound to it.
// The returned seat reflects the state before the release.
//
// Returns:
//   - error: repository.ErrNotFound if the seat does not exist.
//   - error: repository.ErrSeatNotOccupied if the seat is already free.
func (l *Ledger) ReleaseSeat(ctx context.Context, seatID int64) (*domain.Seat, error) {
	const op = "postgres.Ledger.ReleaseSeat"

	var released *domain.Seat

	err := l.store.RunTx(ctx, nil, func(ctx context.Context, tx DB) error {
		seat, err := l.store.Seats().With(tx).GetForUpdate(ctx, seatID)
		if err != nil {
			return err
		}

		if !seat.Occupied {
			return repository.ErrSeatNotOccupied
		}

		if err := l.store.Seats().With(tx).Vacate(ctx, seatID); err != nil {
			return err
		}

		if seat.PassengerID != nil {
			if err := l.store.Passengers().With(tx).Offload(ctx, *seat.PassengerID); err != nil {
				return err
			}
		}

		released = seat

		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrSeatNotOccupied) {
			return nil, fmt.Errorf("%s:%w", op, repository.ErrSeatNotOccupied)
		}

		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return released, nil
}

func (l *Ledger) UpdateFlightStatus(
	ctx context.Context,
	flightID int64,
	status domain.FlightStatus,
) (*domain.Flight, error) {
	return l.store.Flights().UpdateStatus(ctx, flightID, status)
}
