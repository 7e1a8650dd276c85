// Package checkin is the reservation coordinator: the only code path that
// turns a free seat into an occupied one and back.
package checkin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirinyoku/checkin-go/internal/domain"
	"github.com/kirinyoku/checkin-go/internal/hub"
	"github.com/kirinyoku/checkin-go/internal/repository"
	"github.com/kirinyoku/checkin-go/internal/uow"
)

// Ledger is the durable seat and passenger store. CommitAssignment must be
// a conditional write: it fails with repository.ErrSeatOccupied when the
// seat is no longer free and repository.ErrAlreadyCheckedIn when the
// passenger was checked in meanwhile.
type Ledger interface {
	FindPassengerByPassport(ctx context.Context, passport string) (*domain.Passenger, error)
	GetFlight(ctx context.Context, flightID int64) (*domain.Flight, error)
	GetSeat(ctx context.Context, seatID int64) (*domain.Seat, error)
	FindSeat(ctx context.Context, flightID int64, label string) (*domain.Seat, error)
	FindFreeSeats(ctx context.Context, flightID int64) ([]domain.Seat, error)
	CommitAssignment(ctx context.Context, seatID, passengerID int64) error
	ReleaseSeat(ctx context.Context, seatID int64) (*domain.Seat, error)
}

type Broadcaster interface {
	Publish(flightID int64, ev hub.Event) int
}

// Notifier receives confirmed check-ins for downstream consumers such as
// boarding-pass printing.
type Notifier interface {
	PublishCheckInConfirmed(ctx context.Context, res domain.CheckInResult) error
}

type FlightCache interface {
	InvalidateFlight(ctx context.Context, flightID int64) error
}

const (
	DefaultEffectTimeout = 5 * time.Second
	maxPendingEffects    = 256
)

type Option func(*Service)

func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

func WithCache(c FlightCache) Option {
	return func(s *Service) { s.cache = c }
}

// WithEffectTimeout bounds each cache eviction and confirmation publish.
func WithEffectTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.effectTimeout = d
		}
	}
}

type Service struct {
	ledger   Ledger
	hub      Broadcaster
	notifier Notifier
	cache    FlightCache
	logger   *slog.Logger
	locks    *flightLocks
	uow      *uow.UoW

	// Side effects of a commit other than the broadcast run here, off the
	// flight lock and after the caller has its answer.
	effects       errgroup.Group
	effectTimeout time.Duration
}

func New(ledger Ledger, broadcaster Broadcaster, logger *slog.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Service{
		ledger: ledger,
		hub:    broadcaster,
		logger: logger,
		locks:  newFlightLocks(),
		uow:    uow.New(),

		effectTimeout: DefaultEffectTimeout,
	}
	s.effects.SetLimit(maxPendingEffects)

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// CheckIn assigns a seat to the passenger holding the passport and marks
// them checked in.
//
// Parameters:
//   - ctx: request-scoped context.
//   - passport: passport number of the passenger.
//   - seatLabel: requested seat, e.g. "12C". Empty picks the lowest free seat.
//
// Returns:
//   - *domain.CheckInResult: the assignment that was committed.
//   - error: domain.ErrPassengerNotFound, domain.ErrAlreadyCheckedIn,
//     domain.ErrSeatNotFound, domain.ErrSeatTaken, domain.ErrFlightFull,
//     or a transient rejection when the ledger is unavailable.
func (s *Service) CheckIn(ctx context.Context, passport, seatLabel string) (*domain.CheckInResult, error) {
	const op = "service.checkin.CheckIn"

	passport = strings.TrimSpace(passport)
	if passport == "" {
		return nil, fmt.Errorf("%s:%w", op, domain.ErrPassengerNotFound)
	}

	pax, err := s.findPassenger(ctx, passport)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	unlock := s.locks.Lock(pax.FlightID)
	defer unlock()

	// Re-read under the flight lock; a concurrent request may have
	// checked this passenger in while we waited.
	pax, err = s.findPassenger(ctx, passport)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if pax.CheckedIn {
		return nil, fmt.Errorf("%s:%w", op, domain.ErrAlreadyCheckedIn)
	}

	flight, err := s.ledger.GetFlight(ctx, pax.FlightID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, domain.ErrFlightNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, domain.Transient(err))
	}

	var res domain.CheckInResult

	err = s.uow.Do(ctx, func(ctx context.Context, after func(uow.AfterCommit)) error {
		seat, err := s.assign(ctx, pax, domain.NormalizeSeatLabel(seatLabel))
		if err != nil {
			return err
		}

		res = domain.CheckInResult{
			PassengerID:   pax.ID,
			PassengerName: pax.FullName,
			FlightID:      flight.ID,
			FlightNumber:  flight.FlightNumber,
			SeatID:        seat.ID,
			SeatLabel:     seat.Label,
			Gate:          flight.Gate,
		}

		after(func(ctx context.Context) {
			s.hub.Publish(flight.ID, hub.Occupied(flight.ID, seat.Label))
			s.logger.Info("checkin: seat assigned",
				slog.String("flight", flight.FlightNumber),
				slog.String("seat", seat.Label),
				slog.Int64("passenger_id", pax.ID),
			)
			s.background(ctx, "confirm", func(ctx context.Context) {
				s.invalidate(ctx, flight.ID)
				s.notify(ctx, res)
			})
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &res, nil
}

func (s *Service) findPassenger(ctx context.Context, passport string) (*domain.Passenger, error) {
	pax, err := s.ledger.FindPassengerByPassport(ctx, passport)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrPassengerNotFound
		}
		return nil, domain.Transient(err)
	}

	return pax, nil
}

func (s *Service) assign(ctx context.Context, pax *domain.Passenger, label string) (*domain.Seat, error) {
	if label != "" {
		return s.assignRequested(ctx, pax, label)
	}

	free, err := s.ledger.FindFreeSeats(ctx, pax.FlightID)
	if err != nil {
		return nil, domain.Transient(err)
	}

	// Another process sharing the ledger may take a seat between the read
	// and the conditional write; move on to the next free one when it does.
	for i := range free {
		seat := free[i]

		err := s.commit(ctx, &seat, pax)
		if err == nil {
			return &seat, nil
		}
		if errors.Is(err, domain.ErrSeatTaken) {
			continue
		}

		return nil, err
	}

	return nil, domain.ErrFlightFull
}

func (s *Service) assignRequested(ctx context.Context, pax *domain.Passenger, label string) (*domain.Seat, error) {
	seat, err := s.ledger.FindSeat(ctx, pax.FlightID, label)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.SeatNotFound(label)
		}
		return nil, domain.Transient(err)
	}

	if seat.Occupied {
		return nil, domain.SeatTaken(seat.Label)
	}

	if err := s.commit(ctx, seat, pax); err != nil {
		return nil, err
	}

	return seat, nil
}

func (s *Service) commit(ctx context.Context, seat *domain.Seat, pax *domain.Passenger) error {
	err := s.ledger.CommitAssignment(ctx, seat.ID, pax.ID)
	switch {
	case err == nil:
		pid := pax.ID
		seat.Occupied = true
		seat.PassengerID = &pid
		return nil
	case errors.Is(err, repository.ErrSeatOccupied):
		return domain.SeatTaken(seat.Label)
	case errors.Is(err, repository.ErrAlreadyCheckedIn):
		return domain.ErrAlreadyCheckedIn
	case errors.Is(err, repository.ErrNotFound):
		return domain.SeatNotFound(seat.Label)
	default:
		return domain.Transient(err)
	}
}

// Release frees an occupied seat and clears its passenger's check-in.
//
// Returns:
//   - *domain.Seat: the seat as it is after the release.
//   - error: domain.ErrSeatNotFound, domain.ErrSeatNotOccupied, or a
//     transient rejection.
func (s *Service) Release(ctx context.Context, seatID int64) (*domain.Seat, error) {
	const op = "service.checkin.Release"

	seat, err := s.ledger.GetSeat(ctx, seatID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, domain.ErrSeatNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, domain.Transient(err))
	}

	unlock := s.locks.Lock(seat.FlightID)
	defer unlock()

	var released domain.Seat

	err = s.uow.Do(ctx, func(ctx context.Context, after func(uow.AfterCommit)) error {
		before, err := s.ledger.ReleaseSeat(ctx, seatID)
		if err != nil {
			switch {
			case errors.Is(err, repository.ErrSeatNotOccupied):
				return domain.ErrSeatNotOccupied
			case errors.Is(err, repository.ErrNotFound):
				return domain.ErrSeatNotFound
			default:
				return domain.Transient(err)
			}
		}

		released = *before
		released.Occupied = false
		released.PassengerID = nil

		after(func(ctx context.Context) {
			s.hub.Publish(released.FlightID, hub.Available(released.FlightID, released.Label))
			s.logger.Info("checkin: seat released",
				slog.Int64("flight_id", released.FlightID),
				slog.String("seat", released.Label),
			)
			s.background(ctx, "release", func(ctx context.Context) {
				s.invalidate(ctx, released.FlightID)
			})
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &released, nil
}

// background runs fn on its own goroutine with a deadline. When too many
// effects are already in flight fn is dropped and logged.
func (s *Service) background(ctx context.Context, name string, fn func(ctx context.Context)) {
	ok := s.effects.TryGo(func() error {
		ctx, cancel := context.WithTimeout(ctx, s.effectTimeout)
		defer cancel()

		fn(ctx)

		return nil
	})
	if !ok {
		s.logger.Warn("checkin: side effects saturated, dropped", slog.String("effect", name))
	}
}

// Wait blocks until every dispatched side effect has finished.
func (s *Service) Wait() {
	_ = s.effects.Wait()
}

func (s *Service) invalidate(ctx context.Context, flightID int64) {
	if s.cache == nil {
		return
	}

	if err := s.cache.InvalidateFlight(ctx, flightID); err != nil {
		s.logger.Warn("checkin: flight cache invalidation failed", slog.Int64("flight_id", flightID), slog.Any("error", err))
	}
}

func (s *Service) notify(ctx context.Context, res domain.CheckInResult) {
	if s.notifier == nil {
		return
	}

	if err := s.notifier.PublishCheckInConfirmed(ctx, res); err != nil {
		s.logger.Warn("checkin: confirmation not published", slog.Int64("passenger_id", res.PassengerID), slog.Any("error", err))
	}
}
