package flights

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirinyoku/checkin-go/internal/domain"
	"github.com/kirinyoku/checkin-go/internal/hub"
	"github.com/kirinyoku/checkin-go/internal/repository"
	redisrepo "github.com/kirinyoku/checkin-go/internal/repository/redis"
	"github.com/kirinyoku/checkin-go/internal/uow"
)

type Ledger interface {
	GetFlight(ctx context.Context, flightID int64) (*domain.Flight, error)
	ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error)
	FindSeat(ctx context.Context, flightID int64, label string) (*domain.Seat, error)
	UpdateFlightStatus(ctx context.Context, flightID int64, status domain.FlightStatus) (*domain.Flight, error)
}

type Broadcaster interface {
	Publish(flightID int64, ev hub.Event) int
}

// StatusFeed fans status changes out to every server instance. Each
// instance relays what it receives into its own hub.
type StatusFeed interface {
	PublishStatus(ctx context.Context, f domain.Flight) error
}

type Config struct {
	SummaryTTL time.Duration
}

type Service struct {
	ledger Ledger
	cache  *redisrepo.Cache
	feed   StatusFeed
	hub    Broadcaster
	logger *slog.Logger
	uow    *uow.UoW
	cfg    Config
}

// New wires the flight read and status service. cache and feed may be nil
// when Redis is disabled.
func New(
	ledger Ledger,
	cache *redisrepo.Cache,
	feed StatusFeed,
	broadcaster Broadcaster,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.SummaryTTL <= 0 {
		cfg.SummaryTTL = 60 * time.Second
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Service{
		ledger: ledger,
		cache:  cache,
		feed:   feed,
		hub:    broadcaster,
		logger: logger,
		uow:    uow.New(),
		cfg:    cfg,
	}
}

// GetFlight returns the flight summary, served from the cache when warm.
func (s *Service) GetFlight(ctx context.Context, flightID int64) (*domain.Flight, error) {
	const op = "service.flights.GetFlight"

	f, err := redisrepo.GetOrSetJSON(
		ctx,
		s.cache,
		redisrepo.KeyFlightSummary(flightID),
		s.cfg.SummaryTTL,
		func(ctx context.Context) (domain.Flight, error) {
			f, err := s.ledger.GetFlight(ctx, flightID)
			if err != nil {
				return domain.Flight{}, ledgerErr(err)
			}

			return *f, nil
		},
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &f, nil
}

// ListSeats returns the authoritative seat snapshot ordered by row, then
// column. It is never cached.
func (s *Service) ListSeats(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	const op = "service.flights.ListSeats"

	seats, err := s.ledger.ListSeats(ctx, flightID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, ledgerErr(err))
	}

	return seats, nil
}

// ValidateSeat rejects soft-lock commands naming a seat that is not part
// of the flight.
func (s *Service) ValidateSeat(ctx context.Context, flightID int64, label string) error {
	const op = "service.flights.ValidateSeat"

	label = domain.NormalizeSeatLabel(label)
	if _, _, ok := domain.ParseSeatLabel(label); !ok {
		return fmt.Errorf("%s:%w", op, domain.InvalidSeat(label))
	}

	if _, err := s.ledger.FindSeat(ctx, flightID, label); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s:%w", op, domain.InvalidSeat(label))
		}
		return fmt.Errorf("%s:%w", op, domain.Transient(err))
	}

	return nil
}

// UpdateStatus persists a new flight status and broadcasts it to the
// flight group.
//
// Parameters:
//   - ctx: request-scoped context.
//   - flightID: flight to update.
//   - status: status name, matched case-insensitively.
//
// Returns:
//   - *domain.Flight: the updated flight.
//   - error: domain.ErrFlightNotFound, an invalid_status rejection, or a
//     transient rejection.
func (s *Service) UpdateStatus(ctx context.Context, flightID int64, status string) (*domain.Flight, error) {
	const op = "service.flights.UpdateStatus"

	st, err := domain.ParseFlightStatus(status)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var updated domain.Flight

	err = s.uow.Do(ctx, func(ctx context.Context, after func(uow.AfterCommit)) error {
		f, err := s.ledger.UpdateFlightStatus(ctx, flightID, st)
		if err != nil {
			return ledgerErr(err)
		}

		updated = *f

		after(func(ctx context.Context) {
			if s.cache != nil {
				if err := s.cache.InvalidateFlight(ctx, flightID); err != nil {
					s.logger.Warn("flights: cache invalidation failed", slog.Int64("flight_id", flightID), slog.Any("error", err))
				}
			}
			s.announce(ctx, updated)
		})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return &updated, nil
}

func (s *Service) announce(ctx context.Context, f domain.Flight) {
	if s.feed != nil {
		err := s.feed.PublishStatus(ctx, f)
		if err == nil {
			return
		}
		s.logger.Warn("flights: status feed unavailable, broadcasting locally", slog.Int64("flight_id", f.ID), slog.Any("error", err))
	}

	s.RelayStatus(ctx, f)
}

// RelayStatus pushes a status change into the local hub. It is the
// handler for messages arriving on the status feed.
func (s *Service) RelayStatus(_ context.Context, f domain.Flight) {
	s.hub.Publish(f.ID, hub.FlightStatusChanged(f))
}

func ledgerErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return domain.ErrFlightNotFound
	}

	return domain.Transient(err)
}
