package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/checkin-go/internal/domain"
)

type FlightRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *FlightRepo) With(db DB) *FlightRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *FlightRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Get retrieves a flight by its ID.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - id: unique identifier of the flight to retrieve.
//
// Returns:
//   - *domain.Flight: the flight when found.
//   - error: repository.ErrNotFound if the flight is not found.
func (r *FlightRepo) Get(ctx context.Context, id int64) (*domain.Flight, error) {
	const op = "postgres.FlightRepo.Get"

	db := r.handle()

	var f domain.Flight
	var status string
	err := db.QueryRow(ctx,
		`SELECT id, flight_number, origin_airport, destination_airport, departs_at, gate, status
       	 FROM flights WHERE id = $1`,
		id,
	).Scan(
		&f.ID,
		&f.FlightNumber,
		&f.OriginAirport,
		&f.DestinationAirport,
		&f.DepartsAt,
		&f.Gate,
		&status,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	f.Status = domain.FlightStatus(status)

	return &f, nil
}

// UpdateStatus sets the flight status and returns the updated flight.
//
// Returns:
//   - *domain.Flight: the flight after the update.
//   - error: repository.ErrNotFound if the flight is not found.
func (r *FlightRepo) UpdateStatus(
	ctx context.Context,
	id int64,
	status domain.FlightStatus,
) (*domain.Flight, error) {
	const op = "postgres.FlightRepo.UpdateStatus"

	db := r.handle()

	var f domain.Flight
	var st string
	err := db.QueryRow(ctx,
		`UPDATE flights SET status = $2
		 WHERE id = $1
		 RETURNING id, flight_number, origin_airport, destination_airport, departs_at, gate, status`,
		id, string(status),
	).Scan(
		&f.ID,
		&f.FlightNumber,
		&f.OriginAirport,
		&f.DestinationAirport,
		&f.DepartsAt,
		&f.Gate,
		&st,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	f.Status = domain.FlightStatus(st)

	return &f, nil
}
