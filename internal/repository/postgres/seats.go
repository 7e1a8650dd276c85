package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/checkin-go/internal/domain"
	"github.com/kirinyoku/checkin-go/internal/repository"
)

const seatColumns = `id, flight_id, seat_number, is_occupied, passenger_id`

type SeatRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *SeatRepo) With(db DB) *SeatRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *SeatRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Get retrieves a seat by its ID.
//
// Returns:
//   - *domain.Seat: the seat when found.
//   - error: repository.ErrNotFound if the seat is not found.
func (r *SeatRepo) Get(ctx context.Context, id int64) (*domain.Seat, error) {
	const op = "postgres.SeatRepo.Get"

	s, err := scanSeat(r.handle().QueryRow(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE id = $1`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return s, nil
}

// GetForUpdate is Get with a row lock. Only meaningful inside a transaction.
func (r *SeatRepo) GetForUpdate(ctx context.Context, id int64) (*domain.Seat, error) {
	const op = "postgres.SeatRepo.GetForUpdate"

	s, err := scanSeat(r.handle().QueryRow(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE id = $1 FOR UPDATE`,
		id,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return s, nil
}

// GetByLabel retrieves the seat with the given label on a flight.
//
// Parameters:
//   - ctx: request-scoped context for cancellation and timeouts.
//   - flightID: flight the seat belongs to.
//   - label: seat label such as "12A".
//
// Returns:
//   - *domain.Seat: the seat when found.
//   - error: repository.ErrNotFound if the flight has no such seat.
func (r *SeatRepo) GetByLabel(ctx context.Context, flightID int64, label string) (*domain.Seat, error) {
	const op = "postgres.SeatRepo.GetByLabel"

	s, err := scanSeat(r.handle().QueryRow(ctx,
		`SELECT `+seatColumns+` FROM seats WHERE flight_id = $1 AND seat_number = $2`,
		flightID, label,
	))
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return s, nil
}

// ListByFlight lists seats of a flight in one statement, so the result is
// a consistent snapshot. When onlyFree is set, occupied seats are skipped.
func (r *SeatRepo) ListByFlight(ctx context.Context, flightID int64, onlyFree bool) ([]domain.Seat, error) {
	const op = "postgres.SeatRepo.ListByFlight"

	db := r.handle()

	q := `SELECT ` + seatColumns + ` FROM seats WHERE flight_id = $1`
	if onlyFree {
		q += ` AND NOT is_occupied`
	}
	q += ` ORDER BY id`

	rows, err := db.Query(ctx, q, flightID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	defer rows.Close()

	var out []domain.Seat
	for rows.Next() {
		s, err := scanSeat(rows)
		if err != nil {
			return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
		}

		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	domain.SortSeats(out)

	return out, nil
}

// Occupy marks the seat occupied by passengerID if, and only if, it is
// still free and belongs to the passenger's flight.
//
// Returns:
//   - error: repository.ErrSeatOccupied if the seat was taken first.
func (r *SeatRepo) Occupy(ctx context.Context, seatID, passengerID int64) error {
	const op = "postgres.SeatRepo.Occupy"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE seats
		 SET is_occupied = TRUE, passenger_id = $2
		 WHERE id = $1
		   AND NOT is_occupied
		   AND flight_id = (SELECT flight_id FROM passengers WHERE id = $2)`,
		seatID, passengerID,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrSeatOccupied)
	}

	return nil
}

// Vacate frees an occupied seat.
//
// Returns:
//   - error: repository.ErrSeatNotOccupied if the seat is already free.
func (r *SeatRepo) Vacate(ctx context.Context, seatID int64) error {
	const op = "postgres.SeatRepo.Vacate"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE seats
		 SET is_occupied = FALSE, passenger_id = NULL
		 WHERE id = $1 AND is_occupied`,
		seatID,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrSeatNotOccupied)
	}

	return nil
}

func scanSeat(row pgx.Row) (*domain.Seat, error) {
	var s domain.Seat
	if err := row.Scan(
		&s.ID,
		&s.FlightID,
		&s.Label,
		&s.Occupied,
		&s.PassengerID,
	); err != nil {
		return nil, err
	}

	return &s, nil
}
