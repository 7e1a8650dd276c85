package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/checkin-go/internal/domain"
	"github.com/kirinyoku/checkin-go/internal/repository"
)

type PassengerRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *PassengerRepo) With(db DB) *PassengerRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PassengerRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// GetByPassport retrieves a passenger by passport number.
//
// Returns:
//   - *domain.Passenger: the passenger when found.
//   - error: repository.ErrNotFound if no passenger holds that passport.
func (r *PassengerRepo) GetByPassport(ctx context.Context, passport string) (*domain.Passenger, error) {
	const op = "postgres.PassengerRepo.GetByPassport"

	db := r.handle()

	var p domain.Passenger
	err := db.QueryRow(ctx,
		`SELECT id, full_name, passport_number, flight_id, assigned_seat_id, is_checked_in
       	 FROM passengers WHERE passport_number = $1`,
		passport,
	).Scan(
		&p.ID,
		&p.FullName,
		&p.PassportNumber,
		&p.FlightID,
		&p.AssignedSeatID,
		&p.CheckedIn,
	)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return &p, nil
}

// MarkCheckedIn binds the passenger to seatID, provided the passenger has
// not checked in yet.
//
// Returns:
//   - error: repository.ErrAlreadyCheckedIn if the passenger is already checked in.
func (r *PassengerRepo) MarkCheckedIn(ctx context.Context, passengerID, seatID int64) error {
	const op = "postgres.PassengerRepo.MarkCheckedIn"

	db := r.handle()

	tag, err := db.Exec(ctx,
		`UPDATE passengers
		 SET is_checked_in = TRUE, assigned_seat_id = $2
		 WHERE id = $1 AND NOT is_checked_in`,
		passengerID, seatID,
	)
	if err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrAlreadyCheckedIn)
	}

	return nil
}

// Offload clears the passenger's seat binding and check-in flag.
func (r *PassengerRepo) Offload(ctx context.Context, passengerID int64) error {
	const op = "postgres.PassengerRepo.Offload"

	db := r.handle()

	if _, err := db.Exec(ctx,
		`UPDATE passengers
		 SET is_checked_in = FALSE, assigned_seat_id = NULL
		 WHERE id = $1`,
		passengerID,
	); err != nil {
		return fmt.Errorf("%s:%w", op, translateDBErr(err))
	}

	return nil
}
