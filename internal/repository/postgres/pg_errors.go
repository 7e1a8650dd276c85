package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kirinyoku/checkin-go/internal/repository"
)

// Unique constraints from migrations/0001_init.sql that double as
// occupancy guards.
var uniqueViolations = map[string]error{
	"seats_passenger_id_key":          repository.ErrAlreadyCheckedIn,
	"passengers_assigned_seat_id_key": repository.ErrSeatOccupied,
}

// IsRetryable reports serialization failures and deadlocks.
func IsRetryable(err error) bool {
	var pgErr *pgconn.PgError

	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return true
		}
	}

	return false
}

func translateDBErr(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return repository.ErrNotFound
	}

	if IsRetryable(err) {
		return errors.Join(repository.ErrRetryable, err)
	}

	var pge *pgconn.PgError
	if errors.As(err, &pge) {
		switch pge.Code {
		case "23505": // unique_violation
			if mapped, ok := uniqueViolations[pge.ConstraintName]; ok {
				return mapped
			}
			return repository.ErrConflict
		case "23503": // foreign_key_violation
			return repository.ErrNotFound
		}
	}

	return err
}
