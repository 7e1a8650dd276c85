package postgres

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/kirinyoku/checkin-go/internal/repository"
)

func TestTranslateDBErr(t *testing.T) {
	t.Parallel()

	assert.NoError(t, translateDBErr(nil))
	assert.ErrorIs(t, translateDBErr(fmt.Errorf("scan: %w", pgx.ErrNoRows)), repository.ErrNotFound)

	for _, code := range []string{"40001", "40P01"} {
		err := translateDBErr(&pgconn.PgError{Code: code})
		assert.ErrorIs(t, err, repository.ErrRetryable, code)
		assert.True(t, IsRetryable(err), code)
	}

	assert.ErrorIs(t, translateDBErr(&pgconn.PgError{Code: "23505"}), repository.ErrConflict)
	assert.ErrorIs(t,
		translateDBErr(&pgconn.PgError{Code: "23505", ConstraintName: "seats_passenger_id_key"}),
		repository.ErrAlreadyCheckedIn,
	)
	assert.ErrorIs(t,
		translateDBErr(&pgconn.PgError{Code: "23505", ConstraintName: "passengers_assigned_seat_id_key"}),
		repository.ErrSeatOccupied,
	)
	assert.ErrorIs(t, translateDBErr(&pgconn.PgError{Code: "23503"}), repository.ErrNotFound)

	other := errors.New("connection reset")
	assert.Same(t, other, translateDBErr(other))
	assert.False(t, IsRetryable(other))
}
