package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRejectionMatchesByReason(t *testing.T) {
	err := fmt.Errorf("op:%w", SeatTaken("2C"))

	assert.ErrorIs(t, err, ErrSeatTaken)
	assert.NotErrorIs(t, err, ErrFlightFull)
	assert.Equal(t, KindConflict, KindOf(err))
	assert.Equal(t, "Seat 2C is already occupied.", AsRejection(err).Message)
}

func TestUnknownErrorsAreTransient(t *testing.T) {
	err := errors.New("connection reset")

	assert.Equal(t, KindTransient, KindOf(err))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsRetryable(ErrAlreadyCheckedIn))
	assert.False(t, IsRetryable(nil))
}

func TestTransientKeepsCause(t *testing.T) {
	cause := errors.New("pool closed")
	err := Transient(cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrTransient)
}
