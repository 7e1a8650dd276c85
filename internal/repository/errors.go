package repository

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrConflict         = errors.New("conflict")
	ErrSeatOccupied     = errors.New("seat already occupied")
	ErrSeatNotOccupied  = errors.New("seat not occupied")
	ErrAlreadyCheckedIn = errors.New("passenger already checked in")
	ErrRetryable        = errors.New("retryable storage failure")
)
