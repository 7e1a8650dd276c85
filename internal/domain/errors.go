package domain

import (
	"errors"
	"fmt"
)

type ErrorKind string

const (
	KindNotFound          ErrorKind = "NotFound"
	KindConflict          ErrorKind = "Conflict"
	KindTransient         ErrorKind = "Transient"
	KindProtocolViolation ErrorKind = "ProtocolViolation"
)

// Rejection is an outcome the caller has to act on. Reason is a stable
// machine-readable code; Message is shown to the agent as is.
// Two rejections match under errors.Is when their reasons match, so
// SeatTaken("2C") is ErrSeatTaken.
type Rejection struct {
	Kind    ErrorKind
	Reason  string
	Message string
	Err     error
}

func (r *Rejection) Error() string {
	if r.Err != nil {
		return fmt.Sprintf("%s: %v", r.Reason, r.Err)
	}
	return r.Reason + ": " + r.Message
}

func (r *Rejection) Unwrap() error { return r.Err }

func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Reason == r.Reason
}

var (
	ErrPassengerNotFound = &Rejection{
		Kind:    KindNotFound,
		Reason:  "passenger_not_found",
		Message: "Passenger not found with the provided passport number.",
	}
	ErrFlightNotFound = &Rejection{
		Kind:    KindNotFound,
		Reason:  "flight_not_found",
		Message: "Flight not found.",
	}
	ErrSeatNotFound = &Rejection{
		Kind:    KindNotFound,
		Reason:  "seat_not_found",
		Message: "Seat not found.",
	}
	ErrAlreadyCheckedIn = &Rejection{
		Kind:    KindConflict,
		Reason:  "already_checked_in",
		Message: "Passenger is already checked in.",
	}
	ErrSeatTaken = &Rejection{
		Kind:    KindConflict,
		Reason:  "seat_taken",
		Message: "Seat is already occupied.",
	}
	ErrFlightFull = &Rejection{
		Kind:    KindConflict,
		Reason:  "flight_full",
		Message: "No available seats for this flight.",
	}
	ErrSeatNotOccupied = &Rejection{
		Kind:    KindConflict,
		Reason:  "seat_not_occupied",
		Message: "Seat is not occupied.",
	}
	ErrTransient = &Rejection{
		Kind:    KindTransient,
		Reason:  "storage_unavailable",
		Message: "The seat ledger is temporarily unavailable. Please try again.",
	}
	ErrInvalidSeat = &Rejection{
		Kind:    KindProtocolViolation,
		Reason:  "invalid_seat",
		Message: "Seat does not belong to this flight.",
	}
	ErrInvalidRequest = &Rejection{
		Kind:    KindProtocolViolation,
		Reason:  "invalid_request",
		Message: "Malformed request.",
	}
)

func SeatNotFound(label string) error {
	return &Rejection{
		Kind:    KindNotFound,
		Reason:  ErrSeatNotFound.Reason,
		Message: fmt.Sprintf("Seat %s not found for this flight.", label),
	}
}

func SeatTaken(label string) error {
	return &Rejection{
		Kind:    KindConflict,
		Reason:  ErrSeatTaken.Reason,
		Message: fmt.Sprintf("Seat %s is already occupied.", label),
	}
}

func InvalidSeat(label string) error {
	return &Rejection{
		Kind:    KindProtocolViolation,
		Reason:  ErrInvalidSeat.Reason,
		Message: fmt.Sprintf("Seat %s does not belong to this flight.", label),
	}
}

// Transient wraps a storage failure the caller may retry.
func Transient(err error) error {
	return &Rejection{
		Kind:    KindTransient,
		Reason:  ErrTransient.Reason,
		Message: ErrTransient.Message,
		Err:     err,
	}
}

// AsRejection extracts the rejection carried by err. Anything that is not
// a rejection is reported as transient.
func AsRejection(err error) *Rejection {
	var r *Rejection
	if errors.As(err, &r) {
		return r
	}

	return &Rejection{
		Kind:    KindTransient,
		Reason:  ErrTransient.Reason,
		Message: ErrTransient.Message,
		Err:     err,
	}
}

func KindOf(err error) ErrorKind {
	return AsRejection(err).Kind
}

// IsRetryable reports whether the caller may safely repeat the request.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindTransient
}

// RejectionFor rebuilds a rejection from its wire form.
func RejectionFor(kind ErrorKind, reason, message string) *Rejection {
	return &Rejection{Kind: kind, Reason: reason, Message: message}
}

func InvalidStatus(name string) error {
	return &Rejection{
		Kind:    KindProtocolViolation,
		Reason:  "invalid_status",
		Message: fmt.Sprintf("Unknown flight status %q.", name),
	}
}
