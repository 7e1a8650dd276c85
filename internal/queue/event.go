// Package queue hands confirmed check-ins to downstream consumers over
// RabbitMQ.
package queue

import (
	"time"

	"github.com/kirinyoku/checkin-go/internal/domain"
)

const CheckInConfirmedQueue = "checkin.confirmed"

// CheckInConfirmedEvent is the body of a checkin.confirmed message.
type CheckInConfirmedEvent struct {
	PassengerID   int64  `json:"passenger_id"`
	PassengerName string `json:"passenger_name"`
	FlightID      int64  `json:"flight_id"`
	FlightNumber  string `json:"flight_number"`
	SeatID        int64  `json:"seat_id"`
	SeatNumber    string `json:"seat_number"`
	Gate          string `json:"gate"`
	ConfirmedAt   string `json:"confirmed_at"`
}

func NewCheckInConfirmedEvent(res domain.CheckInResult, at time.Time) CheckInConfirmedEvent {
	return CheckInConfirmedEvent{
		PassengerID:   res.PassengerID,
		PassengerName: res.PassengerName,
		FlightID:      res.FlightID,
		FlightNumber:  res.FlightNumber,
		SeatID:        res.SeatID,
		SeatNumber:    res.SeatLabel,
		Gate:          res.Gate,
		ConfirmedAt:   at.UTC().Format(time.RFC3339),
	}
}
