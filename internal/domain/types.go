package domain

import (
	"strings"
	"time"
)

type FlightStatus string

const (
	FlightCheckingIn FlightStatus = "CheckingIn"
	FlightBoarding   FlightStatus = "Boarding"
	FlightDeparted   FlightStatus = "Departed"
	FlightDelayed    FlightStatus = "Delayed"
	FlightCancelled  FlightStatus = "Cancelled"
)

var flightStatuses = []FlightStatus{
	FlightCheckingIn,
	FlightBoarding,
	FlightDeparted,
	FlightDelayed,
	FlightCancelled,
}

// ParseFlightStatus matches s against the known statuses case-insensitively.
func ParseFlightStatus(s string) (FlightStatus, error) {
	s = strings.TrimSpace(s)
	for _, st := range flightStatuses {
		if strings.EqualFold(s, string(st)) {
			return st, nil
		}
	}

	return "", InvalidStatus(s)
}

type Flight struct {
	ID                 int64        `json:"flight_id"`
	FlightNumber       string       `json:"flight_number"`
	OriginAirport      string       `json:"origin_airport"`
	DestinationAirport string       `json:"destination_airport"`
	DepartsAt          time.Time    `json:"departs_at"`
	Gate               string       `json:"gate"`
	Status             FlightStatus `json:"status"`
}

type Seat struct {
	ID          int64  `json:"seat_id"`
	FlightID    int64  `json:"flight_id"`
	Label       string `json:"seat_number"`
	Occupied    bool   `json:"is_occupied"`
	PassengerID *int64 `json:"passenger_id,omitempty"`
}

type Passenger struct {
	ID             int64  `json:"passenger_id"`
	FullName       string `json:"full_name"`
	PassportNumber string `json:"passport_number"`
	FlightID       int64  `json:"flight_id"`
	AssignedSeatID *int64 `json:"assigned_seat_id,omitempty"`
	CheckedIn      bool   `json:"is_checked_in"`
}

// CheckInResult is what an agent needs to print a boarding pass.
type CheckInResult struct {
	PassengerID   int64  `json:"passenger_id"`
	PassengerName string `json:"passenger_name"`
	FlightID      int64  `json:"flight_id"`
	FlightNumber  string `json:"flight_number"`
	SeatID        int64  `json:"seat_id"`
	SeatLabel     string `json:"seat_number"`
	Gate          string `json:"gate"`
}
