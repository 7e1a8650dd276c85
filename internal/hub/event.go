package hub

import "github.com/kirinyoku/checkin-go/internal/domain"

type EventType string

const (
	EventConnected           EventType = "Connected"
	EventSeatOccupied        EventType = "SeatOccupied"
	EventSeatAvailable       EventType = "SeatAvailable"
	EventSeatSelected        EventType = "SeatSelected"
	EventSeatDeselected      EventType = "SeatDeselected"
	EventFlightStatusUpdated EventType = "FlightStatusUpdated"
)

// Event is a state change pushed to the members of a flight group.
// By carries the connection ID of the agent holding a soft lock.
type Event struct {
	Type         EventType           `json:"type"`
	FlightID     int64               `json:"flight_id,omitempty"`
	SeatLabel    string              `json:"seat_number,omitempty"`
	By           string              `json:"by,omitempty"`
	Status       domain.FlightStatus `json:"status,omitempty"`
	FlightNumber string              `json:"flight_number,omitempty"`
	Gate         string              `json:"gate,omitempty"`
}

func Occupied(flightID int64, seatLabel string) Event {
	return Event{Type: EventSeatOccupied, FlightID: flightID, SeatLabel: seatLabel}
}

func Available(flightID int64, seatLabel string) Event {
	return Event{Type: EventSeatAvailable, FlightID: flightID, SeatLabel: seatLabel}
}

func Selected(flightID int64, seatLabel, by string) Event {
	return Event{Type: EventSeatSelected, FlightID: flightID, SeatLabel: seatLabel, By: by}
}

func Deselected(flightID int64, seatLabel, by string) Event {
	return Event{Type: EventSeatDeselected, FlightID: flightID, SeatLabel: seatLabel, By: by}
}

func FlightStatusChanged(f domain.Flight) Event {
	return Event{
		Type:         EventFlightStatusUpdated,
		FlightID:     f.ID,
		Status:       f.Status,
		FlightNumber: f.FlightNumber,
		Gate:         f.Gate,
	}
}
