package httpgin

import "github.com/kirinyoku/checkin-go/internal/domain"

type CheckInRequest struct {
	PassportNumber string `json:"passport_number" binding:"required"`
	SeatNumber     string `json:"seat_number"`
}

type CheckInResponse struct {
	OK            bool   `json:"ok"`
	PassengerID   int64  `json:"passenger_id"`
	PassengerName string `json:"passenger_name"`
	FlightID      int64  `json:"flight_id"`
	FlightNumber  string `json:"flight_number"`
	SeatID        int64  `json:"seat_id"`
	SeatNumber    string `json:"seat_number"`
	Gate          string `json:"gate"`
}

func newCheckInResponse(res *domain.CheckInResult) CheckInResponse {
	return CheckInResponse{
		OK:            true,
		PassengerID:   res.PassengerID,
		PassengerName: res.PassengerName,
		FlightID:      res.FlightID,
		FlightNumber:  res.FlightNumber,
		SeatID:        res.SeatID,
		SeatNumber:    res.SeatLabel,
		Gate:          res.Gate,
	}
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type FlightRequest struct {
	FlightID int64 `json:"flight_id" binding:"required,gt=0"`
}

type SeatRequest struct {
	FlightID   int64  `json:"flight_id" binding:"required,gt=0"`
	SeatNumber string `json:"seat_number" binding:"required"`
}

// ConnectedEvent is the first message on every event stream.
type ConnectedEvent struct {
	ConnectionID string `json:"connection_id"`
}

// ErrorResponse carries a rejection. Error is the kind (NotFound,
// Conflict, Transient, ProtocolViolation), Reason a stable code and
// Message the text to show the agent.
type ErrorResponse struct {
	Error     string `json:"error"`
	Reason    string `json:"reason"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}
