package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/kirinyoku/checkin-go/internal/domain"
)

type seedPassenger struct {
	name     string
	passport string
	flightID int64
	seat     string
}

// Seed loads the demo airport: ten flights, a few seats each, and a handful
// of passengers, two of them already checked in on flight 1.
func Seed(ctx context.Context, l *Ledger, now time.Time) error {
	const op = "memory.Seed"

	flights := []domain.Flight{
		{ID: 1, FlightNumber: "AA100", OriginAirport: "New York JFK", DestinationAirport: "Los Angeles LAX", Gate: "A12", Status: domain.FlightCheckingIn},
		{ID: 2, FlightNumber: "UA200", OriginAirport: "Chicago O'Hare", DestinationAirport: "Miami MIA", Gate: "B8", Status: domain.FlightBoarding},
		{ID: 3, FlightNumber: "DL300", OriginAirport: "Atlanta ATL", DestinationAirport: "Seattle SEA", Gate: "C15", Status: domain.FlightDelayed},
		{ID: 4, FlightNumber: "SW400", OriginAirport: "Dallas DFW", DestinationAirport: "Denver DEN", Gate: "D22", Status: domain.FlightCheckingIn},
		{ID: 5, FlightNumber: "BA500", OriginAirport: "London LHR", DestinationAirport: "New York JFK", Gate: "E5", Status: domain.FlightBoarding},
		{ID: 6, FlightNumber: "LH600", OriginAirport: "Frankfurt FRA", DestinationAirport: "Chicago O'Hare", Gate: "F12", Status: domain.FlightDeparted},
		{ID: 7, FlightNumber: "AF700", OriginAirport: "Paris CDG", DestinationAirport: "Los Angeles LAX", Gate: "G8", Status: domain.FlightCancelled},
		{ID: 8, FlightNumber: "JL800", OriginAirport: "Tokyo NRT", DestinationAirport: "San Francisco SFO", Gate: "H3", Status: domain.FlightCheckingIn},
		{ID: 9, FlightNumber: "KE900", OriginAirport: "Seoul ICN", DestinationAirport: "New York JFK", Gate: "I7", Status: domain.FlightBoarding},
		{ID: 10, FlightNumber: "SQ1000", OriginAirport: "Singapore SIN", DestinationAirport: "Los Angeles LAX", Gate: "J11", Status: domain.FlightDelayed},
	}

	seatMaps := map[int64][]string{
		1: {"1A", "1B", "2A", "2B", "3A", "3B", "4A", "4B", "5A"},
		2: {"1A", "1B", "2A", "2B", "3A", "3B", "4A"},
		3: {"1A", "1B", "2A", "2B", "3A"},
		4: {"1A", "1B", "2A", "2B"},
		5: {"1A", "1B", "2A", "2B"},
	}

	passengers := []seedPassenger{
		{"John Doe", "P1234567", 1, "1A"},
		{"Jane Smith", "P2345678", 1, "1B"},
		{"Bob Johnson", "P3456789", 2, ""},
		{"Alice Brown", "P4567890", 1, ""},
		{"Charlie Wilson", "P5678901", 1, ""},
		{"Diana Davis", "P6789012", 2, ""},
		{"Eve Miller", "P7890123", 2, ""},
		{"Frank Garcia", "P8901234", 1, ""},
	}

	for i, f := range flights {
		f.DepartsAt = now.Add(time.Duration(2*(i+1)) * time.Hour)
		l.AddFlight(f)

		labels, ok := seatMaps[f.ID]
		if !ok {
			labels = []string{"1A", "1B", "2A"}
		}

		for _, label := range labels {
			if _, err := l.AddSeat(f.ID, label); err != nil {
				return fmt.Errorf("%s:%w", op, err)
			}
		}
	}

	for _, p := range passengers {
		id, err := l.AddPassenger(p.flightID, p.name, p.passport)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		if p.seat == "" {
			continue
		}

		seat, err := l.FindSeat(ctx, p.flightID, p.seat)
		if err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}

		if err := l.CommitAssignment(ctx, seat.ID, id); err != nil {
			return fmt.Errorf("%s:%w", op, err)
		}
	}

	return nil
}
