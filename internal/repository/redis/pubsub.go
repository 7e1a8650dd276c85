package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/kirinyoku/checkin-go/internal/domain"
	"github.com/redis/go-redis/v9"
)

// FlightStatusPubSub carries flight status changes between server
// instances so every instance can relay them to its own connections.
type FlightStatusPubSub struct {
	rdb     *redis.Client
	channel string
}

func NewFlightStatusPubSub(rdb *redis.Client) *FlightStatusPubSub {
	return &FlightStatusPubSub{
		rdb:     rdb,
		channel: ChannelFlightStatus(),
	}
}

type flightStatusMsg struct {
	FlightID     int64               `json:"flight_id"`
	FlightNumber string              `json:"flight_number"`
	Status       domain.FlightStatus `json:"status"`
	Gate         string              `json:"gate"`
	TsUnix       int64               `json:"ts_unix"`
}

func (p *FlightStatusPubSub) PublishStatus(ctx context.Context, f domain.Flight) error {
	msg := flightStatusMsg{
		FlightID:     f.ID,
		FlightNumber: f.FlightNumber,
		Status:       f.Status,
		Gate:         f.Gate,
		TsUnix:       time.Now().Unix(),
	}

	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	return p.rdb.Publish(ctx, p.channel, b).Err()
}

// Subscribe blocks until ctx is done, calling handler for every well-formed
// status message. ready, when non-nil, is closed once the subscription is
// confirmed by the server.
func (p *FlightStatusPubSub) Subscribe(
	ctx context.Context,
	ready chan<- struct{},
	handler func(ctx context.Context, f domain.Flight),
) error {
	sub := p.rdb.Subscribe(ctx, p.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}

	ch := sub.Channel(redis.WithChannelSize(256))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case m, ok := <-ch:
			if !ok {
				return nil
			}

			var msg flightStatusMsg
			if err := json.Unmarshal([]byte(m.Payload), &msg); err != nil || msg.FlightID == 0 {
				continue
			}

			handler(ctx, domain.Flight{
				ID:           msg.FlightID,
				FlightNumber: msg.FlightNumber,
				Status:       msg.Status,
				Gate:         msg.Gate,
			})
		}
	}
}
