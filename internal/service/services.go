package service

import (
	"log/slog"

	"github.com/kirinyoku/checkin-go/internal/hub"
	redisrepo "github.com/kirinyoku/checkin-go/internal/repository/redis"
	"github.com/kirinyoku/checkin-go/internal/service/checkin"
	"github.com/kirinyoku/checkin-go/internal/service/flights"
)

// Ledger is everything the services need from the seat store.
type Ledger interface {
	checkin.Ledger
	flights.Ledger
}

type Services struct {
	CheckIn *checkin.Service
	Flights *flights.Service
}

type Config struct {
	Flights flights.Config
}

// NewServices wires the coordinator and the flight service around one hub.
// cache, feed and notifier may be nil.
func NewServices(
	ledger Ledger,
	h *hub.Hub,
	cache *redisrepo.Cache,
	feed *redisrepo.FlightStatusPubSub,
	notifier checkin.Notifier,
	logger *slog.Logger,
	cfg Config,
) *Services {
	var opts []checkin.Option
	if cache != nil {
		opts = append(opts, checkin.WithCache(cache))
	}
	if notifier != nil {
		opts = append(opts, checkin.WithNotifier(notifier))
	}

	var statusFeed flights.StatusFeed
	if feed != nil {
		statusFeed = feed
	}

	return &Services{
		CheckIn: checkin.New(ledger, h, logger, opts...),
		Flights: flights.New(ledger, cache, statusFeed, h, logger, cfg.Flights),
	}
}
