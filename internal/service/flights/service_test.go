package flights

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kirinyoku/checkin-go/internal/domain"
	"github.com/kirinyoku/checkin-go/internal/hub"
	"github.com/kirinyoku/checkin-go/internal/repository/memory"
	redisrepo "github.com/kirinyoku/checkin-go/internal/repository/redis"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

func seeded(t *testing.T) *memory.Ledger {
	t.Helper()

	l := memory.NewLedger()
	require.NoError(t, memory.Seed(context.Background(), l, time.Now()))

	return l
}

func watch(t *testing.T, h *hub.Hub, flightID int64) *hub.Conn {
	t.Helper()

	c := h.Connect()
	require.NoError(t, h.Join(c, flightID))

	return c
}

func next(t *testing.T, c *hub.Conn) hub.Event {
	t.Helper()

	select {
	case ev := <-c.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
		return hub.Event{}
	}
}

func TestGetFlightAndSeats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc := New(seeded(t), nil, nil, hub.New(discard, 8), discard, Config{})

	f, err := svc.GetFlight(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "AA100", f.FlightNumber)

	seats, err := svc.ListSeats(ctx, 1)
	require.NoError(t, err)
	require.NotEmpty(t, seats)
	assert.Equal(t, "1A", seats[0].Label)
	assert.True(t, seats[0].Occupied)

	_, err = svc.GetFlight(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrFlightNotFound)

	_, err = svc.ListSeats(ctx, 404)
	assert.ErrorIs(t, err, domain.ErrFlightNotFound)
}

func TestValidateSeat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	svc := New(seeded(t), nil, nil, hub.New(discard, 8), discard, Config{})

	assert.NoError(t, svc.ValidateSeat(ctx, 1, "2a"))

	err := svc.ValidateSeat(ctx, 1, "40K")
	assert.ErrorIs(t, err, domain.ErrInvalidSeat)
	assert.Equal(t, domain.KindProtocolViolation, domain.KindOf(err))

	assert.ErrorIs(t, svc.ValidateSeat(ctx, 1, "aisle"), domain.ErrInvalidSeat)
}

func TestUpdateStatusBroadcastsLocally(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	h := hub.New(discard, 8)
	c := watch(t, h, 1)
	svc := New(seeded(t), nil, nil, h, discard, Config{})

	f, err := svc.UpdateStatus(ctx, 1, "boarding")
	require.NoError(t, err)
	assert.Equal(t, domain.FlightBoarding, f.Status)

	ev := next(t, c)
	assert.Equal(t, hub.EventFlightStatusUpdated, ev.Type)
	assert.Equal(t, domain.FlightBoarding, ev.Status)
	assert.Equal(t, "AA100", ev.FlightNumber)
	assert.Equal(t, "A12", ev.Gate)

	_, err = svc.UpdateStatus(ctx, 1, "landed")
	assert.Equal(t, domain.KindProtocolViolation, domain.KindOf(err))

	_, err = svc.UpdateStatus(ctx, 404, "Delayed")
	assert.ErrorIs(t, err, domain.ErrFlightNotFound)
}

type failingFeed struct{}

func (failingFeed) PublishStatus(context.Context, domain.Flight) error {
	return errors.New("redis down")
}

func TestUpdateStatusFallsBackWhenFeedFails(t *testing.T) {
	t.Parallel()

	h := hub.New(discard, 8)
	c := watch(t, h, 2)
	svc := New(seeded(t), nil, failingFeed{}, h, discard, Config{})

	_, err := svc.UpdateStatus(context.Background(), 2, "Departed")
	require.NoError(t, err)

	assert.Equal(t, domain.FlightDeparted, next(t, c).Status)
}

func TestStatusChangeTravelsThroughRedis(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cache := redisrepo.New(rdb)
	feed := redisrepo.NewFlightStatusPubSub(rdb)
	h := hub.New(discard, 8)
	c := watch(t, h, 3)
	svc := New(seeded(t), cache, feed, h, discard, Config{})

	before, err := svc.GetFlight(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.FlightDelayed, before.Status)

	ready := make(chan struct{})
	go func() { _ = feed.Subscribe(ctx, ready, svc.RelayStatus) }()
	<-ready

	_, err = svc.UpdateStatus(ctx, 3, "Boarding")
	require.NoError(t, err)

	ev := next(t, c)
	assert.Equal(t, hub.EventFlightStatusUpdated, ev.Type)
	assert.Equal(t, domain.FlightBoarding, ev.Status)

	after, err := svc.GetFlight(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, domain.FlightBoarding, after.Status)
}
