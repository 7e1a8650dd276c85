package redis

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kirinyoku/checkin-go/internal/domain"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, rdb
}

func TestGetOrSetJSONLoadsOnce(t *testing.T) {
	ctx := context.Background()
	_, rdb := newClient(t)
	c := New(rdb)

	var loads atomic.Int32
	loader := func(context.Context) (domain.Flight, error) {
		loads.Add(1)
		return domain.Flight{ID: 1, FlightNumber: "AA100", Gate: "A12"}, nil
	}

	for i := 0; i < 3; i++ {
		f, err := GetOrSetJSON(ctx, c, KeyFlightSummary(1), time.Minute, loader)
		require.NoError(t, err)
		assert.Equal(t, "AA100", f.FlightNumber)
	}
	assert.Equal(t, int32(1), loads.Load())

	require.NoError(t, c.InvalidateFlight(ctx, 1))

	_, err := GetOrSetJSON(ctx, c, KeyFlightSummary(1), time.Minute, loader)
	require.NoError(t, err)
	assert.Equal(t, int32(2), loads.Load())
}

func TestGetOrSetJSONDoesNotCacheErrors(t *testing.T) {
	ctx := context.Background()
	_, rdb := newClient(t)
	c := New(rdb)
	boom := errors.New("boom")

	_, err := GetOrSetJSON(ctx, c, "k", time.Minute, func(context.Context) (int, error) { return 0, boom })
	assert.ErrorIs(t, err, boom)

	v, err := GetOrSetJSON(ctx, c, "k", time.Minute, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestGetOrSetJSONWithoutCache(t *testing.T) {
	var c *Cache

	v, err := GetOrSetJSON(context.Background(), c, "k", time.Minute, func(context.Context) (string, error) {
		return "direct", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "direct", v)
}

func TestSlidingWindowLimiter(t *testing.T) {
	ctx := context.Background()
	_, rdb := newClient(t)

	now := time.UnixMilli(1_700_000_000_000)
	l := NewSlidingWindowLimiter(rdb, "checkin", 2, time.Second)
	l.now = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		d, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed)
	}

	d, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, time.Second, d.RetryAfter)

	d, err = l.Allow(ctx, "10.0.0.2")
	require.NoError(t, err)
	assert.True(t, d.Allowed)

	now = now.Add(1100 * time.Millisecond)
	d, err = l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}

func TestIdempotencyStoreLifecycle(t *testing.T) {
	ctx := context.Background()
	_, rdb := newClient(t)
	s := NewIdempotencyStore(rdb, time.Hour)
	key := KeyIdemCheckIn("abc")

	state, _, err := s.Begin(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, IdemNew, state)

	state, _, err = s.Begin(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, IdemInFlight, state)

	require.NoError(t, s.Complete(ctx, key, `{"seat_number":"1A"}`))

	state, payload, err := s.Begin(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, IdemReplay, state)
	assert.JSONEq(t, `{"seat_number":"1A"}`, payload)

	other := KeyIdemCheckIn("def")
	_, _, err = s.Begin(ctx, other)
	require.NoError(t, err)
	require.NoError(t, s.Abandon(ctx, other))

	state, _, err = s.Begin(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, IdemNew, state)
}

func TestFlightStatusPubSub(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	_, rdb := newClient(t)
	ps := NewFlightStatusPubSub(rdb)

	ready := make(chan struct{})
	got := make(chan domain.Flight, 1)
	done := make(chan error, 1)
	go func() {
		done <- ps.Subscribe(ctx, ready, func(_ context.Context, f domain.Flight) { got <- f })
	}()

	select {
	case <-ready:
	case <-time.After(2 * time.Second):
		t.Fatal("subscription not confirmed")
	}

	require.NoError(t, ps.PublishStatus(ctx, domain.Flight{ID: 3, FlightNumber: "DL300", Status: domain.FlightBoarding, Gate: "C15"}))

	select {
	case f := <-got:
		assert.Equal(t, int64(3), f.ID)
		assert.Equal(t, domain.FlightBoarding, f.Status)
		assert.Equal(t, "C15", f.Gate)
	case <-time.After(2 * time.Second):
		t.Fatal("status message not delivered")
	}

	cancel()
	<-done
}
