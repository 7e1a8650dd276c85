package hub

import (
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestHub(buffer int) *Hub {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)), buffer)
}

func drain(c *Conn) []Event {
	var out []Event
	for {
		select {
		case ev, ok := <-c.Events():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestJoinAndLeaveAreIdempotent(t *testing.T) {
	h := newTestHub(8)
	c := h.Connect()

	require.NoError(t, h.Join(c, 1))
	require.NoError(t, h.Join(c, 1))
	assert.Equal(t, 1, h.Members(1))

	h.Leave(c, 1)
	h.Leave(c, 1)
	h.Leave(c, 2)
	assert.Equal(t, 0, h.Members(1))
}

func TestPublishIsFlightScoped(t *testing.T) {
	h := newTestHub(8)
	a, b := h.Connect(), h.Connect()
	require.NoError(t, h.Join(a, 1))
	require.NoError(t, h.Join(b, 2))

	assert.Equal(t, 1, h.Publish(1, Occupied(1, "1A")))

	assert.Equal(t, []Event{Occupied(1, "1A")}, drain(a))
	assert.Empty(t, drain(b))
}

func TestSelectIsRelayedToOthersOnly(t *testing.T) {
	h := newTestHub(8)
	a, b := h.Connect(), h.Connect()
	require.NoError(t, h.Join(a, 1))
	require.NoError(t, h.Join(b, 1))

	require.NoError(t, h.Select(a, 1, "2a"))

	assert.Empty(t, drain(a))
	assert.Equal(t, []Event{Selected(1, "2A", a.ID())}, drain(b))
	assert.Equal(t, []string{"2A"}, a.Selections(1))

	require.NoError(t, h.Deselect(a, 1, "2A"))
	assert.Equal(t, []Event{Deselected(1, "2A", a.ID())}, drain(b))
	assert.Empty(t, a.Selections(1))
}

func TestSelectRequiresMembership(t *testing.T) {
	h := newTestHub(8)
	c := h.Connect()

	assert.ErrorIs(t, h.Select(c, 1, "1A"), ErrNotMember)
	assert.ErrorIs(t, h.Deselect(c, 1, "1A"), ErrNotMember)
}

func TestSlowConsumerDoesNotBlockOthers(t *testing.T) {
	h := newTestHub(1)
	slow, fast := h.Connect(), h.Connect()
	require.NoError(t, h.Join(slow, 1))
	require.NoError(t, h.Join(fast, 1))

	h.Publish(1, Occupied(1, "1A"))
	assert.Len(t, drain(fast), 1)

	h.Publish(1, Occupied(1, "1B"))

	assert.Equal(t, []Event{Occupied(1, "1B")}, drain(fast))
	assert.Equal(t, int64(1), slow.Dropped())
	assert.Equal(t, []Event{Occupied(1, "1A")}, drain(slow))
}

func TestDisconnectReleasesSoftLocks(t *testing.T) {
	h := newTestHub(8)
	a, b := h.Connect(), h.Connect()
	require.NoError(t, h.Join(a, 1))
	require.NoError(t, h.Join(b, 1))
	require.NoError(t, h.Select(a, 1, "3C"))
	drain(b)

	h.Disconnect(a)
	h.Disconnect(a)

	assert.Equal(t, []Event{Deselected(1, "3C", a.ID())}, drain(b))
	assert.Equal(t, 1, h.Members(1))

	_, ok := <-a.Events()
	assert.False(t, ok)

	_, err := h.Lookup(a.ID())
	assert.ErrorIs(t, err, ErrUnknownConn)
	assert.ErrorIs(t, h.Join(a, 1), ErrConnClosed)
}

func TestPublishPreservesOrderPerConnection(t *testing.T) {
	h := newTestHub(128)
	c := h.Connect()
	require.NoError(t, h.Join(c, 1))

	labels := []string{"1A", "1B", "1C", "2A", "2B"}
	for _, l := range labels {
		h.Publish(1, Occupied(1, l))
	}

	got := drain(c)
	require.Len(t, got, len(labels))
	for i, l := range labels {
		assert.Equal(t, l, got[i].SeatLabel)
	}
}

func TestConcurrentMembershipAndPublish(t *testing.T) {
	h := newTestHub(4)
	stable := h.Connect()
	require.NoError(t, h.Join(stable, 7))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := h.Connect()
			for j := 0; j < 50; j++ {
				_ = h.Join(c, 7)
				_ = h.Select(c, 7, "1A")
				h.Leave(c, 7)
			}
			h.Disconnect(c)
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < 200; j++ {
			h.Publish(7, Available(7, "1A"))
		}
	}()

	wg.Wait()

	assert.Equal(t, 1, h.Members(7))
}

func TestLeaveRacingSelectLeavesNoStaleLock(t *testing.T) {
	h := newTestHub(16)
	peer := h.Connect()
	require.NoError(t, h.Join(peer, 1))

	for i := 0; i < 500; i++ {
		c := h.Connect()
		require.NoError(t, h.Join(c, 1))

		var (
			wg  sync.WaitGroup
			err error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			err = h.Select(c, 1, "4B")
		}()
		go func() {
			defer wg.Done()
			h.Leave(c, 1)
		}()
		wg.Wait()

		got := drain(peer)
		if err != nil {
			require.ErrorIs(t, err, ErrNotMember)
			require.Empty(t, got)
		} else {
			// A relayed selection is always followed by its release.
			require.Equal(t, []Event{Selected(1, "4B", c.ID()), Deselected(1, "4B", c.ID())}, got)
		}
		require.Empty(t, c.Selections(1))

		h.Disconnect(c)
		require.Empty(t, drain(peer))
	}
}

func TestOccupiedDropsSoftLocks(t *testing.T) {
	h := newTestHub(8)
	a, b := h.Connect(), h.Connect()
	require.NoError(t, h.Join(a, 1))
	require.NoError(t, h.Join(b, 1))
	require.NoError(t, h.Select(a, 1, "2A"))
	require.NoError(t, h.Select(a, 1, "2B"))
	drain(b)

	h.Publish(1, Occupied(1, "2A"))
	assert.Equal(t, []string{"2B"}, a.Selections(1))
	drain(a)
	drain(b)

	h.Leave(a, 1)

	assert.Equal(t, []Event{Deselected(1, "2B", a.ID())}, drain(b))
}
