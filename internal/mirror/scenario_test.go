package mirror

import (
	"context"
	"testing"
	"time"

	"github.com/kirinyoku/checkin-go/internal/domain"
	"github.com/kirinyoku/checkin-go/internal/hub"
	"github.com/kirinyoku/checkin-go/internal/repository/memory"
	"github.com/kirinyoku/checkin-go/internal/service/checkin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// localTransport drives the real hub and coordinator in process.
type localTransport struct {
	hub    *hub.Hub
	conn   *hub.Conn
	ledger *memory.Ledger
	svc    *checkin.Service
}

func (l *localTransport) FetchSeats(ctx context.Context, flightID int64) ([]domain.Seat, error) {
	return l.ledger.ListSeats(ctx, flightID)
}

func (l *localTransport) JoinFlight(_ context.Context, flightID int64) error {
	return l.hub.Join(l.conn, flightID)
}

func (l *localTransport) LeaveFlight(_ context.Context, flightID int64) error {
	l.hub.Leave(l.conn, flightID)
	return nil
}

func (l *localTransport) SelectSeat(_ context.Context, flightID int64, label string) error {
	return l.hub.Select(l.conn, flightID, label)
}

func (l *localTransport) DeselectSeat(_ context.Context, flightID int64, label string) error {
	return l.hub.Deselect(l.conn, flightID, label)
}

func (l *localTransport) CheckIn(ctx context.Context, passport, label string) (*domain.CheckInResult, error) {
	return l.svc.CheckIn(ctx, passport, label)
}

type agent struct {
	mirror *Mirror
	conn   *hub.Conn
}

func newAgent(t *testing.T, ctx context.Context, h *hub.Hub, l *memory.Ledger, svc *checkin.Service) *agent {
	t.Helper()

	conn := h.Connect()
	m := New(&localTransport{hub: h, conn: conn, ledger: l, svc: svc}, discard)
	go func() { _ = m.Run(ctx, conn.Events()) }()

	t.Cleanup(func() {
		_ = m.Close(context.Background())
		h.Disconnect(conn)
	})

	return &agent{mirror: m, conn: conn}
}

func eventually(t *testing.T, m *Mirror, label string, want SeatState) {
	t.Helper()

	assert.Eventually(t, func() bool {
		st, ok := m.State(label)
		return ok && st == want
	}, 2*time.Second, 5*time.Millisecond, "seat %s never became %s", label, want)
}

func TestSoftLockThenCommitAcrossAgents(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := memory.NewLedger()
	require.NoError(t, memory.Seed(ctx, l, time.Now()))
	h := hub.New(discard, 64)
	svc := checkin.New(l, h, discard)

	a := newAgent(t, ctx, h, l, svc)
	b := newAgent(t, ctx, h, l, svc)
	c := newAgent(t, ctx, h, l, svc)

	for _, ag := range []*agent{a, b, c} {
		require.NoError(t, ag.mirror.Enter(ctx, 2))
	}

	require.NoError(t, a.mirror.Select("2A"))
	a.mirror.Flush()

	assert.Equal(t, SelectedByMe, mustState(t, a.mirror, "2A"))
	eventually(t, b.mirror, "2A", SelectedByOther)
	eventually(t, c.mirror, "2A", SelectedByOther)
	assert.ErrorIs(t, b.mirror.Select("2A"), ErrSeatUnavailable)

	res, err := a.mirror.CheckIn(ctx, "P3456789")
	require.NoError(t, err)
	assert.Equal(t, "2A", res.SeatLabel)
	assert.Equal(t, "Bob Johnson", res.PassengerName)
	assert.Equal(t, "UA200", res.FlightNumber)

	for _, ag := range []*agent{a, b, c} {
		eventually(t, ag.mirror, "2A", Occupied)
	}

	// A late Selected for the committed seat changes nothing.
	b.mirror.Apply(hub.Selected(2, "2A", "stale"))
	assert.Equal(t, Occupied, mustState(t, b.mirror, "2A"))
}

func TestSoftLockIgnoredByCoordinator(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := memory.NewLedger()
	require.NoError(t, memory.Seed(ctx, l, time.Now()))
	h := hub.New(discard, 64)
	svc := checkin.New(l, h, discard)

	a := newAgent(t, ctx, h, l, svc)
	b := newAgent(t, ctx, h, l, svc)
	require.NoError(t, a.mirror.Enter(ctx, 2))

	// b never joined, so it missed a's soft lock and commits straight
	// through the coordinator; a's attempt then loses.
	require.NoError(t, a.mirror.Select("3A"))

	_, err := b.mirror.transport.CheckIn(ctx, "P6789012", "3A")
	require.NoError(t, err)

	eventually(t, a.mirror, "3A", Occupied)
	assert.Empty(t, a.mirror.Selected())

	_, err = svc.CheckIn(ctx, "P7890123", "3A")
	assert.ErrorIs(t, err, domain.ErrSeatTaken)
}

func TestDisconnectReleasesRemoteSoftLock(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	l := memory.NewLedger()
	require.NoError(t, memory.Seed(ctx, l, time.Now()))
	h := hub.New(discard, 64)
	svc := checkin.New(l, h, discard)

	a := newAgent(t, ctx, h, l, svc)
	b := newAgent(t, ctx, h, l, svc)
	require.NoError(t, a.mirror.Enter(ctx, 1))
	require.NoError(t, b.mirror.Enter(ctx, 1))

	require.NoError(t, a.mirror.Select("3B"))
	eventually(t, b.mirror, "3B", SelectedByOther)

	h.Disconnect(a.conn)

	eventually(t, b.mirror, "3B", Free)
}

func mustState(t *testing.T, m *Mirror, label string) SeatState {
	t.Helper()

	st, ok := m.State(label)
	require.True(t, ok)

	return st
}
