package checkin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/kirinyoku/checkin-go/internal/domain"
	"github.com/kirinyoku/checkin-go/internal/hub"
	"github.com/kirinyoku/checkin-go/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ledger *memory.Ledger
	hub    *hub.Hub
	svc    *Service
	seats  map[string]int64
	watch  *hub.Conn
}

func newFixture(t *testing.T, labels ...string) *fixture {
	t.Helper()

	l := memory.NewLedger()
	l.AddFlight(domain.Flight{ID: 1, FlightNumber: "AA100", Gate: "A12", Status: domain.FlightCheckingIn})

	seats := map[string]int64{}
	for _, label := range labels {
		id, err := l.AddSeat(1, label)
		require.NoError(t, err)
		seats[label] = id
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	h := hub.New(logger, 256)
	watch := h.Connect()
	require.NoError(t, h.Join(watch, 1))

	return &fixture{
		ledger: l,
		hub:    h,
		svc:    New(l, h, logger),
		seats:  seats,
		watch:  watch,
	}
}

func (f *fixture) passenger(t *testing.T, name, passport string) int64 {
	t.Helper()

	id, err := f.ledger.AddPassenger(1, name, passport)
	require.NoError(t, err)

	return id
}

func (f *fixture) events() []hub.Event {
	var out []hub.Event
	for {
		select {
		case ev := <-f.watch.Events():
			out = append(out, ev)
		default:
			return out
		}
	}
}

// assertPartition checks that occupied seats and checked-in passengers
// map onto each other one to one.
func (f *fixture) assertPartition(t *testing.T) {
	t.Helper()

	seats, err := f.ledger.ListSeats(context.Background(), 1)
	require.NoError(t, err)

	occupiedBy := map[int64]int64{}
	for _, s := range seats {
		if !s.Occupied {
			assert.Nil(t, s.PassengerID, "free seat %s bound to a passenger", s.Label)
			continue
		}
		require.NotNil(t, s.PassengerID, "occupied seat %s has no passenger", s.Label)
		_, dup := occupiedBy[*s.PassengerID]
		assert.False(t, dup, "passenger %d holds two seats", *s.PassengerID)
		occupiedBy[*s.PassengerID] = s.ID
	}

	checkedIn := 0
	for _, p := range f.ledger.Passengers(1) {
		if !p.CheckedIn {
			assert.Nil(t, p.AssignedSeatID)
			continue
		}
		checkedIn++
		require.NotNil(t, p.AssignedSeatID)
		assert.Equal(t, occupiedBy[p.ID], *p.AssignedSeatID)
	}

	assert.Equal(t, len(occupiedBy), checkedIn)
}

func TestCheckInPicksLowestFreeSeat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, "2A", "1B", "1A", "10A")
	other := f.passenger(t, "Early Bird", "P0")
	require.NoError(t, f.ledger.CommitAssignment(ctx, f.seats["1A"], other))
	f.passenger(t, "John Doe", "P1")

	res, err := f.svc.CheckIn(ctx, "P1", "")
	require.NoError(t, err)

	assert.Equal(t, "1B", res.SeatLabel)
	assert.Equal(t, "John Doe", res.PassengerName)
	assert.Equal(t, "AA100", res.FlightNumber)
	assert.Equal(t, "A12", res.Gate)
	assert.Equal(t, []hub.Event{hub.Occupied(1, "1B")}, f.events())
	f.assertPartition(t)
}

func TestCheckInScenarioSeatTakenAfterImplicitPick(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, "1A", "1B")
	holder := f.passenger(t, "Holder", "P9")
	require.NoError(t, f.ledger.CommitAssignment(ctx, f.seats["1B"], holder))
	f.passenger(t, "First", "P1")
	f.passenger(t, "Second", "P2")

	res, err := f.svc.CheckIn(ctx, "P1", "")
	require.NoError(t, err)
	assert.Equal(t, "1A", res.SeatLabel)

	_, err = f.svc.CheckIn(ctx, "P2", "1a")
	assert.ErrorIs(t, err, domain.ErrSeatTaken)
	assert.Equal(t, domain.KindConflict, domain.KindOf(err))
	assert.Equal(t, "Seat 1A is already occupied.", domain.AsRejection(err).Message)
	f.assertPartition(t)
}

func TestCheckInPreconditionOrder(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, "1A")
	f.passenger(t, "John Doe", "P1")

	_, err := f.svc.CheckIn(ctx, "NOPE", "1A")
	assert.ErrorIs(t, err, domain.ErrPassengerNotFound)
	assert.Equal(t, domain.KindNotFound, domain.KindOf(err))

	_, err = f.svc.CheckIn(ctx, "P1", "9Z")
	assert.ErrorIs(t, err, domain.ErrSeatNotFound)
	assert.Equal(t, "Seat 9Z not found for this flight.", domain.AsRejection(err).Message)

	_, err = f.svc.CheckIn(ctx, "P1", "1A")
	require.NoError(t, err)

	_, err = f.svc.CheckIn(ctx, "P1", "9Z")
	assert.ErrorIs(t, err, domain.ErrAlreadyCheckedIn)
}

func TestCheckInAlreadyCheckedInHasNoEffect(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, "1A", "1B")
	f.passenger(t, "John Doe", "P1")

	_, err := f.svc.CheckIn(ctx, "P1", "1A")
	require.NoError(t, err)
	f.events()

	before, err := f.ledger.ListSeats(ctx, 1)
	require.NoError(t, err)

	_, err = f.svc.CheckIn(ctx, "P1", "1B")
	assert.ErrorIs(t, err, domain.ErrAlreadyCheckedIn)
	assert.Equal(t, "Passenger is already checked in.", domain.AsRejection(err).Message)

	after, err := f.ledger.ListSeats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, f.events())
}

func TestCheckInFlightFull(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, "1A")
	f.passenger(t, "First", "P1")
	f.passenger(t, "Second", "P2")

	_, err := f.svc.CheckIn(ctx, "P1", "")
	require.NoError(t, err)

	_, err = f.svc.CheckIn(ctx, "P2", "")
	assert.ErrorIs(t, err, domain.ErrFlightFull)
	assert.Equal(t, "No available seats for this flight.", domain.AsRejection(err).Message)
}

func TestConcurrentCheckInSameSeat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	const callers = 24
	f := newFixture(t, "1A", "1B")
	for i := 0; i < callers; i++ {
		f.passenger(t, "pax", fmt.Sprintf("P%d", i))
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		taken  int
		others []error
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.CheckIn(ctx, fmt.Sprintf("P%d", i), "1A")

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, domain.ErrSeatTaken):
				taken++
			default:
				others = append(others, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, taken)
	assert.Empty(t, others)
	assert.Len(t, f.events(), 1)
	f.assertPartition(t)
}

func TestConcurrentImplicitCheckInsMoreCallersThanSeats(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	labels := []string{"1A", "1B", "1C", "2A", "2B"}
	const callers = 12
	f := newFixture(t, labels...)
	for i := 0; i < callers; i++ {
		f.passenger(t, "pax", fmt.Sprintf("P%d", i))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		assigned = map[string]int{}
		full     int
	)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := f.svc.CheckIn(ctx, fmt.Sprintf("P%d", i), "")

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				assert.ErrorIs(t, err, domain.ErrFlightFull)
				full++
				return
			}
			assigned[res.SeatLabel]++
		}(i)
	}
	wg.Wait()

	assert.Len(t, assigned, len(labels))
	for label, n := range assigned {
		assert.Equal(t, 1, n, "seat %s assigned twice", label)
	}
	assert.Equal(t, callers-len(labels), full)

	// Commit order is the order of the broadcasts, and each implicit pick
	// takes the lowest free seat.
	evs := f.events()
	require.Len(t, evs, len(labels))
	for i, ev := range evs {
		assert.Equal(t, labels[i], ev.SeatLabel)
	}
	f.assertPartition(t)
}

// racingLedger simulates another process sharing the ledger that grabs a
// seat between our read and our conditional write.
type racingLedger struct {
	*memory.Ledger
	steal int64
	thief int64
	once  sync.Once
}

func (r *racingLedger) CommitAssignment(ctx context.Context, seatID, passengerID int64) error {
	r.once.Do(func() {
		_ = r.Ledger.CommitAssignment(ctx, r.steal, r.thief)
	})
	return r.Ledger.CommitAssignment(ctx, seatID, passengerID)
}

func TestImplicitCheckInMovesPastStolenSeat(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, "1A", "1B")
	thief := f.passenger(t, "Elsewhere", "P0")
	f.passenger(t, "John Doe", "P1")

	svc := New(&racingLedger{Ledger: f.ledger, steal: f.seats["1A"], thief: thief}, f.hub, nil)

	res, err := svc.CheckIn(ctx, "P1", "")
	require.NoError(t, err)
	assert.Equal(t, "1B", res.SeatLabel)
	f.assertPartition(t)
}

type brokenLedger struct {
	*memory.Ledger
}

func (b brokenLedger) CommitAssignment(context.Context, int64, int64) error {
	return errors.New("connection refused")
}

func TestCheckInLedgerFailureIsTransient(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, "1A")
	f.passenger(t, "John Doe", "P1")

	svc := New(brokenLedger{f.ledger}, f.hub, nil)

	_, err := svc.CheckIn(ctx, "P1", "1A")
	require.Error(t, err)
	assert.Equal(t, domain.KindTransient, domain.KindOf(err))
	assert.True(t, domain.IsRetryable(err))
	assert.Empty(t, f.events())
}

type recordingNotifier struct {
	mu  sync.Mutex
	got []domain.CheckInResult
}

func (r *recordingNotifier) PublishCheckInConfirmed(_ context.Context, res domain.CheckInResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, res)
	return nil
}

func TestCheckInBroadcastSurvivesCancelledCaller(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "1A")
	f.passenger(t, "John Doe", "P1")

	n := &recordingNotifier{}
	svc := New(cancellingLedger{Ledger: f.ledger}, f.hub, nil, WithNotifier(n))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, err := svc.CheckIn(context.WithValue(ctx, cancelKey{}, cancel), "P1", "1A")
	require.NoError(t, err)

	assert.Equal(t, []hub.Event{hub.Occupied(1, "1A")}, f.events())

	svc.Wait()
	require.Len(t, n.got, 1)
	assert.Equal(t, "1A", n.got[0].SeatLabel)
}

// stalledNotifier blocks every publish until released or until the
// publish context ends.
type stalledNotifier struct {
	release chan struct{}
	mu      sync.Mutex
	errs    []error
}

func (s *stalledNotifier) PublishCheckInConfirmed(ctx context.Context, _ domain.CheckInResult) error {
	var err error
	select {
	case <-s.release:
	case <-ctx.Done():
		err = ctx.Err()
	}

	s.mu.Lock()
	s.errs = append(s.errs, err)
	s.mu.Unlock()

	return err
}

func TestStalledNotifierDoesNotHoldTheFlight(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, "1A", "1B")
	f.passenger(t, "First", "P1")
	f.passenger(t, "Second", "P2")

	n := &stalledNotifier{release: make(chan struct{})}
	svc := New(f.ledger, f.hub, nil, WithNotifier(n), WithEffectTimeout(time.Minute))

	done := make(chan error, 2)
	go func() {
		_, err := svc.CheckIn(ctx, "P1", "1A")
		done <- err
	}()
	go func() {
		_, err := svc.CheckIn(ctx, "P2", "1B")
		done <- err
	}()

	for i := 0; i < 2; i++ {
		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("check-in waited on the confirmation publish")
		}
	}
	assert.Len(t, f.events(), 2)

	close(n.release)
	svc.Wait()

	assert.Equal(t, []error{nil, nil}, n.errs)
	f.assertPartition(t)
}

func TestSideEffectsHaveADeadline(t *testing.T) {
	t.Parallel()

	f := newFixture(t, "1A")
	f.passenger(t, "John Doe", "P1")

	n := &stalledNotifier{release: make(chan struct{})}
	svc := New(f.ledger, f.hub, nil, WithNotifier(n), WithEffectTimeout(20*time.Millisecond))

	_, err := svc.CheckIn(context.Background(), "P1", "")
	require.NoError(t, err)

	svc.Wait()

	require.Len(t, n.errs, 1)
	assert.ErrorIs(t, n.errs[0], context.DeadlineExceeded)
}

type cancelKey struct{}

// cancellingLedger cancels the request right after the commit lands.
type cancellingLedger struct {
	*memory.Ledger
}

func (c cancellingLedger) CommitAssignment(ctx context.Context, seatID, passengerID int64) error {
	err := c.Ledger.CommitAssignment(ctx, seatID, passengerID)
	if cancel, ok := ctx.Value(cancelKey{}).(context.CancelFunc); ok {
		cancel()
	}
	return err
}

func TestReleaseFreesSeatAndBroadcasts(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	f := newFixture(t, "1A")
	f.passenger(t, "John Doe", "P1")

	_, err := f.svc.CheckIn(ctx, "P1", "1A")
	require.NoError(t, err)
	f.events()

	seat, err := f.svc.Release(ctx, f.seats["1A"])
	require.NoError(t, err)
	assert.False(t, seat.Occupied)
	assert.Equal(t, "1A", seat.Label)
	assert.Equal(t, []hub.Event{hub.Available(1, "1A")}, f.events())
	f.assertPartition(t)

	_, err = f.svc.Release(ctx, f.seats["1A"])
	assert.ErrorIs(t, err, domain.ErrSeatNotOccupied)

	_, err = f.svc.Release(ctx, 9999)
	assert.ErrorIs(t, err, domain.ErrSeatNotFound)

	res, err := f.svc.CheckIn(ctx, "P1", "")
	require.NoError(t, err)
	assert.Equal(t, "1A", res.SeatLabel)
}
