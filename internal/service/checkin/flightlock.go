package checkin

import "sync"

// flightLocks serializes occupancy writes per flight inside this process.
// Entries are reference counted and dropped once nobody waits on them.
type flightLocks struct {
	mu    sync.Mutex
	locks map[int64]*flightLock
}

type flightLock struct {
	mu   sync.Mutex
	refs int
}

func newFlightLocks() *flightLocks {
	return &flightLocks{locks: map[int64]*flightLock{}}
}

func (f *flightLocks) Lock(flightID int64) (unlock func()) {
	f.mu.Lock()
	l, ok := f.locks[flightID]
	if !ok {
		l = &flightLock{}
		f.locks[flightID] = l
	}
	l.refs++
	f.mu.Unlock()

	l.mu.Lock()

	return func() {
		l.mu.Unlock()

		f.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(f.locks, flightID)
		}
		f.mu.Unlock()
	}
}
