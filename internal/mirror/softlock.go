package mirror

import (
	"github.com/kirinyoku/checkin-go/internal/hub"
)

// SeatState is how one client renders a seat.
type SeatState int

const (
	Free SeatState = iota
	SelectedByMe
	SelectedByOther
	CommitPending
	Occupied
)

func (s SeatState) String() string {
	switch s {
	case Free:
		return "Free"
	case SelectedByMe:
		return "SelectedByMe"
	case SelectedByOther:
		return "SelectedByOther"
	case CommitPending:
		return "CommitPending"
	case Occupied:
		return "Occupied"
	default:
		return "Unknown"
	}
}

// Selectable reports whether a tap on the seat may start a selection.
func (s SeatState) Selectable() bool {
	return s == Free
}

// seat is the per-client view of one seat. Committed occupancy comes from
// the ledger snapshot and Occupied/Available events; the rest is soft-lock
// state that lives only in this client.
type seat struct {
	id       int64
	label    string
	occupied bool
	mine     bool
	pending  bool
	holders  map[string]struct{}
}

func (s *seat) state() SeatState {
	switch {
	case s.occupied:
		return Occupied
	case s.pending:
		return CommitPending
	case s.mine:
		return SelectedByMe
	case len(s.holders) > 0:
		return SelectedByOther
	default:
		return Free
	}
}

func (s *seat) clearSoftLocks() {
	s.mine = false
	s.pending = false
	s.holders = nil
}

// apply folds a pushed event into the seat. Every event sets state rather
// than toggling it, so duplicates are harmless.
func (s *seat) apply(ev hub.Event) {
	switch ev.Type {
	case hub.EventSeatOccupied:
		s.occupied = true
		s.clearSoftLocks()
	case hub.EventSeatAvailable:
		s.occupied = false
		s.clearSoftLocks()
	case hub.EventSeatSelected:
		// Commit outranks selection.
		if s.occupied {
			return
		}
		if s.holders == nil {
			s.holders = map[string]struct{}{}
		}
		s.holders[ev.By] = struct{}{}
	case hub.EventSeatDeselected:
		if s.occupied {
			return
		}
		delete(s.holders, ev.By)
	}
}
