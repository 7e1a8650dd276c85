package domain

import (
	"sort"
	"strconv"
	"strings"
)

// columnOrder is the cabin column sequence. Column I is never used.
const columnOrder = "ABCDEFGHJKLMNOPQRSTUVWXYZ"

// NormalizeSeatLabel trims and upper-cases a seat label ("12a " -> "12A").
func NormalizeSeatLabel(label string) string {
	return strings.ToUpper(strings.TrimSpace(label))
}

// ParseSeatLabel splits a label like "12A" into its row number and column letter.
func ParseSeatLabel(label string) (row int, column byte, ok bool) {
	label = NormalizeSeatLabel(label)
	if len(label) < 2 {
		return 0, 0, false
	}

	column = label[len(label)-1]
	if strings.IndexByte(columnOrder, column) < 0 {
		return 0, 0, false
	}

	row, err := strconv.Atoi(label[:len(label)-1])
	if err != nil || row <= 0 {
		return 0, 0, false
	}

	return row, column, true
}

// SeatLabelLess orders labels by row, then by column. Labels that do not
// parse sort after every valid label, lexically among themselves.
func SeatLabelLess(a, b string) bool {
	ra, ca, okA := ParseSeatLabel(a)
	rb, cb, okB := ParseSeatLabel(b)

	switch {
	case okA && !okB:
		return true
	case !okA && okB:
		return false
	case !okA && !okB:
		return a < b
	}

	if ra != rb {
		return ra < rb
	}

	return strings.IndexByte(columnOrder, ca) < strings.IndexByte(columnOrder, cb)
}

// SortSeats sorts seats in boarding order.
func SortSeats(seats []Seat) {
	sort.SliceStable(seats, func(i, j int) bool {
		return SeatLabelLess(seats[i].Label, seats[j].Label)
	})
}
