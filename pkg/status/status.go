package status

import (
	"errors"
	"fmt"
	"strings"
)

// Status is a fulfillment status shared by order items and orders.
type Status string

const (
	Pending        Status = "pending"
	Preparing      Status = "preparing"
	Ready          Status = "ready"
	OutForDelivery Status = "out_for_delivery"
	Delivered      Status = "delivered"
	Cancelled      Status = "cancelled"
)

var ErrUnknownStatus = errors.New("unknown status")

// ordered is the single total order used for promotion checks and for
// dashboard sorting. Index is rank.
var ordered = []Status{
	Pending,
	Preparing,
	Ready,
	OutForDelivery,
	Delivered,
	Cancelled,
}

// writable lists the statuses staff may set on items.
var writable = map[Status]bool{
	Pending:   true,
	Preparing: true,
	Ready:     true,
	Delivered: true,
	Cancelled: true,
}

// Parse validates a status submitted by a caller.
func Parse(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !writable[st] {
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, s)
	}
	return st, nil
}

// Rank returns the position of s in the total order, or -1 when s is unknown.
func (s Status) Rank() int {
	for i, o := range ordered {
		if o == s {
			return i
		}
	}
	return -1
}

// Compare returns -1, 0 or 1 as a is before, equal to or after b.
// Unknown statuses sort after every known one.
func Compare(a, b Status) int {
	ra, rb := a.Rank(), b.Rank()
	if ra < 0 {
		ra = len(ordered)
	}
	if rb < 0 {
		rb = len(ordered)
	}
	switch {
	case ra < rb:
		return -1
	case ra > rb:
		return 1
	default:
		return 0
	}
}

// Terminal reports whether no derived transition may leave s.
func (s Status) Terminal() bool {
	return s == Delivered || s == Cancelled
}

// Advances reports whether moving from old to s keeps the fulfillment lane
// monotonic. Cancelled is a side lane and never advances anything.
func (s Status) Advances(old Status) bool {
	if s == Cancelled || old == Cancelled {
		return false
	}
	return Compare(s, old) > 0
}

// Label is the human readable form used by dashboards.
func (s Status) Label() string {
	parts := strings.Split(string(s), "_")
	for i := range parts {
		if len(parts[i]) > 0 {
			parts[i] = strings.ToUpper(parts[i][:1]) + parts[i][1:]
		}
	}
	return strings.Join(parts, " ")
}

func (s Status) String() string {
	return string(s)
}
