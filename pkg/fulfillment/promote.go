package fulfillment

import "github.com/example/roomservice/pkg/status"

// Promote decides the order status to persist given every merged item of
// the order. It only ever moves an order forward to ready or delivered;
// returning current means no change. A cancelled item is neither ready nor
// delivered, so it blocks both. Cancelled or delivered orders are left alone.
func Promote(current status.Status, items []MergedItem) status.Status {
	if current.Terminal() {
		return current
	}

	if len(items) == 0 {
		return current
	}

	allDelivered, allReady := true, true
	for _, it := range items {
		switch it.Status {
		case status.Delivered:
		case status.Ready:
			allDelivered = false
		default:
			allDelivered, allReady = false, false
		}
	}

	var target status.Status
	switch {
	case allDelivered:
		target = status.Delivered
	case allReady:
		target = status.Ready
	default:
		return current
	}
	if !target.Advances(current) {
		return current
	}
	return target
}
