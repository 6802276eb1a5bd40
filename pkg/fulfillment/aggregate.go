package fulfillment

import "github.com/example/roomservice/pkg/status"

// ForDepartment returns the items a department's dashboard works on.
func ForDepartment(items []MergedItem, dept status.Department) []MergedItem {
	var out []MergedItem
	for _, it := range items {
		if it.Department == dept {
			out = append(out, it)
		}
	}
	return out
}

// DepartmentStatus labels one department from its items: the most advanced
// status every item has reached, with preparing shown as soon as any item
// is being worked on. A cancelled item counts as neither ready nor
// delivered.
func DepartmentStatus(items []MergedItem) status.Status {
	if len(items) == 0 {
		return status.Pending
	}
	allDelivered, allReady, anyPreparing := true, true, false
	for _, it := range items {
		switch it.Status {
		case status.Delivered:
		case status.Ready:
			allDelivered = false
		case status.Preparing:
			allDelivered, allReady = false, false
			anyPreparing = true
		default:
			allDelivered, allReady = false, false
		}
	}
	switch {
	case allDelivered:
		return status.Delivered
	case allReady:
		return status.Ready
	case anyPreparing:
		return status.Preparing
	default:
		return status.Pending
	}
}

// DepartmentStatuses computes the label of every department that has items.
func DepartmentStatuses(items []MergedItem) map[status.Department]status.Status {
	out := make(map[status.Department]status.Status)
	for _, d := range status.Departments {
		if deptItems := ForDepartment(items, d); len(deptItems) > 0 {
			out[d] = DepartmentStatus(deptItems)
		}
	}
	return out
}
