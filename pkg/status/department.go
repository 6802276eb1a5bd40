package status

import "strings"

// Department is a fulfillment track of an order.
type Department string

const (
	Kitchen Department = "kitchen"
	Bar     Department = "bar"
)

var Departments = []Department{Kitchen, Bar}

// ParseDepartment maps a stored or submitted tag to a department. Items
// that predate department tagging carry no tag and belong to the kitchen.
func ParseDepartment(tag string) Department {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "bar", "drinks", "beverage":
		return Bar
	default:
		return Kitchen
	}
}

// DepartmentByName returns the department for a route segment, or false.
func DepartmentByName(name string) (Department, bool) {
	for _, d := range Departments {
		if string(d) == name {
			return d, true
		}
	}
	return "", false
}
