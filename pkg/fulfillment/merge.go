package fulfillment

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/roomservice/pkg/models"
	"github.com/example/roomservice/pkg/status"
	"github.com/shopspring/decimal"
)

// ErrEmptyMerge means an order produced no items at all. Callers must not
// derive an order status from it.
var ErrEmptyMerge = errors.New("merged item set is empty")

// Source tells where a merged item's status lives.
type Source string

const (
	// Authoritative items are backed by an order_items row.
	Authoritative Source = "authoritative"
	// Synthesized items exist only in the order's legacy JSON snapshot.
	Synthesized Source = "synthesized"
)

// MergedItem is the request-scoped view of one logical order line.
type MergedItem struct {
	ID                  string            `json:"id"`
	OrderID             string            `json:"order_id"`
	MenuItemID          string            `json:"menu_item_id,omitempty"`
	Name                string            `json:"name"`
	Quantity            int               `json:"quantity"`
	UnitPrice           decimal.Decimal   `json:"unit_price"`
	SpecialInstructions string            `json:"special_instructions,omitempty"`
	Status              status.Status     `json:"status"`
	Department          status.Department `json:"department"`
	Source              Source            `json:"source"`
	CreatedAt           time.Time         `json:"created_at,omitempty"`
}

// MergeInput carries everything the materializer needs for one order.
type MergeInput struct {
	OrderID string
	// Relational is the order's item rows as read from the store.
	Relational []models.OrderItem
	// JustUpdated are the rows this request wrote. They win over Relational.
	JustUpdated []models.OrderItem
	// Legacy is the order's decoded JSON snapshot.
	Legacy []models.LegacyItem
	// RequestedIDs and RequestedStatus describe the current request.
	RequestedIDs    []string
	RequestedStatus status.Status
}

// Merge builds one deduplicated item list from the relational rows and the
// legacy snapshot. Rows written by the current request take precedence over
// rows read from the store, and any relational row takes precedence over a
// snapshot entry with the same normalized name. Snapshot entries without a
// relational counterpart are synthesized as pending unless the request
// addressed them by id.
func Merge(in MergeInput) ([]MergedItem, error) {
	merged := make([]MergedItem, 0, len(in.JustUpdated)+len(in.Relational)+len(in.Legacy))
	seenIDs := make(map[string]bool)
	seenNames := make(map[string]bool)

	addRow := func(row models.OrderItem) {
		if seenIDs[row.ID] {
			return
		}
		seenIDs[row.ID] = true
		seenNames[NormalizeName(row.MenuItemName)] = true
		merged = append(merged, fromRow(row))
	}
	for _, row := range in.JustUpdated {
		addRow(row)
	}
	for _, row := range in.Relational {
		addRow(row)
	}

	requested := make(map[string]bool, len(in.RequestedIDs))
	for _, id := range in.RequestedIDs {
		requested[id] = true
	}

	for i, entry := range in.Legacy {
		name := NormalizeName(entry.MenuItemName)
		if name != "" && seenNames[name] {
			continue
		}
		id := entry.Identity()
		if id == "" || seenIDs[id] {
			id = SyntheticID(in.OrderID, i)
		}
		seenIDs[id] = true

		st := status.Pending
		if requested[id] {
			st = in.RequestedStatus
		}
		merged = append(merged, MergedItem{
			ID:                  id,
			OrderID:             in.OrderID,
			MenuItemID:          entry.MenuItemID,
			Name:                entry.MenuItemName,
			Quantity:            entry.Quantity,
			UnitPrice:           entry.UnitPrice,
			SpecialInstructions: entry.SpecialInstructions,
			Status:              st,
			Department:          status.ParseDepartment(entry.Department),
			Source:              Synthesized,
		})
	}

	if len(merged) == 0 {
		return nil, fmt.Errorf("order %s: %w", in.OrderID, ErrEmptyMerge)
	}
	return merged, nil
}

// SyntheticID is the id given to a snapshot entry that carries no usable id.
func SyntheticID(orderID string, index int) string {
	return fmt.Sprintf("legacy-%s-%d", orderID, index)
}

// NormalizeName is the join key between relational rows and snapshot entries.
func NormalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

func fromRow(row models.OrderItem) MergedItem {
	return MergedItem{
		ID:                  row.ID,
		OrderID:             row.OrderID,
		MenuItemID:          row.MenuItemID,
		Name:                row.MenuItemName,
		Quantity:            row.Quantity,
		UnitPrice:           row.UnitPrice,
		SpecialInstructions: row.SpecialInstructions,
		Status:              row.Status,
		Department:          status.ParseDepartment(row.Department),
		Source:              Authoritative,
		CreatedAt:           row.CreatedAt,
	}
}
