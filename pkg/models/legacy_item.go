package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// LegacyItem is one entry of the JSON snapshot stored on orders.items.
// Snapshots were written in several shapes over time:
//
//	{"product_id":"..","product_name":"..","quantity":1,"price":9.5}
//	{"id":"..","menu_item_id":"..","menu_item_name":"..","unit_price":"9.50","department":"bar"}
//	{"menuItemId":"..","menuItemName":"..","qty":2,"price":9.5,"notes":"..","station":"bar"}
//
// Unmarshal accepts all of them; Marshal writes the snake_case shape.
type LegacyItem struct {
	ID                  string          `json:"id,omitempty"`
	MenuItemID          string          `json:"menu_item_id,omitempty"`
	MenuItemName        string          `json:"menu_item_name"`
	Quantity            int             `json:"quantity"`
	UnitPrice           decimal.Decimal `json:"unit_price"`
	SpecialInstructions string          `json:"special_instructions,omitempty"`
	Department          string          `json:"department,omitempty"`
}

type legacyItemWire struct {
	ID                  flexString       `json:"id"`
	ItemID              flexString       `json:"itemId"`
	MenuItemID          flexString       `json:"menu_item_id"`
	MenuItemIDCamel     flexString       `json:"menuItemId"`
	ProductID           flexString       `json:"product_id"`
	MenuItemName        string           `json:"menu_item_name"`
	MenuItemNameCamel   string           `json:"menuItemName"`
	ProductName         string           `json:"product_name"`
	Name                string           `json:"name"`
	Quantity            flexInt          `json:"quantity"`
	Qty                 flexInt          `json:"qty"`
	UnitPrice           *decimal.Decimal `json:"unit_price"`
	UnitPriceCamel      *decimal.Decimal `json:"unitPrice"`
	Price               *decimal.Decimal `json:"price"`
	SpecialInstructions string           `json:"special_instructions"`
	SpecialCamel        string           `json:"specialInstructions"`
	Notes               string           `json:"notes"`
	Department          string           `json:"department"`
	Station             string           `json:"station"`
}

func (li *LegacyItem) UnmarshalJSON(data []byte) error {
	var w legacyItemWire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*li = LegacyItem{
		ID:                  firstNonEmpty(string(w.ID), string(w.ItemID)),
		MenuItemID:          firstNonEmpty(string(w.MenuItemID), string(w.MenuItemIDCamel), string(w.ProductID)),
		MenuItemName:        firstNonEmpty(w.MenuItemName, w.MenuItemNameCamel, w.ProductName, w.Name),
		Quantity:            int(w.Quantity),
		SpecialInstructions: firstNonEmpty(w.SpecialInstructions, w.SpecialCamel, w.Notes),
		Department:          firstNonEmpty(w.Department, w.Station),
	}
	if li.Quantity == 0 {
		li.Quantity = int(w.Qty)
	}
	for _, p := range []*decimal.Decimal{w.UnitPrice, w.UnitPriceCamel, w.Price} {
		if p != nil {
			li.UnitPrice = *p
			break
		}
	}
	return nil
}

// Identity is the id a caller uses to address this entry: its own id, then
// its menu item id. Empty when the entry carries neither.
func (li LegacyItem) Identity() string {
	return firstNonEmpty(li.ID, li.MenuItemID)
}

// DecodeLegacyItems parses an orders.items snapshot. Null or empty input
// yields no items.
func DecodeLegacyItems(raw []byte) ([]LegacyItem, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	// some rows stored the snapshot as a JSON-encoded string
	if trimmed[0] == '"' {
		var inner string
		if err := json.Unmarshal(trimmed, &inner); err != nil {
			return nil, fmt.Errorf("decode legacy items: %w", err)
		}
		return DecodeLegacyItems([]byte(inner))
	}
	var items []LegacyItem
	if err := json.Unmarshal(trimmed, &items); err != nil {
		return nil, fmt.Errorf("decode legacy items: %w", err)
	}
	return items, nil
}

// LegacyItems decodes the order's snapshot.
func (o *Order) LegacyItems() ([]LegacyItem, error) {
	return DecodeLegacyItems(o.Items)
}

type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

type flexInt int

func (f *flexInt) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if s == "" {
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("quantity %q: %w", s, err)
	}
	*f = flexInt(n)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
