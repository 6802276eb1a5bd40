package models

import (
	"time"

	"github.com/example/roomservice/pkg/status"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Order struct {
	ID          string         `gorm:"primaryKey;type:varchar(36)" json:"id"`
	HotelID     string         `gorm:"type:varchar(36);not null;index" json:"hotel_id"`
	OrderNumber string         `gorm:"type:varchar(32);index" json:"order_number"`
	RoomNumber  string         `gorm:"type:varchar(16)" json:"room_number"`
	GuestPhone  string         `gorm:"type:varchar(20)" json:"guest_phone"`
	Status      status.Status  `gorm:"type:varchar(20);default:'pending';index" json:"status"`
	Items       datatypes.JSON `gorm:"type:json" json:"-"` // legacy snapshot, read-only
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Order) TableName() string {
	return "orders"
}

// HasGuestContact reports whether the guest can be notified about the order.
func (o *Order) HasGuestContact() bool {
	return o.GuestPhone != "" && o.RoomNumber != ""
}

// OrderItem is the normalized per-line row. An empty Department means the
// row was written before items were tagged.
type OrderItem struct {
	ID                  string          `gorm:"primaryKey;type:varchar(36)" json:"id"`
	OrderID             string          `gorm:"type:varchar(36);not null;index" json:"order_id"`
	MenuItemID          string          `gorm:"type:varchar(36)" json:"menu_item_id"`
	MenuItemName        string          `gorm:"type:varchar(120);not null" json:"menu_item_name"`
	Quantity            int             `gorm:"not null;default:1" json:"quantity"`
	UnitPrice           decimal.Decimal `gorm:"type:decimal(10,2)" json:"unit_price"`
	LineTotal           decimal.Decimal `gorm:"type:decimal(10,2)" json:"line_total"`
	SpecialInstructions string          `gorm:"type:text" json:"special_instructions,omitempty"`
	Status              status.Status   `gorm:"type:varchar(20);default:'pending'" json:"status"`
	Department          string          `gorm:"type:varchar(16)" json:"department,omitempty"`
	CreatedAt           time.Time       `json:"created_at"`
	UpdatedAt           time.Time       `json:"updated_at"`
}

func (OrderItem) TableName() string {
	return "order_items"
}
