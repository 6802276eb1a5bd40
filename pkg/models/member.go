package models

import (
	"time"
)

// HotelMember grants a staff user access to one hotel's orders.
type HotelMember struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	HotelID   string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_hotel_member" json:"hotel_id"`
	UserID    string    `gorm:"type:varchar(36);not null;uniqueIndex:idx_hotel_member" json:"user_id"`
	Role      string    `gorm:"type:varchar(20);not null;default:'staff'" json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

func (HotelMember) TableName() string {
	return "hotel_members"
}
