package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/roomservice/pkg/config"
	"github.com/example/roomservice/pkg/models"
	"github.com/example/roomservice/pkg/repository"
	"github.com/example/roomservice/pkg/status"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

const (
	demoHotel = "hotel-demo"
	demoStaff = "staff-demo"
)

// seed inserts a staff grant, an order split across kitchen and bar, and an
// order that only exists as a legacy JSON snapshot.
func seed(cfg *config.Config, logger *zap.Logger) error {
	db, err := repository.OpenDatabase(&cfg.Database, logger)
	if err != nil {
		return err
	}
	if err := repository.Migrate(db); err != nil {
		return err
	}
	ctx := context.Background()

	if err := repository.NewMembershipRepository(db).Grant(ctx, &models.HotelMember{
		HotelID: demoHotel,
		UserID:  demoStaff,
		Role:    "manager",
	}); err != nil {
		return err
	}

	orderRepo := repository.NewOrderRepository(db)

	mixed := &models.Order{
		ID:          uuid.NewString(),
		HotelID:     demoHotel,
		OrderNumber: fmt.Sprintf("RS-%d", time.Now().Unix()%100000),
		RoomNumber:  "312",
		GuestPhone:  "+15550100",
		Status:      status.Pending,
		Items:       datatypes.JSON("[]"),
	}
	items := []models.OrderItem{
		demoItem(mixed.ID, "Club Sandwich", "kitchen", 1, "14.50"),
		demoItem(mixed.ID, "Caesar Salad", "kitchen", 1, "11.00"),
		demoItem(mixed.ID, "Old Fashioned", "bar", 2, "13.00"),
	}
	if err := orderRepo.Create(ctx, mixed, items); err != nil {
		return err
	}

	snapshot, err := json.Marshal([]map[string]interface{}{
		{"product_id": uuid.NewString(), "product_name": "Pancakes", "quantity": 2, "price": 9.5},
		{"product_id": uuid.NewString(), "product_name": "Orange Juice", "quantity": 1, "price": 4, "department": "bar"},
	})
	if err != nil {
		return err
	}
	legacy := &models.Order{
		ID:          uuid.NewString(),
		HotelID:     demoHotel,
		OrderNumber: fmt.Sprintf("RS-%d", time.Now().Unix()%100000+1),
		RoomNumber:  "118",
		GuestPhone:  "+15550101",
		Status:      status.Pending,
		Items:       datatypes.JSON(snapshot),
	}
	if err := orderRepo.Create(ctx, legacy, nil); err != nil {
		return err
	}

	logger.Info("Seeded demo data",
		zap.String("hotel_id", demoHotel),
		zap.String("staff_id", demoStaff),
		zap.String("mixed_order", mixed.ID),
		zap.String("legacy_order", legacy.ID))
	return nil
}

func demoItem(orderID, name, dept string, qty int, price string) models.OrderItem {
	unit := decimal.RequireFromString(price)
	return models.OrderItem{
		ID:           uuid.NewString(),
		OrderID:      orderID,
		MenuItemID:   uuid.NewString(),
		MenuItemName: name,
		Quantity:     qty,
		UnitPrice:    unit,
		LineTotal:    unit.Mul(decimal.NewFromInt(int64(qty))),
		Status:       status.Pending,
		Department:   dept,
	}
}
