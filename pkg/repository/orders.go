package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/example/roomservice/pkg/models"
	"github.com/example/roomservice/pkg/status"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type OrderRepository struct {
	db *gorm.DB
}

func NewOrderRepository(db *gorm.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

func (r *OrderRepository) WithTx(tx *gorm.DB) *OrderRepository {
	return &OrderRepository{db: tx}
}

func (r *OrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// FindForUpdate loads the order and holds a row lock on it until the
// surrounding transaction ends. Must be called on a store bound with WithTx.
func (r *OrderRepository) FindForUpdate(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error; err != nil {
		return nil, notFound(err)
	}
	return &order, nil
}

// AdvanceStatus moves the order from `from` to `to` only if it is still at
// `from`. It reports whether the row changed.
func (r *OrderRepository) AdvanceStatus(ctx context.Context, id string, from, to status.Status) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": time.Now()})
	if res.Error != nil {
		return false, fmt.Errorf("advance order %s to %s: %w", id, to, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// ListByHotel returns the hotel's orders created at or after since, oldest
// first.
func (r *OrderRepository) ListByHotel(ctx context.Context, hotelID string, since time.Time) ([]models.Order, error) {
	var orders []models.Order
	if err := r.db.WithContext(ctx).
		Where("hotel_id = ? AND created_at >= ?", hotelID, since).
		Order("created_at ASC").
		Find(&orders).Error; err != nil {
		return nil, fmt.Errorf("list orders of hotel %s: %w", hotelID, err)
	}
	return orders, nil
}

func (r *OrderRepository) Create(ctx context.Context, order *models.Order, items []models.OrderItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(order).Error; err != nil {
			return fmt.Errorf("create order: %w", err)
		}
		if len(items) == 0 {
			return nil
		}
		if err := tx.Create(&items).Error; err != nil {
			return fmt.Errorf("create order items: %w", err)
		}
		return nil
	})
}
