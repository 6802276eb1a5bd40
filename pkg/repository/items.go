package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/example/roomservice/pkg/models"
	"github.com/example/roomservice/pkg/status"
	"gorm.io/gorm"
)

// ItemStore owns the order_items rows.
type ItemStore struct {
	db *gorm.DB
}

func NewItemStore(db *gorm.DB) *ItemStore {
	return &ItemStore{db: db}
}

// WithTx returns a store bound to an open transaction.
func (s *ItemStore) WithTx(tx *gorm.DB) *ItemStore {
	return &ItemStore{db: tx}
}

func (s *ItemStore) ListByOrder(ctx context.Context, orderID string) ([]models.OrderItem, error) {
	var items []models.OrderItem
	if err := s.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list items of order %s: %w", orderID, err)
	}
	return items, nil
}

// ListByOrders loads the items of several orders in one query, keyed by
// order id.
func (s *ItemStore) ListByOrders(ctx context.Context, orderIDs []string) (map[string][]models.OrderItem, error) {
	out := make(map[string][]models.OrderItem, len(orderIDs))
	if len(orderIDs) == 0 {
		return out, nil
	}
	var items []models.OrderItem
	if err := s.db.WithContext(ctx).
		Where("order_id IN ?", orderIDs).
		Order("created_at ASC, id ASC").
		Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list items of %d orders: %w", len(orderIDs), err)
	}
	for _, it := range items {
		out[it.OrderID] = append(out[it.OrderID], it)
	}
	return out, nil
}

// Owners maps each known item id to the order it belongs to. Unknown ids
// are absent from the result.
func (s *ItemStore) Owners(ctx context.Context, itemIDs []string) (map[string]string, error) {
	owners := make(map[string]string, len(itemIDs))
	if len(itemIDs) == 0 {
		return owners, nil
	}
	var rows []struct {
		ID      string
		OrderID string
	}
	if err := s.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Select("id, order_id").
		Where("id IN ?", itemIDs).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("look up item owners: %w", err)
	}
	for _, r := range rows {
		owners[r.ID] = r.OrderID
	}
	return owners, nil
}

// WriteStatuses sets st on every requested item that exists as a row of the
// order. Ids without a row are returned as missing. The write is atomic:
// either every matched row is updated or none is.
func (s *ItemStore) WriteStatuses(ctx context.Context, orderID string, itemIDs []string, st status.Status) ([]models.OrderItem, []string, error) {
	var updated []models.OrderItem
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("order_id = ? AND id IN ?", orderID, itemIDs).
			Order("created_at ASC, id ASC").
			Find(&updated).Error; err != nil {
			return err
		}
		if len(updated) == 0 {
			return nil
		}

		ids := make([]string, len(updated))
		for i := range updated {
			ids[i] = updated[i].ID
		}
		now := time.Now()
		res := tx.Model(&models.OrderItem{}).
			Where("order_id = ? AND id IN ?", orderID, ids).
			Updates(map[string]interface{}{"status": st, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != int64(len(ids)) {
			return fmt.Errorf("updated %d of %d items", res.RowsAffected, len(ids))
		}
		for i := range updated {
			updated[i].Status = st
			updated[i].UpdatedAt = now
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("write item statuses of order %s: %w", orderID, err)
	}

	found := make(map[string]bool, len(updated))
	for _, it := range updated {
		found[it.ID] = true
	}
	var missing []string
	for _, id := range itemIDs {
		if !found[id] {
			missing = append(missing, id)
		}
	}
	return updated, missing, nil
}
