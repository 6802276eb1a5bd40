package orders

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/example/roomservice/pkg/fulfillment"
	"github.com/example/roomservice/pkg/models"
	"github.com/example/roomservice/pkg/repository"
	"github.com/example/roomservice/pkg/status"
	"go.uber.org/zap"
)

// BoardEntry is one order as a department dashboard shows it.
type BoardEntry struct {
	OrderID     string                   `json:"order_id"`
	OrderNumber string                   `json:"order_number"`
	RoomNumber  string                   `json:"room_number"`
	OrderStatus status.Status            `json:"order_status"`
	Status      status.Status            `json:"status"`
	StatusLabel string                   `json:"status_label"`
	WaitMinutes int                      `json:"wait_minutes"`
	CreatedAt   time.Time                `json:"created_at"`
	Items       []fulfillment.MergedItem `json:"items"`
}

// OrderView is the staff detail view of one order.
type OrderView struct {
	Order       *models.Order                       `json:"order"`
	Items       []fulfillment.MergedItem            `json:"items"`
	Departments map[status.Department]status.Status `json:"departments"`
}

// Board lists a hotel's recent orders that have items for dept, labelled
// with the department status and sorted by status priority, then by how
// long the guest has been waiting.
func (s *Service) Board(ctx context.Context, callerID, hotelID string, dept status.Department) ([]BoardEntry, error) {
	if err := s.checkGrant(ctx, callerID, hotelID); err != nil {
		return nil, err
	}

	now := time.Now()
	orders, err := s.orders.ListByHotel(ctx, hotelID, now.Add(-s.boardWindow))
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	itemsByOrder, err := s.items.ListByOrders(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]BoardEntry, 0, len(orders))
	for i := range orders {
		order := &orders[i]
		merged, ok := s.mergeForRead(order, itemsByOrder[order.ID])
		if !ok {
			continue
		}
		deptItems := fulfillment.ForDepartment(merged, dept)
		if len(deptItems) == 0 {
			continue
		}

		label := fulfillment.DepartmentStatus(deptItems)
		if order.Status == status.Cancelled {
			label = status.Cancelled
		}
		entries = append(entries, BoardEntry{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			RoomNumber:  order.RoomNumber,
			OrderStatus: order.Status,
			Status:      label,
			StatusLabel: label.Label(),
			WaitMinutes: int(now.Sub(order.CreatedAt).Minutes()),
			CreatedAt:   order.CreatedAt,
			Items:       deptItems,
		})
	}

	SortBoard(entries)
	return entries, nil
}

// SortBoard orders entries by status priority, oldest order first within
// the same status.
func SortBoard(entries []BoardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if c := status.Compare(entries[i].Status, entries[j].Status); c != 0 {
			return c < 0
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
}

// Order returns the merged view of one order for staff.
func (s *Service) Order(ctx context.Context, callerID, orderID string) (*OrderView, error) {
	order, err := s.authorizedOrder(ctx, callerID, orderID)
	if err != nil {
		return nil, err
	}
	relational, err := s.items.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	merged, _ := s.mergeForRead(order, relational)
	return &OrderView{
		Order:       order,
		Items:       merged,
		Departments: fulfillment.DepartmentStatuses(merged),
	}, nil
}

// GuestStatus returns the guest-visible status, from the cache when warm.
func (s *Service) GuestStatus(ctx context.Context, orderID string) (*repository.OrderStatusCache, error) {
	cached, err := s.cache.GetOrderStatusCache(ctx, orderID)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.logger.Warn("Status cache unavailable", zap.String("order_id", orderID), zap.Error(err))
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	entry := cacheEntry(order)
	if err := s.cache.CacheOrderStatus(ctx, entry); err != nil {
		s.logger.Warn("Failed to cache order status", zap.String("order_id", orderID), zap.Error(err))
	}
	return entry, nil
}

// History returns the latest audit entries of an order, newest first.
func (s *Service) History(ctx context.Context, callerID, orderID string, limit int64) ([]*repository.AuditEntry, error) {
	if _, err := s.authorizedOrder(ctx, callerID, orderID); err != nil {
		return nil, err
	}
	h, ok := s.auditor.(AuditHistory)
	if !ok {
		return nil, ErrNoHistory
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return h.History(ctx, orderID, limit)
}

// mergeForRead merges without any pending request; every snapshot-only
// item reads as pending.
func (s *Service) mergeForRead(order *models.Order, relational []models.OrderItem) ([]fulfillment.MergedItem, bool) {
	legacy, err := order.LegacyItems()
	if err != nil {
		s.logger.Error("Unreadable legacy item snapshot",
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
	merged, err := fulfillment.Merge(fulfillment.MergeInput{
		OrderID:    order.ID,
		Relational: relational,
		Legacy:     legacy,
	})
	if err != nil {
		s.logger.Warn("Order has no items", zap.String("order_id", order.ID), zap.Error(err))
		return nil, false
	}
	return merged, true
}
