package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/roomservice/pkg/config"
	"github.com/example/roomservice/pkg/fulfillment"
	"github.com/example/roomservice/pkg/models"
	"github.com/example/roomservice/pkg/notify"
	"github.com/example/roomservice/pkg/repository"
	"github.com/example/roomservice/pkg/status"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrOrderNotFound   = errors.New("order not found")
	ErrForbidden       = errors.New("no access to this hotel")
	ErrInvalidStatus   = errors.New("invalid status")
	ErrNoItems         = errors.New("itemIds must not be empty")
	ErrCrossOrderItems = errors.New("some items do not belong to this order")
	ErrOrderBusy       = errors.New("order is being updated, retry")
	ErrNoHistory       = errors.New("audit history is not stored")
)

var defaultNotifyConfig = config.NotifyConfig{Attempts: 3, Backoff: 2 * time.Second, Timeout: 5 * time.Second}

type Memberships interface {
	HasGrant(ctx context.Context, userID, hotelID string) (bool, error)
}

type Locker interface {
	LockOrder(ctx context.Context, orderID string) (func(), error)
}

type StatusCache interface {
	CacheOrderStatus(ctx context.Context, entry *repository.OrderStatusCache) error
	GetOrderStatusCache(ctx context.Context, orderID string) (*repository.OrderStatusCache, error)
}

type Auditor interface {
	Record(ctx context.Context, entry *repository.AuditEntry) error
}

// AuditHistory is an Auditor that can read entries back.
type AuditHistory interface {
	History(ctx context.Context, orderID string, limit int64) ([]*repository.AuditEntry, error)
}

type Dispatcher interface {
	Dispatch(intent notify.Intent)
}

// Deps are the collaborators of Service. Nil optional members fall back to
// in-process implementations.
type Deps struct {
	Members    Memberships
	Locker     Locker
	Cache      StatusCache
	Auditor    Auditor
	Dispatcher Dispatcher
	// BoardWindow bounds how far back dashboards look. Defaults to 24h.
	BoardWindow time.Duration
}

type Service struct {
	db          *gorm.DB
	orders      *repository.OrderRepository
	items       *repository.ItemStore
	members     Memberships
	locker      Locker
	cache       StatusCache
	auditor     Auditor
	dispatcher  Dispatcher
	boardWindow time.Duration
	logger      *zap.Logger
}

func NewService(db *gorm.DB, deps Deps, logger *zap.Logger) *Service {
	logger = logger.Named("orders")
	s := &Service{
		db:          db,
		orders:      repository.NewOrderRepository(db),
		items:       repository.NewItemStore(db),
		members:     deps.Members,
		locker:      deps.Locker,
		cache:       deps.Cache,
		auditor:     deps.Auditor,
		dispatcher:  deps.Dispatcher,
		boardWindow: deps.BoardWindow,
		logger:      logger,
	}
	if s.members == nil {
		s.members = repository.NewMembershipRepository(db)
	}
	if s.locker == nil {
		s.locker = repository.NewMemoryLocker()
	}
	if s.cache == nil {
		s.cache = repository.NewMemoryStatusCache()
	}
	if s.auditor == nil {
		s.auditor = repository.NewLogAuditor(logger)
	}
	if s.dispatcher == nil {
		s.dispatcher = notify.NewDispatcher(notify.NewLogNotifier(logger), defaultNotifyConfig, logger)
	}
	if s.boardWindow <= 0 {
		s.boardWindow = 24 * time.Hour
	}
	return s
}

// UpdateRequest is one staff status change on a set of items.
type UpdateRequest struct {
	CallerID string
	OrderID  string
	ItemIDs  []string
	Status   string
}

// UpdateResult carries the persisted order and the rows actually written.
type UpdateResult struct {
	Order    *models.Order
	Items    []models.OrderItem
	Previous status.Status
	Promoted bool
	// Missing are requested ids with no relational row.
	Missing []string
	// Departments is the status of each department after the write.
	Departments map[status.Department]status.Status
	// Anomaly is set when the order produced no items to derive a status
	// from. Order is then returned unmodified.
	Anomaly bool
}

// UpdateItemStatuses writes the requested item statuses and advances the
// order status when every item allows it.
func (s *Service) UpdateItemStatuses(ctx context.Context, req UpdateRequest) (*UpdateResult, error) {
	if req.CallerID == "" {
		return nil, ErrUnauthenticated
	}

	order, err := s.authorizedOrder(ctx, req.CallerID, req.OrderID)
	if err != nil {
		return nil, err
	}

	st, err := status.Parse(req.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidStatus, err)
	}
	ids := cleanIDs(req.ItemIDs)
	if len(ids) == 0 {
		return nil, ErrNoItems
	}

	owners, err := s.items.Owners(ctx, ids)
	if err != nil {
		return nil, err
	}
	var foreign []string
	for id, owner := range owners {
		if owner != order.ID {
			foreign = append(foreign, id)
		}
	}
	if len(foreign) > 0 {
		s.logger.Warn("Rejected items of another order",
			zap.String("order_id", order.ID),
			zap.Strings("item_ids", foreign))
		return nil, ErrCrossOrderItems
	}

	unlock, err := s.locker.LockOrder(ctx, order.ID)
	if err != nil {
		if errors.Is(err, repository.ErrLocked) {
			return nil, ErrOrderBusy
		}
		return nil, err
	}
	defer unlock()

	result := &UpdateResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		orders := s.orders.WithTx(tx)
		items := s.items.WithTx(tx)

		locked, err := orders.FindForUpdate(ctx, order.ID)
		if err != nil {
			return err
		}
		result.Order = locked
		result.Previous = locked.Status

		updated, missing, err := items.WriteStatuses(ctx, locked.ID, ids, st)
		if err != nil {
			return err
		}
		result.Items = updated
		result.Missing = missing
		if len(missing) > 0 {
			s.logger.Warn("Requested items have no relational row",
				zap.String("order_id", locked.ID),
				zap.Strings("item_ids", missing))
		}

		relational, err := items.ListByOrder(ctx, locked.ID)
		if err != nil {
			return err
		}
		legacy, err := locked.LegacyItems()
		if err != nil {
			s.logger.Error("Unreadable legacy item snapshot",
				zap.String("order_id", locked.ID),
				zap.Error(err))
		}

		merged, err := fulfillment.Merge(fulfillment.MergeInput{
			OrderID:         locked.ID,
			Relational:      relational,
			JustUpdated:     updated,
			Legacy:          legacy,
			RequestedIDs:    ids,
			RequestedStatus: st,
		})
		if errors.Is(err, fulfillment.ErrEmptyMerge) {
			result.Anomaly = true
			s.logger.Error("Order has no items to derive a status from",
				zap.String("order_id", locked.ID))
			return nil
		}
		if err != nil {
			return err
		}

		result.Departments = fulfillment.DepartmentStatuses(merged)

		next := fulfillment.Promote(locked.Status, merged)
		if next == locked.Status {
			return nil
		}
		changed, err := orders.AdvanceStatus(ctx, locked.ID, locked.Status, next)
		if err != nil {
			return err
		}
		if !changed {
			fresh, err := orders.FindByID(ctx, locked.ID)
			if err != nil {
				return err
			}
			result.Order = fresh
			return nil
		}
		locked.Status = next
		locked.UpdatedAt = time.Now()
		result.Promoted = true
		return nil
	})
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	s.afterCommit(req.CallerID, result)
	return result, nil
}

// afterCommit runs the side effects of a committed update. None of them can
// fail the request.
func (s *Service) afterCommit(callerID string, result *UpdateResult) {
	order := result.Order

	if len(result.Items) > 0 {
		ids := make([]string, len(result.Items))
		for i, it := range result.Items {
			ids[i] = it.ID
		}
		s.audit(&repository.AuditEntry{
			Action:  repository.AuditItemsWritten,
			OrderID: order.ID,
			HotelID: order.HotelID,
			ActorID: callerID,
			Data:    bson.M{"item_ids": ids, "status": string(result.Items[0].Status), "missing": result.Missing},
		})
	}

	if !result.Promoted {
		return
	}

	s.audit(&repository.AuditEntry{
		Action:  repository.AuditOrderPromoted,
		OrderID: order.ID,
		HotelID: order.HotelID,
		ActorID: callerID,
		Data:    bson.M{"from": string(result.Previous), "to": string(order.Status)},
	})

	if err := s.cache.CacheOrderStatus(context.Background(), cacheEntry(order)); err != nil {
		s.logger.Warn("Failed to cache order status", zap.String("order_id", order.ID), zap.Error(err))
	}

	if intent, ok := notify.IntentFor(order, order.Status); ok {
		s.dispatcher.Dispatch(intent)
	}

	s.logger.Info("Order status advanced",
		zap.String("order_id", order.ID),
		zap.String("from", string(result.Previous)),
		zap.String("to", string(order.Status)))
}

func (s *Service) audit(entry *repository.AuditEntry) {
	entry.Service = "roomservice-api"
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.auditor.Record(ctx, entry); err != nil {
			s.logger.Warn("Failed to write audit entry",
				zap.String("action", entry.Action),
				zap.String("order_id", entry.OrderID),
				zap.Error(err))
		}
	}()
}

// authorizedOrder loads the order and checks the caller's hotel grant.
func (s *Service) authorizedOrder(ctx context.Context, callerID, orderID string) (*models.Order, error) {
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	if err := s.checkGrant(ctx, callerID, order.HotelID); err != nil {
		return nil, err
	}
	return order, nil
}

func (s *Service) checkGrant(ctx context.Context, callerID, hotelID string) error {
	if callerID == "" {
		return ErrUnauthenticated
	}
	ok, err := s.members.HasGrant(ctx, callerID, hotelID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func cacheEntry(order *models.Order) *repository.OrderStatusCache {
	return &repository.OrderStatusCache{
		ID:          order.ID,
		HotelID:     order.HotelID,
		OrderNumber: order.OrderNumber,
		Status:      string(order.Status),
		UpdatedAt:   order.UpdatedAt,
	}
}

func cleanIDs(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
