package orders

import (
	"context"
	"sync"
	"testing"

	"github.com/example/roomservice/pkg/models"
	"github.com/example/roomservice/pkg/notify"
	"github.com/example/roomservice/pkg/repository"
	"github.com/example/roomservice/pkg/status"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type fakeDispatcher struct {
	mu      sync.Mutex
	intents []notify.Intent
}

func (f *fakeDispatcher) Dispatch(intent notify.Intent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents = append(f.intents, intent)
}

func (f *fakeDispatcher) byStatus(st status.Status) []notify.Intent {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []notify.Intent
	for _, in := range f.intents {
		if in.Status == st {
			out = append(out, in)
		}
	}
	return out
}

type fakeAuditor struct {
	mu      sync.Mutex
	entries []*repository.AuditEntry
}

func (f *fakeAuditor) Record(_ context.Context, entry *repository.AuditEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeAuditor) History(_ context.Context, orderID string, limit int64) ([]*repository.AuditEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.AuditEntry
	for i := len(f.entries) - 1; i >= 0 && int64(len(out)) < limit; i-- {
		if f.entries[i].OrderID == orderID {
			out = append(out, f.entries[i])
		}
	}
	return out, nil
}

func (f *fakeAuditor) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries)
}

type busyLocker struct{}

func (busyLocker) LockOrder(context.Context, string) (func(), error) {
	return nil, repository.ErrLocked
}

type harness struct {
	db         *gorm.DB
	svc        *Service
	dispatcher *fakeDispatcher
	cache      *repository.MemoryStatusCache
}

func newHarness(t *testing.T, deps Deps) *harness {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })
	if err := repository.Migrate(db); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	h := &harness{db: db, dispatcher: &fakeDispatcher{}, cache: repository.NewMemoryStatusCache()}
	if deps.Dispatcher == nil {
		deps.Dispatcher = h.dispatcher
	}
	if deps.Cache == nil {
		deps.Cache = h.cache
	}
	if deps.Auditor == nil {
		deps.Auditor = &fakeAuditor{}
	}
	h.svc = NewService(db, deps, zap.NewNop())

	if err := repository.NewMembershipRepository(db).Grant(context.Background(),
		&models.HotelMember{HotelID: "h-1", UserID: "staff-1", Role: "kitchen"}); err != nil {
		t.Fatalf("Grant() error = %v", err)
	}
	return h
}

func item(id, name, dept string, st status.Status) models.OrderItem {
	return models.OrderItem{
		ID:           id,
		MenuItemName: name,
		Quantity:     1,
		UnitPrice:    decimal.NewFromInt(10),
		LineTotal:    decimal.NewFromInt(10),
		Status:       st,
		Department:   dept,
	}
}

func (h *harness) seedOrder(t *testing.T, id string, snapshot string, items ...models.OrderItem) {
	t.Helper()
	if snapshot == "" {
		snapshot = "[]"
	}
	order := &models.Order{
		ID:          id,
		HotelID:     "h-1",
		OrderNumber: "RS-" + id,
		RoomNumber:  "204",
		GuestPhone:  "+15550100",
		Status:      status.Pending,
		Items:       datatypes.JSON(snapshot),
	}
	for i := range items {
		items[i].OrderID = id
	}
	if err := repository.NewOrderRepository(h.db).Create(context.Background(), order, items); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
}

func (h *harness) update(t *testing.T, orderID string, st status.Status, ids ...string) *UpdateResult {
	t.Helper()
	res, err := h.svc.UpdateItemStatuses(context.Background(), UpdateRequest{
		CallerID: "staff-1",
		OrderID:  orderID,
		ItemIDs:  ids,
		Status:   string(st),
	})
	if err != nil {
		t.Fatalf("UpdateItemStatuses(%s, %v) error = %v", st, ids, err)
	}
	return res
}

func (h *harness) board(t *testing.T, dept status.Department) map[string]status.Status {
	t.Helper()
	entries, err := h.svc.Board(context.Background(), "staff-1", "h-1", dept)
	if err != nil {
		t.Fatalf("Board(%s) error = %v", dept, err)
	}
	out := make(map[string]status.Status, len(entries))
	for _, e := range entries {
		out[e.OrderID] = e.Status
	}
	return out
}
