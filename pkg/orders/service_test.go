package orders

import (
	"context"
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/example/roomservice/pkg/fulfillment"
	"github.com/example/roomservice/pkg/models"
	"github.com/example/roomservice/pkg/repository"
	"github.com/example/roomservice/pkg/status"
	"go.uber.org/zap"
)

func TestKitchenAndBarScenario(t *testing.T) {
	h := newHarness(t, Deps{})
	h.seedOrder(t, "o-1", "",
		item("k-1", "Burger", "kitchen", status.Pending),
		item("k-2", "Fries", "kitchen", status.Pending),
		item("b-1", "Mojito", "bar", status.Ready),
	)

	// kitchen finishes cooking
	res := h.update(t, "o-1", status.Ready, "k-1", "k-2")
	if res.Order.Status != status.Ready || !res.Promoted {
		t.Fatalf("order status = %s promoted=%v, want ready", res.Order.Status, res.Promoted)
	}
	if len(res.Items) != 2 {
		t.Errorf("written items = %d, want 2", len(res.Items))
	}
	if h.board(t, status.Kitchen)["o-1"] != status.Ready || h.board(t, status.Bar)["o-1"] != status.Ready {
		t.Errorf("boards = kitchen %v bar %v", h.board(t, status.Kitchen), h.board(t, status.Bar))
	}
	if got := h.dispatcher.byStatus(status.Ready); len(got) != 1 {
		t.Errorf("ready notifications = %d, want 1", len(got))
	}

	// bar delivers its drink first
	res = h.update(t, "o-1", status.Delivered, "b-1")
	if res.Order.Status != status.Ready || res.Promoted {
		t.Fatalf("order status = %s promoted=%v, want ready unchanged", res.Order.Status, res.Promoted)
	}
	if h.board(t, status.Bar)["o-1"] != status.Delivered {
		t.Errorf("bar board = %v, want delivered", h.board(t, status.Bar))
	}
	if h.board(t, status.Kitchen)["o-1"] != status.Ready {
		t.Errorf("kitchen board = %v, want ready", h.board(t, status.Kitchen))
	}

	// kitchen delivers the rest
	res = h.update(t, "o-1", status.Delivered, "k-1", "k-2")
	if res.Order.Status != status.Delivered {
		t.Fatalf("order status = %s, want delivered", res.Order.Status)
	}
	delivered := h.dispatcher.byStatus(status.Delivered)
	if len(delivered) != 1 {
		t.Fatalf("delivered notifications = %d, want exactly 1", len(delivered))
	}
	if delivered[0].RoomNumber != "204" || delivered[0].GuestPhone != "+15550100" || delivered[0].OrderNumber != "RS-o-1" {
		t.Errorf("intent = %+v", delivered[0])
	}

	// repeating the final write does not notify again
	h.update(t, "o-1", status.Delivered, "k-1")
	if got := h.dispatcher.byStatus(status.Delivered); len(got) != 1 {
		t.Errorf("delivered notifications after repeat = %d, want 1", len(got))
	}
}

func TestNoBackwardWrites(t *testing.T) {
	h := newHarness(t, Deps{})
	h.seedOrder(t, "o-1", "",
		item("k-1", "Burger", "kitchen", status.Pending),
		item("b-1", "Beer", "bar", status.Pending),
	)
	h.update(t, "o-1", status.Ready, "k-1", "b-1")

	res := h.update(t, "o-1", status.Preparing, "k-1")
	if res.Order.Status != status.Ready {
		t.Fatalf("order status = %s, want ready", res.Order.Status)
	}
	if res.Items[0].Status != status.Preparing {
		t.Errorf("item status = %s, want preparing", res.Items[0].Status)
	}
	if res.Departments[status.Kitchen] != status.Preparing {
		t.Errorf("kitchen = %s, want preparing", res.Departments[status.Kitchen])
	}

	view, err := h.svc.Order(context.Background(), "staff-1", "o-1")
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	if view.Order.Status != status.Ready {
		t.Errorf("persisted status = %s, want ready", view.Order.Status)
	}
}

func TestLegacyOnlyOrder(t *testing.T) {
	h := newHarness(t, Deps{})
	h.seedOrder(t, "o-legacy", `[{"product_id":"p-1","product_name":"Club Sandwich","quantity":1,"price":12}]`)

	res := h.update(t, "o-legacy", status.Ready, "p-1")
	if len(res.Items) != 0 {
		t.Errorf("written rows = %d, want 0", len(res.Items))
	}
	if len(res.Missing) != 1 || res.Missing[0] != "p-1" {
		t.Errorf("missing = %v", res.Missing)
	}
	if res.Departments[status.Kitchen] != status.Ready {
		t.Errorf("kitchen = %s, want ready", res.Departments[status.Kitchen])
	}
	if res.Order.Status != status.Ready {
		t.Errorf("order status = %s, want ready", res.Order.Status)
	}
}

func TestLegacyAndRelationalMix(t *testing.T) {
	h := newHarness(t, Deps{})
	// Burger has a row, Cake only lives in the snapshot
	h.seedOrder(t, "o-mix", `[{"product_name":"Burger"},{"product_name":"Cake"}]`,
		item("k-1", "Burger", "kitchen", status.Pending),
	)

	res := h.update(t, "o-mix", status.Ready, "k-1")
	if res.Order.Status != status.Pending {
		t.Fatalf("order status = %s, want pending: cake was never touched", res.Order.Status)
	}

	view, err := h.svc.Order(context.Background(), "staff-1", "o-mix")
	if err != nil {
		t.Fatalf("Order() error = %v", err)
	}
	if len(view.Items) != 2 {
		t.Fatalf("merged items = %d, want 2", len(view.Items))
	}
	var synthesized int
	for _, it := range view.Items {
		if it.Source == fulfillment.Synthesized {
			synthesized++
		}
	}
	if synthesized != 1 {
		t.Errorf("synthesized = %d, want 1", synthesized)
	}

	cakeID := fulfillment.SyntheticID("o-mix", 1)
	res = h.update(t, "o-mix", status.Ready, "k-1", cakeID)
	if res.Order.Status != status.Ready {
		t.Errorf("order status = %s, want ready", res.Order.Status)
	}
}

func TestUpdateValidation(t *testing.T) {
	h := newHarness(t, Deps{})
	h.seedOrder(t, "o-1", "", item("k-1", "Soup", "kitchen", status.Pending))
	h.seedOrder(t, "o-2", "", item("k-9", "Cake", "kitchen", status.Pending))
	h.seedOrder(t, "o-3", "", item("k-3", "Tea", "bar", status.Pending))
	if err := h.db.Model(&models.Order{}).Where("id = ?", "o-3").Update("hotel_id", "h-2").Error; err != nil {
		t.Fatalf("move order: %v", err)
	}

	tests := []struct {
		name string
		req  UpdateRequest
		want error
	}{
		{name: "noCaller", req: UpdateRequest{OrderID: "o-1", ItemIDs: []string{"k-1"}, Status: "ready"}, want: ErrUnauthenticated},
		{name: "unknownOrder", req: UpdateRequest{CallerID: "staff-1", OrderID: "nope", ItemIDs: []string{"k-1"}, Status: "ready"}, want: ErrOrderNotFound},
		{name: "otherHotel", req: UpdateRequest{CallerID: "staff-1", OrderID: "o-3", ItemIDs: []string{"k-3"}, Status: "ready"}, want: ErrForbidden},
		{name: "badStatus", req: UpdateRequest{CallerID: "staff-1", OrderID: "o-1", ItemIDs: []string{"k-1"}, Status: "cooking"}, want: ErrInvalidStatus},
		{name: "missingStatus", req: UpdateRequest{CallerID: "staff-1", OrderID: "o-1", ItemIDs: []string{"k-1"}}, want: ErrInvalidStatus},
		{name: "noItems", req: UpdateRequest{CallerID: "staff-1", OrderID: "o-1", ItemIDs: []string{" ", ""}, Status: "ready"}, want: ErrNoItems},
		{name: "crossOrder", req: UpdateRequest{CallerID: "staff-1", OrderID: "o-1", ItemIDs: []string{"k-1", "k-9"}, Status: "ready"}, want: ErrCrossOrderItems},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.svc.UpdateItemStatuses(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("error = %v, want %v", err, tt.want)
			}
		})
	}

	// nothing was written by the rejected requests
	items, err := h.svc.items.ListByOrder(context.Background(), "o-1")
	if err != nil {
		t.Fatalf("ListByOrder() error = %v", err)
	}
	if items[0].Status != status.Pending {
		t.Errorf("k-1 = %s, want pending", items[0].Status)
	}
}

func TestUpdateBusyOrder(t *testing.T) {
	h := newHarness(t, Deps{Locker: busyLocker{}})
	h.seedOrder(t, "o-1", "", item("k-1", "Soup", "kitchen", status.Pending))

	_, err := h.svc.UpdateItemStatuses(context.Background(), UpdateRequest{
		CallerID: "staff-1", OrderID: "o-1", ItemIDs: []string{"k-1"}, Status: "ready",
	})
	if !errors.Is(err, ErrOrderBusy) {
		t.Fatalf("error = %v, want ErrOrderBusy", err)
	}
}

func TestUpdateEmptyOrderIsAnomaly(t *testing.T) {
	h := newHarness(t, Deps{})
	h.seedOrder(t, "o-empty", "null")

	res := h.update(t, "o-empty", status.Delivered, "ghost")
	if !res.Anomaly {
		t.Fatal("expected anomaly")
	}
	if res.Order.Status != status.Pending {
		t.Errorf("order status = %s, want unmodified pending", res.Order.Status)
	}
	if len(h.dispatcher.byStatus(status.Delivered)) != 0 {
		t.Error("anomaly must not notify")
	}
}

func TestCancelledOrderIsNeverPromoted(t *testing.T) {
	h := newHarness(t, Deps{})
	h.seedOrder(t, "o-1", "", item("k-1", "Soup", "kitchen", status.Pending))
	if err := h.db.Model(&models.Order{}).Where("id = ?", "o-1").Update("status", status.Cancelled).Error; err != nil {
		t.Fatalf("cancel: %v", err)
	}

	res := h.update(t, "o-1", status.Delivered, "k-1")
	if res.Order.Status != status.Cancelled {
		t.Errorf("order status = %s, want cancelled", res.Order.Status)
	}
}

func TestCancelledItemBlocksDelivery(t *testing.T) {
	h := newHarness(t, Deps{})
	h.seedOrder(t, "o-1", "",
		item("k-1", "Soup", "kitchen", status.Pending),
		item("k-2", "Bread", "kitchen", status.Cancelled),
	)

	res := h.update(t, "o-1", status.Delivered, "k-1")
	if res.Order.Status != status.Pending || res.Promoted {
		t.Fatalf("order status = %s promoted=%v, want pending unchanged", res.Order.Status, res.Promoted)
	}
	if res.Departments[status.Kitchen] != status.Pending {
		t.Errorf("kitchen = %s, want pending", res.Departments[status.Kitchen])
	}
	if len(h.dispatcher.byStatus(status.Delivered)) != 0 {
		t.Error("no delivered notification expected")
	}
}

// Random sequences of item updates never move the persisted order status
// backwards.
func TestMonotonicUnderRandomUpdates(t *testing.T) {
	h := newHarness(t, Deps{})
	h.seedOrder(t, "o-1", `[{"id":"L-1","name":"Toast"}]`,
		item("k-1", "Burger", "kitchen", status.Pending),
		item("k-2", "Salad", "kitchen", status.Pending),
		item("b-1", "Wine", "bar", status.Pending),
	)
	ids := []string{"k-1", "k-2", "b-1", "L-1"}
	statuses := []status.Status{status.Pending, status.Preparing, status.Ready, status.Delivered}
	rng := rand.New(rand.NewSource(42))

	prev := status.Pending
	for i := 0; i < 200; i++ {
		n := 1 + rng.Intn(len(ids))
		perm := rng.Perm(len(ids))[:n]
		pick := make([]string, n)
		for j, p := range perm {
			pick[j] = ids[p]
		}
		res := h.update(t, "o-1", statuses[rng.Intn(len(statuses))], pick...)
		if status.Compare(res.Order.Status, prev) < 0 {
			t.Fatalf("step %d: order moved from %s back to %s", i, prev, res.Order.Status)
		}
		prev = res.Order.Status
	}
}

func TestGuestStatusUsesCache(t *testing.T) {
	h := newHarness(t, Deps{})
	h.seedOrder(t, "o-1", "", item("k-1", "Soup", "kitchen", status.Pending))
	ctx := context.Background()

	got, err := h.svc.GuestStatus(ctx, "o-1")
	if err != nil || got.Status != string(status.Pending) {
		t.Fatalf("GuestStatus() = %+v, %v", got, err)
	}
	if _, err := h.cache.GetOrderStatusCache(ctx, "o-1"); err != nil {
		t.Fatalf("cache should be warm: %v", err)
	}

	h.update(t, "o-1", status.Ready, "k-1")
	got, err = h.svc.GuestStatus(ctx, "o-1")
	if err != nil || got.Status != string(status.Ready) {
		t.Fatalf("GuestStatus() after promotion = %+v, %v", got, err)
	}

	if _, err := h.svc.GuestStatus(ctx, "missing"); !errors.Is(err, ErrOrderNotFound) {
		t.Errorf("GuestStatus(missing) error = %v", err)
	}
}

func TestBoardSortsByPriorityThenWait(t *testing.T) {
	base := time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)
	entries := []BoardEntry{
		{OrderID: "ready-old", Status: status.Ready, CreatedAt: base},
		{OrderID: "pending-new", Status: status.Pending, CreatedAt: base.Add(10 * time.Minute)},
		{OrderID: "cancelled", Status: status.Cancelled, CreatedAt: base.Add(-time.Hour)},
		{OrderID: "pending-old", Status: status.Pending, CreatedAt: base.Add(-5 * time.Minute)},
		{OrderID: "preparing", Status: status.Preparing, CreatedAt: base},
		{OrderID: "delivered", Status: status.Delivered, CreatedAt: base},
	}
	SortBoard(entries)

	want := []string{"pending-old", "pending-new", "preparing", "ready-old", "delivered", "cancelled"}
	for i, id := range want {
		if entries[i].OrderID != id {
			t.Fatalf("position %d = %s, want %s (all: %+v)", i, entries[i].OrderID, id, entries)
		}
	}
}

func TestBoardRequiresGrantAndFiltersDepartment(t *testing.T) {
	h := newHarness(t, Deps{})
	h.seedOrder(t, "o-food", "", item("k-1", "Soup", "kitchen", status.Preparing))
	h.seedOrder(t, "o-drink", "", item("b-1", "Beer", "bar", status.Pending))

	kitchen := h.board(t, status.Kitchen)
	if _, ok := kitchen["o-drink"]; ok {
		t.Error("bar-only order on kitchen board")
	}
	if kitchen["o-food"] != status.Preparing {
		t.Errorf("kitchen = %v", kitchen)
	}

	if _, err := h.svc.Board(context.Background(), "stranger", "h-1", status.Bar); !errors.Is(err, ErrForbidden) {
		t.Errorf("Board() error = %v, want ErrForbidden", err)
	}
}

func TestHistory(t *testing.T) {
	auditor := &fakeAuditor{}
	h := newHarness(t, Deps{Auditor: auditor})
	h.seedOrder(t, "o-1", "", item("k-1", "Soup", "kitchen", status.Pending))
	h.update(t, "o-1", status.Ready, "k-1")

	// audit entries are written off the request path
	deadline := time.Now().Add(2 * time.Second)
	for auditor.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}

	entries, err := h.svc.History(context.Background(), "staff-1", "o-1", 0)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	actions := map[string]bool{}
	for _, e := range entries {
		actions[e.Action] = true
		if e.ActorID != "staff-1" || e.Service == "" {
			t.Errorf("entry = %+v", e)
		}
	}
	if !actions[repository.AuditItemsWritten] || !actions[repository.AuditOrderPromoted] {
		t.Errorf("actions = %v", actions)
	}

	if _, err := h.svc.History(context.Background(), "stranger", "o-1", 0); !errors.Is(err, ErrForbidden) {
		t.Errorf("History(stranger) error = %v", err)
	}
}

func TestHistoryNotStored(t *testing.T) {
	h := newHarness(t, Deps{Auditor: repository.NewLogAuditor(zap.NewNop())})
	h.seedOrder(t, "o-1", "", item("k-1", "Soup", "kitchen", status.Pending))

	if _, err := h.svc.History(context.Background(), "staff-1", "o-1", 10); !errors.Is(err, ErrNoHistory) {
		t.Errorf("History() error = %v, want ErrNoHistory", err)
	}
}
