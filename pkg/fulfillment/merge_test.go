package fulfillment

import (
	"errors"
	"testing"

	"github.com/example/roomservice/pkg/models"
	"github.com/example/roomservice/pkg/status"
)

func row(id, name string, st status.Status, dept string) models.OrderItem {
	return models.OrderItem{ID: id, OrderID: "o-1", MenuItemName: name, Quantity: 1, Status: st, Department: dept}
}

func byID(items []MergedItem) map[string]MergedItem {
	out := make(map[string]MergedItem, len(items))
	for _, it := range items {
		out[it.ID] = it
	}
	return out
}

func TestMergeJustUpdatedShadowsStaleRead(t *testing.T) {
	stale := row("i-1", "Burger", status.Pending, "kitchen")
	fresh := row("i-1", "Burger", status.Ready, "kitchen")

	got, err := Merge(MergeInput{
		OrderID:     "o-1",
		Relational:  []models.OrderItem{stale, row("i-2", "Fries", status.Pending, "kitchen")},
		JustUpdated: []models.OrderItem{fresh},
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if byID(got)["i-1"].Status != status.Ready {
		t.Errorf("i-1 status = %s, want ready", byID(got)["i-1"].Status)
	}
}

func TestMergeRelationalWinsOverSnapshotByName(t *testing.T) {
	got, err := Merge(MergeInput{
		OrderID:    "o-1",
		Relational: []models.OrderItem{row("i-1", "Club  Sandwich", status.Preparing, "")},
		Legacy: []models.LegacyItem{
			{MenuItemID: "p-1", MenuItemName: " club sandwich"},
			{MenuItemID: "p-2", MenuItemName: "Mojito", Department: "bar"},
		},
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2: %+v", len(got), got)
	}
	items := byID(got)
	if items["i-1"].Source != Authoritative || items["i-1"].Status != status.Preparing {
		t.Errorf("relational item = %+v", items["i-1"])
	}
	if items["i-1"].Department != status.Kitchen {
		t.Errorf("untagged row department = %s, want kitchen", items["i-1"].Department)
	}
	mojito, ok := items["p-2"]
	if !ok {
		t.Fatalf("snapshot-only item missing: %+v", got)
	}
	if mojito.Source != Synthesized || mojito.Department != status.Bar {
		t.Errorf("mojito = %+v", mojito)
	}
}

func TestMergeCompleteness(t *testing.T) {
	relational := []models.OrderItem{
		row("i-1", "Soup", status.Pending, "kitchen"),
		row("i-2", "Steak", status.Ready, "kitchen"),
		row("i-3", "Beer", status.Delivered, "bar"),
	}
	legacy := []models.LegacyItem{
		{MenuItemName: "Soup"},
		{MenuItemName: "Beer"},
		{MenuItemName: "Cake"},
		{MenuItemName: "Tea", Department: "bar"},
	}

	got, err := Merge(MergeInput{OrderID: "o-1", Relational: relational, Legacy: legacy})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	// N relational + M snapshot-only
	if want := 3 + 2; len(got) != want {
		t.Fatalf("len = %d, want %d", len(got), want)
	}
	seen := make(map[string]bool)
	for _, it := range got {
		if seen[it.ID] {
			t.Errorf("duplicate id %s", it.ID)
		}
		seen[it.ID] = true
	}
	if !seen[SyntheticID("o-1", 2)] || !seen[SyntheticID("o-1", 3)] {
		t.Errorf("synthetic ids missing: %v", seen)
	}
}

func TestMergeConservativeDefault(t *testing.T) {
	legacy := []models.LegacyItem{
		{ID: "L1", MenuItemName: "Omelette", Department: "kitchen"},
		{ID: "L2", MenuItemName: "Pancakes", Department: "kitchen"},
	}

	for _, requested := range []status.Status{status.Preparing, status.Ready, status.Delivered} {
		t.Run(string(requested), func(t *testing.T) {
			got, err := Merge(MergeInput{
				OrderID:         "o-1",
				Legacy:          legacy,
				RequestedIDs:    []string{"L1"},
				RequestedStatus: requested,
			})
			if err != nil {
				t.Fatalf("Merge() error = %v", err)
			}
			items := byID(got)
			if items["L1"].Status != requested {
				t.Errorf("addressed item status = %s, want %s", items["L1"].Status, requested)
			}
			if items["L2"].Status != status.Pending {
				t.Errorf("untouched item status = %s, want pending", items["L2"].Status)
			}
		})
	}
}

func TestMergeCollidingSnapshotIdentities(t *testing.T) {
	got, err := Merge(MergeInput{
		OrderID: "o-9",
		Legacy: []models.LegacyItem{
			{MenuItemID: "m-1", MenuItemName: "Water"},
			{MenuItemID: "m-1", MenuItemName: "Sparkling Water"},
			{MenuItemName: ""},
		},
	})
	if err != nil {
		t.Fatalf("Merge() error = %v", err)
	}
	ids := byID(got)
	if len(ids) != 3 {
		t.Fatalf("ids = %v, want 3 distinct", ids)
	}
	if _, ok := ids[SyntheticID("o-9", 1)]; !ok {
		t.Errorf("colliding entry should get a synthetic id: %v", ids)
	}
	if _, ok := ids[SyntheticID("o-9", 2)]; !ok {
		t.Errorf("anonymous entry should get a synthetic id: %v", ids)
	}
}

func TestMergeEmpty(t *testing.T) {
	_, err := Merge(MergeInput{OrderID: "o-1"})
	if !errors.Is(err, ErrEmptyMerge) {
		t.Fatalf("Merge() error = %v, want ErrEmptyMerge", err)
	}
}

func TestNormalizeName(t *testing.T) {
	tests := map[string]string{
		"  Club   Sandwich ": "club sandwich",
		"MOJITO":            "mojito",
		"":                  "",
	}
	for in, want := range tests {
		if got := NormalizeName(in); got != want {
			t.Errorf("NormalizeName(%q) = %q, want %q", in, got, want)
		}
	}
}
