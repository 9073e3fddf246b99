package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"corredo/internal/core"
	ports "corredo/internal/sheets"
)

func purchased(id int64, name string, at time.Time) core.ShoppingItem {
	it := core.ShoppingItem{ID: id, Name: name, Quantity: 2, EstimatedPrice: core.Money{Cents: 500}, Labels: core.NewLabelSet("feeding")}
	return core.MarkPurchased(it, &core.Money{Cents: 450}, at)
}

func TestLedgerRecordReplaceRemove(t *testing.T) {
	ctx := context.Background()
	l := New()
	t0 := time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

	if err := l.RecordPurchase(ctx, purchased(2, "Bottle", t0.Add(time.Hour))); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.RecordPurchase(ctx, purchased(1, "Bib", t0)); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := l.RecordPurchase(ctx, purchased(2, "Bottle XL", t0.Add(time.Hour))); err != nil {
		t.Fatalf("record: %v", err)
	}

	rows, _ := l.ListPurchases(ctx)
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Name != "Bib" || rows[1].Name != "Bottle XL" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
	if rows[1].Total.Cents != 900 || rows[1].UnitPrice.Cents != 450 {
		t.Fatalf("unexpected amounts: %+v", rows[1])
	}

	if err := l.RemovePurchase(ctx, 2); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := l.RemovePurchase(ctx, 99); err != nil {
		t.Fatalf("remove unknown: %v", err)
	}
	rows, _ = l.ListPurchases(ctx)
	if len(rows) != 1 {
		t.Fatalf("expected 1 row, got %d", len(rows))
	}
}

func TestLedgerRejectsUnpurchased(t *testing.T) {
	l := New()
	err := l.RecordPurchase(context.Background(), core.ShoppingItem{ID: 1, Name: "Crib", Quantity: 1})
	if !errors.Is(err, ports.ErrNotPurchased) {
		t.Fatalf("expected ErrNotPurchased, got %v", err)
	}
}
