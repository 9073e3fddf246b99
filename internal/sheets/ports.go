package sheets

import (
	"context"
	"errors"
	"time"

	"corredo/internal/core"
)

var ErrNotPurchased = errors.New("item is not purchased")

// PurchaseRow is one line of the purchase ledger.
type PurchaseRow struct {
	ItemID      int64
	Name        string
	Quantity    int
	UnitPrice   core.Money
	Total       core.Money
	PurchasedAt time.Time
	Labels      []string
}

// Ports for outbound adapters.
type (
	// PurchaseLedger mirrors purchased items into an external ledger.
	// Recording an item already present replaces its row.
	PurchaseLedger interface {
		RecordPurchase(ctx context.Context, item core.ShoppingItem) error
		RemovePurchase(ctx context.Context, itemID int64) error
	}

	PurchaseLister interface {
		ListPurchases(ctx context.Context) ([]PurchaseRow, error)
	}
)

// RowFromItem builds the ledger row of a purchased item.
func RowFromItem(it core.ShoppingItem) (PurchaseRow, error) {
	if !it.IsPurchased || it.ActualPrice == nil || it.PurchasedAt == nil {
		return PurchaseRow{}, ErrNotPurchased
	}
	return PurchaseRow{
		ItemID:      it.ID,
		Name:        it.Name,
		Quantity:    it.Quantity,
		UnitPrice:   *it.ActualPrice,
		Total:       it.ActualTotal(),
		PurchasedAt: it.PurchasedAt.UTC(),
		Labels:      it.Labels.Names(),
	}, nil
}
