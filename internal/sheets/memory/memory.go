package memory

import (
	"context"
	"sort"
	"sync"

	"corredo/internal/core"
	ports "corredo/internal/sheets"
)

// Ledger keeps purchase rows in memory, keyed by item id.
type Ledger struct {
	mu   sync.Mutex
	rows map[int64]ports.PurchaseRow
}

var (
	_ ports.PurchaseLedger = (*Ledger)(nil)
	_ ports.PurchaseLister = (*Ledger)(nil)
)

func New() *Ledger {
	return &Ledger{rows: make(map[int64]ports.PurchaseRow)}
}

func (l *Ledger) RecordPurchase(_ context.Context, it core.ShoppingItem) error {
	row, err := ports.RowFromItem(it)
	if err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rows[it.ID] = row
	return nil
}

// RemovePurchase drops the row of itemID; unknown ids are ignored.
func (l *Ledger) RemovePurchase(_ context.Context, itemID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.rows, itemID)
	return nil
}

// ListPurchases returns rows ordered by purchase time, then item id.
func (l *Ledger) ListPurchases(_ context.Context) ([]ports.PurchaseRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ports.PurchaseRow, 0, len(l.rows))
	for _, r := range l.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].PurchasedAt.Equal(out[j].PurchasedAt) {
			return out[i].PurchasedAt.Before(out[j].PurchasedAt)
		}
		return out[i].ItemID < out[j].ItemID
	})
	return out, nil
}
