package worker

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corredo/internal/core"
	"corredo/internal/events"
	"corredo/internal/sheets/memory"
	"corredo/internal/storage"
)

func setup(t *testing.T) (*storage.SQLiteRepository, *memory.Ledger, *LedgerWorker) {
	t.Helper()
	repo, err := storage.NewSQLiteRepository(filepath.Join(t.TempDir(), "worker.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	ledger := memory.New()
	return repo, ledger, NewLedgerWorker(repo, ledger, nil)
}

func insert(t *testing.T, repo *storage.SQLiteRepository, name string, cents int64) core.ShoppingItem {
	t.Helper()
	ctx := context.Background()
	id, err := repo.InsertItem(ctx, core.ShoppingItem{
		Name:           name,
		Quantity:       1,
		EstimatedPrice: core.Money{Cents: cents},
		CreatedAt:      time.Now(),
	})
	require.NoError(t, err)
	it, err := repo.GetItem(ctx, id)
	require.NoError(t, err)
	return it
}

func purchase(t *testing.T, repo *storage.SQLiteRepository, it core.ShoppingItem) core.ShoppingItem {
	t.Helper()
	bought := core.MarkPurchased(it, nil, time.Now())
	require.NoError(t, repo.UpdateItem(context.Background(), bought))
	got, err := repo.GetItem(context.Background(), it.ID)
	require.NoError(t, err)
	return got
}

func ledgerIDs(t *testing.T, l *memory.Ledger) []int64 {
	t.Helper()
	rows, err := l.ListPurchases(context.Background())
	require.NoError(t, err)
	ids := make([]int64, len(rows))
	for i, r := range rows {
		ids[i] = r.ItemID
	}
	return ids
}

func TestHandleEventPurchaseLifecycle(t *testing.T) {
	repo, ledger, w := setup(t)
	ctx := context.Background()

	crib := purchase(t, repo, insert(t, repo, "Crib", 20000))
	require.NoError(t, w.HandleEvent(ctx, events.NewItemEvent(events.ItemPurchased, crib.ID, crib.Version)))
	assert.Equal(t, []int64{crib.ID}, ledgerIDs(t, ledger))

	require.NoError(t, repo.UpdateItem(ctx, core.MarkUnpurchased(crib)))
	require.NoError(t, w.HandleEvent(ctx, events.NewItemEvent(events.ItemUnpurchased, crib.ID, crib.Version+1)))
	assert.Empty(t, ledgerIDs(t, ledger))
}

func TestHandleEventStaleEventsFollowStore(t *testing.T) {
	repo, ledger, w := setup(t)
	ctx := context.Background()

	// Purchased event for an item that was unpurchased again before the
	// worker caught up.
	it := insert(t, repo, "Bottle", 500)
	require.NoError(t, w.HandleEvent(ctx, events.NewItemEvent(events.ItemPurchased, it.ID, 2)))
	assert.Empty(t, ledgerIDs(t, ledger))

	// Item deleted before the event was handled.
	require.NoError(t, w.HandleEvent(ctx, events.NewItemEvent(events.ItemPurchased, 999, 2)))
	assert.Empty(t, ledgerIDs(t, ledger))
}

func TestHandleEventUpdateRewritesRow(t *testing.T) {
	repo, ledger, w := setup(t)
	ctx := context.Background()

	it := purchase(t, repo, insert(t, repo, "Lamp", 1500))
	require.NoError(t, w.HandleEvent(ctx, events.NewItemEvent(events.ItemPurchased, it.ID, it.Version)))

	it.Name = "Night lamp"
	require.NoError(t, repo.UpdateItem(ctx, it))
	require.NoError(t, w.HandleEvent(ctx, events.NewItemEvent(events.ItemUpdated, it.ID, it.Version+1)))

	rows, err := ledger.ListPurchases(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Night lamp", rows[0].Name)
}

func TestHandleEventDeleteAndIgnored(t *testing.T) {
	repo, ledger, w := setup(t)
	ctx := context.Background()

	it := purchase(t, repo, insert(t, repo, "Stroller", 30000))
	require.NoError(t, w.HandleEvent(ctx, events.NewItemEvent(events.ItemPurchased, it.ID, it.Version)))
	require.NoError(t, w.HandleEvent(ctx, events.NewItemEvent(events.ItemCreated, it.ID, it.Version)))
	assert.Len(t, ledgerIDs(t, ledger), 1)

	require.NoError(t, w.HandleEvent(ctx, events.NewItemEvent(events.ItemDeleted, it.ID, it.Version)))
	assert.Empty(t, ledgerIDs(t, ledger))
}

type failingLedger struct{ memory.Ledger }

func (*failingLedger) RemovePurchase(context.Context, int64) error {
	return errors.New("sheet unavailable")
}

func TestHandleEventLedgerErrorIsReturned(t *testing.T) {
	repo, _, _ := setup(t)
	w := NewLedgerWorker(repo, &failingLedger{}, nil)
	err := w.HandleEvent(context.Background(), events.NewItemEvent(events.ItemDeleted, 1, 1))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sheet unavailable")
}

func TestReconcile(t *testing.T) {
	repo, ledger, w := setup(t)
	ctx := context.Background()

	kept := purchase(t, repo, insert(t, repo, "Crib", 20000))
	insert(t, repo, "Onesies", 5000)

	// A stale row for an item that no longer exists.
	ghost := core.MarkPurchased(core.ShoppingItem{ID: 77, Name: "Ghost", Quantity: 1, EstimatedPrice: core.Money{Cents: 100}}, nil, time.Now())
	require.NoError(t, ledger.RecordPurchase(ctx, ghost))

	require.NoError(t, w.Reconcile(ctx))
	assert.Equal(t, []int64{kept.ID}, ledgerIDs(t, ledger))
}

func TestHandleEventLabelChangeRefreshesLabels(t *testing.T) {
	repo, ledger, w := setup(t)
	ctx := context.Background()

	id, err := repo.InsertLabel(ctx, core.Label{Name: "nursery", Color: "#FFB6C1"})
	require.NoError(t, err)
	it := insert(t, repo, "Crib", 20000)
	it.Labels = core.NewLabelSet("nursery")
	require.NoError(t, repo.UpdateItem(ctx, it))
	it, err = repo.GetItem(ctx, it.ID)
	require.NoError(t, err)
	purchase(t, repo, it)
	require.NoError(t, w.Reconcile(ctx))

	require.NoError(t, repo.UpdateLabel(ctx, core.Label{ID: id, Name: "bedroom", Color: "#FFB6C1"}))
	require.NoError(t, w.HandleEvent(ctx, events.NewItemEvent(events.LabelChanged, 0, 0)))

	rows, err := ledger.ListPurchases(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, []string{"bedroom"}, rows[0].Labels)
}

func TestRunReconcilerRepairsLedger(t *testing.T) {
	repo, ledger, w := setup(t)
	bought := purchase(t, repo, insert(t, repo, "Stroller", 30000))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.RunReconciler(ctx, 10*time.Millisecond) }()

	assert.Eventually(t, func() bool {
		rows, err := ledger.ListPurchases(context.Background())
		return err == nil && len(rows) == 1 && rows[0].ItemID == bought.ID
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("reconciler did not stop")
	}
}
