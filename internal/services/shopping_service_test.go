package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"corredo/internal/cache"
	"corredo/internal/core"
)

func newTestService(t *testing.T) (*ShoppingService, *ItemStore) {
	t.Helper()
	store, _ := newRunningStore(t, nil)
	svc := NewShoppingService(store, cache.NewLRUCache[[]core.ShoppingItem](16, time.Minute), nil)
	t.Cleanup(svc.Close)
	return svc, store
}

func addItem(t *testing.T, svc *ShoppingService, it core.ShoppingItem) int64 {
	t.Helper()
	op, err := svc.AddItem(it)
	require.NoError(t, err)
	return mustID(t, op)
}

func viewNames(v View) []string {
	out := make([]string, len(v.Items))
	for i, it := range v.Items {
		out[i] = it.Name
	}
	return out
}

func TestShoppingServiceInitialView(t *testing.T) {
	svc, _ := newTestService(t)
	v := svc.View()
	assert.Empty(t, v.Items)
	assert.Empty(t, v.Labels)
	assert.Equal(t, core.FilterAnd, v.Filter.Mode)
	assert.False(t, v.Filter.ShowPurchased)
	assert.True(t, v.Filter.SelectedLabels.IsEmpty())
	assert.Equal(t, core.BudgetSummary{}, v.Budget)
}

func TestShoppingServiceBudgetScenario(t *testing.T) {
	svc, _ := newTestService(t)

	addItem(t, svc, newShoppingItem("Crib", 1, 20000))
	onesies := addItem(t, svc, newShoppingItem("Onesies", 5, 1000))
	op, err := svc.MarkPurchased(onesies, &core.Money{Cents: 800})
	require.NoError(t, err)
	mustID(t, op)

	b := svc.Budget()
	assert.Equal(t, int64(25000), b.TotalEstimated.Cents)
	assert.Equal(t, int64(4000), b.TotalActual.Cents)
	assert.Equal(t, int64(21000), b.Remaining.Cents)
	assert.Equal(t, 1, b.PurchasedCount)
	assert.Equal(t, 2, b.TotalCount)
	assert.InDelta(t, 0.5, b.ProgressPercentage, 1e-9)

	// Purchased items are hidden by default but still counted.
	assert.Equal(t, []string{"Crib"}, viewNames(svc.View()))
	svc.SetShowPurchased(true)
	assert.Equal(t, []string{"Onesies", "Crib"}, viewNames(svc.View()))
}

func TestShoppingServiceLabelFilter(t *testing.T) {
	svc, _ := newTestService(t)

	addItem(t, svc, newShoppingItem("Crib", 1, 20000, "nursery", "furniture"))
	addItem(t, svc, newShoppingItem("Onesies", 5, 1000, "clothing"))
	addItem(t, svc, newShoppingItem("Mobile", 1, 2500, "nursery"))

	svc.ToggleLabel("nursery")
	assert.Equal(t, []string{"Mobile", "Crib"}, viewNames(svc.View()))

	svc.ToggleLabel("furniture")
	assert.Equal(t, []string{"Crib"}, viewNames(svc.View()))

	f := svc.SetFilterMode(core.FilterOr)
	assert.Equal(t, core.FilterOr, f.Mode)
	assert.Equal(t, []string{"Mobile", "Crib"}, viewNames(svc.View()))

	svc.ClearLabels()
	assert.Len(t, svc.View().Items, 3)

	// Toggling twice restores the selection.
	svc.ToggleLabel("clothing")
	f = svc.ToggleLabel("clothing")
	assert.True(t, f.SelectedLabels.IsEmpty())
}

func TestShoppingServiceViewFollowsStore(t *testing.T) {
	svc, _ := newTestService(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	views := svc.Watch(ctx)
	first := <-views
	assert.Empty(t, first.Items)

	addItem(t, svc, newShoppingItem("Bath tub", 1, 3500))
	for v := range views {
		if len(v.Items) == 1 {
			assert.Equal(t, "Bath tub", v.Items[0].Name)
			assert.Greater(t, v.Version, first.Version)
			return
		}
	}
	t.Fatal("view stream ended before the new item arrived")
}

func TestShoppingServiceValidation(t *testing.T) {
	svc, _ := newTestService(t)

	cases := []struct {
		name string
		item core.ShoppingItem
		want error
	}{
		{"empty name", newShoppingItem("  ", 1, 100), core.ErrEmptyName},
		{"zero quantity", newShoppingItem("Bib", 0, 100), core.ErrInvalidQuantity},
		{"zero price", newShoppingItem("Bib", 1, 0), core.ErrInvalidAmount},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			op, err := svc.AddItem(tc.item)
			assert.ErrorIs(t, err, tc.want)
			assert.Nil(t, op)
		})
	}

	_, err := svc.MarkPurchased(1, &core.Money{Cents: -5})
	assert.ErrorIs(t, err, core.ErrInvalidAmount)

	_, err = svc.UpdateItem(newShoppingItem("Bib", 1, 100))
	assert.ErrorIs(t, err, ErrInvalidID)

	assert.Empty(t, svc.View().Items, "nothing reached the store")
}

func TestShoppingServiceAddItemIgnoresPurchaseFields(t *testing.T) {
	svc, store := newTestService(t)

	it := core.MarkPurchased(newShoppingItem("Monitor", 1, 9000), nil, time.Now())
	it.ID = 55
	id := addItem(t, svc, it)

	got, err := store.GetItem(context.Background(), id)
	require.NoError(t, err)
	assert.NotEqual(t, int64(55), got.ID)
	assert.False(t, got.IsPurchased)
	assert.Nil(t, got.ActualPrice)
	assert.Nil(t, got.PurchasedAt)
}

func TestShoppingServiceLabels(t *testing.T) {
	svc, _ := newTestService(t)

	op, err := svc.AddLabel(core.Label{Name: " Nursery "})
	require.NoError(t, err)
	id := mustID(t, op)

	labels := svc.View().Labels
	require.Len(t, labels, 1)
	assert.Equal(t, "Nursery", labels[0].Name)
	assert.Equal(t, core.DefaultLabelColors[0], labels[0].Color)

	_, err = svc.AddLabel(core.Label{Name: "NURSERY", Color: "#FFFFFF"})
	assert.ErrorIs(t, err, core.ErrDuplicateLabel)

	_, err = svc.AddLabel(core.Label{Name: "Bath", Color: "red"})
	assert.ErrorIs(t, err, core.ErrInvalidColor)

	_, err = svc.AddLabel(core.Label{Name: "   "})
	assert.ErrorIs(t, err, core.ErrEmptyLabelName)

	// Renaming a label to a different case of its own name is allowed.
	op, err = svc.UpdateLabel(core.Label{ID: id, Name: "nursery", Color: "#FFFFFF"})
	require.NoError(t, err)
	mustID(t, op)
	assert.Equal(t, "nursery", svc.View().Labels[0].Name)

	require.NoError(t, wait(t, svc.DeleteLabel(id)).Err)
	assert.Empty(t, svc.View().Labels)
}

func TestShoppingServiceSearch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	addItem(t, svc, newShoppingItem("Baby Bottle", 2, 799))
	bottle := addItem(t, svc, newShoppingItem("Bottle brush", 1, 450))
	addItem(t, svc, newShoppingItem("Crib", 1, 20000))

	got, err := svc.Search(ctx, "BOTTLE")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	// A cached result is not reused after the store changed.
	op, err := svc.MarkPurchased(bottle, nil)
	require.NoError(t, err)
	mustID(t, op)

	got, err = svc.Search(ctx, "BOTTLE")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Baby Bottle", got[0].Name)
}

func TestShoppingServiceSearchUsesCache(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()
	addItem(t, svc, newShoppingItem("Blanket", 1, 2000))

	_, err := svc.Search(ctx, "blank")
	require.NoError(t, err)
	_, err = svc.Search(ctx, "blank")
	require.NoError(t, err)

	stats := svc.search.Stats()
	assert.Equal(t, uint64(1), stats.Hits)
	assert.Equal(t, uint64(1), stats.Misses)
}

func TestShoppingServiceAnalytics(t *testing.T) {
	svc, _ := newTestService(t)

	addItem(t, svc, newShoppingItem("Crib", 1, 20000, "nursery"))
	id := addItem(t, svc, newShoppingItem("Mobile", 1, 2500, "nursery", "toys"))
	op, err := svc.MarkPurchased(id, &core.Money{Cents: 3000})
	require.NoError(t, err)
	mustID(t, op)

	a := svc.Analytics()
	require.Len(t, a.ByLabel, 2)
	assert.Equal(t, "nursery", a.ByLabel[0].Name)
	assert.Equal(t, int64(22500), a.ByLabel[0].Estimated.Cents)
	assert.Equal(t, int64(3000), a.ByLabel[0].Actual.Cents)
	assert.Equal(t, 2, a.ByLabel[0].Items)
	assert.Equal(t, 1, a.Progress.Purchased)
	assert.Equal(t, 1, a.Progress.Remaining)
}

func TestShoppingServiceReads(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	id := addItem(t, svc, newShoppingItem("Crib", 1, 20000))
	op, err := svc.MarkPurchased(id, nil)
	require.NoError(t, err)
	mustID(t, op)

	it, err := svc.Item(ctx, id)
	require.NoError(t, err)
	assert.True(t, it.IsPurchased)
	assert.Empty(t, svc.View().Items, "hidden by the filter")
	assert.Len(t, svc.AllItems(), 1)

	op, err = svc.AddLabel(core.Label{Name: "nursery"})
	require.NoError(t, err)
	labelID := mustID(t, op)
	l, ok := svc.Label(labelID)
	require.True(t, ok)
	assert.Equal(t, "nursery", l.Name)
	_, ok = svc.Label(labelID + 1)
	assert.False(t, ok)

	assert.NoError(t, svc.Ping(ctx))
}
