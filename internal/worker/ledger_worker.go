package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"corredo/internal/core"
	"corredo/internal/events"
	"corredo/internal/log"
	"corredo/internal/sheets"
	"corredo/internal/storage"
)

// ItemSource is the read side of the item store the worker needs.
type ItemSource interface {
	GetItem(ctx context.Context, id int64) (core.ShoppingItem, error)
	ListItems(ctx context.Context) ([]core.ShoppingItem, error)
}

// LedgerWorker mirrors purchases into a ledger as item events arrive.
// Event handling and reconciles never run concurrently.
type LedgerWorker struct {
	items  ItemSource
	ledger sheets.PurchaseLedger
	logger *log.Logger

	mu sync.Mutex
}

func NewLedgerWorker(items ItemSource, ledger sheets.PurchaseLedger, logger *log.Logger) *LedgerWorker {
	if logger == nil {
		logger = log.Discard()
	}
	return &LedgerWorker{
		items:  items,
		ledger: ledger,
		logger: logger.WithComponent(log.ComponentWorker),
	}
}

// HandleEvent processes a single item event. Events only carry the item id,
// so the current item state is read back from the store before writing.
func (w *LedgerWorker) HandleEvent(ctx context.Context, e events.ItemEvent) error {
	logger := w.logger.With(log.FieldEventID, e.ID, log.FieldEventType, e.Type, log.FieldItemID, e.ItemID)
	logger.InfoContext(ctx, "Processing item event", log.FieldVersion, e.Version)

	w.mu.Lock()
	defer w.mu.Unlock()

	switch e.Type {
	case events.ItemPurchased, events.ItemUpdated:
		return w.sync(ctx, logger, e.ItemID)
	case events.ItemUnpurchased, events.ItemDeleted:
		if err := w.ledger.RemovePurchase(ctx, e.ItemID); err != nil {
			return fmt.Errorf("remove purchase: %w", err)
		}
		logger.InfoContext(ctx, "Purchase removed from ledger")
		return nil
	case events.LabelChanged:
		// Renamed or deleted labels change the label column of any row.
		return w.reconcile(ctx)
	default:
		logger.DebugContext(ctx, "Ignoring event")
		return nil
	}
}

// sync records the item when it is purchased and removes it otherwise.
// Events can arrive late, so the stored state wins over the event type.
func (w *LedgerWorker) sync(ctx context.Context, logger *log.Logger, id int64) error {
	it, err := w.items.GetItem(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		logger.WarnContext(ctx, "Item no longer exists, skipping")
		return nil
	}
	if err != nil {
		return fmt.Errorf("get item: %w", err)
	}

	if !it.IsPurchased {
		if err := w.ledger.RemovePurchase(ctx, id); err != nil {
			return fmt.Errorf("remove purchase: %w", err)
		}
		return nil
	}
	if err := w.ledger.RecordPurchase(ctx, it); err != nil {
		return fmt.Errorf("record purchase: %w", err)
	}
	logger.InfoContext(ctx, "Purchase recorded in ledger",
		log.FieldItemName, it.Name,
		log.FieldAmountCents, it.ActualTotal().Cents)
	return nil
}

// Reconcile brings the ledger in line with the store, recovering from
// events missed while the worker was down. When the ledger can list its
// rows, rows of items that are gone or no longer purchased are removed.
func (w *LedgerWorker) Reconcile(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reconcile(ctx)
}

// RunReconciler reconciles every interval until ctx is done. Failures are
// logged and retried on the next tick.
func (w *LedgerWorker) RunReconciler(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := w.Reconcile(ctx); err != nil && ctx.Err() == nil {
				w.logger.ErrorContext(ctx, "Periodic reconcile failed", log.FieldError, err)
			}
		}
	}
}

func (w *LedgerWorker) reconcile(ctx context.Context) error {
	items, err := w.items.ListItems(ctx)
	if err != nil {
		return fmt.Errorf("list items: %w", err)
	}

	purchased := make(map[int64]bool, len(items))
	recorded, failed := 0, 0
	for _, it := range items {
		if !it.IsPurchased {
			continue
		}
		purchased[it.ID] = true
		if err := w.ledger.RecordPurchase(ctx, it); err != nil {
			w.logger.ErrorContext(ctx, "Failed to record purchase during reconcile",
				log.FieldItemID, it.ID, log.FieldError, err)
			failed++
			continue
		}
		recorded++
	}

	removed := 0
	if lister, ok := w.ledger.(sheets.PurchaseLister); ok {
		rows, err := lister.ListPurchases(ctx)
		if err != nil {
			return fmt.Errorf("list ledger rows: %w", err)
		}
		for _, row := range rows {
			if purchased[row.ItemID] {
				continue
			}
			if err := w.ledger.RemovePurchase(ctx, row.ItemID); err != nil {
				w.logger.ErrorContext(ctx, "Failed to remove stale ledger row",
					log.FieldItemID, row.ItemID, log.FieldError, err)
				failed++
				continue
			}
			removed++
		}
	}

	w.logger.InfoContext(ctx, "Ledger reconcile completed",
		"recorded", recorded,
		"removed", removed,
		"errors", failed)
	return nil
}
