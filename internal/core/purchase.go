package core

import "time"

// MarkPurchased returns a copy of it flagged as bought at now. When actual is
// nil the estimated unit price is used as the actual price. Marking an
// already purchased item overwrites its actual price and purchase time.
func MarkPurchased(it ShoppingItem, actual *Money, now time.Time) ShoppingItem {
	out := it.Clone()
	price := it.EstimatedPrice
	if actual != nil {
		price = *actual
	}
	out.IsPurchased = true
	out.ActualPrice = &price
	out.PurchasedAt = &now
	return out
}

// MarkUnpurchased returns a copy of it with the purchase details cleared.
func MarkUnpurchased(it ShoppingItem) ShoppingItem {
	out := it.Clone()
	out.IsPurchased = false
	out.ActualPrice = nil
	out.PurchasedAt = nil
	return out
}
