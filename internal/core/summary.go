package core

import "sort"

// BudgetSummary aggregates the whole item collection, independent of any filter.
type BudgetSummary struct {
	TotalEstimated     Money
	TotalActual        Money
	Remaining          Money // TotalEstimated - TotalActual, may be negative
	PurchasedCount     int
	TotalCount         int
	ProgressPercentage float64 // fraction in [0,1], 0 when there are no items
}

// Summarize folds items into a BudgetSummary. Only purchased items with an
// actual price contribute to TotalActual.
func Summarize(items []ShoppingItem) BudgetSummary {
	var s BudgetSummary
	for _, it := range items {
		s.TotalCount++
		s.TotalEstimated = s.TotalEstimated.Add(it.EstimatedTotal())
		if it.IsPurchased {
			s.PurchasedCount++
			s.TotalActual = s.TotalActual.Add(it.ActualTotal())
		}
	}
	s.Remaining = s.TotalEstimated.Sub(s.TotalActual)
	if s.TotalCount > 0 {
		s.ProgressPercentage = float64(s.PurchasedCount) / float64(s.TotalCount)
	}
	return s
}

// LabelAmount is the budget share of a single label.
type LabelAmount struct {
	Name      string
	Estimated Money
	Actual    Money
	Items     int
}

// PurchaseProgress compares bought against still-to-buy items.
type PurchaseProgress struct {
	Purchased  int
	Remaining  int
	Percentage float64 // fraction in [0,1]
}

// Analytics groups the per-label breakdown and purchase progress.
type Analytics struct {
	ByLabel  []LabelAmount
	Progress PurchaseProgress
}

// LabelBreakdown sums estimated and actual totals per label name, sorted by
// name. Items with several labels count toward each of them; unlabeled items
// are not included.
func LabelBreakdown(items []ShoppingItem) []LabelAmount {
	idx := map[string]int{}
	var out []LabelAmount
	for _, it := range items {
		for _, n := range it.Labels.Names() {
			i, ok := idx[n]
			if !ok {
				i = len(out)
				idx[n] = i
				out = append(out, LabelAmount{Name: n})
			}
			out[i].Items++
			out[i].Estimated = out[i].Estimated.Add(it.EstimatedTotal())
			out[i].Actual = out[i].Actual.Add(it.ActualTotal())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Progress reports purchased vs remaining counts.
func Progress(items []ShoppingItem) PurchaseProgress {
	s := Summarize(items)
	return PurchaseProgress{
		Purchased:  s.PurchasedCount,
		Remaining:  s.TotalCount - s.PurchasedCount,
		Percentage: s.ProgressPercentage,
	}
}

func BuildAnalytics(items []ShoppingItem) Analytics {
	return Analytics{ByLabel: LabelBreakdown(items), Progress: Progress(items)}
}
