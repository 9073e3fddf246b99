package http

import (
	"fmt"
	"strings"
	"time"

	"corredo/internal/core"
	"corredo/internal/services"
)

// Amounts travel both as integer cents and as a decimal string. Requests
// may use either; cents win when both are set.

type errorResponse struct {
	Error string `json:"error"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type itemResponse struct {
	ID                  int64      `json:"id"`
	Name                string     `json:"name"`
	Quantity            int        `json:"quantity"`
	EstimatedPriceCents int64      `json:"estimated_price_cents"`
	EstimatedPrice      string     `json:"estimated_price"`
	EstimatedTotalCents int64      `json:"estimated_total_cents"`
	ActualPriceCents    *int64     `json:"actual_price_cents,omitempty"`
	ActualPrice         string     `json:"actual_price,omitempty"`
	Labels              []string   `json:"labels"`
	IsPurchased         bool       `json:"is_purchased"`
	PurchasedAt         *time.Time `json:"purchased_at,omitempty"`
	CreatedAt           time.Time  `json:"created_at"`
	Version             int64      `json:"version"`
}

func newItemResponse(it core.ShoppingItem) itemResponse {
	resp := itemResponse{
		ID:                  it.ID,
		Name:                it.Name,
		Quantity:            it.Quantity,
		EstimatedPriceCents: it.EstimatedPrice.Cents,
		EstimatedPrice:      it.EstimatedPrice.String(),
		EstimatedTotalCents: it.EstimatedTotal().Cents,
		Labels:              it.Labels.Names(),
		IsPurchased:         it.IsPurchased,
		PurchasedAt:         it.PurchasedAt,
		CreatedAt:           it.CreatedAt,
		Version:             it.Version,
	}
	if it.ActualPrice != nil {
		cents := it.ActualPrice.Cents
		resp.ActualPriceCents = &cents
		resp.ActualPrice = it.ActualPrice.String()
	}
	if resp.Labels == nil {
		resp.Labels = []string{}
	}
	return resp
}

func newItemsResponse(items []core.ShoppingItem) []itemResponse {
	out := make([]itemResponse, len(items))
	for i, it := range items {
		out[i] = newItemResponse(it)
	}
	return out
}

type labelResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
}

func newLabelsResponse(labels []core.Label) []labelResponse {
	out := make([]labelResponse, len(labels))
	for i, l := range labels {
		out[i] = labelResponse{ID: l.ID, Name: l.Name, Color: l.Color}
	}
	return out
}

type filterResponse struct {
	SelectedLabels []string `json:"selected_labels"`
	Mode           string   `json:"mode"`
	ShowPurchased  bool     `json:"show_purchased"`
}

func newFilterResponse(f core.FilterState) filterResponse {
	selected := f.SelectedLabels.Names()
	if selected == nil {
		selected = []string{}
	}
	return filterResponse{
		SelectedLabels: selected,
		Mode:           f.Mode.String(),
		ShowPurchased:  f.ShowPurchased,
	}
}

type budgetResponse struct {
	TotalEstimatedCents int64   `json:"total_estimated_cents"`
	TotalEstimated      string  `json:"total_estimated"`
	TotalActualCents    int64   `json:"total_actual_cents"`
	TotalActual         string  `json:"total_actual"`
	RemainingCents      int64   `json:"remaining_cents"`
	Remaining           string  `json:"remaining"`
	PurchasedCount      int     `json:"purchased_count"`
	TotalCount          int     `json:"total_count"`
	ProgressPercentage  float64 `json:"progress_percentage"` // fraction in [0,1]
}

func newBudgetResponse(b core.BudgetSummary) budgetResponse {
	return budgetResponse{
		TotalEstimatedCents: b.TotalEstimated.Cents,
		TotalEstimated:      b.TotalEstimated.String(),
		TotalActualCents:    b.TotalActual.Cents,
		TotalActual:         b.TotalActual.String(),
		RemainingCents:      b.Remaining.Cents,
		Remaining:           b.Remaining.String(),
		PurchasedCount:      b.PurchasedCount,
		TotalCount:          b.TotalCount,
		ProgressPercentage:  b.ProgressPercentage,
	}
}

type labelAmountResponse struct {
	Name           string `json:"name"`
	EstimatedCents int64  `json:"estimated_cents"`
	ActualCents    int64  `json:"actual_cents"`
	Items          int    `json:"items"`
}

type analyticsResponse struct {
	ByLabel  []labelAmountResponse `json:"by_label"`
	Progress struct {
		Purchased  int     `json:"purchased"`
		Remaining  int     `json:"remaining"`
		Percentage float64 `json:"percentage"`
	} `json:"progress"`
}

func newAnalyticsResponse(a core.Analytics) analyticsResponse {
	var resp analyticsResponse
	resp.ByLabel = make([]labelAmountResponse, len(a.ByLabel))
	for i, la := range a.ByLabel {
		resp.ByLabel[i] = labelAmountResponse{
			Name:           la.Name,
			EstimatedCents: la.Estimated.Cents,
			ActualCents:    la.Actual.Cents,
			Items:          la.Items,
		}
	}
	resp.Progress.Purchased = a.Progress.Purchased
	resp.Progress.Remaining = a.Progress.Remaining
	resp.Progress.Percentage = a.Progress.Percentage
	return resp
}

type viewResponse struct {
	Items   []itemResponse  `json:"items"`
	Filter  filterResponse  `json:"filter"`
	Budget  budgetResponse  `json:"budget"`
	Labels  []labelResponse `json:"labels"`
	Version uint64          `json:"version"`
}

func newViewResponse(v services.View) viewResponse {
	return viewResponse{
		Items:   newItemsResponse(v.Items),
		Filter:  newFilterResponse(v.Filter),
		Budget:  newBudgetResponse(v.Budget),
		Labels:  newLabelsResponse(v.Labels),
		Version: v.Version,
	}
}

// Requests

// itemRequest is used for create and for partial update; nil fields keep
// the stored value on update.
type itemRequest struct {
	Name                *string   `json:"name"`
	Quantity            *int      `json:"quantity"`
	EstimatedPrice      *string   `json:"estimated_price"`
	EstimatedPriceCents *int64    `json:"estimated_price_cents"`
	Labels              *[]string `json:"labels"`
	Version             int64     `json:"version"`
}

func (req itemRequest) estimated() (*core.Money, error) {
	return money(req.EstimatedPriceCents, req.EstimatedPrice, "estimated_price")
}

// apply copies the set fields onto it.
func (req itemRequest) apply(it core.ShoppingItem) (core.ShoppingItem, error) {
	price, err := req.estimated()
	if err != nil {
		return it, err
	}
	if req.Name != nil {
		it.Name = *req.Name
	}
	if req.Quantity != nil {
		it.Quantity = *req.Quantity
	}
	if price != nil {
		it.EstimatedPrice = *price
	}
	if req.Labels != nil {
		it.Labels = core.NewLabelSet(*req.Labels...)
	}
	if req.Version != 0 {
		it.Version = req.Version
	}
	return it, nil
}

type purchaseRequest struct {
	ActualPrice      *string `json:"actual_price"`
	ActualPriceCents *int64  `json:"actual_price_cents"`
}

type labelRequest struct {
	Name  *string `json:"name"`
	Color *string `json:"color"`
}

type filterModeRequest struct {
	Mode string `json:"mode"`
}

type showPurchasedRequest struct {
	Show *bool `json:"show"`
}

func money(cents *int64, decimal *string, field string) (*core.Money, error) {
	switch {
	case cents != nil:
		m := core.Money{Cents: *cents}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("%s %d: %w", field, *cents, err)
		}
		return &m, nil
	case decimal != nil && strings.TrimSpace(*decimal) != "":
		m, err := core.ParseMoney(*decimal)
		if err != nil {
			return nil, fmt.Errorf("%s %q: %w", field, *decimal, err)
		}
		return &m, nil
	default:
		return nil, nil
	}
}
