package core

import (
	"fmt"
	"strings"
)

// FilterMode decides how multiple selected labels combine.
type FilterMode int

const (
	// FilterAnd keeps items carrying every selected label.
	FilterAnd FilterMode = iota
	// FilterOr keeps items carrying at least one selected label.
	FilterOr
)

func (m FilterMode) String() string {
	if m == FilterOr {
		return "OR"
	}
	return "AND"
}

// ParseFilterMode accepts "and"/"or" in any case.
func ParseFilterMode(s string) (FilterMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AND":
		return FilterAnd, nil
	case "OR":
		return FilterOr, nil
	default:
		return FilterAnd, fmt.Errorf("unknown filter mode %q", s)
	}
}

// FilterState is the per-session view configuration. It is a value type:
// every operation returns an updated copy and never touches the receiver.
// The zero value is the initial state (no labels, AND, purchased hidden).
type FilterState struct {
	SelectedLabels LabelSet
	Mode           FilterMode
	ShowPurchased  bool
}

// ToggleLabel adds name to the selection if absent, removes it otherwise.
// Blank names leave the state unchanged.
func (f FilterState) ToggleLabel(name string) FilterState {
	if strings.TrimSpace(name) == "" {
		return f
	}
	if f.SelectedLabels.Has(name) {
		f.SelectedLabels = f.SelectedLabels.Remove(name)
	} else {
		f.SelectedLabels = f.SelectedLabels.With(name)
	}
	return f
}

func (f FilterState) ClearLabels() FilterState {
	f.SelectedLabels = LabelSet{}
	return f
}

func (f FilterState) WithMode(m FilterMode) FilterState {
	f.Mode = m
	return f
}

func (f FilterState) WithShowPurchased(show bool) FilterState {
	f.ShowPurchased = show
	return f
}

// Matches reports whether an item is visible under this state.
func (f FilterState) Matches(it ShoppingItem) bool {
	if it.IsPurchased && !f.ShowPurchased {
		return false
	}
	if f.SelectedLabels.IsEmpty() {
		return true
	}
	if f.Mode == FilterOr {
		for _, n := range f.SelectedLabels.Names() {
			if it.Labels.Has(n) {
				return true
			}
		}
		return false
	}
	for _, n := range f.SelectedLabels.Names() {
		if !it.Labels.Has(n) {
			return false
		}
	}
	return true
}

// VisibleItems keeps the items matching f, in input order.
func VisibleItems(items []ShoppingItem, f FilterState) []ShoppingItem {
	out := make([]ShoppingItem, 0, len(items))
	for _, it := range items {
		if f.Matches(it) {
			out = append(out, it)
		}
	}
	return out
}
