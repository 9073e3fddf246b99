package core

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

type (
	Money struct {
		Cents int64
	}

	// ShoppingItem is a single entry of the shopping list. Prices are per unit.
	// ActualPrice and PurchasedAt are set only while IsPurchased is true; use
	// MarkPurchased and MarkUnpurchased instead of touching them directly.
	ShoppingItem struct {
		ID             int64
		Name           string
		Quantity       int
		EstimatedPrice Money
		ActualPrice    *Money
		Labels         LabelSet
		IsPurchased    bool
		PurchasedAt    *time.Time
		CreatedAt      time.Time
		Version        int64 // bumped by the store on every update
	}

	// Label is a named, colored tag. Names are unique ignoring case.
	Label struct {
		ID    int64
		Name  string
		Color string // #RRGGBB
	}
)

var (
	ErrEmptyName          = errors.New("empty name")
	ErrInvalidQuantity    = errors.New("quantity must be a positive integer")
	ErrInvalidAmount      = errors.New("invalid amount")
	ErrEmptyLabelName     = errors.New("empty label name")
	ErrInvalidColor       = errors.New("invalid color, expected #RRGGBB")
	ErrDuplicateLabel     = errors.New("label name already exists")
	ErrInconsistentStatus = errors.New("purchase status inconsistent with actual price / purchase time")
)

const maxNameLength = 200

// MaxQuantity bounds ShoppingItem.Quantity. With MaxAmountCents it keeps
// every item total and any realistic budget sum inside int64.
const MaxQuantity = 10_000

var colorPattern = regexp.MustCompile(`^#[0-9A-Fa-f]{6}$`)

// DefaultLabelColors is the palette offered when creating labels.
var DefaultLabelColors = []string{
	"#E1BEE7", // lavender
	"#FFB6C1", // light pink
	"#98FB98", // pale green
	"#87CEEB", // sky blue
	"#DDA0DD", // plum
	"#F0E68C", // khaki
	"#FFA07A", // light salmon
	"#20B2AA", // light sea green
}

func (m Money) Validate() error {
	if m.Cents <= 0 || m.Cents > MaxAmountCents {
		return ErrInvalidAmount
	}
	return nil
}

func (it ShoppingItem) Validate() error {
	name := strings.TrimSpace(it.Name)
	if name == "" {
		return ErrEmptyName
	}
	if len(name) > maxNameLength {
		return errors.New("name too long (max 200 characters)")
	}
	if it.Quantity <= 0 || it.Quantity > MaxQuantity {
		return ErrInvalidQuantity
	}
	if err := it.EstimatedPrice.Validate(); err != nil {
		return err
	}
	if it.ActualPrice != nil {
		if err := it.ActualPrice.Validate(); err != nil {
			return err
		}
	}
	if !it.PurchaseStateConsistent() {
		return ErrInconsistentStatus
	}
	return nil
}

// PurchaseStateConsistent reports whether IsPurchased agrees with the
// presence of both ActualPrice and PurchasedAt.
func (it ShoppingItem) PurchaseStateConsistent() bool {
	if it.IsPurchased {
		return it.ActualPrice != nil && it.PurchasedAt != nil
	}
	return it.ActualPrice == nil && it.PurchasedAt == nil
}

// EstimatedTotal is EstimatedPrice × Quantity.
func (it ShoppingItem) EstimatedTotal() Money {
	return it.EstimatedPrice.Times(it.Quantity)
}

// ActualTotal is ActualPrice × Quantity, zero when no actual price is known.
func (it ShoppingItem) ActualTotal() Money {
	if !it.IsPurchased || it.ActualPrice == nil {
		return Money{}
	}
	return it.ActualPrice.Times(it.Quantity)
}

// Clone returns a deep copy, so snapshots handed to readers cannot be
// mutated through shared pointers.
func (it ShoppingItem) Clone() ShoppingItem {
	out := it
	if it.ActualPrice != nil {
		p := *it.ActualPrice
		out.ActualPrice = &p
	}
	if it.PurchasedAt != nil {
		t := *it.PurchasedAt
		out.PurchasedAt = &t
	}
	out.Labels = it.Labels.Clone()
	return out
}

func (l Label) Validate() error {
	if strings.TrimSpace(l.Name) == "" {
		return ErrEmptyLabelName
	}
	if len(l.Name) > maxNameLength {
		return errors.New("label name too long (max 200 characters)")
	}
	if !colorPattern.MatchString(l.Color) {
		return ErrInvalidColor
	}
	return nil
}

// LabelNameTaken reports whether another label (id != exceptID) already uses
// name, ignoring case and surrounding whitespace.
func LabelNameTaken(labels []Label, name string, exceptID int64) bool {
	name = strings.TrimSpace(name)
	for _, l := range labels {
		if l.ID != exceptID && strings.EqualFold(strings.TrimSpace(l.Name), name) {
			return true
		}
	}
	return false
}
