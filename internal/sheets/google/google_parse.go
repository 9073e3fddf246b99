package google

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"corredo/internal/core"
	ports "corredo/internal/sheets"
)

// encodeRow lays out a ledger row as item_id, name, quantity, unit_price,
// total, purchased_at, labels. Amounts are written as numbers in euros.
func encodeRow(r ports.PurchaseRow) []interface{} {
	return []interface{}{
		strconv.FormatInt(r.ItemID, 10),
		r.Name,
		r.Quantity,
		r.UnitPrice.Euros(),
		r.Total.Euros(),
		r.PurchasedAt.UTC().Format(time.RFC3339),
		strings.Join(r.Labels, ","),
	}
}

func decodeRow(raw []interface{}) (ports.PurchaseRow, error) {
	cells := toStrings(raw)
	if len(cells) < 6 {
		return ports.PurchaseRow{}, fmt.Errorf("expected at least 6 cells, got %d", len(cells))
	}
	var (
		r   ports.PurchaseRow
		err error
	)
	if r.ItemID, err = strconv.ParseInt(cells[0], 10, 64); err != nil {
		return r, fmt.Errorf("item id %q: %w", cells[0], err)
	}
	r.Name = cells[1]
	if r.Quantity, err = strconv.Atoi(cells[2]); err != nil {
		return r, fmt.Errorf("quantity %q: %w", cells[2], err)
	}
	unit, ok := parseEurosToCents(cells[3])
	if !ok {
		return r, fmt.Errorf("unit price %q", cells[3])
	}
	total, ok := parseEurosToCents(cells[4])
	if !ok {
		return r, fmt.Errorf("total %q", cells[4])
	}
	r.UnitPrice, r.Total = core.Money{Cents: unit}, core.Money{Cents: total}
	if r.PurchasedAt, err = time.Parse(time.RFC3339, cells[5]); err != nil {
		return r, fmt.Errorf("purchased at %q: %w", cells[5], err)
	}
	if len(cells) > 6 {
		r.Labels = core.ParseLabelSet(cells[6]).Names()
	}
	return r, nil
}

func toStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}

func firstString(row []interface{}) string {
	if len(row) == 0 {
		return ""
	}
	return fmt.Sprint(row[0])
}

// parseEurosToCents accepts sheet formatted amounts such as "12.50",
// "12,50" or "€ 1.234,50". Zero is allowed.
func parseEurosToCents(s string) (int64, bool) {
	s = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(s), "€"))
	if s == "" {
		return 0, false
	}
	// With both separators present the last one is the decimal mark.
	if strings.Contains(s, ",") && strings.Contains(s, ".") {
		if strings.LastIndex(s, ",") > strings.LastIndex(s, ".") {
			s = strings.ReplaceAll(s, ".", "")
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	}
	s = strings.ReplaceAll(s, ",", ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return int64(f*100.0 + 0.5), true
}
