package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"corredo/internal/core"
)

const itemColumns = `id, name, quantity, estimated_price_cents, actual_price_cents, is_purchased, purchased_at, created_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(s rowScanner) (core.ShoppingItem, error) {
	var (
		it          core.ShoppingItem
		actual      sql.NullInt64
		purchasedAt sql.NullInt64
		createdAt   int64
	)
	if err := s.Scan(&it.ID, &it.Name, &it.Quantity, &it.EstimatedPrice.Cents, &actual,
		&it.IsPurchased, &purchasedAt, &createdAt, &it.Version); err != nil {
		return core.ShoppingItem{}, err
	}
	it.CreatedAt = fromMillis(createdAt)
	if actual.Valid {
		it.ActualPrice = &core.Money{Cents: actual.Int64}
	}
	if purchasedAt.Valid {
		t := fromMillis(purchasedAt.Int64)
		it.PurchasedAt = &t
	}
	return it, nil
}

// purchaseColumns maps the optional purchase details to nullable values.
func purchaseColumns(it core.ShoppingItem) (actual, purchasedAt sql.NullInt64) {
	if it.ActualPrice != nil {
		actual = sql.NullInt64{Int64: it.ActualPrice.Cents, Valid: true}
	}
	if it.PurchasedAt != nil {
		purchasedAt = sql.NullInt64{Int64: toMillis(*it.PurchasedAt), Valid: true}
	}
	return actual, purchasedAt
}

// InsertItem stores a new item and returns the id assigned to it. A zero
// CreatedAt is replaced by the current time.
func (r *SQLiteRepository) InsertItem(ctx context.Context, it core.ShoppingItem) (int64, error) {
	createdAt := it.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	actual, purchasedAt := purchaseColumns(it)

	var id int64
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO items (name, quantity, estimated_price_cents, actual_price_cents, is_purchased, purchased_at, created_at, version)
			 VALUES (?, ?, ?, ?, ?, ?, ?, 1)`,
			strings.TrimSpace(it.Name), it.Quantity, it.EstimatedPrice.Cents, actual, it.IsPurchased, purchasedAt, toMillis(createdAt),
		)
		if err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		id, err = res.LastInsertId()
		if err != nil {
			return fmt.Errorf("get item id: %w", err)
		}
		return replaceItemLabels(ctx, tx, id, it.Labels)
	})
	if err != nil {
		return 0, err
	}

	logCommitted(ctx, "Item inserted", "id", id, "name", it.Name)
	return id, nil
}

// GetItem returns the item with the given id or ErrNotFound.
func (r *SQLiteRepository) GetItem(ctx context.Context, id int64) (core.ShoppingItem, error) {
	it, err := scanItem(r.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.ShoppingItem{}, ErrNotFound
	}
	if err != nil {
		return core.ShoppingItem{}, fmt.Errorf("get item %d: %w", id, err)
	}
	labels, err := r.labelsByItem(ctx, `WHERE item_id = ?`, id)
	if err != nil {
		return core.ShoppingItem{}, err
	}
	it.Labels = core.NewLabelSet(labels[id]...)
	return it, nil
}

// ListItems returns every item, most recently created first.
func (r *SQLiteRepository) ListItems(ctx context.Context) ([]core.ShoppingItem, error) {
	return r.queryItems(ctx, `SELECT `+itemColumns+` FROM items ORDER BY created_at DESC, id DESC`)
}

// SearchUnpurchased returns unpurchased items whose name contains query,
// ignoring ASCII case, in list order. An empty query matches every
// unpurchased item.
func (r *SQLiteRepository) SearchUnpurchased(ctx context.Context, query string) ([]core.ShoppingItem, error) {
	pattern := "%" + escapeLike(query) + "%"
	return r.queryItems(ctx,
		`SELECT `+itemColumns+` FROM items
		 WHERE is_purchased = 0 AND name LIKE ? ESCAPE '\'
		 ORDER BY created_at DESC, id DESC`, pattern)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (r *SQLiteRepository) queryItems(ctx context.Context, query string, args ...any) ([]core.ShoppingItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	items := []core.ShoppingItem{}
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	if len(items) == 0 {
		return items, nil
	}

	labels, err := r.labelsByItem(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Labels = core.NewLabelSet(labels[items[i].ID]...)
	}
	return items, nil
}

func (r *SQLiteRepository) labelsByItem(ctx context.Context, where string, args ...any) (map[int64][]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT item_id, label_name FROM item_labels `+where, args...)
	if err != nil {
		return nil, fmt.Errorf("list item labels: %w", err)
	}
	defer rows.Close()

	out := map[int64][]string{}
	for rows.Next() {
		var (
			id   int64
			name string
		)
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan item label: %w", err)
		}
		out[id] = append(out[id], name)
	}
	return out, rows.Err()
}

// UpdateItem replaces the stored item with the same id. When it.Version is
// set the update only succeeds if the stored version still matches; the
// stored version is bumped either way. CreatedAt is never changed.
func (r *SQLiteRepository) UpdateItem(ctx context.Context, it core.ShoppingItem) error {
	actual, purchasedAt := purchaseColumns(it)
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		query := `UPDATE items SET name = ?, quantity = ?, estimated_price_cents = ?, actual_price_cents = ?,
			is_purchased = ?, purchased_at = ?, version = version + 1 WHERE id = ?`
		args := []any{strings.TrimSpace(it.Name), it.Quantity, it.EstimatedPrice.Cents, actual, it.IsPurchased, purchasedAt, it.ID}
		if it.Version > 0 {
			query += ` AND version = ?`
			args = append(args, it.Version)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("update item %d: %w", it.ID, err)
		}
		if err := checkAffected(ctx, tx, res, it.ID); err != nil {
			return err
		}
		return replaceItemLabels(ctx, tx, it.ID, it.Labels)
	})
	if err != nil {
		return err
	}
	logCommitted(ctx, "Item updated", "id", it.ID)
	return nil
}

// DeleteItem removes the item with the given id regardless of its version.
func (r *SQLiteRepository) DeleteItem(ctx context.Context, id int64) error {
	return r.deleteItem(ctx, id, 0)
}

// DeleteItemRecord removes it, checking the version when one is set.
func (r *SQLiteRepository) DeleteItemRecord(ctx context.Context, it core.ShoppingItem) error {
	return r.deleteItem(ctx, it.ID, it.Version)
}

func (r *SQLiteRepository) deleteItem(ctx context.Context, id, version int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		query := `DELETE FROM items WHERE id = ?`
		args := []any{id}
		if version > 0 {
			query += ` AND version = ?`
			args = append(args, version)
		}
		res, err := tx.ExecContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("delete item %d: %w", id, err)
		}
		return checkAffected(ctx, tx, res, id)
	})
	if err != nil {
		return err
	}
	logCommitted(ctx, "Item deleted", "id", id)
	return nil
}

// checkAffected turns a zero-row write into ErrNotFound or ErrVersionConflict.
func checkAffected(ctx context.Context, tx *sql.Tx, res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return nil
	}
	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, id).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("check item %d: %w", id, err)
	}
	return ErrVersionConflict
}

func replaceItemLabels(ctx context.Context, tx *sql.Tx, id int64, labels core.LabelSet) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM item_labels WHERE item_id = ?`, id); err != nil {
		return fmt.Errorf("clear labels of item %d: %w", id, err)
	}
	for _, name := range labels.Names() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO item_labels (item_id, label_name) VALUES (?, ?)`, id, name); err != nil {
			return fmt.Errorf("add label %q to item %d: %w", name, id, err)
		}
	}
	return nil
}
