package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"corredo/internal/core"
)

// InsertLabel stores a new label. Names are unique ignoring case; a clash
// returns ErrDuplicateLabel.
func (r *SQLiteRepository) InsertLabel(ctx context.Context, l core.Label) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO labels (name, color) VALUES (?, ?)`, strings.TrimSpace(l.Name), l.Color)
	if isUniqueViolation(err) {
		return 0, ErrDuplicateLabel
	}
	if err != nil {
		return 0, fmt.Errorf("insert label: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get label id: %w", err)
	}
	logCommitted(ctx, "Label inserted", "id", id, "name", l.Name)
	return id, nil
}

func (r *SQLiteRepository) GetLabel(ctx context.Context, id int64) (core.Label, error) {
	return getLabel(ctx, r.db, id)
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func getLabel(ctx context.Context, q queryRower, id int64) (core.Label, error) {
	var l core.Label
	err := q.QueryRowContext(ctx, `SELECT id, name, color FROM labels WHERE id = ?`, id).
		Scan(&l.ID, &l.Name, &l.Color)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Label{}, ErrNotFound
	}
	if err != nil {
		return core.Label{}, fmt.Errorf("get label %d: %w", id, err)
	}
	return l, nil
}

// ListLabels returns every label ordered by name.
func (r *SQLiteRepository) ListLabels(ctx context.Context) ([]core.Label, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, name, color FROM labels ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()

	labels := []core.Label{}
	for rows.Next() {
		var l core.Label
		if err := rows.Scan(&l.ID, &l.Name, &l.Color); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// UpdateLabel replaces the label with the same id. A rename is carried over
// to every item using the old name, in the same transaction.
func (r *SQLiteRepository) UpdateLabel(ctx context.Context, l core.Label) error {
	name := strings.TrimSpace(l.Name)
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		old, err := getLabel(ctx, tx, l.ID)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `UPDATE labels SET name = ?, color = ? WHERE id = ?`, name, l.Color, l.ID)
		if isUniqueViolation(err) {
			return ErrDuplicateLabel
		}
		if err != nil {
			return fmt.Errorf("update label %d: %w", l.ID, err)
		}
		if old.Name == name {
			return nil
		}
		return renameItemLabels(ctx, tx, old.Name, name)
	})
	if err != nil {
		return err
	}
	logCommitted(ctx, "Label updated", "id", l.ID, "name", name)
	return nil
}

// DeleteLabel removes the label and detaches it from every item. Item label
// names are matched exactly, as the filter matches them.
func (r *SQLiteRepository) DeleteLabel(ctx context.Context, id int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		old, err := getLabel(ctx, tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM labels WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete label %d: %w", id, err)
		}
		if err := bumpItemsWithLabel(ctx, tx, old.Name); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM item_labels WHERE label_name = ?`, old.Name); err != nil {
			return fmt.Errorf("detach label %q: %w", old.Name, err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logCommitted(ctx, "Label deleted", "id", id)
	return nil
}

// DeleteLabelRecord removes l by id.
func (r *SQLiteRepository) DeleteLabelRecord(ctx context.Context, l core.Label) error {
	return r.DeleteLabel(ctx, l.ID)
}

func renameItemLabels(ctx context.Context, tx *sql.Tx, oldName, newName string) error {
	if err := bumpItemsWithLabel(ctx, tx, oldName); err != nil {
		return err
	}
	// Items already carrying newName keep a single row.
	if _, err := tx.ExecContext(ctx,
		`UPDATE OR IGNORE item_labels SET label_name = ? WHERE label_name = ?`,
		newName, oldName); err != nil {
		return fmt.Errorf("rename label %q on items: %w", oldName, err)
	}
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM item_labels WHERE label_name = ?`, oldName); err != nil {
		return fmt.Errorf("drop stale label %q: %w", oldName, err)
	}
	return nil
}

func bumpItemsWithLabel(ctx context.Context, tx *sql.Tx, name string) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE items SET version = version + 1
		 WHERE id IN (SELECT item_id FROM item_labels WHERE label_name = ?)`, name)
	if err != nil {
		return fmt.Errorf("bump items with label %q: %w", name, err)
	}
	return nil
}
