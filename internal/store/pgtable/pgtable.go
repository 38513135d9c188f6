// Package pgtable implements store.Table on PostgreSQL. Each table keeps the
// tagged item as JSONB next to its key, and index keys in a side table whose
// partial unique index enforces uniqueness.
package pgtable

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"slices"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/codec"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/store"
)

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,50}$`)

// Table is a store.Table backed by two Postgres tables: <name> and <name>_index.
type Table struct {
	db      *sqlx.DB
	name    string
	indexes map[string]store.Index
}

type itemRow struct {
	ID         string `db:"id"`
	Attributes []byte `db:"attributes"`
}

// New returns a Table. The name is used as an SQL identifier and must be a
// lower-case snake_case word.
func New(db *sqlx.DB, name string, indexes ...store.Index) (*Table, error) {
	if !tableName.MatchString(name) {
		return nil, fmt.Errorf("pgtable: invalid table name %q", name)
	}
	t := &Table{db: db, name: name, indexes: make(map[string]store.Index, len(indexes))}
	for _, idx := range indexes {
		t.indexes[idx.Name] = idx
	}
	return t, nil
}

var _ store.Table = (*Table)(nil)

// EnsureTable creates the item and index tables if they do not exist.
// Prefer running it from the migrate command rather than at server start.
func (t *Table) EnsureTable(ctx context.Context) error {
	ddl := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s (
  id TEXT PRIMARY KEY,
  attributes JSONB NOT NULL,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS %[1]s_index (
  index_name TEXT NOT NULL,
  index_key TEXT NOT NULL,
  item_id TEXT NOT NULL REFERENCES %[1]s(id) ON DELETE CASCADE,
  is_unique BOOLEAN NOT NULL DEFAULT false,
  PRIMARY KEY (index_name, index_key, item_id)
);
CREATE UNIQUE INDEX IF NOT EXISTS %[1]s_index_unique ON %[1]s_index (index_name, index_key) WHERE is_unique;
CREATE INDEX IF NOT EXISTS %[1]s_index_item ON %[1]s_index (item_id);
`, t.name)
	_, err := t.db.ExecContext(ctx, ddl)
	return err
}

func (t *Table) Get(ctx context.Context, key string) (codec.Item, error) {
	var row itemRow
	q := fmt.Sprintf(`SELECT id, attributes FROM %s WHERE id=$1`, t.name)
	if err := t.db.GetContext(ctx, &row, q, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return decodeRow(row)
}

func (t *Table) Put(ctx context.Context, item codec.Item) error {
	key, err := store.ItemKey(item)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(item)
	if err != nil {
		return err
	}
	return t.inTx(ctx, func(tx *sqlx.Tx) error {
		q := fmt.Sprintf(`INSERT INTO %s (id, attributes) VALUES ($1, $2::jsonb)
			ON CONFLICT (id) DO UPDATE SET attributes = EXCLUDED.attributes, updated_at = NOW()`, t.name)
		if _, err := tx.ExecContext(ctx, q, key, string(raw)); err != nil {
			return err
		}
		return t.reindex(ctx, tx, key, item)
	})
}

func (t *Table) Query(ctx context.Context, index, value string) ([]codec.Item, error) {
	if _, ok := t.indexes[index]; !ok {
		return nil, fmt.Errorf("pgtable: unknown index %q", index)
	}
	q := fmt.Sprintf(`SELECT t.id, t.attributes FROM %[1]s t
		JOIN %[1]s_index i ON i.item_id = t.id
		WHERE i.index_name=$1 AND i.index_key=$2
		ORDER BY t.id`, t.name)
	var rows []itemRow
	if err := t.db.SelectContext(ctx, &rows, q, index, value); err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

func (t *Table) Delete(ctx context.Context, key string) error {
	q := fmt.Sprintf(`DELETE FROM %s WHERE id=$1`, t.name)
	_, err := t.db.ExecContext(ctx, q, key)
	return err
}

func (t *Table) Scan(ctx context.Context) ([]codec.Item, error) {
	q := fmt.Sprintf(`SELECT id, attributes FROM %s ORDER BY id`, t.name)
	var rows []itemRow
	if err := t.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return decodeRows(rows)
}

// UpdateAttribute locks the row, rewrites only the attribute at path and
// refreshes the index rows, all in one transaction.
func (t *Table) UpdateAttribute(ctx context.Context, key string, path []string, value codec.AttributeValue) (codec.Item, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("pgtable: empty attribute path")
	}
	var updated codec.Item
	err := t.inTx(ctx, func(tx *sqlx.Tx) error {
		var row itemRow
		sel := fmt.Sprintf(`SELECT id, attributes FROM %s WHERE id=$1 FOR UPDATE`, t.name)
		if err := tx.GetContext(ctx, &row, sel, key); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return store.ErrNotFound
			}
			return err
		}
		current, err := decodeRow(row)
		if err != nil {
			return err
		}
		updated = store.SetPath(current, path, value)
		raw, err := json.Marshal(updated)
		if err != nil {
			return err
		}
		upd := fmt.Sprintf(`UPDATE %s SET attributes=$2::jsonb, updated_at=NOW() WHERE id=$1`, t.name)
		if _, err := tx.ExecContext(ctx, upd, key, string(raw)); err != nil {
			return err
		}
		return t.reindex(ctx, tx, key, updated)
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// reindex replaces every index row of key with the keys derived from item.
func (t *Table) reindex(ctx context.Context, tx *sqlx.Tx, key string, item codec.Item) error {
	del := fmt.Sprintf(`DELETE FROM %s_index WHERE item_id=$1`, t.name)
	if _, err := tx.ExecContext(ctx, del, key); err != nil {
		return err
	}
	ins := fmt.Sprintf(`INSERT INTO %s_index (index_name, index_key, item_id, is_unique)
		SELECT $1, k, $3, $4 FROM unnest($2::text[]) AS k`, t.name)
	for _, idx := range t.indexes {
		keys := slices.Compact(slices.Sorted(slices.Values(idx.Keys(item))))
		if len(keys) == 0 {
			continue
		}
		if _, err := tx.ExecContext(ctx, ins, idx.Name, pq.Array(keys), key, idx.Unique); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", store.ErrConflict, idx.Name)
			}
			return err
		}
	}
	return nil
}

func (t *Table) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := t.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func decodeRow(row itemRow) (codec.Item, error) {
	var item codec.Item
	if err := json.Unmarshal(row.Attributes, &item); err != nil {
		return nil, fmt.Errorf("pgtable: decode item %s: %w", row.ID, err)
	}
	return item, nil
}

func decodeRows(rows []itemRow) ([]codec.Item, error) {
	out := make([]codec.Item, 0, len(rows))
	for _, row := range rows {
		item, err := decodeRow(row)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, nil
}
