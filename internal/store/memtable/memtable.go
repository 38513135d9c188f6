// Package memtable is an in-process store.Table used in tests and when the
// service runs locally without a database.
package memtable

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/codec"
	"github.com/ovaphlow/pitchfork/service-auth-go/internal/store"
)

// Table keeps items in a map guarded by a RWMutex.
type Table struct {
	mu      sync.RWMutex
	items   map[string]codec.Item
	indexes map[string]store.Index
}

// New returns an empty table with the given secondary indexes.
func New(indexes ...store.Index) *Table {
	t := &Table{
		items:   make(map[string]codec.Item),
		indexes: make(map[string]store.Index, len(indexes)),
	}
	for _, idx := range indexes {
		t.indexes[idx.Name] = idx
	}
	return t
}

var _ store.Table = (*Table)(nil)

func (t *Table) Get(ctx context.Context, key string) (codec.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	item, ok := t.items[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return clone(item), nil
}

func (t *Table) Put(ctx context.Context, item codec.Item) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key, err := store.ItemKey(item)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.checkUnique(key, item); err != nil {
		return err
	}
	t.items[key] = clone(item)
	return nil
}

func (t *Table) Query(ctx context.Context, index, value string) ([]codec.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, ok := t.indexes[index]
	if !ok {
		return nil, fmt.Errorf("memtable: unknown index %q", index)
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	var out []codec.Item
	for _, key := range t.sortedKeys() {
		item := t.items[key]
		if slices.Contains(idx.Keys(item), value) {
			out = append(out, clone(item))
		}
	}
	return out, nil
}

func (t *Table) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.items, key)
	return nil
}

func (t *Table) Scan(ctx context.Context) ([]codec.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]codec.Item, 0, len(t.items))
	for _, key := range t.sortedKeys() {
		out = append(out, clone(t.items[key]))
	}
	return out, nil
}

func (t *Table) UpdateAttribute(ctx context.Context, key string, path []string, value codec.AttributeValue) (codec.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(path) == 0 {
		return nil, fmt.Errorf("memtable: empty attribute path")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	current, ok := t.items[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	updated := store.SetPath(current, path, value)
	if err := t.checkUnique(key, updated); err != nil {
		return nil, err
	}
	t.items[key] = clone(updated)
	return clone(updated), nil
}

// Len reports the number of stored items.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// checkUnique must be called with the write lock held.
func (t *Table) checkUnique(key string, item codec.Item) error {
	for _, idx := range t.indexes {
		if !idx.Unique {
			continue
		}
		for _, k := range idx.Keys(item) {
			for otherKey, other := range t.items {
				if otherKey == key {
					continue
				}
				if slices.Contains(idx.Keys(other), k) {
					return fmt.Errorf("%w: %s already holds %q", store.ErrConflict, idx.Name, k)
				}
			}
		}
	}
	return nil
}

func (t *Table) sortedKeys() []string {
	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func clone(item codec.Item) codec.Item {
	out := make(codec.Item, len(item))
	for k, v := range item {
		out[k] = cloneAttr(v)
	}
	return out
}

func cloneAttr(av codec.AttributeValue) codec.AttributeValue {
	switch t := av.(type) {
	case codec.AttrList:
		out := make(codec.AttrList, len(t))
		for i, el := range t {
			out[i] = cloneAttr(el)
		}
		return out
	case codec.AttrMap:
		out := make(codec.AttrMap, len(t))
		for k, el := range t {
			out[k] = cloneAttr(el)
		}
		return out
	case codec.AttrStringSet:
		return slices.Clone(t)
	case codec.AttrNumberSet:
		return slices.Clone(t)
	default:
		return av
	}
}
