// Package store defines the key-value table contract records are persisted
// through. Items are codec.Item values keyed by their "id" attribute.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/codec"
)

// KeyAttribute is the primary key attribute of every table.
const KeyAttribute = "id"

var (
	// ErrNotFound is returned when no item matches a key.
	ErrNotFound = errors.New("store: not found")
	// ErrConflict is returned when a write violates a unique index.
	ErrConflict = errors.New("store: conflict")
	// ErrMissingKey is returned when an item has no string "id" attribute.
	ErrMissingKey = errors.New("store: item has no id")
)

// Table is a single key-value table with secondary indexes. Errors other
// than ErrNotFound and ErrConflict are transport failures of the backend.
type Table interface {
	Get(ctx context.Context, key string) (codec.Item, error)
	// Put writes the whole item, replacing any existing item with the same key.
	Put(ctx context.Context, item codec.Item) error
	// Query returns the items whose index keys contain value. Zero matches is not an error.
	Query(ctx context.Context, index, value string) ([]codec.Item, error)
	// Delete removes an item. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	Scan(ctx context.Context) ([]codec.Item, error)
	// UpdateAttribute sets the nested map attribute at path, leaving every
	// other attribute untouched, and returns the updated item.
	UpdateAttribute(ctx context.Context, key string, path []string, value codec.AttributeValue) (codec.Item, error)
}

// Index derives lookup keys from an item.
type Index struct {
	Name   string
	Unique bool
	Keys   func(codec.Item) []string
}

// AttributeIndex indexes a top-level string attribute.
func AttributeIndex(name, attribute string, unique bool) Index {
	return Index{
		Name:   name,
		Unique: unique,
		Keys: func(item codec.Item) []string {
			if s, ok := item[attribute].(codec.AttrString); ok && s != "" {
				return []string{string(s)}
			}
			return nil
		},
	}
}

// ItemKey returns the primary key of an item.
func ItemKey(item codec.Item) (string, error) {
	s, ok := item[KeyAttribute].(codec.AttrString)
	if !ok || s == "" {
		return "", ErrMissingKey
	}
	return string(s), nil
}

// CompositeKey joins parts into a single index key.
func CompositeKey(parts ...string) string {
	return strings.Join(parts, "#")
}

// SetPath returns a copy of item with value stored at path. Intermediate
// attributes that are not maps are replaced by maps.
func SetPath(item codec.Item, path []string, value codec.AttributeValue) codec.Item {
	out := make(codec.Item, len(item)+1)
	for k, v := range item {
		out[k] = v
	}
	if len(path) == 0 {
		return out
	}
	if len(path) == 1 {
		out[path[0]] = value
		return out
	}
	parent, _ := out[path[0]].(codec.AttrMap)
	out[path[0]] = setMapPath(parent, path[1:], value)
	return out
}

func setMapPath(m codec.AttrMap, path []string, value codec.AttributeValue) codec.AttrMap {
	out := make(codec.AttrMap, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	if len(path) == 1 {
		out[path[0]] = value
		return out
	}
	child, _ := out[path[0]].(codec.AttrMap)
	out[path[0]] = setMapPath(child, path[1:], value)
	return out
}
