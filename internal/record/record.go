// Package record maps typed records to stored attribute items and back,
// pivoting through codec.Value.
package record

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/codec"
)

// ErrNotAnObject is returned when a record does not serialize to a JSON object.
var ErrNotAnObject = errors.New("record: value is not an object")

// EncodeError wraps a failure to turn a typed record into an item.
type EncodeError struct {
	Cause error
}

func (e *EncodeError) Error() string { return "record: encode: " + e.Cause.Error() }
func (e *EncodeError) Unwrap() error { return e.Cause }

// DecodeError wraps a failure to rebuild a typed record from an item, such as
// a missing required field or a type mismatch.
type DecodeError struct {
	Cause error
}

func (e *DecodeError) Error() string { return "record: decode: " + e.Cause.Error() }
func (e *DecodeError) Unwrap() error { return e.Cause }

// ToValue serializes v into the generic structured value model.
func ToValue(v any) (codec.Value, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, err
	}
	return codec.FromJSON(generic)
}

// FromValue deserializes a structured value into out.
func FromValue(v codec.Value, out any) error {
	raw, err := json.Marshal(codec.ToJSON(v))
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

// ToItem encodes a typed record. The record must be object shaped.
func ToItem[T any](c *codec.Codec, v T) (codec.Item, error) {
	value, err := ToValue(v)
	if err != nil {
		return nil, &EncodeError{Cause: err}
	}
	m, ok := value.(codec.Map)
	if !ok {
		return nil, &EncodeError{Cause: ErrNotAnObject}
	}
	return c.EncodeMap(m), nil
}

// FromItem decodes an item into a typed record. Field-level problems are
// absorbed by the codec; only typed deserialization can fail here.
func FromItem[T any](c *codec.Codec, item codec.Item) (T, error) {
	var out T
	if err := FromValue(c.DecodeItem(item), &out); err != nil {
		return out, &DecodeError{Cause: err}
	}
	return out, nil
}

// FromItems decodes a batch of items, failing on the first bad record.
func FromItems[T any](c *codec.Codec, items []codec.Item) ([]T, error) {
	out := make([]T, 0, len(items))
	for i, item := range items {
		rec, err := FromItem[T](c, item)
		if err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		out = append(out, rec)
	}
	return out, nil
}

const (
	idAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	idLength   = 20
)

// NewID returns a fresh 20 character identifier over A-Z. At 26^20 (about
// 2^94) possible values, billions of ids stay far below a 1% collision chance.
func NewID() string {
	id, err := gonanoid.Generate(idAlphabet, idLength)
	if err != nil {
		panic(fmt.Sprintf("record: generate id: %v", err))
	}
	return id
}
