package codec

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Value is the generic structured value model used as the pivot between
// typed records and stored attributes. It is closed: only the types declared
// in this file implement it.
type Value interface {
	isValue()
}

type (
	// Null is the absent value.
	Null struct{}
	Bool bool
	// Number carries the decimal text of a number so no precision is lost on the way through.
	Number string
	String string
	List   []Value
	Map    map[string]Value
)

func (Null) isValue()   {}
func (Bool) isValue()   {}
func (Number) isValue() {}
func (String) isValue() {}
func (List) isValue()   {}
func (Map) isValue()    {}

// FromJSON builds a Value from any JSON-shaped Go value as produced by a
// json.Decoder with UseNumber enabled.
func FromJSON(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null{}, nil
	case bool:
		return Bool(t), nil
	case json.Number:
		return Number(t.String()), nil
	case float64:
		return Number(strconv.FormatFloat(t, 'g', -1, 64)), nil
	case string:
		return String(t), nil
	case []any:
		out := make(List, 0, len(t))
		for i, el := range t {
			cv, err := FromJSON(el)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			out = append(out, cv)
		}
		return out, nil
	case map[string]any:
		out := make(Map, len(t))
		for k, el := range t {
			cv, err := FromJSON(el)
			if err != nil {
				return nil, fmt.Errorf("key %q: %w", k, err)
			}
			out[k] = cv
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported json value of type %T", v)
	}
}

// ToJSON converts a Value back into plain Go values that encoding/json can
// marshal. Numbers come back as json.Number.
func ToJSON(v Value) any {
	switch t := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(t)
	case Number:
		return json.Number(t)
	case String:
		return string(t)
	case List:
		out := make([]any, len(t))
		for i, el := range t {
			out[i] = ToJSON(el)
		}
		return out
	case Map:
		out := make(map[string]any, len(t))
		for k, el := range t {
			out[k] = ToJSON(el)
		}
		return out
	default:
		return nil
	}
}
