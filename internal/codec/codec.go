// Package codec converts between the store's tagged attribute values and the
// generic structured value model. Both directions are total: a field that
// cannot be understood degrades to a safe value and is logged, it never
// fails the surrounding record.
package codec

import (
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"
)

// Codec holds the logger used to report degraded fields.
type Codec struct {
	logger *zap.SugaredLogger
}

// New returns a Codec. A nil logger discards degradation reports.
func New(logger *zap.SugaredLogger) *Codec {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Codec{logger: logger}
}

// Encode maps a structured value onto its attribute counterpart. Sets are
// never produced here.
func (c *Codec) Encode(v Value) AttributeValue {
	switch t := v.(type) {
	case nil, Null:
		return AttrNull{}
	case Bool:
		return AttrBool(t)
	case Number:
		return AttrNumber(t)
	case String:
		return AttrString(t)
	case List:
		out := make(AttrList, len(t))
		for i, el := range t {
			out[i] = c.Encode(el)
		}
		return out
	case Map:
		out := make(AttrMap, len(t))
		for k, el := range t {
			out[k] = c.Encode(el)
		}
		return out
	default:
		c.logger.Warnw("unsupported structured value, encoding as null", "type", typeName(v))
		return AttrNull{}
	}
}

// EncodeMap encodes every field of m into an Item.
func (c *Codec) EncodeMap(m Map) Item {
	out := make(Item, len(m))
	for k, v := range m {
		out[k] = c.Encode(v)
	}
	return out
}

// Decode maps an attribute back to a structured value. Sets come back as
// lists, numbers are normalised, unknown variants become Null.
func (c *Codec) Decode(av AttributeValue) Value {
	return c.decode(av, "")
}

// DecodeItem decodes every attribute of item into a Map.
func (c *Codec) DecodeItem(item Item) Map {
	out := make(Map, len(item))
	for k, av := range item {
		out[k] = c.decode(av, k)
	}
	return out
}

func (c *Codec) decode(av AttributeValue, path string) Value {
	switch t := av.(type) {
	case nil, AttrNull:
		return Null{}
	case AttrBool:
		return Bool(t)
	case AttrNumber:
		return c.number(string(t), path)
	case AttrString:
		return String(t)
	case AttrList:
		out := make(List, len(t))
		for i, el := range t {
			out[i] = c.decode(el, path+"["+strconv.Itoa(i)+"]")
		}
		return out
	case AttrMap:
		out := make(Map, len(t))
		for k, el := range t {
			out[k] = c.decode(el, joinPath(path, k))
		}
		return out
	case AttrStringSet:
		out := make(List, len(t))
		for i, s := range t {
			out[i] = String(s)
		}
		return out
	case AttrNumberSet:
		out := make(List, len(t))
		for i, s := range t {
			out[i] = c.number(s, path+"["+strconv.Itoa(i)+"]")
		}
		return out
	case AttrUnknown:
		c.logger.Warnw("unsupported attribute variant, decoding as null", "path", path, "tag", t.Tag)
		return Null{}
	default:
		c.logger.Warnw("unsupported attribute variant, decoding as null", "path", path, "type", typeName(av))
		return Null{}
	}
}

// number is the fail-safe numeric parse: text that is not a finite number
// decodes to zero.
func (c *Codec) number(s, path string) Value {
	n, ok := NormalizeNumber(s)
	if !ok {
		c.logger.Warnw("invalid number attribute, substituting zero", "path", path, "value", s)
		return Number("0")
	}
	return Number(n)
}

// NormalizeNumber returns the canonical decimal text of s. Integers that fit
// in 64 bits are kept exact; anything else goes through float64, so "1.0"
// becomes "1".
func NormalizeNumber(s string) (string, bool) {
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return strconv.FormatInt(i, 10), true
	}
	if u, err := strconv.ParseUint(s, 10, 64); err == nil {
		return strconv.FormatUint(u, 10), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return "", false
	}
	return strconv.FormatFloat(f, 'g', -1, 64), true
}

func joinPath(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

func typeName(v any) string {
	return fmt.Sprintf("%T", v)
}
