package codec

import (
	"bytes"
	"encoding/json"
)

// AttributeValue is the tagged wire representation used by the key-value
// store. Numbers travel as decimal strings; sets hold homogeneous scalars.
type AttributeValue interface {
	isAttribute()
}

type (
	AttrNull      struct{}
	AttrBool      bool
	AttrNumber    string
	AttrString    string
	AttrList      []AttributeValue
	AttrMap       map[string]AttributeValue
	AttrNumberSet []string
	AttrStringSet []string

	// AttrUnknown keeps a variant this package does not understand so it can
	// be written back untouched. It decodes to Null.
	AttrUnknown struct {
		Tag string
		Raw json.RawMessage
	}
)

func (AttrNull) isAttribute()      {}
func (AttrBool) isAttribute()      {}
func (AttrNumber) isAttribute()    {}
func (AttrString) isAttribute()    {}
func (AttrList) isAttribute()      {}
func (AttrMap) isAttribute()       {}
func (AttrNumberSet) isAttribute() {}
func (AttrStringSet) isAttribute() {}
func (AttrUnknown) isAttribute()   {}

// Item is one stored record: attribute name to attribute value.
type Item map[string]AttributeValue

const (
	tagString    = "S"
	tagNumber    = "N"
	tagBool      = "BOOL"
	tagNull      = "NULL"
	tagList      = "L"
	tagMap       = "M"
	tagStringSet = "SS"
	tagNumberSet = "NS"
)

func (AttrNull) MarshalJSON() ([]byte, error) {
	return []byte(`{"NULL":true}`), nil
}

func (a AttrBool) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]bool{tagBool: bool(a)})
}

func (a AttrNumber) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{tagNumber: string(a)})
}

func (a AttrString) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{tagString: string(a)})
}

func (a AttrList) MarshalJSON() ([]byte, error) {
	els := []AttributeValue(a)
	if els == nil {
		els = []AttributeValue{}
	}
	return json.Marshal(map[string][]AttributeValue{tagList: els})
}

func (a AttrMap) MarshalJSON() ([]byte, error) {
	m := map[string]AttributeValue(a)
	if m == nil {
		m = map[string]AttributeValue{}
	}
	return json.Marshal(map[string]map[string]AttributeValue{tagMap: m})
}

func (a AttrNumberSet) MarshalJSON() ([]byte, error) {
	return marshalSet(tagNumberSet, a)
}

func (a AttrStringSet) MarshalJSON() ([]byte, error) {
	return marshalSet(tagStringSet, a)
}

func (a AttrUnknown) MarshalJSON() ([]byte, error) {
	raw := a.Raw
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}
	return json.Marshal(map[string]json.RawMessage{a.Tag: raw})
}

func marshalSet(tag string, members []string) ([]byte, error) {
	if members == nil {
		members = []string{}
	}
	return json.Marshal(map[string][]string{tag: members})
}

// MarshalJSON writes the item in tagged form, e.g. {"id":{"S":"ABC"}}.
func (it Item) MarshalJSON() ([]byte, error) {
	m := map[string]AttributeValue(it)
	if m == nil {
		m = map[string]AttributeValue{}
	}
	return json.Marshal(m)
}

// UnmarshalJSON reads a tagged item. Only a document that is not a JSON
// object fails; a malformed attribute becomes AttrUnknown so the rest of the
// item survives.
func (it *Item) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Item, len(raw))
	for k, v := range raw {
		out[k] = ParseAttribute(v)
	}
	*it = out
	return nil
}

// ParseAttribute reads a single tagged attribute. It never fails.
func ParseAttribute(data json.RawMessage) AttributeValue {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return AttrNull{}
	}
	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &tagged); err != nil || len(tagged) != 1 {
		return AttrUnknown{Raw: append(json.RawMessage(nil), trimmed...)}
	}
	for tag, payload := range tagged {
		if av, ok := parseTagged(tag, payload); ok {
			return av
		}
		return AttrUnknown{Tag: tag, Raw: append(json.RawMessage(nil), payload...)}
	}
	return AttrNull{}
}

func parseTagged(tag string, payload json.RawMessage) (AttributeValue, bool) {
	switch tag {
	case tagString:
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, false
		}
		return AttrString(s), true
	case tagNumber:
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return nil, false
		}
		return AttrNumber(s), true
	case tagBool:
		var b bool
		if err := json.Unmarshal(payload, &b); err != nil {
			return nil, false
		}
		return AttrBool(b), true
	case tagNull:
		return AttrNull{}, true
	case tagList:
		var els []json.RawMessage
		if err := json.Unmarshal(payload, &els); err != nil {
			return nil, false
		}
		out := make(AttrList, 0, len(els))
		for _, el := range els {
			out = append(out, ParseAttribute(el))
		}
		return out, true
	case tagMap:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(payload, &fields); err != nil {
			return nil, false
		}
		out := make(AttrMap, len(fields))
		for k, el := range fields {
			out[k] = ParseAttribute(el)
		}
		return out, true
	case tagStringSet:
		var members []string
		if err := json.Unmarshal(payload, &members); err != nil {
			return nil, false
		}
		return AttrStringSet(members), true
	case tagNumberSet:
		var members []string
		if err := json.Unmarshal(payload, &members); err != nil {
			return nil, false
		}
		return AttrNumberSet(members), true
	}
	return nil, false
}
