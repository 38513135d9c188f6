package record

import (
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-auth-go/internal/codec"
)

type sample struct {
	ID        string            `json:"id"`
	Count     int               `json:"count"`
	Ratio     float64           `json:"ratio"`
	Tags      []string          `json:"tags"`
	Meta      map[string]any    `json:"meta,omitempty"`
	Nested    *sample           `json:"nested,omitempty"`
	Labels    map[string]string `json:"labels"`
	CreatedAt time.Time         `json:"created_at"`
}

func TestToItem_FromItem(t *testing.T) {
	c := codec.New(nil)
	in := sample{
		ID:        "ABCDEFGHIJKLMNOPQRST",
		Count:     7,
		Ratio:     0.25,
		Tags:      []string{"a", "b"},
		Meta:      map[string]any{"k": "v"},
		Nested:    &sample{ID: "child", Tags: []string{}},
		Labels:    map[string]string{"env": "test"},
		CreatedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}

	item, err := ToItem(c, in)
	require.NoError(t, err)
	assert.Equal(t, codec.AttrString("ABCDEFGHIJKLMNOPQRST"), item["id"])
	assert.Equal(t, codec.AttrNumber("7"), item["count"])
	assert.Equal(t, codec.AttrList{codec.AttrString("a"), codec.AttrString("b")}, item["tags"])

	out, err := FromItem[sample](c, item)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestToItem_NotAnObject(t *testing.T) {
	c := codec.New(nil)
	for name, v := range map[string]any{
		"string": "plain",
		"number": 12,
		"slice":  []string{"a"},
		"nil":    nil,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ToItem(c, v)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrNotAnObject))
			var encErr *EncodeError
			assert.True(t, errors.As(err, &encErr))
		})
	}
}

func TestToItem_Unserializable(t *testing.T) {
	_, err := ToItem(codec.New(nil), map[string]any{"fn": func() {}})
	var encErr *EncodeError
	require.ErrorAs(t, err, &encErr)
	assert.False(t, errors.Is(err, ErrNotAnObject))
}

func TestFromItem_TypeMismatch(t *testing.T) {
	c := codec.New(nil)
	_, err := FromItem[sample](c, codec.Item{"count": codec.AttrString("seven")})
	var decErr *DecodeError
	require.ErrorAs(t, err, &decErr)
	assert.NotNil(t, decErr.Cause)
}

func TestFromItem_DegradedFieldKeepsSiblings(t *testing.T) {
	c := codec.New(nil)
	out, err := FromItem[sample](c, codec.Item{
		"id":    codec.AttrString("X"),
		"count": codec.AttrNumber("garbage"),
		"tags":  codec.AttrStringSet{"a"},
		"blob":  codec.AttrUnknown{Tag: "B"},
	})
	require.NoError(t, err)
	assert.Equal(t, "X", out.ID)
	assert.Equal(t, 0, out.Count)
	assert.Equal(t, []string{"a"}, out.Tags)
}

func TestFromItems(t *testing.T) {
	c := codec.New(nil)
	items := []codec.Item{
		{"id": codec.AttrString("A")},
		{"id": codec.AttrString("B")},
	}
	out, err := FromItems[sample](c, items)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "B", out[1].ID)

	_, err = FromItems[sample](c, append(items, codec.Item{"id": codec.AttrBool(true)}))
	var decErr *DecodeError
	assert.ErrorAs(t, err, &decErr)
}

func TestNewID(t *testing.T) {
	pattern := regexp.MustCompile(`^[A-Z]{20}$`)
	seen := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		id := NewID()
		require.Regexp(t, pattern, id)
		_, dup := seen[id]
		require.False(t, dup)
		seen[id] = struct{}{}
	}
}
