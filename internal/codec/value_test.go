package codec

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromJSON(t *testing.T) {
	dec := json.NewDecoder(bytes.NewReader([]byte(`{"a":1.0,"b":[true,null,"x"],"c":{"d":12345678901234567890}}`)))
	dec.UseNumber()
	var raw any
	require.NoError(t, dec.Decode(&raw))

	v, err := FromJSON(raw)
	require.NoError(t, err)
	assert.Equal(t, Map{
		"a": Number("1.0"),
		"b": List{Bool(true), Null{}, String("x")},
		"c": Map{"d": Number("12345678901234567890")},
	}, v)
}

func TestFromJSON_Unsupported(t *testing.T) {
	_, err := FromJSON(map[string]any{"ch": make(chan int)})
	assert.Error(t, err)
}

func TestToJSON(t *testing.T) {
	got := ToJSON(Map{"n": Number("2"), "l": List{String("a"), Null{}}})
	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, `{"n":2,"l":["a",null]}`, string(raw))
}
