package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
)

func TestStrictDecoder(t *testing.T) {
	d := StrictDecoder{}

	obj, ok := d.Decode("  {\"step\":\"result\",\"content\":\"42\"}\n")
	assert.True(t, ok)
	assert.Equal(t, "result", obj["step"])

	for _, raw := range []string{
		"not json",
		`Sure! {"step":"result","content":"42"}`,
		`["step"]`,
		`"just a string"`,
		`null`,
		``,
	} {
		_, ok := d.Decode(raw)
		assert.False(t, ok, raw)
	}
}

func TestLenientDecoder_ExtractsEmbeddedObject(t *testing.T) {
	d := LenientDecoder{}

	raw := "Here you go:\n```json\n{\"step\": \"action\", \"function\": \"get_weather\", \"input\": {\"city\": \"Delhi\"}}\n```"
	obj, ok := d.Decode(raw)

	assert.True(t, ok)
	assert.Equal(t, "action", obj["step"])
	assert.Equal(t, map[string]any{"city": "Delhi"}, obj["input"])
}

func TestLenientDecoder_RejectsWithoutObject(t *testing.T) {
	d := LenientDecoder{}

	for _, raw := range []string{
		"no braces here",
		"} backwards {",
		"{ broken json",
		`{"a": 1} and {"b": 2}`,
	} {
		_, ok := d.Decode(raw)
		assert.False(t, ok, raw)
	}
}

func TestNewDecoder(t *testing.T) {
	assert.IsType(t, StrictDecoder{}, NewDecoder(entity.DecodingStrict))
	assert.IsType(t, LenientDecoder{}, NewDecoder(entity.DecodingLenient))
	assert.IsType(t, StrictDecoder{}, NewDecoder(""))
}
