package service

import (
	"encoding/json"
	"strings"

	"github.com/04shubham7/genai-cwc-shubham/internal/domain/entity"
)

// Decoder turns a raw generator response into a JSON object. ok is false when
// the response is not a JSON object at all; schema checks happen later.
type Decoder interface {
	Decode(raw string) (obj map[string]any, ok bool)
}

func NewDecoder(mode entity.DecodingMode) Decoder {
	if mode == entity.DecodingLenient {
		return LenientDecoder{}
	}
	return StrictDecoder{}
}

// StrictDecoder requires the whole response to be one JSON object.
type StrictDecoder struct{}

func (StrictDecoder) Decode(raw string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// LenientDecoder accepts prose around the object: it takes the span from the
// first "{" to the last "}" when the response is not clean JSON.
type LenientDecoder struct{}

func (LenientDecoder) Decode(raw string) (map[string]any, bool) {
	if obj, ok := (StrictDecoder{}).Decode(raw); ok {
		return obj, true
	}

	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start == -1 || end <= start {
		return nil, false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(raw[start:end+1]), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}
