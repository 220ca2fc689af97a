package ir

import (
	"bytes"
	"encoding/json"
)

// mustJSON marshals values that cannot fail (plain structs with no
// custom marshalers). Panics otherwise; used only for Value rendering.
func mustJSON(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return b
}

// unmarshalStrict decodes JSON rejecting unknown fields. Used on wire
// shapes where a stray field means a format mismatch we must surface.
func unmarshalStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
