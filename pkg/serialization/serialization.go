// Package serialization provides the canonical encoding used for cached
// values. An entry's size is defined as the byte length of this encoding,
// so every component that measures or stores data must go through it.
package serialization

import "encoding/json"

// Encode serializes a value into its canonical JSON form.
func Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode deserializes canonical JSON data into v.
func Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
