package shared

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON encodes v, indented with two spaces when pretty is set.
//
// HTML escaping is disabled so titles like "Tom & Jerry" stay readable.
func MarshalJSON(v any, pretty bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if pretty {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
