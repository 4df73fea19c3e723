package payload

import "encoding/json"

// JSON implements Codec using JSON serialization.
// This is the default codec.
//
// Output is deterministic: struct fields keep declaration order and map keys
// are sorted. Object keys without a matching field are ignored on decode.
type JSON struct{}

// Encode serializes the payload to JSON bytes.
func (JSON) Encode(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Decode deserializes JSON bytes to the target type.
func (JSON) Decode(data []byte, v any) error {
	return json.Unmarshal(data, v)
}

// DecodeTree parses JSON into maps, slices and scalars.
func (JSON) DecodeTree(data []byte) (any, error) {
	var tree any
	if err := json.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// ContentType returns the MIME type for JSON.
func (JSON) ContentType() string {
	return "application/json"
}

// Compile-time check.
var (
	_ Codec       = JSON{}
	_ TreeDecoder = JSON{}
)
