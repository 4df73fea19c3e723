// Package payload converts typed values to and from the text that is embedded
// in a QR code.
//
// A transport payload is always UTF-8 text. The default codec is JSON; binary
// formats (MessagePack, CBOR, Protocol Buffers) become text by wrapping them
// with Base64, optionally after Zstd compression.
//
// Usage:
//
//	type Contact struct {
//	    ID   int    `json:"id"`
//	    Name string `json:"name"`
//	}
//
//	// JSON (default)
//	text, err := payload.Encode(Contact{ID: 42, Name: "alice"})
//	// text == `{"id":42,"name":"alice"}`
//
//	contact, err := payload.Decode[Contact]([]byte(text))
//	if errors.Is(err, payload.ErrDecodeFailure) {
//	    // keep whatever value you had before
//	}
//
//	// Compact binary payload
//	codec := payload.For[Contact](payload.Base64(payload.MsgPack{}))
//	text, err = codec.Encode(contact)
//
// Decoding never panics on untrusted input. It fails with a *DecodeError for
// empty input, invalid UTF-8, malformed text, or a structure that does not
// match the target type (missing required fields, wrong primitive types).
package payload

// Codec encodes/decodes payload data.
// Implementations must be safe for concurrent use.
type Codec interface {
	// Encode serializes the value to bytes.
	Encode(v any) ([]byte, error)

	// Decode deserializes bytes into the target.
	// The target must be a pointer.
	Decode(data []byte, v any) error

	// ContentType returns the MIME type (e.g., "application/json").
	ContentType() string
}

// TreeDecoder is implemented by codecs that can decode data into a generic
// structure: objects as map[string]any, arrays as []any and null as nil.
//
// The typed decoder uses the tree to tell malformed input apart from input
// whose shape does not match the target type.
type TreeDecoder interface {
	DecodeTree(data []byte) (any, error)
}

// Default returns the default codec (JSON).
func Default() Codec {
	return JSON{}
}
