package payload

import (
	"bytes"

	"github.com/vmihailenco/msgpack/v5"
)

// MsgPack implements Codec using MessagePack serialization.
// MessagePack is a binary format that's more compact than JSON
// while maintaining schema-less flexibility.
//
// Struct fields are named by their `json` tags so the same types work with
// both codecs. Map keys are sorted to keep output deterministic.
//
// The output is binary; wrap with Base64 before embedding it in a QR code:
//
//	codec := payload.For[Order](payload.Base64(payload.MsgPack{}))
type MsgPack struct{}

// Encode serializes the payload to MessagePack bytes.
func (MsgPack) Encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.SetCustomStructTag("json")
	enc.SetSortMapKeys(true)
	enc.UseCompactInts(true)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode deserializes MessagePack bytes to the target type.
func (MsgPack) Decode(data []byte, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.SetCustomStructTag("json")
	return dec.Decode(v)
}

// DecodeTree decodes MessagePack into maps, slices and scalars.
func (MsgPack) DecodeTree(data []byte) (any, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	return dec.DecodeInterface()
}

// ContentType returns the MIME type for MessagePack.
func (MsgPack) ContentType() string {
	return "application/msgpack"
}

// Compile-time check.
var (
	_ Codec       = MsgPack{}
	_ TreeDecoder = MsgPack{}
)

func init() {
	Register(Base64(MsgPack{}))
}
