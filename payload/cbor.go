package payload

import (
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

var (
	cborEnc cbor.EncMode
	cborDec cbor.DecMode
)

func init() {
	encOpts := cbor.CoreDetEncOptions()
	encOpts.Time = cbor.TimeRFC3339Nano

	var err error
	if cborEnc, err = encOpts.EncMode(); err != nil {
		panic("payload: cbor encode mode: " + err.Error())
	}
	decOpts := cbor.DecOptions{
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}
	if cborDec, err = decOpts.DecMode(); err != nil {
		panic("payload: cbor decode mode: " + err.Error())
	}

	Register(Base64(CBOR{}))
}

// CBOR implements Codec using Concise Binary Object Representation (RFC 8949).
//
// Encoding follows the core deterministic rules (sorted map keys, shortest
// integer forms). Struct fields honor `cbor` tags and fall back to `json`
// tags. Like MsgPack the output is binary and needs Base64 for QR use.
type CBOR struct{}

// Encode serializes the payload to CBOR bytes.
func (CBOR) Encode(v any) ([]byte, error) {
	return cborEnc.Marshal(v)
}

// Decode deserializes CBOR bytes to the target type.
func (CBOR) Decode(data []byte, v any) error {
	return cborDec.Unmarshal(data, v)
}

// DecodeTree decodes CBOR into maps with string keys, slices and scalars.
func (CBOR) DecodeTree(data []byte) (any, error) {
	var tree any
	if err := cborDec.Unmarshal(data, &tree); err != nil {
		return nil, err
	}
	return tree, nil
}

// ContentType returns the MIME type for CBOR.
func (CBOR) ContentType() string {
	return "application/cbor"
}

// Compile-time check.
var (
	_ Codec       = CBOR{}
	_ TreeDecoder = CBOR{}
)
