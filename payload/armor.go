package payload

import (
	"encoding/base64"
	"fmt"
)

// Base64 wraps a codec so that its output is printable ASCII.
// Use it for binary codecs before embedding the payload in a QR code.
// The content type is the inner content type with a "+base64" suffix.
func Base64(c Codec) Codec {
	return armored{inner: c}
}

type armored struct {
	inner Codec
}

func (a armored) Encode(v any) ([]byte, error) {
	raw, err := a.inner.Encode(v)
	if err != nil {
		return nil, err
	}
	out := make([]byte, base64.StdEncoding.EncodedLen(len(raw)))
	base64.StdEncoding.Encode(out, raw)
	return out, nil
}

func (a armored) unwrap(data []byte) ([]byte, error) {
	raw := make([]byte, base64.StdEncoding.DecodedLen(len(data)))
	n, err := base64.StdEncoding.Decode(raw, data)
	if err != nil {
		return nil, fmt.Errorf("base64: %w", err)
	}
	return raw[:n], nil
}

func (a armored) Decode(data []byte, v any) error {
	raw, err := a.unwrap(data)
	if err != nil {
		return err
	}
	return a.inner.Decode(raw, v)
}

// DecodeTree validates the armor and then delegates. It returns errNoTree when
// the inner codec cannot build a tree.
func (a armored) DecodeTree(data []byte) (any, error) {
	raw, err := a.unwrap(data)
	if err != nil {
		return nil, err
	}
	td, ok := a.inner.(TreeDecoder)
	if !ok {
		return nil, errNoTree
	}
	return td.DecodeTree(raw)
}

func (a armored) ContentType() string {
	return a.inner.ContentType() + "+base64"
}

var (
	_ Codec       = armored{}
	_ TreeDecoder = armored{}
)
