package payload

import (
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// MaxDecompressedSize bounds the memory a Zstd codec may allocate while
// decompressing a scanned payload.
const MaxDecompressedSize = 1 << 20

// zstd encoders and decoders are safe for concurrent EncodeAll/DecodeAll,
// so one pair serves every Zstd codec.
var zstdCoders = sync.OnceValues(func() (*zstd.Encoder, *zstd.Decoder) {
	enc, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedBestCompression),
		zstd.WithZeroFrames(true),
	)
	if err != nil {
		panic("payload: zstd encoder: " + err.Error())
	}
	dec, err := zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(MaxDecompressedSize),
		zstd.WithDecoderConcurrency(0),
	)
	if err != nil {
		panic("payload: zstd decoder: " + err.Error())
	}
	return enc, dec
})

// Zstd wraps a codec with Zstandard compression. The output is binary, so
// combine it with Base64 for QR use:
//
//	codec := payload.Base64(payload.Zstd(payload.JSON{}))
//
// Compression pays off for larger JSON documents that would otherwise need a
// dense symbol. The content type gets a "+zstd" suffix.
func Zstd(c Codec) Codec {
	return compressed{inner: c}
}

type compressed struct {
	inner Codec
}

func (c compressed) Encode(v any) ([]byte, error) {
	raw, err := c.inner.Encode(v)
	if err != nil {
		return nil, err
	}
	enc, _ := zstdCoders()
	return enc.EncodeAll(raw, nil), nil
}

func (c compressed) unwrap(data []byte) ([]byte, error) {
	_, dec := zstdCoders()
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd: %w", err)
	}
	return raw, nil
}

func (c compressed) Decode(data []byte, v any) error {
	raw, err := c.unwrap(data)
	if err != nil {
		return err
	}
	return c.inner.Decode(raw, v)
}

func (c compressed) DecodeTree(data []byte) (any, error) {
	raw, err := c.unwrap(data)
	if err != nil {
		return nil, err
	}
	td, ok := c.inner.(TreeDecoder)
	if !ok {
		return nil, errNoTree
	}
	return td.DecodeTree(raw)
}

func (c compressed) ContentType() string {
	return c.inner.ContentType() + "+zstd"
}

var (
	_ Codec       = compressed{}
	_ TreeDecoder = compressed{}
)

func init() {
	Register(Base64(Zstd(JSON{})))
}
