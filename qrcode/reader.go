package qrcode

import (
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
)

// ErrNotFound is returned when an image holds no readable QR symbol.
var ErrNotFound = errors.New("qrcode: no symbol found")

// Reader extracts the text of a QR symbol from an image.
// It is safe for concurrent use.
type Reader struct {
	tryHarder bool
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithTryHarder spends more time looking for a symbol in each image.
func WithTryHarder() ReaderOption {
	return func(r *Reader) {
		r.tryHarder = true
	}
}

// NewReader creates a reader.
func NewReader(opts ...ReaderOption) *Reader {
	r := &Reader{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Decode returns the text of the QR symbol in img.
// Images without a symbol, or with one too damaged to read, yield an error
// wrapping ErrNotFound.
func (r *Reader) Decode(img image.Image) (string, error) {
	if img == nil {
		return "", ErrNotFound
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("qrcode: binarize: %w", err)
	}

	hints := map[gozxing.DecodeHintType]interface{}{}
	if r.tryHarder {
		hints[gozxing.DecodeHintType_TRY_HARDER] = true
	}

	// zxing readers keep per-decode state, so each call gets its own.
	result, err := zxqrcode.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		var re gozxing.ReaderException
		if errors.As(err, &re) {
			return "", fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return "", fmt.Errorf("qrcode: read: %w", err)
	}
	return result.GetText(), nil
}

// DecodePNG reads a PNG image from rd and decodes its symbol.
func (r *Reader) DecodePNG(rd io.Reader) (string, error) {
	img, err := png.Decode(rd)
	if err != nil {
		return "", fmt.Errorf("qrcode: decode png: %w", err)
	}
	return r.Decode(img)
}

// DecodeImage reads an image in any registered format (PNG always) from rd
// and decodes its symbol.
func (r *Reader) DecodeImage(rd io.Reader) (string, error) {
	img, _, err := image.Decode(rd)
	if err != nil {
		return "", fmt.Errorf("qrcode: decode image: %w", err)
	}
	return r.Decode(img)
}
