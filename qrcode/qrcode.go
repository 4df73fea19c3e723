// Package qrcode renders payload text as QR code images and reads it back.
//
// Rendering is a thin wrapper around github.com/skip2/go-qrcode that adds
// input validation, a capacity check per error-correction level and a
// data-URI helper. Reading uses github.com/makiuchi-d/gozxing.
//
// # Usage
//
//	png, err := qrcode.Encode(text, qrcode.WithSize(512))
//	uri, err := qrcode.DataURI(text)          // data:image/png;base64,...
//	img, err := qrcode.Image(text, qrcode.WithLevel(qrcode.Medium))
//
//	text, err := qrcode.NewReader().Decode(img)
//
// # Error Handling
//
// Errors are package-level sentinels that can be compared with errors.Is:
//
//   - ErrEmptyContent: the content argument was empty.
//   - ErrContentTooLarge: the content does not fit a symbol at the level.
//   - ErrGenerate: the underlying library could not generate the symbol.
//   - ErrNotFound: no readable symbol was found in an image.
package qrcode

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"

	goqrcode "github.com/skip2/go-qrcode"
)

var (
	// ErrEmptyContent is returned when there is nothing to encode.
	ErrEmptyContent = errors.New("qrcode: empty content")

	// ErrContentTooLarge is returned when the content exceeds the capacity
	// of the largest symbol at the requested level.
	ErrContentTooLarge = errors.New("qrcode: content too large")

	// ErrGenerate is returned when the symbol or its image cannot be built.
	ErrGenerate = errors.New("qrcode: failed to generate")
)

// Level is the error-correction level of a symbol. Higher levels survive
// more damage but hold less data.
type Level int

const (
	// Low recovers about 7% of the symbol.
	Low Level = iota
	// Medium recovers about 15% of the symbol.
	Medium
	// Quartile recovers about 25% of the symbol.
	Quartile
	// Highest recovers about 30% of the symbol.
	Highest
)

// String returns the single-letter name of the level.
func (l Level) String() string {
	switch l {
	case Low:
		return "L"
	case Medium:
		return "M"
	case Quartile:
		return "Q"
	case Highest:
		return "H"
	default:
		return fmt.Sprintf("Level(%d)", int(l))
	}
}

// ParseLevel parses L, M, Q or H (or the full level names).
func ParseLevel(s string) (Level, error) {
	switch s {
	case "L", "l", "low":
		return Low, nil
	case "M", "m", "medium":
		return Medium, nil
	case "Q", "q", "quartile":
		return Quartile, nil
	case "H", "h", "high", "highest":
		return Highest, nil
	}
	return 0, fmt.Errorf("qrcode: unknown level %q", s)
}

func (l Level) recovery() goqrcode.RecoveryLevel {
	switch l {
	case Low:
		return goqrcode.Low
	case Medium:
		return goqrcode.Medium
	case Quartile:
		return goqrcode.High
	default:
		return goqrcode.Highest
	}
}

// Capacity returns the number of bytes a version 40 symbol holds in byte
// mode at level l.
func Capacity(l Level) int {
	switch l {
	case Low:
		return 2953
	case Medium:
		return 2331
	case Quartile:
		return 1663
	default:
		return 1273
	}
}

// DefaultSize is the default image width and height in pixels.
const DefaultSize = 256

// Config holds the rendering settings.
type Config struct {
	Level  Level
	Size   int
	Border bool
}

// Option configures rendering.
type Option func(*Config)

// WithLevel sets the error-correction level (default Highest).
func WithLevel(l Level) Option {
	return func(c *Config) {
		c.Level = l
	}
}

// WithSize sets the image width and height in pixels (default 256).
// Symbols that need more modules than pixels are drawn at one pixel per
// module. Non-positive sizes are ignored.
func WithSize(px int) Option {
	return func(c *Config) {
		if px > 0 {
			c.Size = px
		}
	}
}

// WithBorder toggles the quiet zone around the symbol (default on).
func WithBorder(on bool) Option {
	return func(c *Config) {
		c.Border = on
	}
}

// Settings resolves opts against the defaults.
func Settings(opts ...Option) Config {
	c := Config{
		Level:  Highest,
		Size:   DefaultSize,
		Border: true,
	}
	for _, opt := range opts {
		opt(&c)
	}
	return c
}

func build(text string, c Config) (*goqrcode.QRCode, error) {
	if text == "" {
		return nil, ErrEmptyContent
	}
	if len(text) > Capacity(c.Level) {
		return nil, fmt.Errorf("%w: %d bytes, level %s holds %d", ErrContentTooLarge, len(text), c.Level, Capacity(c.Level))
	}
	q, err := goqrcode.New(text, c.Level.recovery())
	if err != nil {
		return nil, errors.Join(ErrGenerate, err)
	}
	q.DisableBorder = !c.Border
	return q, nil
}

// Image renders text as a QR code image.
func Image(text string, opts ...Option) (image.Image, error) {
	c := Settings(opts...)
	q, err := build(text, c)
	if err != nil {
		return nil, err
	}
	return q.Image(c.Size), nil
}

// Encode renders text as a PNG-encoded QR code.
func Encode(text string, opts ...Option) ([]byte, error) {
	img, err := Image(text, opts...)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, errors.Join(ErrGenerate, err)
	}
	return buf.Bytes(), nil
}

// DataURI renders text as a PNG data URI that can be used as an <img> src.
func DataURI(text string, opts ...Option) (string, error) {
	data, err := Encode(text, opts...)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(data), nil
}
