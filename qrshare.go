package qrshare

import (
	"context"
	"image"
)

// QRCode renders v as a PNG QR code with the JSON codec and the highest
// error-correction level.
func QRCode[T any](v T) ([]byte, error) {
	return New[T]().QRCode(context.Background(), v)
}

// QRCodeImage renders v as a QR code image with the JSON codec and the
// highest error-correction level.
func QRCodeImage[T any](v T) (image.Image, error) {
	return New[T]().Image(context.Background(), v)
}

// Import decodes a scanned JSON payload into a new T.
func Import[T any](data []byte) (T, error) {
	return New[T]().Import(context.Background(), string(data))
}
