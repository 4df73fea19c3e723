package payload

import (
	"errors"
	"reflect"
	"unicode/utf8"
)

// Typed pairs a codec with a target type. It is the generic encode/decode
// pair for one payload type and is safe for concurrent use.
//
// Example:
//
//	contacts := payload.For[Contact](payload.JSON{})
//	text, err := contacts.Encode(c)
//	c2, err := contacts.DecodeString(text)
type Typed[T any] struct {
	codec Codec
}

// For returns a typed codec for T. A nil codec selects the default (JSON).
func For[T any](c Codec) Typed[T] {
	if c == nil {
		c = Default()
	}
	return Typed[T]{codec: c}
}

// Codec returns the underlying codec.
// The zero Typed uses the default codec.
func (t Typed[T]) Codec() Codec {
	if t.codec == nil {
		return Default()
	}
	return t.codec
}

// ContentType returns the content type of the underlying codec.
func (t Typed[T]) ContentType() string {
	return t.Codec().ContentType()
}

// EncodeBytes serializes v into a transport payload.
// It fails with *EncodeError if v is not representable or if the codec
// output is not UTF-8 text.
func (t Typed[T]) EncodeBytes(v T) ([]byte, error) {
	data, err := t.Codec().Encode(v)
	if err != nil {
		return nil, &EncodeError{Type: typeName[T](), Reason: ReasonUnsupported, Err: err}
	}
	if !utf8.Valid(data) {
		return nil, &EncodeError{Type: typeName[T](), Reason: ReasonNotText}
	}
	return data, nil
}

// Encode serializes v into a transport payload string.
func (t Typed[T]) Encode(v T) (string, error) {
	data, err := t.EncodeBytes(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// Decode parses a scanned payload into a new T.
//
// Checks run in order: empty input, UTF-8 validity, well-formedness, shape
// against T, then the mapping onto T. Any failure returns the zero T and a
// *DecodeError; a partially decoded value is never returned.
func (t Typed[T]) Decode(data []byte) (T, error) {
	var zero T
	typ := reflect.TypeFor[T]()

	if len(data) == 0 {
		return zero, &DecodeError{Type: typ.String(), Reason: ReasonEmpty}
	}
	if !utf8.Valid(data) {
		return zero, &DecodeError{Type: typ.String(), Reason: ReasonInvalidUTF8}
	}

	// Without a tree, codec errors cannot be told apart and count as malformed.
	mismatch := ReasonMalformed
	codec := t.Codec()
	if td, ok := codec.(TreeDecoder); ok {
		tree, err := td.DecodeTree(data)
		switch {
		case errors.Is(err, errNoTree):
		case err != nil:
			return zero, &DecodeError{Type: typ.String(), Reason: ReasonMalformed, Err: err}
		default:
			if err := checkShape(typ, tree, ""); err != nil {
				return zero, &DecodeError{Type: typ.String(), Reason: ReasonShapeMismatch, Err: err}
			}
			if tree == nil && nillable(typ) {
				return zero, nil
			}
			mismatch = ReasonShapeMismatch
		}
	}

	var out T
	var target any = &out
	if typ.Kind() == reflect.Pointer {
		out = reflect.New(typ.Elem()).Interface().(T)
		target = out
	}
	if err := codec.Decode(data, target); err != nil {
		return zero, &DecodeError{Type: typ.String(), Reason: mismatch, Err: err}
	}
	return out, nil
}

// DecodeString parses a scanned string into a new T.
func (t Typed[T]) DecodeString(s string) (T, error) {
	return t.Decode([]byte(s))
}

// DecodeInto decodes data and stores the result in dst only on success.
// On failure dst keeps its previous value.
func (t Typed[T]) DecodeInto(data []byte, dst *T) error {
	v, err := t.Decode(data)
	if err != nil {
		return err
	}
	*dst = v
	return nil
}

// Encode serializes v with the default codec.
func Encode[T any](v T) (string, error) {
	return For[T](nil).Encode(v)
}

// Decode parses data into a new T with the default codec.
func Decode[T any](data []byte) (T, error) {
	return For[T](nil).Decode(data)
}

// DecodeInto decodes data with the default codec and stores the result in
// dst only on success.
func DecodeInto[T any](data []byte, dst *T) error {
	return For[T](nil).DecodeInto(data, dst)
}

func typeName[T any]() string {
	return reflect.TypeFor[T]().String()
}
