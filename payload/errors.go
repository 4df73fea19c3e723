package payload

import (
	"errors"
	"fmt"
)

// Codec errors. Every *EncodeError matches ErrEncodeFailure and every
// *DecodeError matches ErrDecodeFailure under errors.Is.
var (
	ErrEncodeFailure = errors.New("payload: encode failed")
	ErrDecodeFailure = errors.New("payload: decode failed")
)

// Reason errors. An *EncodeError or *DecodeError also matches the sentinel of
// its Reason.
var (
	ErrUnsupportedValue = errors.New("value is not representable")
	ErrNotText          = errors.New("encoded payload is not UTF-8 text")
	ErrEmptyPayload     = errors.New("empty payload")
	ErrInvalidUTF8      = errors.New("payload is not valid UTF-8")
	ErrMalformed        = errors.New("malformed payload")
	ErrShapeMismatch    = errors.New("payload does not match target type")
	ErrVersion          = errors.New("unsupported payload version")
)

// Reason classifies a codec failure.
type Reason int

const (
	// ReasonUnsupported - value cannot be represented in the format
	ReasonUnsupported Reason = iota + 1
	// ReasonNotText - encoder produced bytes that are not UTF-8
	ReasonNotText
	// ReasonEmpty - nothing to decode
	ReasonEmpty
	// ReasonInvalidUTF8 - scanned bytes are not UTF-8
	ReasonInvalidUTF8
	// ReasonMalformed - text is not well-formed in the format
	ReasonMalformed
	// ReasonShapeMismatch - structure does not fit the target type
	ReasonShapeMismatch
	// ReasonVersion - envelope type or version cannot be handled
	ReasonVersion
)

// String returns a string representation of the reason.
func (r Reason) String() string {
	switch r {
	case ReasonUnsupported:
		return "unsupported"
	case ReasonNotText:
		return "not_text"
	case ReasonEmpty:
		return "empty"
	case ReasonInvalidUTF8:
		return "invalid_utf8"
	case ReasonMalformed:
		return "malformed"
	case ReasonShapeMismatch:
		return "shape_mismatch"
	case ReasonVersion:
		return "version"
	default:
		return fmt.Sprintf("unknown(%d)", int(r))
	}
}

func (r Reason) sentinel() error {
	switch r {
	case ReasonUnsupported:
		return ErrUnsupportedValue
	case ReasonNotText:
		return ErrNotText
	case ReasonEmpty:
		return ErrEmptyPayload
	case ReasonInvalidUTF8:
		return ErrInvalidUTF8
	case ReasonMalformed:
		return ErrMalformed
	case ReasonShapeMismatch:
		return ErrShapeMismatch
	case ReasonVersion:
		return ErrVersion
	default:
		return nil
	}
}

// EncodeError reports a value that could not be turned into a payload.
type EncodeError struct {
	Type   string // Go type of the value
	Reason Reason
	Err    error
}

func (e *EncodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("payload: encode %s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("payload: encode %s: %s: %v", e.Type, e.Reason, e.Err)
}

func (e *EncodeError) Unwrap() error {
	return e.Err
}

// Is matches ErrEncodeFailure and the sentinel of the error's reason.
func (e *EncodeError) Is(target error) bool {
	return target == ErrEncodeFailure || (target != nil && target == e.Reason.sentinel())
}

// DecodeError reports a payload that could not be turned into a value.
type DecodeError struct {
	Type   string // Go type of the decode target
	Reason Reason
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("payload: decode %s: %s", e.Type, e.Reason)
	}
	return fmt.Sprintf("payload: decode %s: %s: %v", e.Type, e.Reason, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Is matches ErrDecodeFailure and the sentinel of the error's reason.
func (e *DecodeError) Is(target error) bool {
	return target == ErrDecodeFailure || (target != nil && target == e.Reason.sentinel())
}

// NewDecodeError creates a decode error for the named target type.
// Packages layered on top of payload (schema versioning, offload references)
// use it so that callers only ever check for ErrDecodeFailure.
func NewDecodeError(typ string, reason Reason, err error) *DecodeError {
	return &DecodeError{Type: typ, Reason: reason, Err: err}
}

// ReasonOf returns the reason of an encode or decode error, or 0.
func ReasonOf(err error) Reason {
	var de *DecodeError
	if errors.As(err, &de) {
		return de.Reason
	}
	var ee *EncodeError
	if errors.As(err, &ee) {
		return ee.Reason
	}
	return 0
}
