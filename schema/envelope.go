package schema

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotEnvelope is returned by DecodeEnvelope for JSON that lacks one of
// the envelope keys.
var ErrNotEnvelope = errors.New("not a payload envelope")

// Envelope wraps payload data with its type name and schema version.
//
// Wire form:
//
//	{"type":"contact","v":2,"data":{...}}
type Envelope struct {
	Type    string          `json:"type"`
	Version int             `json:"v"`
	Data    json.RawMessage `json:"data"`
}

// NewEnvelope creates an envelope for already encoded JSON data.
func NewEnvelope(typ string, version int, data []byte) *Envelope {
	return &Envelope{
		Type:    typ,
		Version: version,
		Data:    data,
	}
}

// Encode encodes the envelope to JSON.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope decodes an envelope from JSON.
// It returns ErrNotEnvelope if data is JSON of another form, e.g. a legacy
// unversioned payload.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var raw struct {
		Type    *string         `json:"type"`
		Version *int            `json:"v"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return nil, fmt.Errorf("%w: %v", ErrNotEnvelope, err)
		}
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if raw.Type == nil || raw.Version == nil || raw.Data == nil {
		return nil, ErrNotEnvelope
	}
	return &Envelope{Type: *raw.Type, Version: *raw.Version, Data: raw.Data}, nil
}
