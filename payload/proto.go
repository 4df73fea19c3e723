package payload

import (
	"errors"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

var (
	errNotProtoPayload = errors.New("payload must implement proto.Message")
	errNotProtoTarget  = errors.New("target must implement proto.Message")
)

// Proto implements Codec using Protocol Buffers serialization.
// For best performance and type safety, use proto.Message types for payloads.
//
// Usage:
//
//	codec := payload.For[*pb.Ticket](payload.Base64(payload.Proto{}))
type Proto struct{}

// Encode serializes the payload to Protocol Buffer bytes.
// The payload must implement proto.Message.
func (Proto) Encode(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, errNotProtoPayload
	}
	return proto.MarshalOptions{Deterministic: true}.Marshal(msg)
}

// Decode deserializes Protocol Buffer bytes to the target type.
// The target must be a pointer to a proto.Message.
func (Proto) Decode(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return errNotProtoTarget
	}
	return proto.Unmarshal(data, msg)
}

// ContentType returns the MIME type for Protocol Buffers.
func (Proto) ContentType() string {
	return "application/protobuf"
}

// ProtoJSON implements Codec using the canonical JSON mapping of Protocol
// Buffers. Its output is text and can go into a QR code without armoring.
type ProtoJSON struct{}

// Encode serializes the payload to protobuf JSON.
func (ProtoJSON) Encode(v any) ([]byte, error) {
	msg, ok := v.(proto.Message)
	if !ok {
		return nil, errNotProtoPayload
	}
	return protojson.Marshal(msg)
}

// Decode deserializes protobuf JSON to the target type.
// Unknown fields are discarded.
func (ProtoJSON) Decode(data []byte, v any) error {
	msg, ok := v.(proto.Message)
	if !ok {
		return errNotProtoTarget
	}
	return protojson.UnmarshalOptions{DiscardUnknown: true}.Unmarshal(data, msg)
}

// ContentType returns the MIME type for protobuf JSON.
func (ProtoJSON) ContentType() string {
	return "application/protobuf+json"
}

// Compile-time check.
var (
	_ Codec = Proto{}
	_ Codec = ProtoJSON{}
)

func init() {
	Register(Base64(Proto{}))
	Register(ProtoJSON{})
}
