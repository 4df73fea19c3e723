package schema

import (
	"context"
	"encoding/json"
	"fmt"
)

// JSONSchema validates the top-level keys of a JSON object payload.
//
// It checks that required keys are present and that keys with a declared
// property type hold a value of that JSON type. Supported types are
// "string", "number", "boolean", "array" and "object"; unknown type names
// accept any value.
//
// Example:
//
//	s := schema.NewJSONSchema("contact", 2).
//	    WithRequired("id", "name").
//	    WithProperty("id", "number").
//	    WithProperty("name", "string").
//	    WithProperty("tags", "array")
type JSONSchema struct {
	version    int
	name       string
	required   []string
	properties map[string]string // key -> JSON type
}

// NewJSONSchema creates a JSON schema for one version of a payload type.
func NewJSONSchema(name string, version int) *JSONSchema {
	return &JSONSchema{
		name:       name,
		version:    version,
		properties: make(map[string]string),
	}
}

// Version returns the schema version number.
func (s *JSONSchema) Version() int {
	return s.version
}

// Name returns the payload type name.
func (s *JSONSchema) Name() string {
	return s.name
}

// WithRequired replaces the set of required keys.
func (s *JSONSchema) WithRequired(fields ...string) *JSONSchema {
	s.required = fields
	return s
}

// WithProperty declares the JSON type of a key. The type is only checked
// when the key is present.
func (s *JSONSchema) WithProperty(name, typ string) *JSONSchema {
	s.properties[name] = typ
	return s
}

// Validate checks data against the schema. Errors wrap ErrInvalidPayload.
func (s *JSONSchema) Validate(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if m == nil {
		return fmt.Errorf("%w: expected an object", ErrInvalidPayload)
	}

	for _, field := range s.required {
		if _, ok := m[field]; !ok {
			return fmt.Errorf("%w: missing required field %s", ErrInvalidPayload, field)
		}
	}
	for name, typ := range s.properties {
		value, ok := m[name]
		if !ok {
			continue
		}
		if !matchesType(value, typ) {
			return fmt.Errorf("%w: field %s should be %s", ErrInvalidPayload, name, typ)
		}
	}
	return nil
}

// matchesType reports whether a value decoded by encoding/json has the
// given JSON type.
func matchesType(value any, typ string) bool {
	switch typ {
	case "string":
		_, ok := value.(string)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		_, ok := value.([]any)
		return ok
	case "object":
		_, ok := value.(map[string]any)
		return ok
	default:
		return true
	}
}

// Compile-time check
var _ Schema = (*JSONSchema)(nil)

// FieldMapper is an Upcaster for the common evolution steps of an object
// payload: renamed keys, new keys with a default and dropped keys.
//
// Operations run in that order, so a renamed key can still receive a
// default and removals happen last.
//
// Example:
//
//	// v1 {"full_name":"Ann","fax":"..."} -> v2 {"name":"Ann","email":""}
//	upcaster := schema.NewFieldMapper(1, 2).
//	    RenameField("full_name", "name").
//	    AddDefault("email", "").
//	    RemoveField("fax")
type FieldMapper struct {
	from     int
	to       int
	renames  map[string]string // old -> new
	defaults map[string]any
	removals []string
}

// NewFieldMapper creates a field mapper for the from->to transition.
func NewFieldMapper(from, to int) *FieldMapper {
	return &FieldMapper{
		from:     from,
		to:       to,
		renames:  make(map[string]string),
		defaults: make(map[string]any),
	}
}

// FromVersion returns the source version.
func (f *FieldMapper) FromVersion() int {
	return f.from
}

// ToVersion returns the target version.
func (f *FieldMapper) ToVersion() int {
	return f.to
}

// RenameField moves the value of oldName to newName. Payloads without
// oldName are left alone.
func (f *FieldMapper) RenameField(oldName, newName string) *FieldMapper {
	f.renames[oldName] = newName
	return f
}

// AddDefault sets field to value when the payload does not have it.
func (f *FieldMapper) AddDefault(field string, value any) *FieldMapper {
	f.defaults[field] = value
	return f
}

// RemoveField deletes field from the payload.
func (f *FieldMapper) RemoveField(field string) *FieldMapper {
	f.removals = append(f.removals, field)
	return f
}

// Upcast applies the renames, defaults and removals to a JSON object.
func (f *FieldMapper) Upcast(ctx context.Context, data []byte) ([]byte, error) {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("upcast v%d: expected an object", f.from)
	}

	for oldName, newName := range f.renames {
		if value, ok := m[oldName]; ok {
			m[newName] = value
			delete(m, oldName)
		}
	}
	for field, value := range f.defaults {
		if _, ok := m[field]; !ok {
			m[field] = value
		}
	}
	for _, field := range f.removals {
		delete(m, field)
	}
	return json.Marshal(m)
}

// Compile-time check
var _ Upcaster = (*FieldMapper)(nil)
