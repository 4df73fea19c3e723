package payload

import (
	"encoding"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"
)

var errNoTree = errors.New("codec cannot decode a generic tree")

var (
	jsonUnmarshalerType = reflect.TypeFor[json.Unmarshaler]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
)

// field describes one key a struct expects in an object.
type field struct {
	name     string
	typ      reflect.Type
	required bool
}

// candidate is a field seen while flattening embedded structs.
type candidate struct {
	field
	depth  int
	tagged bool
}

var fieldCache sync.Map // map[reflect.Type][]field

// cachedFields returns the object keys of struct type t, following the
// encoding/json naming rules (json tag name, else Go field name; embedded
// structs without a tag name are flattened).
//
// A field is required unless it is a pointer or interface, is tagged
// omitempty/omitzero, or is promoted through an embedded pointer.
func cachedFields(t reflect.Type) []field {
	if f, ok := fieldCache.Load(t); ok {
		return f.([]field)
	}
	fields := typeFields(t)
	f, _ := fieldCache.LoadOrStore(t, fields)
	return f.([]field)
}

// typeFields resolves name conflicts the way encoding/json does: the
// shallowest field wins, a tagged field beats an untagged one at the same
// depth, and any remaining tie hides the name altogether.
func typeFields(t reflect.Type) []field {
	var all []candidate
	collectFields(t, 0, false, map[reflect.Type]bool{}, &all)

	var order []string
	byName := make(map[string][]candidate)
	for _, c := range all {
		if _, ok := byName[c.name]; !ok {
			order = append(order, c.name)
		}
		byName[c.name] = append(byName[c.name], c)
	}

	fields := make([]field, 0, len(order))
	for _, name := range order {
		if f, ok := dominantField(byName[name]); ok {
			fields = append(fields, f)
		}
	}
	return fields
}

func dominantField(cands []candidate) (field, bool) {
	depth := cands[0].depth
	for _, c := range cands[1:] {
		depth = min(depth, c.depth)
	}
	var best []candidate
	var tagged []candidate
	for _, c := range cands {
		if c.depth != depth {
			continue
		}
		best = append(best, c)
		if c.tagged {
			tagged = append(tagged, c)
		}
	}
	switch {
	case len(best) == 1:
		return best[0].field, true
	case len(tagged) == 1:
		return tagged[0].field, true
	}
	return field{}, false
}

func collectFields(t reflect.Type, depth int, viaPointer bool, visited map[reflect.Type]bool, out *[]candidate) {
	if visited[t] {
		return
	}
	visited[t] = true
	defer delete(visited, t)

	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag := sf.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")

		if sf.Anonymous && name == "" {
			et, ptr := sf.Type, false
			if et.Kind() == reflect.Pointer {
				et, ptr = et.Elem(), true
			}
			if et.Kind() == reflect.Struct {
				if ptr && !sf.IsExported() {
					continue
				}
				collectFields(et, depth+1, viaPointer || ptr, visited, out)
				continue
			}
		}
		if !sf.IsExported() {
			continue
		}
		tagged := name != ""
		if !tagged {
			name = sf.Name
		}

		kind := sf.Type.Kind()
		optional := viaPointer ||
			hasOption(opts, "omitempty") ||
			hasOption(opts, "omitzero") ||
			kind == reflect.Pointer ||
			kind == reflect.Interface
		*out = append(*out, candidate{
			field:  field{name: name, typ: sf.Type, required: !optional},
			depth:  depth,
			tagged: tagged,
		})
	}
}

func hasOption(opts, want string) bool {
	for opts != "" {
		var opt string
		opt, opts, _ = strings.Cut(opts, ",")
		if opt == want {
			return true
		}
	}
	return false
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Slice, reflect.Map:
		return true
	}
	return false
}

// leaf reports whether t decodes itself, in which case its inner structure
// is not inspected.
func leaf(t reflect.Type) bool {
	if t.Implements(jsonUnmarshalerType) || t.Implements(textUnmarshalerType) {
		return true
	}
	if t.Kind() != reflect.Pointer && t.Kind() != reflect.Interface {
		pt := reflect.PointerTo(t)
		return pt.Implements(jsonUnmarshalerType) || pt.Implements(textUnmarshalerType)
	}
	return false
}

// shapeError locates a mismatch inside the payload.
type shapeError struct {
	path string
	msg  string
}

func (e *shapeError) Error() string {
	if e.path == "" {
		return e.msg
	}
	return e.path + ": " + e.msg
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// checkShape walks a decoded tree alongside the target type and reports
// missing required fields, nulls in non-nullable positions and objects where
// a struct expects something else. Primitive type mismatches are left to the
// codec, which reports them while mapping onto the target.
//
// Types that decode themselves are accepted as they are, null included.
func checkShape(t reflect.Type, v any, path string) error {
	if leaf(t) {
		return nil
	}
	if v == nil {
		if nillable(t) {
			return nil
		}
		return &shapeError{path: path, msg: fmt.Sprintf("null is not a valid %s", t)}
	}

	switch t.Kind() {
	case reflect.Pointer:
		return checkShape(t.Elem(), v, path)

	case reflect.Struct:
		obj, ok := v.(map[string]any)
		if !ok {
			return &shapeError{path: path, msg: fmt.Sprintf("expected object for %s, got %T", t, v)}
		}
		for _, f := range cachedFields(t) {
			fv, present := obj[f.name]
			if !present {
				if f.required {
					return &shapeError{path: joinPath(path, f.name), msg: "missing required field"}
				}
				continue
			}
			if err := checkShape(f.typ, fv, joinPath(path, f.name)); err != nil {
				return err
			}
		}

	case reflect.Slice, reflect.Array:
		if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
			return nil
		}
		arr, ok := v.([]any)
		if !ok {
			return nil
		}
		for i, elem := range arr {
			if err := checkShape(t.Elem(), elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}

	case reflect.Map:
		obj, ok := v.(map[string]any)
		if !ok {
			return nil
		}
		for k, elem := range obj {
			if err := checkShape(t.Elem(), elem, joinPath(path, k)); err != nil {
				return err
			}
		}
	}
	return nil
}
