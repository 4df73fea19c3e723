package main

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/rbaliyan/qrshare/payload"
)

// readDocument parses JSON input, keeping every number as a json.Number so
// that large integers survive unchanged.
func readDocument(data []byte) (any, error) {
	raw, err := payload.For[json.RawMessage](payload.Default()).Decode(data)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// textual reports whether the codec writes JSON text, where json.Number
// values are copied verbatim.
func textual(c payload.Codec) bool {
	return strings.HasPrefix(c.ContentType(), "application/json")
}

// nativeNumbers replaces json.Number values with int64, uint64 or float64,
// in that order of preference, for codecs with their own number types.
func nativeNumbers(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, elem := range v {
			v[k] = nativeNumbers(elem)
		}
	case []any:
		for i, elem := range v {
			v[i] = nativeNumbers(elem)
		}
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return i
		}
		if u, err := strconv.ParseUint(v.String(), 10, 64); err == nil {
			return u
		}
		f, _ := v.Float64()
		return f
	}
	return v
}
