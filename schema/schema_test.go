package schema

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"syreclabs.com/go/faker"

	"github.com/rbaliyan/qrshare/payload"
)

type contact struct {
	ID    int    `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func decodeMap(t *testing.T, data []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal result failed: %v", err)
	}
	return m
}

// contactRegistry registers three versions of "contact":
// v1 {id, full_name}, v2 {id, name}, v3 {id, name, email}.
func contactRegistry(t *testing.T) *MemoryRegistry {
	t.Helper()
	ctx := context.Background()
	registry := NewMemoryRegistry()

	for _, s := range []*JSONSchema{
		NewJSONSchema("contact", 1).WithRequired("id", "full_name"),
		NewJSONSchema("contact", 2).WithRequired("id", "name"),
		NewJSONSchema("contact", 3).
			WithRequired("id", "name", "email").
			WithProperty("id", "number").
			WithProperty("name", "string").
			WithProperty("email", "string"),
	} {
		if _, err := registry.Register(ctx, "contact", s); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}
	registry.AddUpcaster("contact", NewFieldMapper(1, 2).RenameField("full_name", "name"))
	registry.AddUpcaster("contact", NewFieldMapper(2, 3).AddDefault("email", "unknown@example.com"))
	return registry
}

func TestJSONSchema(t *testing.T) {
	t.Run("Name and Version", func(t *testing.T) {
		s := NewJSONSchema("contact", 2)
		if s.Name() != "contact" || s.Version() != 2 {
			t.Errorf("unexpected schema %s v%d", s.Name(), s.Version())
		}
	})

	t.Run("Required fields", func(t *testing.T) {
		s := NewJSONSchema("contact", 1).WithRequired("id", "name")

		if err := s.Validate([]byte(`{"id": 1, "name": "ann"}`)); err != nil {
			t.Errorf("expected valid, got %v", err)
		}
		err := s.Validate([]byte(`{"id": 1}`))
		if !errors.Is(err, ErrInvalidPayload) {
			t.Errorf("expected ErrInvalidPayload, got %v", err)
		}
	})

	t.Run("Property types", func(t *testing.T) {
		s := NewJSONSchema("contact", 1).
			WithProperty("name", "string").
			WithProperty("id", "number").
			WithProperty("active", "boolean").
			WithProperty("tags", "array").
			WithProperty("home", "object")

		valid := []byte(`{"name":"ann","id":4,"active":true,"tags":["a"],"home":{"city":"x"}}`)
		if err := s.Validate(valid); err != nil {
			t.Errorf("expected valid, got %v", err)
		}

		for _, data := range []string{
			`{"name": 5}`,
			`{"id": "4"}`,
			`{"active": "yes"}`,
			`{"tags": "a"}`,
			`{"home": []}`,
		} {
			if err := s.Validate([]byte(data)); !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("expected ErrInvalidPayload for %s, got %v", data, err)
			}
		}
	})

	t.Run("Non-object payloads are invalid", func(t *testing.T) {
		s := NewJSONSchema("contact", 1)
		for _, data := range []string{`not json`, `null`, `[1]`} {
			if err := s.Validate([]byte(data)); err == nil {
				t.Errorf("expected error for %s", data)
			}
		}
	})

	t.Run("Unknown property types are permissive", func(t *testing.T) {
		s := NewJSONSchema("contact", 1).WithProperty("id", "uuid")
		if err := s.Validate([]byte(`{"id": 12}`)); err != nil {
			t.Errorf("expected valid, got %v", err)
		}
	})
}

func TestMemoryRegistry(t *testing.T) {
	ctx := context.Background()

	t.Run("Register and GetSchema", func(t *testing.T) {
		registry := NewMemoryRegistry()
		version, err := registry.Register(ctx, "contact", NewJSONSchema("contact", 1))
		if err != nil {
			t.Fatalf("Register failed: %v", err)
		}
		if version != 1 {
			t.Errorf("expected version 1, got %d", version)
		}
		s, err := registry.GetSchema(ctx, "contact", 1)
		if err != nil {
			t.Fatalf("GetSchema failed: %v", err)
		}
		if s.Version() != 1 {
			t.Errorf("expected version 1, got %d", s.Version())
		}
	})

	t.Run("Register rejects version zero", func(t *testing.T) {
		registry := NewMemoryRegistry()
		if _, err := registry.Register(ctx, "contact", NewJSONSchema("contact", 0)); err == nil {
			t.Error("expected error for version 0")
		}
	})

	t.Run("Missing schemas", func(t *testing.T) {
		registry := NewMemoryRegistry()
		if _, err := registry.GetSchema(ctx, "contact", 1); !errors.Is(err, ErrSchemaNotFound) {
			t.Errorf("expected ErrSchemaNotFound, got %v", err)
		}
		registry.Register(ctx, "contact", NewJSONSchema("contact", 1))
		if _, err := registry.GetSchema(ctx, "contact", 9); !errors.Is(err, ErrSchemaNotFound) {
			t.Errorf("expected ErrSchemaNotFound, got %v", err)
		}
		if _, _, err := registry.GetLatestSchema(ctx, "ticket"); !errors.Is(err, ErrSchemaNotFound) {
			t.Errorf("expected ErrSchemaNotFound, got %v", err)
		}
	})

	t.Run("Latest and sorted versions", func(t *testing.T) {
		registry := NewMemoryRegistry()
		for _, v := range []int{2, 5, 1} {
			registry.Register(ctx, "contact", NewJSONSchema("contact", v))
		}

		s, latest, err := registry.GetLatestSchema(ctx, "contact")
		if err != nil {
			t.Fatalf("GetLatestSchema failed: %v", err)
		}
		if latest != 5 || s.Version() != 5 {
			t.Errorf("expected latest 5, got %d", latest)
		}

		versions, err := registry.ListVersions(ctx, "contact")
		if err != nil {
			t.Fatalf("ListVersions failed: %v", err)
		}
		if diff := cmp.Diff([]int{1, 2, 5}, versions); diff != "" {
			t.Errorf("versions diff (-want +got):\n%s", diff)
		}

		none, _ := registry.ListVersions(ctx, "ticket")
		if none != nil {
			t.Errorf("expected nil, got %v", none)
		}
	})
}

func TestFieldMapper(t *testing.T) {
	ctx := context.Background()

	t.Run("Rename, default and remove", func(t *testing.T) {
		mapper := NewFieldMapper(1, 2).
			RenameField("full_name", "name").
			AddDefault("email", "unknown@example.com").
			RemoveField("fax")

		if mapper.FromVersion() != 1 || mapper.ToVersion() != 2 {
			t.Fatalf("unexpected versions %d->%d", mapper.FromVersion(), mapper.ToVersion())
		}

		result, err := mapper.Upcast(ctx, []byte(`{"id":1,"full_name":"Ann","fax":"123"}`))
		if err != nil {
			t.Fatalf("Upcast failed: %v", err)
		}
		want := map[string]any{"id": float64(1), "name": "Ann", "email": "unknown@example.com"}
		if diff := cmp.Diff(want, decodeMap(t, result)); diff != "" {
			t.Errorf("upcast diff (-want +got):\n%s", diff)
		}
	})

	t.Run("Defaults do not overwrite", func(t *testing.T) {
		mapper := NewFieldMapper(1, 2).AddDefault("email", "unknown@example.com")
		result, err := mapper.Upcast(ctx, []byte(`{"email":"ann@example.com"}`))
		if err != nil {
			t.Fatalf("Upcast failed: %v", err)
		}
		if m := decodeMap(t, result); m["email"] != "ann@example.com" {
			t.Errorf("existing email should be preserved, got %v", m["email"])
		}
	})

	t.Run("Invalid input", func(t *testing.T) {
		mapper := NewFieldMapper(1, 2)
		for _, data := range []string{`not json`, `null`} {
			if _, err := mapper.Upcast(ctx, []byte(data)); err == nil {
				t.Errorf("expected error for %s", data)
			}
		}
	})
}

func TestUpcastToLatest(t *testing.T) {
	ctx := context.Background()
	registry := contactRegistry(t)

	t.Run("Chains upcasters", func(t *testing.T) {
		result, version, err := registry.UpcastToLatest(ctx, "contact", []byte(`{"id":7,"full_name":"Ann"}`), 1)
		if err != nil {
			t.Fatalf("UpcastToLatest failed: %v", err)
		}
		if version != 3 {
			t.Errorf("expected version 3, got %d", version)
		}
		want := map[string]any{"id": float64(7), "name": "Ann", "email": "unknown@example.com"}
		if diff := cmp.Diff(want, decodeMap(t, result)); diff != "" {
			t.Errorf("diff (-want +got):\n%s", diff)
		}
	})

	t.Run("Missing step", func(t *testing.T) {
		registry := NewMemoryRegistry()
		registry.Register(ctx, "contact", NewJSONSchema("contact", 1))
		registry.Register(ctx, "contact", NewJSONSchema("contact", 2))

		_, _, err := registry.UpcastToLatest(ctx, "contact", []byte(`{}`), 1)
		if !errors.Is(err, ErrNoUpcaster) {
			t.Errorf("expected ErrNoUpcaster, got %v", err)
		}
	})
}

func TestEnvelope(t *testing.T) {
	t.Run("Wire form", func(t *testing.T) {
		data, err := NewEnvelope("contact", 2, []byte(`{"id":1}`)).Encode()
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if string(data) != `{"type":"contact","v":2,"data":{"id":1}}` {
			t.Errorf("unexpected envelope %s", data)
		}

		env, err := DecodeEnvelope(data)
		if err != nil {
			t.Fatalf("DecodeEnvelope failed: %v", err)
		}
		if env.Type != "contact" || env.Version != 2 || string(env.Data) != `{"id":1}` {
			t.Errorf("unexpected envelope %+v", env)
		}
	})

	t.Run("Other JSON is not an envelope", func(t *testing.T) {
		for _, data := range []string{`{"id":1,"name":"ann"}`, `[1,2]`, `"text"`, `{"type":"contact","data":{}}`} {
			if _, err := DecodeEnvelope([]byte(data)); !errors.Is(err, ErrNotEnvelope) {
				t.Errorf("expected ErrNotEnvelope for %s, got %v", data, err)
			}
		}
	})

	t.Run("Malformed JSON", func(t *testing.T) {
		_, err := DecodeEnvelope([]byte(`{"type":`))
		if err == nil || errors.Is(err, ErrNotEnvelope) {
			t.Errorf("expected a syntax error, got %v", err)
		}
	})
}

func TestVersioned(t *testing.T) {
	ctx := context.Background()
	registry := contactRegistry(t)
	contacts := NewVersioned[contact](registry, "contact")

	t.Run("Encode uses the latest version", func(t *testing.T) {
		text, err := contacts.Encode(ctx, contact{ID: 42, Name: "alice", Email: "a@example.com"})
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		want := `{"type":"contact","v":3,"data":{"id":42,"name":"alice","email":"a@example.com"}}`
		if text != want {
			t.Errorf("expected %s, got %s", want, text)
		}
	})

	t.Run("Round trip", func(t *testing.T) {
		for i := 0; i < 10; i++ {
			want := contact{
				ID:    faker.RandomInt(1, 100000),
				Name:  faker.Name().Name(),
				Email: faker.Internet().Email(),
			}
			text, err := contacts.Encode(ctx, want)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got, err := contacts.DecodeString(ctx, text)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("diff (-want +got):\n%s", diff)
			}
		}
	})

	t.Run("Old versions are upcast", func(t *testing.T) {
		got, err := contacts.DecodeString(ctx, `{"type":"contact","v":1,"data":{"id":7,"full_name":"Ann"}}`)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		want := contact{ID: 7, Name: "Ann", Email: "unknown@example.com"}
		if diff := cmp.Diff(want, got); diff != "" {
			t.Errorf("diff (-want +got):\n%s", diff)
		}
	})

	t.Run("Legacy payloads are accepted", func(t *testing.T) {
		got, err := contacts.DecodeString(ctx, `{"id":1,"name":"ann","email":"x"}`)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got != (contact{ID: 1, Name: "ann", Email: "x"}) {
			t.Errorf("unexpected value %+v", got)
		}
	})

	t.Run("Strict rejects legacy payloads", func(t *testing.T) {
		strict := NewVersioned[contact](registry, "contact", WithStrict())
		_, err := strict.DecodeString(ctx, `{"id":1,"name":"ann","email":"x"}`)
		if !errors.Is(err, payload.ErrVersion) || !errors.Is(err, ErrUnversioned) {
			t.Errorf("expected unversioned error, got %v", err)
		}
	})

	failures := []struct {
		name   string
		data   string
		reason payload.Reason
	}{
		{"empty", ``, payload.ReasonEmpty},
		{"invalid UTF-8", "\xff\xfe", payload.ReasonInvalidUTF8},
		{"malformed", `{"type":"contact",`, payload.ReasonMalformed},
		{"future version", `{"type":"contact","v":4,"data":{"id":1,"name":"a","email":"b"}}`, payload.ReasonVersion},
		{"zero version", `{"type":"contact","v":0,"data":{}}`, payload.ReasonMalformed},
		{"other type", `{"type":"ticket","v":3,"data":{"id":1,"name":"a","email":"b"}}`, payload.ReasonShapeMismatch},
		{"fails latest schema", `{"type":"contact","v":3,"data":{"id":1,"name":"a"}}`, payload.ReasonShapeMismatch},
		{"wrong field type", `{"type":"contact","v":3,"data":{"id":"1","name":"a","email":"b"}}`, payload.ReasonShapeMismatch},
	}
	for _, tt := range failures {
		t.Run("Rejects "+tt.name, func(t *testing.T) {
			got, err := contacts.DecodeString(ctx, tt.data)
			var de *payload.DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *payload.DecodeError, got %v", err)
			}
			if de.Reason != tt.reason {
				t.Errorf("expected reason %s, got %s (%v)", tt.reason, de.Reason, err)
			}
			if got != (contact{}) {
				t.Errorf("expected zero value, got %+v", got)
			}
		})
	}

	t.Run("Unregistered type encodes without envelope", func(t *testing.T) {
		tickets := NewVersioned[contact](NewMemoryRegistry(), "ticket")
		text, err := tickets.Encode(ctx, contact{ID: 1, Name: "a", Email: "b"})
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if strings.Contains(text, `"type"`) {
			t.Errorf("expected plain payload, got %s", text)
		}
	})
}
