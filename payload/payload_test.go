package payload

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/wrapperspb"
	"syreclabs.com/go/faker"
)

func init() {
	faker.Seed(time.Now().UnixNano())
}

type record struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type address struct {
	Street string `json:"street"`
	City   string `json:"city"`
}

type contact struct {
	ID       int64             `json:"id"`
	Name     string            `json:"name"`
	Email    string            `json:"email,omitempty"`
	Score    float64           `json:"score"`
	Active   bool              `json:"active"`
	Tags     []string          `json:"tags"`
	Labels   map[string]string `json:"labels"`
	Home     address           `json:"home"`
	Work     *address          `json:"work"`
	Previous []address         `json:"previous"`
	Seen     time.Time         `json:"seen"`
}

// optString is an optional value that encodes as null when unset.
type optString struct {
	Value string
	Valid bool
}

func (o optString) MarshalJSON() ([]byte, error) {
	if !o.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(o.Value)
}

func (o *optString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = optString{}
		return nil
	}
	o.Valid = true
	return json.Unmarshal(data, &o.Value)
}

type withOpt struct {
	ID   int       `json:"id"`
	Nick optString `json:"nick"`
}

func randomContact() contact {
	c := contact{
		ID:     int64(faker.RandomInt(1, math.MaxInt32)),
		Name:   faker.Name().Name(),
		Score:  float64(faker.RandomInt(0, 10000)) / 4,
		Active: faker.RandomInt(0, 1) == 1,
		Tags:   []string{faker.Lorem().Word(), faker.Lorem().Word()},
		Labels: map[string]string{"note": faker.Lorem().String()},
		Home:   address{Street: faker.Lorem().Word(), City: faker.Lorem().Word()},
		Seen:   time.Unix(int64(faker.RandomInt(0, math.MaxInt32)), 0).UTC(),
	}
	if faker.RandomInt(0, 1) == 1 {
		c.Email = faker.Internet().Email()
		c.Work = &address{Street: faker.Lorem().Word(), City: faker.Lorem().Word()}
		c.Previous = []address{{Street: "old", City: faker.Lorem().Word()}}
	}
	return c
}

func TestJSONScenario(t *testing.T) {
	t.Run("Encode produces compact JSON", func(t *testing.T) {
		text, err := Encode(record{ID: 42, Name: "alice"})
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if text != `{"id":42,"name":"alice"}` {
			t.Errorf("unexpected payload %s", text)
		}
	})

	t.Run("Decode restores the record", func(t *testing.T) {
		got, err := Decode[record]([]byte(`{"id":42,"name":"alice"}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if diff := cmp.Diff(record{ID: 42, Name: "alice"}, got); diff != "" {
			t.Errorf("diff (-want +got):\n%s", diff)
		}
	})

	t.Run("Type mismatch is a decode error", func(t *testing.T) {
		_, err := Decode[record]([]byte(`{"id":"not-a-number","name":"alice"}`))
		if !errors.Is(err, ErrDecodeFailure) {
			t.Fatalf("expected ErrDecodeFailure, got %v", err)
		}
		if !errors.Is(err, ErrShapeMismatch) {
			t.Errorf("expected ErrShapeMismatch, got %v", err)
		}
	})
}

func TestDecodeFailures(t *testing.T) {
	tests := []struct {
		name   string
		data   []byte
		reason Reason
	}{
		{"empty input", []byte{}, ReasonEmpty},
		{"nil input", nil, ReasonEmpty},
		{"invalid UTF-8", []byte{0xff, 0xfe, 0xfd}, ReasonInvalidUTF8},
		{"truncated object", []byte(`{"id":42,`), ReasonMalformed},
		{"not JSON", []byte(`hello`), ReasonMalformed},
		{"trailing garbage", []byte(`{"id":1,"name":"a"} x`), ReasonMalformed},
		{"missing field", []byte(`{"id":42}`), ReasonShapeMismatch},
		{"array instead of object", []byte(`[1,2]`), ReasonShapeMismatch},
		{"top-level null", []byte(`null`), ReasonShapeMismatch},
		{"null for int", []byte(`{"id":null,"name":"a"}`), ReasonShapeMismatch},
		{"number for string", []byte(`{"id":1,"name":7}`), ReasonShapeMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode[record](tt.data)
			if err == nil {
				t.Fatalf("expected error, got %+v", got)
			}
			var de *DecodeError
			if !errors.As(err, &de) {
				t.Fatalf("expected *DecodeError, got %T", err)
			}
			if de.Reason != tt.reason {
				t.Errorf("expected reason %s, got %s (%v)", tt.reason, de.Reason, err)
			}
			if got != (record{}) {
				t.Errorf("expected zero value on failure, got %+v", got)
			}
		})
	}
}

func TestDecodeIntoKeepsValue(t *testing.T) {
	current := record{ID: 7, Name: "bob"}

	bad := [][]byte{
		nil,
		[]byte{0xc3, 0x28},
		[]byte(`{"id":"x","name":"alice"}`),
		[]byte(`{"name":"alice"}`),
		[]byte(`{`),
	}
	for _, data := range bad {
		if err := DecodeInto(data, &current); err == nil {
			t.Fatalf("expected error for %q", data)
		}
		if current != (record{ID: 7, Name: "bob"}) {
			t.Fatalf("value changed after failed decode of %q: %+v", data, current)
		}
	}

	if err := DecodeInto([]byte(`{"id":42,"name":"alice"}`), &current); err != nil {
		t.Fatalf("DecodeInto failed: %v", err)
	}
	if current != (record{ID: 42, Name: "alice"}) {
		t.Errorf("expected value to be replaced, got %+v", current)
	}
}

func TestShape(t *testing.T) {
	t.Run("Optional fields may be missing", func(t *testing.T) {
		data := []byte(`{"id":1,"name":"n","score":1,"active":true,"tags":null,"labels":{},"home":{"street":"s","city":"c"},"previous":[],"seen":"2024-01-02T03:04:05Z"}`)
		got, err := Decode[contact](data)
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got.Work != nil || got.Email != "" {
			t.Errorf("expected optional fields to stay empty, got %+v", got)
		}
	})

	t.Run("Nested missing field reports path", func(t *testing.T) {
		data := []byte(`{"id":1,"name":"n","score":1,"active":true,"tags":[],"labels":{},"home":{"street":"s"},"previous":[],"seen":"2024-01-02T03:04:05Z"}`)
		_, err := Decode[contact](data)
		if !errors.Is(err, ErrShapeMismatch) {
			t.Fatalf("expected ErrShapeMismatch, got %v", err)
		}
		if !strings.Contains(err.Error(), "home.city") {
			t.Errorf("expected path home.city in %q", err.Error())
		}
	})

	t.Run("Slice elements are checked", func(t *testing.T) {
		data := []byte(`{"id":1,"name":"n","score":1,"active":true,"tags":[],"labels":{},"home":{"street":"s","city":"c"},"previous":[{"street":"x"}],"seen":"2024-01-02T03:04:05Z"}`)
		_, err := Decode[contact](data)
		if !errors.Is(err, ErrShapeMismatch) {
			t.Fatalf("expected ErrShapeMismatch, got %v", err)
		}
		if !strings.Contains(err.Error(), "previous[0].city") {
			t.Errorf("expected path previous[0].city in %q", err.Error())
		}
	})

	t.Run("Unknown keys are ignored", func(t *testing.T) {
		got, err := Decode[record]([]byte(`{"id":1,"name":"a","extra":true}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got != (record{ID: 1, Name: "a"}) {
			t.Errorf("unexpected value %+v", got)
		}
	})

	t.Run("Embedded struct fields are promoted", func(t *testing.T) {
		type base struct {
			ID int `json:"id"`
		}
		type item struct {
			base
			Label string `json:"label"`
		}
		if _, err := Decode[item]([]byte(`{"label":"x"}`)); !errors.Is(err, ErrShapeMismatch) {
			t.Errorf("expected missing promoted id to fail, got %v", err)
		}
		got, err := Decode[item]([]byte(`{"id":3,"label":"x"}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got.ID != 3 || got.Label != "x" {
			t.Errorf("unexpected value %+v", got)
		}
	})

	t.Run("Self-decoding field accepts null", func(t *testing.T) {
		got, err := Decode[withOpt]([]byte(`{"id":1,"nick":null}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if diff := cmp.Diff(withOpt{ID: 1}, got); diff != "" {
			t.Errorf("unexpected value (-want +got):\n%s", diff)
		}
	})

	t.Run("Self-decoding top-level null", func(t *testing.T) {
		got, err := Decode[optString]([]byte(`null`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got.Valid {
			t.Errorf("expected unset value, got %+v", got)
		}
	})

	t.Run("Shallower field hides promoted field", func(t *testing.T) {
		type named struct {
			Name string `json:"name"`
		}
		type shadow struct {
			named
			Name string `json:"name,omitempty"`
		}
		text, err := Encode(shadow{})
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if text != `{}` {
			t.Fatalf("expected {}, got %s", text)
		}
		got, err := Decode[shadow]([]byte(text))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got != (shadow{}) {
			t.Errorf("unexpected value %+v", got)
		}
	})

	t.Run("Ambiguous promoted fields are ignored", func(t *testing.T) {
		type left struct {
			Code string `json:"code"`
		}
		type right struct {
			Code string `json:"code"`
		}
		type tie struct {
			left
			right
			ID int `json:"id"`
		}
		text, err := Encode(tie{ID: 1})
		if err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if text != `{"id":1}` {
			t.Fatalf("expected only id, got %s", text)
		}
		if _, err := Decode[tie]([]byte(text)); err != nil {
			t.Errorf("Decode failed: %v", err)
		}
	})

	t.Run("Tagged field wins at equal depth", func(t *testing.T) {
		type plain struct {
			Label string
		}
		type labelled struct {
			Text string `json:"Label"`
		}
		type both struct {
			plain
			labelled
		}
		if _, err := Decode[both]([]byte(`{}`)); !errors.Is(err, ErrShapeMismatch) {
			t.Errorf("expected the tagged field to be required, got %v", err)
		}
		got, err := Decode[both]([]byte(`{"Label":"x"}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got.labelled.Text != "x" || got.plain.Label != "" {
			t.Errorf("unexpected value %+v", got)
		}
	})

	t.Run("Null pointer target decodes to nil", func(t *testing.T) {
		got, err := Decode[*record]([]byte(`null`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got != nil {
			t.Errorf("expected nil, got %+v", got)
		}
	})

	t.Run("Pointer target", func(t *testing.T) {
		got, err := Decode[*record]([]byte(`{"id":5,"name":"p"}`))
		if err != nil {
			t.Fatalf("Decode failed: %v", err)
		}
		if got == nil || *got != (record{ID: 5, Name: "p"}) {
			t.Errorf("unexpected value %+v", got)
		}
	})
}

func TestEncodeFailures(t *testing.T) {
	t.Run("Channel is not representable", func(t *testing.T) {
		type withChan struct {
			C chan int `json:"c"`
		}
		_, err := Encode(withChan{C: make(chan int)})
		if !errors.Is(err, ErrEncodeFailure) || !errors.Is(err, ErrUnsupportedValue) {
			t.Errorf("expected unsupported value error, got %v", err)
		}
	})

	t.Run("NaN is not representable", func(t *testing.T) {
		_, err := Encode(math.NaN())
		if !errors.Is(err, ErrUnsupportedValue) {
			t.Errorf("expected unsupported value error, got %v", err)
		}
	})

	t.Run("Binary codec without armor", func(t *testing.T) {
		_, err := For[record](MsgPack{}).Encode(record{ID: 42, Name: "alice"})
		if !errors.Is(err, ErrNotText) {
			t.Errorf("expected ErrNotText, got %v", err)
		}
	})

	t.Run("Encode does not mutate the value", func(t *testing.T) {
		c := randomContact()
		before := c
		if _, err := Encode(c); err != nil {
			t.Fatalf("Encode failed: %v", err)
		}
		if diff := cmp.Diff(before, c); diff != "" {
			t.Errorf("value mutated:\n%s", diff)
		}
	})
}

func TestRoundTrip(t *testing.T) {
	codecs := []Codec{
		JSON{},
		Base64(MsgPack{}),
		Base64(CBOR{}),
		Base64(Zstd(JSON{})),
		Base64(Zstd(MsgPack{})),
	}

	for _, c := range codecs {
		t.Run(c.ContentType(), func(t *testing.T) {
			typed := For[contact](c)
			for i := 0; i < 25; i++ {
				want := randomContact()
				text, err := typed.Encode(want)
				if err != nil {
					t.Fatalf("Encode failed: %v", err)
				}
				got, err := typed.DecodeString(text)
				if err != nil {
					t.Fatalf("Decode failed: %v\npayload: %s", err, text)
				}
				if diff := cmp.Diff(want, got); diff != "" {
					t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
				}
			}
		})
	}

	t.Run("Self-encoding null field", func(t *testing.T) {
		for _, want := range []withOpt{
			{ID: 1},
			{ID: 2, Nick: optString{Value: faker.Internet().UserName(), Valid: true}},
		} {
			text, err := Encode(want)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got, err := Decode[withOpt]([]byte(text))
			if err != nil {
				t.Fatalf("Decode failed: %v\npayload: %s", err, text)
			}
			if diff := cmp.Diff(want, got); diff != "" {
				t.Errorf("round trip mismatch (-want +got):\n%s", diff)
			}
		}
	})
}

func TestBinaryCodecShape(t *testing.T) {
	for _, c := range []Codec{Base64(MsgPack{}), Base64(CBOR{})} {
		t.Run(c.ContentType(), func(t *testing.T) {
			partial, err := For[map[string]any](c).Encode(map[string]any{"id": 1})
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			if _, err := For[record](c).DecodeString(partial); !errors.Is(err, ErrShapeMismatch) {
				t.Errorf("expected ErrShapeMismatch, got %v", err)
			}
			if _, err := For[record](c).DecodeString("%%%"); !errors.Is(err, ErrMalformed) {
				t.Errorf("expected ErrMalformed, got %v", err)
			}
		})
	}
}

func TestProtoCodecs(t *testing.T) {
	for _, c := range []Codec{Base64(Proto{}), ProtoJSON{}} {
		t.Run(c.ContentType(), func(t *testing.T) {
			typed := For[*wrapperspb.StringValue](c)
			want := wrapperspb.String(faker.Lorem().String())

			text, err := typed.Encode(want)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			got, err := typed.DecodeString(text)
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if !proto.Equal(want, got) {
				t.Errorf("expected %v, got %v", want, got)
			}
		})
	}

	t.Run("Non-proto value", func(t *testing.T) {
		_, err := For[record](ProtoJSON{}).Encode(record{ID: 1})
		if !errors.Is(err, ErrUnsupportedValue) {
			t.Errorf("expected ErrUnsupportedValue, got %v", err)
		}
	})

	t.Run("Malformed proto payload", func(t *testing.T) {
		_, err := For[*wrapperspb.StringValue](ProtoJSON{}).DecodeString(`{"value":`)
		if !errors.Is(err, ErrMalformed) {
			t.Errorf("expected ErrMalformed, got %v", err)
		}
	})
}

func TestRegistry(t *testing.T) {
	t.Run("Built-in codecs are registered", func(t *testing.T) {
		for _, ct := range []string{
			"application/json",
			"application/protobuf+json",
			"application/msgpack+base64",
			"application/cbor+base64",
			"application/protobuf+base64",
			"application/json+zstd+base64",
		} {
			c, ok := Get(ct)
			if !ok {
				t.Errorf("expected %s to be registered", ct)
				continue
			}
			if c.ContentType() != ct {
				t.Errorf("expected content type %s, got %s", ct, c.ContentType())
			}
		}
	})

	t.Run("MustGet falls back to JSON", func(t *testing.T) {
		if c := MustGet("application/unknown"); c.ContentType() != "application/json" {
			t.Errorf("expected JSON fallback, got %s", c.ContentType())
		}
	})

	t.Run("ContentTypes is sorted", func(t *testing.T) {
		types := ContentTypes()
		for i := 1; i < len(types); i++ {
			if types[i-1] > types[i] {
				t.Fatalf("content types not sorted: %v", types)
			}
		}
	})
}

func TestConcurrentUse(t *testing.T) {
	typed := For[record](nil)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			want := record{ID: i, Name: faker.Name().FirstName()}
			text, err := typed.Encode(want)
			if err != nil {
				t.Errorf("Encode failed: %v", err)
				return
			}
			got, err := typed.DecodeString(text)
			if err != nil {
				t.Errorf("Decode failed: %v", err)
				return
			}
			if got != want {
				t.Errorf("expected %+v, got %+v", want, got)
			}
		}(i)
	}
	wg.Wait()
}

func TestReason(t *testing.T) {
	if ReasonShapeMismatch.String() != "shape_mismatch" {
		t.Errorf("unexpected string %s", ReasonShapeMismatch)
	}
	err := NewDecodeError("x", ReasonVersion, nil)
	if !errors.Is(err, ErrVersion) || !errors.Is(err, ErrDecodeFailure) {
		t.Errorf("expected version decode error, got %v", err)
	}
	if ReasonOf(err) != ReasonVersion {
		t.Errorf("expected ReasonVersion, got %s", ReasonOf(err))
	}
	if ReasonOf(errors.New("other")) != 0 {
		t.Error("expected 0 for foreign errors")
	}
}
