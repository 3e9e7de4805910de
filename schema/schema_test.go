package schema_test

import (
	"encoding/json"
	"testing"

	"github.com/stevemurr/dashstate/schema"
)

func decode(t *testing.T, text string) any {
	t.Helper()
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		t.Fatal(err)
	}
	return v
}

func TestValidateNilSchema(t *testing.T) {
	if err := schema.Validate(nil, "anything"); err != nil {
		t.Fatalf("nil schema should pass: %v", err)
	}
}

func TestValidateRequired(t *testing.T) {
	s := map[string]any{
		"type":     "object",
		"required": []any{"id", "version"},
	}

	if err := schema.Validate(s, map[string]any{"id": "u1"}); err == nil {
		t.Fatal("expected error for missing 'version'")
	}
	if err := schema.Validate(s, map[string]any{"id": "u1", "version": "v1"}); err != nil {
		t.Fatalf("expected pass: %v", err)
	}
}

func TestValidateTypeList(t *testing.T) {
	s := map[string]any{"type": []any{"string", "null"}}

	for _, v := range []any{"x", nil} {
		if err := schema.Validate(s, v); err != nil {
			t.Fatalf("expected %v to pass: %v", v, err)
		}
	}
	if err := schema.Validate(s, float64(1)); err == nil {
		t.Fatal("expected number to fail")
	}
}

func TestValidateIntegerAcceptsWholeFloats(t *testing.T) {
	s := map[string]any{"type": "integer"}
	if err := schema.Validate(s, float64(3)); err != nil {
		t.Fatalf("expected pass: %v", err)
	}
	if err := schema.Validate(s, float64(3.5)); err == nil {
		t.Fatal("expected 3.5 to fail")
	}
}

func TestValidateNot(t *testing.T) {
	s := map[string]any{"not": map[string]any{"type": "null"}}
	if err := schema.Validate(s, nil); err == nil {
		t.Fatal("expected null to be rejected")
	}
	if err := schema.Validate(s, false); err != nil {
		t.Fatalf("expected false to pass: %v", err)
	}
}

func TestValidateAdditionalPropertiesSchema(t *testing.T) {
	s := map[string]any{
		"type":                 "object",
		"additionalProperties": map[string]any{"type": "string"},
	}
	if err := schema.Validate(s, map[string]any{"a": "x", "b": "y"}); err != nil {
		t.Fatalf("expected pass: %v", err)
	}
	if err := schema.Validate(s, map[string]any{"a": "x", "b": float64(1)}); err == nil {
		t.Fatal("expected error for non-string entry")
	}
}

func TestValidateAdditionalPropertiesFalse(t *testing.T) {
	s := map[string]any{
		"type":                 "object",
		"properties":           map[string]any{"name": map[string]any{"type": "string"}},
		"additionalProperties": false,
	}
	if err := schema.Validate(s, map[string]any{"name": "ok", "extra": "bad"}); err == nil {
		t.Fatal("expected error for additional properties")
	}
	if err := schema.Validate(s, map[string]any{"name": "ok"}); err != nil {
		t.Fatalf("expected pass: %v", err)
	}
}

func TestValidateMinLengthCountsRunes(t *testing.T) {
	s := map[string]any{"type": "string", "maxLength": float64(2)}
	if err := schema.Validate(s, "éé"); err != nil {
		t.Fatalf("expected two runes to pass: %v", err)
	}
}

func TestValidateNumberAndArrayBounds(t *testing.T) {
	s := map[string]any{
		"type":     "array",
		"maxItems": float64(2),
		"items":    map[string]any{"type": "number", "minimum": float64(0)},
	}
	if err := schema.Validate(s, []any{float64(1), float64(2), float64(3)}); err == nil {
		t.Fatal("expected error for too many items")
	}
	if err := schema.Validate(s, []any{float64(-1)}); err == nil {
		t.Fatal("expected error for below minimum")
	}
	if err := schema.Validate(s, []any{float64(0), float64(9)}); err != nil {
		t.Fatalf("expected pass: %v", err)
	}
}

func TestValidateEnum(t *testing.T) {
	s := map[string]any{"enum": []any{"active", "suspended"}}
	if err := schema.Validate(s, "active"); err != nil {
		t.Fatalf("expected pass: %v", err)
	}
	if err := schema.Validate(s, "deleted"); err == nil {
		t.Fatal("expected error for value outside enum")
	}
}

var updates = schema.Records(
	schema.Req("id", schema.String),
	schema.Req("version", schema.String),
	schema.Req("summary", schema.String),
)

func TestShapeAcceptsWellFormedRecords(t *testing.T) {
	v := decode(t, `[{"id":"u1","version":"v1","summary":"fix"}]`)
	if err := updates.Check(v); err != nil {
		t.Fatalf("expected pass: %v", err)
	}
	if err := updates.Check(decode(t, `[]`)); err != nil {
		t.Fatalf("empty sequence should pass: %v", err)
	}
}

func TestShapeRejectsMissingField(t *testing.T) {
	v := decode(t, `[{"id":"u1","version":"v1"}]`)
	if err := updates.Check(v); err == nil {
		t.Fatal("expected record without summary to fail")
	}
}

func TestShapeRejectsEmptyAndNullRequired(t *testing.T) {
	for _, text := range []string{
		`[{"id":"u1","version":"v1","summary":""}]`,
		`[{"id":"u1","version":"v1","summary":null}]`,
		`[{"id":1,"version":"v1","summary":"fix"}]`,
	} {
		if err := updates.Check(decode(t, text)); err == nil {
			t.Fatalf("expected %s to fail", text)
		}
	}
}

func TestShapeRejectsWrongContainer(t *testing.T) {
	for _, text := range []string{
		`{"u1":{"id":"u1","version":"v1","summary":"fix"}}`,
		`"[]"`,
		`null`,
		`42`,
		`[1, 2]`,
		`[null]`,
	} {
		if err := updates.Check(decode(t, text)); err == nil {
			t.Fatalf("expected %s to fail", text)
		}
	}
}

func TestShapeMapping(t *testing.T) {
	prefs := schema.Entries(
		schema.Req("theme", schema.String),
		schema.Opt("fontSize", schema.Integer),
	)
	if err := prefs.Check(decode(t, `{"alice":{"theme":"dark"},"bob":{"theme":"light","fontSize":14}}`)); err != nil {
		t.Fatalf("expected pass: %v", err)
	}
	if err := prefs.Check(decode(t, `{"alice":{"theme":"dark","fontSize":null}}`)); err != nil {
		t.Fatalf("optional field may be null: %v", err)
	}
	if err := prefs.Check(decode(t, `{"alice":{}}`)); err == nil {
		t.Fatal("expected entry without theme to fail")
	}
	if err := prefs.Check(decode(t, `[{"theme":"dark"}]`)); err == nil {
		t.Fatal("expected sequence to fail a mapping shape")
	}
}

func TestShapeRequiredAny(t *testing.T) {
	s := schema.Records(schema.Req("payload", schema.Any))
	if err := s.Check(decode(t, `[{"payload":{"nested":true}}]`)); err != nil {
		t.Fatalf("expected pass: %v", err)
	}
	if err := s.Check(decode(t, `[{"payload":null}]`)); err == nil {
		t.Fatal("expected null payload to fail")
	}
}

func TestShapeIsTotal(t *testing.T) {
	type odd struct{ X chan int }
	inputs := []any{nil, 3, "x", []string{"a"}, map[string]int{"a": 1}, odd{}, &odd{}, []any{map[string]any{"id": []any{}}}}
	for _, in := range inputs {
		func() {
			defer func() {
				if r := recover(); r != nil {
					t.Fatalf("Check panicked on %#v: %v", in, r)
				}
			}()
			if err := updates.Check(in); err == nil {
				t.Fatalf("expected %#v to fail", in)
			}
		}()
	}
}

func TestShapeRequired(t *testing.T) {
	s := schema.Records(schema.Req("id", schema.String), schema.Opt("note", schema.String), schema.Req("at", schema.String))
	got := s.Required()
	if len(got) != 2 || got[0] != "id" || got[1] != "at" {
		t.Fatalf("unexpected required fields %v", got)
	}
}
