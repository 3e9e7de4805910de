package schema

import "fmt"

// Kind is the container a collection's value must be.
type Kind int

const (
	// Sequence is a JSON array of records.
	Sequence Kind = iota
	// Mapping is a JSON object whose every entry is a record.
	Mapping
)

func (k Kind) String() string {
	switch k {
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// FieldType constrains a record field's JSON type.
type FieldType string

const (
	String  FieldType = "string"
	Number  FieldType = "number"
	Integer FieldType = "integer"
	Boolean FieldType = "boolean"
	// Any accepts every JSON type. Required Any fields must still be non-null.
	Any FieldType = ""
)

// Field declares one record field.
type Field struct {
	Name     string
	Type     FieldType
	Required bool
}

// Shape is the declarative schema of a collection: a container of records
// that each carry a fixed set of fields. Required fields must be present
// and non-null; required strings must also be non-empty. Fields not
// declared are allowed.
type Shape struct {
	Kind   Kind
	Fields []Field
}

// Req is shorthand for a required field.
func Req(name string, t FieldType) Field {
	return Field{Name: name, Type: t, Required: true}
}

// Opt is shorthand for an optional field.
func Opt(name string, t FieldType) Field {
	return Field{Name: name, Type: t}
}

// Records declares a sequence of records carrying the given fields.
func Records(fields ...Field) Shape {
	return Shape{Kind: Sequence, Fields: fields}
}

// Entries declares a mapping whose values carry the given fields.
func Entries(fields ...Field) Shape {
	return Shape{Kind: Mapping, Fields: fields}
}

// Required returns the names of the required fields, in declaration order.
func (s Shape) Required() []string {
	var names []string
	for _, f := range s.Fields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// JSONSchema compiles the shape to the schema document Validate accepts.
func (s Shape) JSONSchema() map[string]any {
	props := make(map[string]any, len(s.Fields))
	required := []any{}
	for _, f := range s.Fields {
		props[f.Name] = fieldSchema(f)
		if f.Required {
			required = append(required, f.Name)
		}
	}
	record := map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
	if s.Kind == Mapping {
		return map[string]any{
			"type":                 "object",
			"additionalProperties": record,
		}
	}
	return map[string]any{
		"type":  "array",
		"items": record,
	}
}

func fieldSchema(f Field) map[string]any {
	if f.Type == Any {
		if f.Required {
			return map[string]any{"not": map[string]any{"type": "null"}}
		}
		return map[string]any{}
	}
	if !f.Required {
		return map[string]any{"type": []any{string(f.Type), "null"}}
	}
	fs := map[string]any{"type": string(f.Type)}
	if f.Type == String {
		fs["minLength"] = float64(1)
	}
	return fs
}

// Check validates a decoded JSON value against the shape.
func (s Shape) Check(value any) error {
	return Validate(s.JSONSchema(), value)
}
