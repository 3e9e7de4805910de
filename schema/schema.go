// Package schema validates decoded JSON values against collection shapes.
//
// Shapes are declared with Shape and compiled to a JSON Schema (draft-07
// subset) that Validate evaluates. Validate is total: any value produced
// by encoding/json, or any Go value at all, yields either nil or an error
// and never panics.
package schema

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode/utf8"
)

// Validate checks a decoded value against a JSON Schema (draft-07 subset).
// Returns nil if validation passes or the schema is nil.
//
// Supported JSON Schema keywords:
//   - type (string or list of: string, number, integer, boolean, object, array, null)
//   - properties, required, additionalProperties (bool or schema)
//   - items (for arrays)
//   - minimum, maximum, exclusiveMinimum, exclusiveMaximum
//   - minLength, maxLength (counted in runes)
//   - minItems, maxItems
//   - enum, not
func Validate(schema map[string]any, value any) error {
	if schema == nil {
		return nil
	}
	return validateValue(schema, value, "$")
}

func validateValue(schema map[string]any, value any, path string) error {
	if t, ok := schema["type"]; ok {
		if err := checkType(t, value, path); err != nil {
			return err
		}
	}

	if enumRaw, ok := schema["enum"]; ok {
		if enumList, ok := enumRaw.([]any); ok {
			if err := checkEnum(enumList, value, path); err != nil {
				return err
			}
		}
	}

	if notRaw, ok := schema["not"]; ok {
		if notSchema, ok := notRaw.(map[string]any); ok {
			if validateValue(notSchema, value, path) == nil {
				return fmt.Errorf("%s: value matches a forbidden schema", path)
			}
		}
	}

	switch v := value.(type) {
	case map[string]any:
		return validateObject(schema, v, path)
	case []any:
		return validateArray(schema, v, path)
	case string:
		return validateString(schema, v, path)
	case float64:
		return validateNumber(schema, v, path)
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return fmt.Errorf("%s: invalid number %q", path, v.String())
		}
		return validateNumber(schema, f, path)
	}

	return nil
}

func checkType(raw any, value any, path string) error {
	var allowed []string
	switch t := raw.(type) {
	case string:
		allowed = []string{t}
	case []any:
		for _, e := range t {
			if s, ok := e.(string); ok {
				allowed = append(allowed, s)
			}
		}
	case []string:
		allowed = t
	default:
		return nil
	}
	actual := jsonType(value)
	for _, expected := range allowed {
		if typeMatches(expected, actual, value) {
			return nil
		}
	}
	return fmt.Errorf("%s: expected type %q, got %q", path, strings.Join(allowed, "|"), actual)
}

func typeMatches(expected, actual string, value any) bool {
	switch expected {
	case actual:
		return true
	case "integer":
		// Accept whole float64 values as decoded by encoding/json.
		if f, ok := value.(float64); ok {
			return f == float64(int64(f))
		}
		if n, ok := value.(json.Number); ok {
			_, err := n.Int64()
			return err == nil
		}
	case "number":
		return actual == "integer"
	}
	return false
}

func jsonType(v any) string {
	if v == nil {
		return "null"
	}
	switch v.(type) {
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, json.Number:
		return "number"
	case int, int64:
		return "integer"
	default:
		return reflect.TypeOf(v).String()
	}
}

func checkEnum(allowed []any, value any, path string) error {
	for _, a := range allowed {
		if reflect.DeepEqual(a, value) {
			return nil
		}
	}
	return fmt.Errorf("%s: value not in enum %v", path, allowed)
}

func validateObject(schema map[string]any, obj map[string]any, path string) error {
	if req, ok := schema["required"]; ok {
		for _, field := range stringList(req) {
			if _, exists := obj[field]; !exists {
				return fmt.Errorf("%s: missing required field %q", path, field)
			}
		}
	}

	propsMap, _ := schema["properties"].(map[string]any)
	// Walk fields in a stable order so error messages are deterministic.
	fields := make([]string, 0, len(propsMap))
	for field := range propsMap {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	for _, field := range fields {
		val, exists := obj[field]
		if !exists {
			continue
		}
		ps, ok := propsMap[field].(map[string]any)
		if !ok {
			continue
		}
		if err := validateValue(ps, val, path+"."+field); err != nil {
			return err
		}
	}

	switch ap := schema["additionalProperties"].(type) {
	case bool:
		if ap {
			break
		}
		var extra []string
		for field := range obj {
			if _, defined := propsMap[field]; !defined {
				extra = append(extra, field)
			}
		}
		if len(extra) > 0 {
			sort.Strings(extra)
			return fmt.Errorf("%s: additional properties not allowed: %s", path, strings.Join(extra, ", "))
		}
	case map[string]any:
		keys := make([]string, 0, len(obj))
		for field := range obj {
			if _, defined := propsMap[field]; !defined {
				keys = append(keys, field)
			}
		}
		sort.Strings(keys)
		for _, field := range keys {
			if err := validateValue(ap, obj[field], path+"."+field); err != nil {
				return err
			}
		}
	}

	return nil
}

func stringList(v any) []string {
	switch l := v.(type) {
	case []string:
		return l
	case []any:
		out := make([]string, 0, len(l))
		for _, e := range l {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func validateArray(schema map[string]any, arr []any, path string) error {
	if v, ok := toFloat(schema["minItems"]); ok {
		if float64(len(arr)) < v {
			return fmt.Errorf("%s: array length %d is less than minItems %v", path, len(arr), v)
		}
	}
	if v, ok := toFloat(schema["maxItems"]); ok {
		if float64(len(arr)) > v {
			return fmt.Errorf("%s: array length %d is greater than maxItems %v", path, len(arr), v)
		}
	}
	if itemSchema, ok := schema["items"].(map[string]any); ok {
		for i, elem := range arr {
			if err := validateValue(itemSchema, elem, fmt.Sprintf("%s[%d]", path, i)); err != nil {
				return err
			}
		}
	}
	return nil
}

func validateString(schema map[string]any, s string, path string) error {
	n := utf8.RuneCountInString(s)
	if v, ok := toFloat(schema["minLength"]); ok {
		if float64(n) < v {
			return fmt.Errorf("%s: string length %d is less than minLength %v", path, n, v)
		}
	}
	if v, ok := toFloat(schema["maxLength"]); ok {
		if float64(n) > v {
			return fmt.Errorf("%s: string length %d is greater than maxLength %v", path, n, v)
		}
	}
	return nil
}

func validateNumber(schema map[string]any, n float64, path string) error {
	if v, ok := toFloat(schema["minimum"]); ok && n < v {
		return fmt.Errorf("%s: %v is less than minimum %v", path, n, v)
	}
	if v, ok := toFloat(schema["maximum"]); ok && n > v {
		return fmt.Errorf("%s: %v is greater than maximum %v", path, n, v)
	}
	if v, ok := toFloat(schema["exclusiveMinimum"]); ok && n <= v {
		return fmt.Errorf("%s: %v is not greater than exclusiveMinimum %v", path, n, v)
	}
	if v, ok := toFloat(schema["exclusiveMaximum"]); ok && n >= v {
		return fmt.Errorf("%s: %v is not less than exclusiveMaximum %v", path, n, v)
	}
	return nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
