// Package querymap provides the default query map encoder, flattening a
// struct into query entries using its field tags.
package querymap

import (
	"fmt"
	"reflect"
	"strings"
)

// Encoder flattens query objects. Maps with string keys pass through;
// structs are flattened field by field honoring `query` tags, falling back
// to `json` tags and then to the lower-cased field name. Nil pointer fields
// and fields tagged "-" are skipped. Slice values are kept as slices so the
// resolver can expand them element-wise.
type Encoder struct{}

// New creates an Encoder.
func New() *Encoder { return &Encoder{} }

// Encode flattens value into query entries.
func (e *Encoder) Encode(value interface{}) (map[string]interface{}, error) {
	rv := reflect.ValueOf(value)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return map[string]interface{}{}, nil
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("querymap: map keys must be strings, got %s", rv.Type().Key())
		}
		out := make(map[string]interface{}, rv.Len())
		for _, key := range rv.MapKeys() {
			out[key.String()] = rv.MapIndex(key).Interface()
		}
		return out, nil
	case reflect.Struct:
		return e.encodeStruct(rv)
	default:
		return nil, fmt.Errorf("querymap: cannot encode %s as a query map", rv.Kind())
	}
}

func (e *Encoder) encodeStruct(rv reflect.Value) (map[string]interface{}, error) {
	out := make(map[string]interface{})
	rt := rv.Type()
	for i := 0; i < rt.NumField(); i++ {
		field := rt.Field(i)
		if field.PkgPath != "" {
			// unexported
			continue
		}
		name, ok := fieldName(field)
		if !ok {
			continue
		}
		fv := rv.Field(i)
		if fv.Kind() == reflect.Ptr {
			if fv.IsNil() {
				continue
			}
			fv = fv.Elem()
		}
		out[name] = fv.Interface()
	}
	return out, nil
}

func fieldName(field reflect.StructField) (string, bool) {
	for _, key := range []string{"query", "json"} {
		tag, ok := field.Tag.Lookup(key)
		if !ok {
			continue
		}
		name := strings.Split(tag, ",")[0]
		if name == "-" {
			return "", false
		}
		if name != "" {
			return name, true
		}
	}
	return strings.ToLower(field.Name), true
}
