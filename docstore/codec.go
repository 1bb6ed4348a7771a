package docstore

import (
	"fmt"
	"reflect"
	"strings"
	"time"
)

// Encode converts a struct to a field map, using the "firestore" tag for
// field names. Untagged fields and fields tagged "-" are skipped.
func Encode(model interface{}) (map[string]interface{}, error) {
	v := reflect.ValueOf(model)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil, fmt.Errorf("encode: model must be a struct or pointer to a struct, got %T", model)
	}

	fields := make(map[string]interface{})
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := fieldName(t.Field(i))
		if name == "" {
			continue
		}
		fields[name] = v.Field(i).Interface()
	}
	return fields, nil
}

// Decode fills a struct from a field map, matching fields by their
// "firestore" tag. Numeric values are converted between the store's wire
// kinds (int64, float64) and the destination kind; missing fields leave the
// destination untouched.
func Decode(fields map[string]interface{}, dest interface{}) error {
	v := reflect.ValueOf(dest)
	if v.Kind() != reflect.Ptr || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("decode: dest must be a pointer to a struct, got %T", dest)
	}
	v = v.Elem()

	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		name := fieldName(t.Field(i))
		if name == "" {
			continue
		}
		raw, ok := fields[name]
		if !ok || raw == nil {
			continue
		}
		if err := assign(v.Field(i), raw); err != nil {
			return fmt.Errorf("decode field %q: %w", name, err)
		}
	}
	return nil
}

// SetIDField sets the "ID" field if it exists and is of type string.
func SetIDField(model interface{}, id string) {
	v := reflect.ValueOf(model)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	field := v.FieldByName("ID")
	if field.IsValid() && field.CanSet() && field.Kind() == reflect.String {
		field.SetString(id)
	}
}

func fieldName(f reflect.StructField) string {
	tag := f.Tag.Get("firestore")
	if tag == "" || tag == "-" {
		return ""
	}
	// Strip tag options like ",omitempty".
	if idx := strings.Index(tag, ","); idx >= 0 {
		tag = tag[:idx]
	}
	return tag
}

func assign(field reflect.Value, raw interface{}) error {
	if !field.CanSet() {
		return nil
	}
	rv := reflect.ValueOf(raw)
	if rv.Type().AssignableTo(field.Type()) {
		field.Set(rv)
		return nil
	}

	switch field.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		switch n := raw.(type) {
		case int:
			field.SetInt(int64(n))
			return nil
		case int64:
			field.SetInt(n)
			return nil
		case float64:
			field.SetInt(int64(n))
			return nil
		}
	case reflect.Float32, reflect.Float64:
		switch n := raw.(type) {
		case int:
			field.SetFloat(float64(n))
			return nil
		case int64:
			field.SetFloat(float64(n))
			return nil
		case float64:
			field.SetFloat(n)
			return nil
		}
	case reflect.String:
		if s, ok := raw.(string); ok {
			field.SetString(s)
			return nil
		}
	case reflect.Bool:
		if b, ok := raw.(bool); ok {
			field.SetBool(b)
			return nil
		}
	case reflect.Slice:
		if items, ok := raw.([]interface{}); ok {
			out := reflect.MakeSlice(field.Type(), len(items), len(items))
			for i, item := range items {
				if err := assign(out.Index(i), item); err != nil {
					return err
				}
			}
			field.Set(out)
			return nil
		}
	case reflect.Struct:
		if field.Type() == reflect.TypeOf(time.Time{}) {
			if ts, ok := raw.(time.Time); ok {
				field.Set(reflect.ValueOf(ts))
				return nil
			}
		}
		if nested, ok := raw.(map[string]interface{}); ok {
			return Decode(nested, field.Addr().Interface())
		}
	}
	return fmt.Errorf("cannot assign %T to %s", raw, field.Type())
}
