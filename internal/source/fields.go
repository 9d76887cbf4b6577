package source

import (
	"fmt"
	"reflect"
	"strings"
)

// StructFields builds fields that read the named struct fields of T (or *T).
// A name matches a field's Go name or its `fulltext:"..."` tag. Values are
// formatted with fmt; nil pointers read as the empty string. It panics if a
// name does not resolve, so misconfiguration fails at registration time.
func StructFields[T any](names ...string) []Field[T] {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	for typ.Kind() == reflect.Pointer {
		typ = typ.Elem()
	}
	if typ.Kind() != reflect.Struct {
		panic(fmt.Sprintf("StructFields: %s is not a struct", typ))
	}

	fields := make([]Field[T], 0, len(names))
	for _, name := range names {
		index := fieldIndex(typ, name)
		if index == nil {
			panic(fmt.Sprintf("StructFields: %s has no field %q", typ, name))
		}
		fields = append(fields, Field[T]{
			Name: name,
			Value: func(rec T) string {
				return fieldString(reflect.ValueOf(rec), index)
			},
		})
	}
	return fields
}

func fieldIndex(typ reflect.Type, name string) []int {
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		tag := strings.Split(f.Tag.Get("fulltext"), ",")[0]
		if f.Name == name || (tag != "" && tag == name) {
			return f.Index
		}
	}
	return nil
}

func fieldString(v reflect.Value, index []int) string {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	f := v.FieldByIndex(index)
	for f.Kind() == reflect.Pointer || f.Kind() == reflect.Interface {
		if f.IsNil() {
			return ""
		}
		f = f.Elem()
	}
	if s, ok := f.Interface().(fmt.Stringer); ok {
		return s.String()
	}
	return fmt.Sprint(f.Interface())
}
