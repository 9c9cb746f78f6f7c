// Package reflectutil holds the reflect-backed plumbing shared by the object
// and collection converters: struct-field key resolution and tolerant value
// assignment.
package reflectutil

import (
	"fmt"
	"reflect"
	"strings"
)

// ResolveKey applies the repository-wide rule resolving a struct field's
// external key.
// Priority: objtree:"name=..." > json tag name > field name; "-" disables the
// field.
func ResolveKey(sf reflect.StructField) string {
	if gt := sf.Tag.Get("objtree"); gt != "" {
		for _, p := range strings.Split(gt, ",") {
			p = strings.TrimSpace(p)
			if strings.HasPrefix(p, "name=") {
				return strings.TrimPrefix(p, "name=")
			}
		}
	}
	if jt := sf.Tag.Get("json"); jt != "" {
		if jt == "-" {
			return "-"
		}
		if i := strings.IndexByte(jt, ','); i >= 0 {
			return jt[:i]
		}
		return jt
	}
	return sf.Name
}

// Aliases extracts alias=... entries from the objtree tag, in declared order.
func Aliases(sf reflect.StructField) []string {
	gt := sf.Tag.Get("objtree")
	if gt == "" {
		return nil
	}
	var out []string
	for _, p := range strings.Split(gt, ",") {
		p = strings.TrimSpace(p)
		if strings.HasPrefix(p, "alias=") {
			out = append(out, strings.TrimPrefix(p, "alias="))
		}
	}
	return out
}

// FieldByKey finds the exported struct field whose resolved key or Go name
// matches key case-insensitively.
func FieldByKey(rt reflect.Type, key string) (reflect.StructField, bool) {
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		rk := ResolveKey(sf)
		if rk == "-" {
			continue
		}
		if strings.EqualFold(rk, key) || strings.EqualFold(sf.Name, key) {
			return sf, true
		}
	}
	return reflect.StructField{}, false
}

// IsNil reports whether v is nil in any of the ways an interface value can be:
// the nil interface itself or a nil pointer/map/slice/chan/func inside one.
func IsNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// Assign stores v into dst, tolerating the shape differences conversion
// produces: numeric width changes, values behind pointers, []any into typed
// slices and map[string]any into typed maps.
func Assign(dst reflect.Value, v any) error {
	if !dst.CanSet() {
		return fmt.Errorf("cannot set value of type %s", dst.Type())
	}
	if IsNil(v) {
		switch dst.Kind() {
		case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Chan, reflect.Func:
			dst.SetZero()
			return nil
		}
		return fmt.Errorf("cannot assign nil to %s", dst.Type())
	}

	rv := reflect.ValueOf(v)
	if rv.Type().AssignableTo(dst.Type()) {
		dst.Set(rv)
		return nil
	}
	if convertible(rv.Type(), dst.Type()) {
		dst.Set(rv.Convert(dst.Type()))
		return nil
	}

	switch dst.Kind() {
	case reflect.Pointer:
		p := reflect.New(dst.Type().Elem())
		if err := Assign(p.Elem(), v); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	case reflect.Slice:
		if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
			return fmt.Errorf("cannot assign %T to %s", v, dst.Type())
		}
		out := reflect.MakeSlice(dst.Type(), rv.Len(), rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if err := Assign(out.Index(i), rv.Index(i).Interface()); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		dst.Set(out)
		return nil
	case reflect.Map:
		if rv.Kind() != reflect.Map {
			return fmt.Errorf("cannot assign %T to %s", v, dst.Type())
		}
		out := reflect.MakeMapWithSize(dst.Type(), rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k := reflect.New(dst.Type().Key()).Elem()
			if err := Assign(k, iter.Key().Interface()); err != nil {
				return err
			}
			mv := reflect.New(dst.Type().Elem()).Elem()
			if err := Assign(mv, iter.Value().Interface()); err != nil {
				return fmt.Errorf("key %v: %w", iter.Key(), err)
			}
			out.SetMapIndex(k, mv)
		}
		dst.Set(out)
		return nil
	case reflect.Interface:
		if rv.Type().Implements(dst.Type()) {
			dst.Set(rv)
			return nil
		}
	}
	// Value behind a pointer, e.g. Node into *Node handled above; the reverse,
	// *Node into Node, happens when a union member produced a pointer.
	if rv.Kind() == reflect.Pointer && !rv.IsNil() {
		return Assign(dst, rv.Elem().Interface())
	}
	return fmt.Errorf("cannot assign %T to %s", v, dst.Type())
}

// convertible restricts reflect convertibility to conversions that preserve
// meaning: numeric to numeric and same-kind named types. Blanket
// ConvertibleTo would also allow int->string rune conversions.
func convertible(from, to reflect.Type) bool {
	if !from.ConvertibleTo(to) {
		return false
	}
	if isNumeric(from.Kind()) && isNumeric(to.Kind()) {
		return true
	}
	return from.Kind() == to.Kind()
}

func isNumeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}
