package objtree

import (
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/reoring/objtree/internal/reflectutil"
)

// derivedTypes memoizes struct derivation per reflect.Type so repeated
// StructOf calls hand back the same descriptor pointer (and therefore the same
// cached converter), and so self-referential structs terminate.
var derivedTypes sync.Map // reflect.Type -> *Type

// StructOf derives an object descriptor from a struct type: exported fields
// become parameters in declaration order, keyed by the objtree/json tag rule.
// Pointer fields map to optionals with a nil default; nested structs derive
// recursively, including self-references.
//
// Tag syntax: objtree:"name=price,alias=cost,alias=amount".
func StructOf[T any]() *Type {
	return deriveStruct(reflect.TypeOf((*T)(nil)).Elem())
}

func deriveStruct(rt reflect.Type) *Type {
	if cached, ok := derivedTypes.Load(rt); ok {
		return cached.(*Type)
	}
	t := &Type{
		kind:   KindObject,
		name:   rt.Name(),
		rt:     rt,
		object: &objectSpec{},
	}
	// Publish before walking fields so a self-referential field finds the
	// descriptor under construction instead of recursing forever.
	actual, loaded := derivedTypes.LoadOrStore(rt, t)
	if loaded {
		return actual.(*Type)
	}

	params := make([]Param, 0, rt.NumField())
	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}
		key := reflectutil.ResolveKey(sf)
		if key == "-" {
			continue
		}
		p := Param{
			Name:    key,
			Type:    deriveFieldType(sf.Type),
			Aliases: reflectutil.Aliases(sf),
		}
		if sf.Type.Kind() == reflect.Pointer {
			// Missing input loads pointer fields as nil rather than failing.
			p.Default = nil
			p.HasDefault = true
		}
		params = append(params, p)
	}
	t.object.params = params
	t.object.construct = structConstruct(rt, params)
	return t
}

var (
	timeType  = reflect.TypeOf(time.Time{})
	uuidType  = reflect.TypeOf(uuid.UUID{})
	bytesType = reflect.TypeOf([]byte(nil))
)

func deriveFieldType(rt reflect.Type) *Type {
	switch rt {
	case timeType:
		return Time
	case uuidType:
		return UUID
	case bytesType:
		return Bytes
	}
	switch rt.Kind() {
	case reflect.Bool:
		return Bool
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return Int
	case reflect.Float32, reflect.Float64:
		return Float
	case reflect.String:
		return String
	case reflect.Pointer:
		return Optional(deriveFieldType(rt.Elem()))
	case reflect.Slice, reflect.Array:
		return ListOf(deriveFieldType(rt.Elem()))
	case reflect.Map:
		return MapOf(deriveFieldType(rt.Key()), deriveFieldType(rt.Elem()))
	case reflect.Struct:
		return deriveStruct(rt)
	case reflect.Interface:
		return Any
	}
	return Any
}
