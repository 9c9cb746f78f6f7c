package objtree

import (
	"fmt"
	"reflect"

	"github.com/reoring/objtree/internal/reflectutil"
)

// Load converts a tree value into the typed form named by the descriptor.
func (r *Registry) Load(t *Type, data any) (any, error) {
	return r.LoadKeyed(t, data, NoKey)
}

// LoadKeyed is Load with an explicit enclosing collection key, feeding error
// targets and inject-key attributes.
func (r *Registry) LoadKeyed(t *Type, data, key any) (any, error) {
	c, err := r.GetConverter(t)
	if err != nil {
		return nil, err
	}
	return c.Load(data, key, r)
}

// Dump converts a typed value into its tree form, dispatching on the value's
// runtime type. Only descriptors that have been registered or resolved through
// this registry are dispatchable; use DumpAs for explicit control.
func (r *Registry) Dump(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	rt := reflect.TypeOf(v)
	t, ok := r.descriptorFor(rt)
	if !ok {
		return nil, &ResolutionError{TypeName: fmt.Sprintf("%s (runtime)", rt)}
	}
	return r.DumpAs(t, v)
}

// DumpAs converts a typed value into its tree form using an explicit
// descriptor.
func (r *Registry) DumpAs(t *Type, v any) (any, error) {
	c, err := r.GetConverter(t)
	if err != nil {
		return nil, err
	}
	return c.Dump(v, r)
}

// LoadAs is typed sugar over Registry.Load: it loads and asserts the result
// to T, going through the tolerant assignment rules when a direct assertion
// does not hold (e.g. loading into a pointer-typed T).
func LoadAs[T any](r *Registry, t *Type, data any) (T, error) {
	var zero T
	v, err := r.Load(t, data)
	if err != nil {
		return zero, err
	}
	if typed, ok := v.(T); ok {
		return typed, nil
	}
	if v == nil {
		return zero, nil
	}
	rt := reflect.TypeFor[T]()
	out := reflect.New(rt).Elem()
	if err := reflectutil.Assign(out, v); err != nil {
		return zero, &LoadError{Info: invalidTypeInfo(rt.String(), v, "")}
	}
	return out.Interface().(T), nil
}
