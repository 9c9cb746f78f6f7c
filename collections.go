package objtree

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/reoring/objtree/internal/reflectutil"
)

// ListConverter converts ordered sequences element-wise. When the element
// descriptor has a runtime type, loads produce a typed slice; otherwise []any.
type ListConverter struct {
	Item Converter

	rt reflect.Type // slice type to produce, nil for []any
}

func (c *ListConverter) Dump(v any, ctx Context) (any, error) {
	if isNilValue(v) {
		return nil, &DumpError{Info: &ErrorInfo{Code: CodeNoneDump, Message: "expected list, got nil"}}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, &DumpError{Info: invalidTypeInfo("list", v, "")}
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		dumped, err := c.Item.Dump(rv.Index(i).Interface(), ctx)
		if err != nil {
			return nil, wrapDump(err,
				CodeAttributeDump,
				fmt.Sprintf("failed to dump list element at index %d", i),
				fmt.Sprint(i))
		}
		out[i] = dumped
	}
	return out, nil
}

func (c *ListConverter) Load(data, key any, ctx Context) (any, error) {
	if isNilValue(data) {
		return nil, &LoadError{Info: &ErrorInfo{
			Code:    CodeNoneLoad,
			Message: "expected list, got nil",
			Target:  targetOf(key),
		}}
	}
	items, ok := asAnySlice(data)
	if !ok {
		return nil, &LoadError{Info: invalidTypeInfo("list", data, targetOf(key))}
	}
	loaded := make([]any, len(items))
	for i, item := range items {
		v, err := c.Item.Load(item, i, ctx)
		if err != nil {
			elem := wrapLoad(err,
				CodeListElementLoad,
				fmt.Sprintf("failed to load list element at index %d", i),
				fmt.Sprint(i))
			return nil, wrapLoad(elem, CodeListLoad, "failed to load list", targetOf(key))
		}
		loaded[i] = v
	}
	if c.rt == nil {
		return loaded, nil
	}
	out := reflect.MakeSlice(c.rt, len(loaded), len(loaded))
	for i, v := range loaded {
		if err := reflectutil.Assign(out.Index(i), v); err != nil {
			return nil, &LoadError{Info: invalidTypeInfo(c.rt.String(), v, fmt.Sprint(i))}
		}
	}
	return out.Interface(), nil
}

// SetConverter converts unordered unique collections. The tree form is a
// list; loads deduplicate by value equality and dumps emit elements sorted by
// their rendered form so output is deterministic.
type SetConverter struct {
	Item Converter

	rt reflect.Type // map[elem]struct{} type to produce, nil for map[any]struct{}
}

func (c *SetConverter) Dump(v any, ctx Context) (any, error) {
	if isNilValue(v) {
		return nil, &DumpError{Info: &ErrorInfo{Code: CodeNoneDump, Message: "expected set, got nil"}}
	}
	rv := reflect.ValueOf(v)
	var members []any
	switch rv.Kind() {
	case reflect.Map:
		iter := rv.MapRange()
		for iter.Next() {
			members = append(members, iter.Key().Interface())
		}
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			members = append(members, rv.Index(i).Interface())
		}
	default:
		return nil, &DumpError{Info: invalidTypeInfo("set", v, "")}
	}
	out := make([]any, 0, len(members))
	for _, m := range members {
		dumped, err := c.Item.Dump(m, ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, dumped)
	}
	sort.Slice(out, func(i, j int) bool {
		return fmt.Sprint(out[i]) < fmt.Sprint(out[j])
	})
	return out, nil
}

func (c *SetConverter) Load(data, key any, ctx Context) (any, error) {
	if isNilValue(data) {
		return nil, &LoadError{Info: &ErrorInfo{
			Code:    CodeNoneLoad,
			Message: "expected set, got nil",
			Target:  targetOf(key),
		}}
	}
	items, ok := asAnySlice(data)
	if !ok {
		return nil, &LoadError{Info: invalidTypeInfo("set", data, targetOf(key))}
	}
	if c.rt != nil {
		out := reflect.MakeMapWithSize(c.rt, len(items))
		for i, item := range items {
			v, err := c.Item.Load(item, i, ctx)
			if err != nil {
				return nil, err
			}
			k := reflect.New(c.rt.Key()).Elem()
			if err := reflectutil.Assign(k, v); err != nil {
				return nil, &LoadError{Info: invalidTypeInfo(c.rt.Key().String(), v, fmt.Sprint(i))}
			}
			out.SetMapIndex(k, reflect.ValueOf(struct{}{}))
		}
		return out.Interface(), nil
	}
	out := make(map[any]struct{}, len(items))
	for i, item := range items {
		v, err := c.Item.Load(item, i, ctx)
		if err != nil {
			return nil, err
		}
		// A loaded map or slice cannot be a set member; hashing it would
		// panic.
		if rt := reflect.TypeOf(v); rt != nil && !rt.Comparable() {
			return nil, &LoadError{Info: invalidTypeInfo("comparable set element", v, fmt.Sprint(i))}
		}
		out[v] = struct{}{}
	}
	return out, nil
}

// MapConverter converts mappings value-wise; keys pass through unconverted.
type MapConverter struct {
	Value Converter

	rt reflect.Type // map type to produce, nil for map[string]any
}

func (c *MapConverter) Dump(v any, ctx Context) (any, error) {
	if isNilValue(v) {
		return nil, &DumpError{Info: &ErrorInfo{Code: CodeNoneDump, Message: "expected map, got nil"}}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, &DumpError{Info: invalidTypeInfo("map", v, "")}
	}
	out := make(map[string]any, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		k := fmt.Sprint(iter.Key().Interface())
		dumped, err := c.Value.Dump(iter.Value().Interface(), ctx)
		if err != nil {
			return nil, wrapDump(err, CodeAttributeDump, "failed to dump map value", k)
		}
		out[k] = dumped
	}
	return out, nil
}

func (c *MapConverter) Load(data, key any, ctx Context) (any, error) {
	if isNilValue(data) {
		return nil, &LoadError{Info: &ErrorInfo{
			Code:    CodeNoneLoad,
			Message: "expected map, got nil",
			Target:  targetOf(key),
		}}
	}
	m, ok := data.(map[string]any)
	if !ok {
		return nil, &LoadError{Info: invalidTypeInfo("map", data, targetOf(key))}
	}
	loaded := make(map[string]any, len(m))
	for k, item := range m {
		v, err := c.Value.Load(item, k, ctx)
		if err != nil {
			inner := wrapLoad(err, CodeDictValueLoad, "failed to load map value", k)
			return nil, wrapLoad(inner, CodeDictLoad, "failed to load map", targetOf(key))
		}
		loaded[k] = v
	}
	if c.rt == nil {
		return loaded, nil
	}
	out := reflect.MakeMapWithSize(c.rt, len(loaded))
	for k, v := range loaded {
		kv := reflect.New(c.rt.Key()).Elem()
		if err := reflectutil.Assign(kv, k); err != nil {
			return nil, &LoadError{Info: invalidTypeInfo(c.rt.Key().String(), k, k)}
		}
		mv := reflect.New(c.rt.Elem()).Elem()
		if err := reflectutil.Assign(mv, v); err != nil {
			return nil, &LoadError{Info: invalidTypeInfo(c.rt.Elem().String(), v, k)}
		}
		out.SetMapIndex(kv, mv)
	}
	return out.Interface(), nil
}

// TupleConverter converts fixed-arity sequences with one converter per
// position.
type TupleConverter struct {
	Items []Converter
}

func (c *TupleConverter) Dump(v any, ctx Context) (any, error) {
	if isNilValue(v) {
		return nil, &DumpError{Info: &ErrorInfo{Code: CodeNoneDump, Message: "expected tuple, got nil"}}
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, &DumpError{Info: invalidTypeInfo("tuple", v, "")}
	}
	if rv.Len() != len(c.Items) {
		return nil, &DumpError{Info: &ErrorInfo{
			Code:    CodeInvalidTupleLen,
			Message: fmt.Sprintf("expected %d values in tuple, got %d", len(c.Items), rv.Len()),
		}}
	}
	out := make([]any, len(c.Items))
	for i, item := range c.Items {
		dumped, err := item.Dump(rv.Index(i).Interface(), ctx)
		if err != nil {
			return nil, err
		}
		out[i] = dumped
	}
	return out, nil
}

func (c *TupleConverter) Load(data, key any, ctx Context) (any, error) {
	if isNilValue(data) {
		return nil, &LoadError{Info: &ErrorInfo{
			Code:    CodeNoneLoad,
			Message: "expected tuple, got nil",
			Target:  targetOf(key),
		}}
	}
	items, ok := asAnySlice(data)
	if !ok {
		return nil, &LoadError{Info: invalidTypeInfo("tuple", data, targetOf(key))}
	}
	if len(items) != len(c.Items) {
		return nil, &LoadError{Info: &ErrorInfo{
			Code:    CodeInvalidTupleLen,
			Message: fmt.Sprintf("expected %d values in tuple, got %d", len(c.Items), len(items)),
			Target:  targetOf(key),
		}}
	}
	out := make([]any, len(items))
	for i, item := range items {
		v, err := c.Items[i].Load(item, i, ctx)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// asAnySlice views data as []any, reflecting over typed slices when needed.
func asAnySlice(data any) ([]any, bool) {
	if items, ok := data.([]any); ok {
		return items, true
	}
	rv := reflect.ValueOf(data)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

// ListConverterFactory claims list descriptors.
type ListConverterFactory struct{}

func (ListConverterFactory) TryCreateConverter(t *Type, ctx Context) (Converter, error) {
	if t.kind != KindList {
		return nil, nil
	}
	item, err := ctx.GetConverter(t.elem)
	if err != nil {
		return nil, err
	}
	return &ListConverter{Item: item, rt: t.rt}, nil
}

// SetConverterFactory claims set descriptors.
type SetConverterFactory struct{}

func (SetConverterFactory) TryCreateConverter(t *Type, ctx Context) (Converter, error) {
	if t.kind != KindSet {
		return nil, nil
	}
	item, err := ctx.GetConverter(t.elem)
	if err != nil {
		return nil, err
	}
	return &SetConverter{Item: item, rt: t.rt}, nil
}

// MapConverterFactory claims map descriptors.
type MapConverterFactory struct{}

func (MapConverterFactory) TryCreateConverter(t *Type, ctx Context) (Converter, error) {
	if t.kind != KindMap {
		return nil, nil
	}
	value, err := ctx.GetConverter(t.elem)
	if err != nil {
		return nil, err
	}
	return &MapConverter{Value: value, rt: t.rt}, nil
}

// TupleConverterFactory claims tuple descriptors.
type TupleConverterFactory struct{}

func (TupleConverterFactory) TryCreateConverter(t *Type, ctx Context) (Converter, error) {
	if t.kind != KindTuple {
		return nil, nil
	}
	items := make([]Converter, len(t.items))
	for i, it := range t.items {
		c, err := ctx.GetConverter(it)
		if err != nil {
			return nil, err
		}
		items[i] = c
	}
	return &TupleConverter{Items: items}, nil
}
