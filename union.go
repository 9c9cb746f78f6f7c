package objtree

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/reoring/objtree/internal/reflectutil"
)

// UnionConverter handles untagged unions: loads try members in declared order
// and the first success wins; dumps first attempt an exact-runtime-type
// dispatch, then fall back to the same ordered trial. Failures are aggregated
// rather than discarded, one child node per member.
type UnionConverter struct {
	Members []Converter

	// exact dispatches dumps by the value's runtime type. Members without a
	// derivable runtime type are simply absent and served by the ordered
	// fallback.
	exact map[reflect.Type]Converter
}

func (c *UnionConverter) Dump(v any, ctx Context) (any, error) {
	if rt := reflect.TypeOf(v); rt != nil {
		if m, ok := c.exact[rt]; ok {
			out, err := m.Dump(v, ctx)
			if err == nil {
				return out, nil
			}
			// Fall back to the ordered trial.
		}
	}
	var details []*ErrorInfo
	for _, m := range c.Members {
		out, err := m.Dump(v, ctx)
		if err == nil {
			return out, nil
		}
		if de, ok := AsDumpError(err); ok {
			details = append(details, de.Info)
			continue
		}
		return nil, err
	}
	return nil, &DumpError{Info: &ErrorInfo{
		Code:    CodeUnionDump,
		Message: "unable to dump union value: no suitable converter found",
		Details: details,
	}}
}

func (c *UnionConverter) Load(data, key any, ctx Context) (any, error) {
	var details []*ErrorInfo
	for _, m := range c.Members {
		v, err := m.Load(data, key, ctx)
		if err == nil {
			return v, nil
		}
		if le, ok := AsLoadError(err); ok {
			details = append(details, le.Info)
			continue
		}
		return nil, err
	}
	return nil, &LoadError{Info: &ErrorInfo{
		Code:    CodeUnionLoad,
		Message: "unable to load union value: no suitable converter found",
		Target:  targetOf(key),
		Details: details,
	}}
}

// UnionConverterFactory claims union descriptors.
type UnionConverterFactory struct{}

func (UnionConverterFactory) TryCreateConverter(t *Type, ctx Context) (Converter, error) {
	if t.kind != KindUnion {
		return nil, nil
	}
	members := make([]Converter, len(t.items))
	exact := make(map[reflect.Type]Converter, len(t.items))
	for i, mt := range t.items {
		m, err := ctx.GetConverter(mt)
		if err != nil {
			return nil, err
		}
		members[i] = m
		if mt.rt != nil {
			exact[mt.rt] = m
			if mt.rt.Kind() == reflect.Struct {
				exact[reflect.PointerTo(mt.rt)] = m
			}
		}
	}
	return &UnionConverter{Members: members, exact: exact}, nil
}

// DiscriminatedConverter dispatches a tagged union on an explicit tag field:
// O(1) in both directions, no trial-and-error. Loads read the tag and fail
// fast on unknown values; dumps look the runtime type up and merge the tag
// into the member's own output map.
type DiscriminatedConverter struct {
	Key string

	loadMap map[string]Converter
	dumpMap map[reflect.Type]discriminatedEntry
}

type discriminatedEntry struct {
	tag  string
	conv Converter
}

// NewDiscriminatedConverter assembles a converter from (tag, descriptor,
// member converter) triples.
func NewDiscriminatedConverter(key string, entries []DiscriminatedEntry) *DiscriminatedConverter {
	c := &DiscriminatedConverter{
		Key:     key,
		loadMap: make(map[string]Converter, len(entries)),
		dumpMap: make(map[reflect.Type]discriminatedEntry, len(entries)),
	}
	for _, e := range entries {
		c.loadMap[e.Tag] = e.Converter
		if e.Type.rt != nil {
			c.dumpMap[e.Type.rt] = discriminatedEntry{tag: e.Tag, conv: e.Converter}
			if e.Type.rt.Kind() == reflect.Struct {
				c.dumpMap[reflect.PointerTo(e.Type.rt)] = discriminatedEntry{tag: e.Tag, conv: e.Converter}
			}
		}
	}
	return c
}

// DiscriminatedEntry is one tagged variant of a discriminated union.
type DiscriminatedEntry struct {
	Tag       string
	Type      *Type
	Converter Converter
}

func (c *DiscriminatedConverter) Dump(v any, ctx Context) (any, error) {
	rt := reflect.TypeOf(v)
	entry, ok := c.dumpMap[rt]
	if !ok {
		return nil, &DumpError{Info: &ErrorInfo{
			Code:    CodeDiscriminatorUnknown,
			Message: fmt.Sprintf("cannot determine discriminator value for type %T", v),
		}}
	}
	out, err := entry.conv.Dump(v, ctx)
	if err != nil {
		return nil, err
	}
	m, ok := out.(map[string]any)
	if !ok {
		return nil, &DumpError{Info: invalidTypeInfo("map", out, "")}
	}
	m[c.Key] = entry.tag
	return m, nil
}

func (c *DiscriminatedConverter) Load(data, key any, ctx Context) (any, error) {
	m, _ := data.(map[string]any)
	tagValue, present := m[c.Key]
	if !present {
		return nil, &LoadError{Info: &ErrorInfo{
			Code:    CodeDiscriminatorMissing,
			Message: fmt.Sprintf("discriminator field %q missing", c.Key),
			Target:  targetOf(key),
		}}
	}
	tag, ok := tagValue.(string)
	if !ok {
		return nil, &LoadError{Info: &ErrorInfo{
			Code:    CodeDiscriminatorUnknown,
			Message: fmt.Sprintf("no converter registered for discriminator %s=%v", c.Key, tagValue),
			Target:  targetOf(key),
		}}
	}
	conv, ok := c.loadMap[tag]
	if !ok {
		return nil, &LoadError{Info: &ErrorInfo{
			Code:    CodeDiscriminatorUnknown,
			Message: fmt.Sprintf("no converter registered for discriminator %s=%q", c.Key, tag),
			Target:  targetOf(key),
		}}
	}
	return conv.Load(data, key, ctx)
}

// DiscriminatedConverterFactory layers tagged dispatch over another factory:
// prepended to the chain, it claims every descriptor that appears in its tag
// map and builds one shared DiscriminatedConverter over all variants. A
// variant the inner factory declines fails the whole build.
type DiscriminatedConverterFactory struct {
	// Mapping is discriminator value -> variant descriptor.
	Mapping map[string]*Type
	// Inner builds each variant's converter, typically an
	// ObjectConverterFactory.
	Inner ConverterFactory
	// Key is the tag field, "type" when empty.
	Key string
}

func (f *DiscriminatedConverterFactory) TryCreateConverter(t *Type, ctx Context) (Converter, error) {
	claimed := false
	for _, vt := range f.Mapping {
		if vt == t {
			claimed = true
			break
		}
	}
	if !claimed {
		return nil, nil
	}
	key := f.Key
	if key == "" {
		key = "type"
	}
	tags := make([]string, 0, len(f.Mapping))
	for tag := range f.Mapping {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	entries := make([]DiscriminatedEntry, 0, len(tags))
	for _, tag := range tags {
		vt := f.Mapping[tag]
		conv, err := f.Inner.TryCreateConverter(vt, ctx)
		if err != nil {
			return nil, err
		}
		if conv == nil {
			return nil, &ResolutionError{TypeName: vt.Name()}
		}
		entries = append(entries, DiscriminatedEntry{Tag: tag, Type: vt, Converter: conv})
	}
	return NewDiscriminatedConverter(key, entries), nil
}

// EnumConverter carries enumerants as their underlying scalar value.
type EnumConverter struct {
	t *Type
}

func (c *EnumConverter) Dump(v any, ctx Context) (any, error) {
	rv := reflect.ValueOf(v)
	switch {
	case rv.IsValid() && rv.CanInt():
		return int(rv.Int()), nil
	case rv.IsValid() && rv.CanUint():
		return int(rv.Uint()), nil
	case rv.IsValid() && rv.Kind() == reflect.String:
		return rv.String(), nil
	}
	return nil, &DumpError{Info: invalidTypeInfo(c.t.Name(), v, "")}
}

func (c *EnumConverter) Load(data, key any, ctx Context) (any, error) {
	for _, ev := range c.t.enum.values {
		if looseEqual(underlyingScalar(ev.Value), data) {
			return ev.Value, nil
		}
	}
	if c.t.enum.flags {
		if v, ok := c.loadFlags(data); ok {
			return v, nil
		}
	}
	return nil, &LoadError{Info: &ErrorInfo{
		Code:    CodeInvalidEnum,
		Message: fmt.Sprintf("%v is not a valid %s", data, c.t.Name()),
		Target:  targetOf(key),
	}}
}

// loadFlags accepts any integer whose bits are covered by the OR of all
// declared flag values.
func (c *EnumConverter) loadFlags(data any) (any, bool) {
	n, ok := asInt(data)
	if !ok {
		return nil, false
	}
	mask := 0
	for _, ev := range c.t.enum.values {
		b, ok := asInt(underlyingScalar(ev.Value))
		if !ok {
			return nil, false
		}
		mask |= b
	}
	if n&^mask != 0 {
		return nil, false
	}
	if c.t.rt == nil {
		return n, true
	}
	out := reflect.New(c.t.rt).Elem()
	if err := reflectutil.Assign(out, n); err != nil {
		return nil, false
	}
	return out.Interface(), true
}

// underlyingScalar strips a named enum type down to its plain int or string.
func underlyingScalar(v any) any {
	rv := reflect.ValueOf(v)
	switch {
	case rv.IsValid() && rv.CanInt():
		return int(rv.Int())
	case rv.IsValid() && rv.CanUint():
		return int(rv.Uint())
	case rv.IsValid() && rv.Kind() == reflect.String:
		return rv.String()
	}
	return v
}

// looseEqual compares scalars across numeric representations: 1, int64(1) and
// 1.0 are all equal.
func looseEqual(a, b any) bool {
	if a == b {
		return true
	}
	if ai, ok := asInt(a); ok {
		if bi, ok := asInt(b); ok {
			af, _ := asFloat(a)
			bf, _ := asFloat(b)
			return ai == bi && af == bf
		}
	}
	return false
}

// EnumConverterFactory claims enum descriptors.
type EnumConverterFactory struct{}

func (EnumConverterFactory) TryCreateConverter(t *Type, ctx Context) (Converter, error) {
	if t.kind != KindEnum {
		return nil, nil
	}
	return &EnumConverter{t: t}, nil
}

// LiteralConverter accepts exactly one constant value.
type LiteralConverter struct {
	Value any
}

func (c *LiteralConverter) Dump(v any, ctx Context) (any, error) { return v, nil }

func (c *LiteralConverter) Load(data, key any, ctx Context) (any, error) {
	if !looseEqual(c.Value, data) {
		return nil, &LoadError{Info: &ErrorInfo{
			Code:    CodeInvalidLiteral,
			Message: fmt.Sprintf("invalid literal value: expected %v, got %v", c.Value, data),
			Target:  targetOf(key),
		}}
	}
	return c.Value, nil
}

// LiteralConverterFactory claims literal descriptors.
type LiteralConverterFactory struct{}

func (LiteralConverterFactory) TryCreateConverter(t *Type, ctx Context) (Converter, error) {
	if t.kind != KindLiteral {
		return nil, nil
	}
	return &LiteralConverter{Value: t.literal}, nil
}
