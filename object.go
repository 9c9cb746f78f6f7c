package objtree

import (
	"fmt"
	"reflect"
)

// MissingTypePolicy configures the object factory's reaction to a parameter
// declared without a type descriptor.
type MissingTypePolicy int

const (
	// MissingTypeError fails the factory call. The default.
	MissingTypeError MissingTypePolicy = iota
	// MissingTypeAny treats the parameter as dynamic.
	MissingTypeAny
	// MissingTypeFromDefault infers a scalar descriptor from the declared
	// default value.
	MissingTypeFromDefault
)

// AttributeDefinition is the per-field plan derived once per object type.
// Exactly one of Provider/Converter supplies load-side values; Getter reads
// the value off an instance for dumping.
type AttributeDefinition struct {
	Name      string
	DataKey   string
	Aliases   []string
	InjectKey bool
	Leftovers bool
	Provider  Provider
	Converter Converter
	Getter    func(obj any) (any, bool)
}

// ObjectConverter maps a target constructor's parameters to data-tree keys.
// Attributes are processed in declaration order; input keys not matched by any
// attribute's key or aliases are collected and handed to attributes marked for
// leftovers.
type ObjectConverter struct {
	Target     string
	Attributes []AttributeDefinition

	// TargetType, when set, restricts Dump to values of that struct type
	// (or a pointer to it). Descriptors without a runtime type leave it
	// nil and Dump accepts whatever the getters can read.
	TargetType reflect.Type

	construct     func(Args) (any, error)
	dumpNilValues bool
	dataKeys      map[string]struct{}
}

// NewObjectConverter assembles an object converter. Normally reached through
// the factory, exported for callers composing converters by hand.
func NewObjectConverter(target string, construct func(Args) (any, error), attrs []AttributeDefinition, dumpNilValues bool) *ObjectConverter {
	keys := make(map[string]struct{})
	for _, a := range attrs {
		keys[a.DataKey] = struct{}{}
		for _, alias := range a.Aliases {
			keys[alias] = struct{}{}
		}
	}
	return &ObjectConverter{
		Target:        target,
		Attributes:    attrs,
		construct:     construct,
		dumpNilValues: dumpNilValues,
		dataKeys:      keys,
	}
}

func (c *ObjectConverter) Load(data, key any, ctx Context) (any, error) {
	if isNilValue(data) {
		return nil, &LoadError{Info: &ErrorInfo{
			Code:    CodeNoneLoad,
			Message: "cannot load a nil object",
			Target:  targetOf(key),
		}}
	}
	m, ok := data.(map[string]any)
	if !ok {
		return nil, &LoadError{Info: invalidTypeInfo("map", data, targetOf(key))}
	}

	args := make(Args, len(c.Attributes))
	for _, attr := range c.Attributes {
		raw, found := lookup(m, attr.DataKey, attr.Aliases)
		switch {
		case found && attr.Converter != nil:
			v, err := attr.Converter.Load(raw, attr.Name, ctx)
			if err != nil {
				return nil, wrapLoad(err,
					CodeAttrLoad,
					fmt.Sprintf("failed to load attribute %q of %s", attr.Name, c.Target),
					attr.Name)
			}
			args[attr.Name] = v
		case attr.Provider != nil:
			v, err := attr.Provider.Provide(ctx)
			if err != nil {
				return nil, wrapLoad(err,
					CodeAttrLoad,
					fmt.Sprintf("failed to provide attribute %q of %s", attr.Name, c.Target),
					attr.Name)
			}
			args[attr.Name] = v
		case attr.InjectKey && hasKey(key):
			args[attr.Name] = key
		default:
			// No value resolvable; the constructor applies its own default or
			// reports the missing argument.
		}
	}

	leftovers := make(map[string]any)
	for k, v := range m {
		if _, claimed := c.dataKeys[k]; !claimed {
			leftovers[k] = v
		}
	}
	for _, attr := range c.Attributes {
		if attr.Leftovers {
			args[attr.Name] = leftovers
		}
	}

	obj, err := c.construct(args)
	if err != nil {
		return nil, wrapLoad(err,
			CodeObjectLoad,
			"failed to load object",
			c.Target)
	}
	return obj, nil
}

func (c *ObjectConverter) Dump(obj any, ctx Context) (any, error) {
	if isNilValue(obj) {
		return nil, &DumpError{Info: &ErrorInfo{
			Code:    CodeNoneDump,
			Message: "expected object, got nil",
			Target:  c.Target,
		}}
	}
	if c.TargetType != nil {
		rt := reflect.TypeOf(obj)
		for rt.Kind() == reflect.Pointer {
			rt = rt.Elem()
		}
		if rt != c.TargetType {
			return nil, &DumpError{Info: invalidTypeInfo(c.Target, obj, c.Target)}
		}
	}
	data := make(map[string]any, len(c.Attributes))
	for _, attr := range c.Attributes {
		if attr.Getter == nil || attr.Converter == nil {
			// Load-only attribute, nothing to read.
			continue
		}
		v, ok := attr.Getter(obj)
		if !ok || !IsProvided(v) {
			continue
		}
		raw, err := attr.Converter.Dump(v, ctx)
		if err != nil {
			return nil, wrapDump(err,
				CodeAttributeDump,
				fmt.Sprintf("failed to dump attribute %q of %s", attr.Name, c.Target),
				attr.Name)
		}
		if raw == nil && !c.dumpNilValues {
			continue
		}
		data[attr.DataKey] = raw
	}
	return data, nil
}

// lookup finds a value by primary key, then aliases in declared order; the
// first hit wins.
func lookup(m map[string]any, key string, aliases []string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	for _, alias := range aliases {
		if v, ok := m[alias]; ok {
			return v, true
		}
	}
	return nil, false
}

// ObjectConverterFactory builds object converters from a descriptor's ordered
// parameter list.
type ObjectConverterFactory struct {
	MissingTypePolicy MissingTypePolicy
	DumpNilValues     bool
}

func (f *ObjectConverterFactory) TryCreateConverter(t *Type, ctx Context) (Converter, error) {
	if t.kind != KindObject {
		return nil, nil
	}
	attrs := make([]AttributeDefinition, 0, len(t.object.params))
	for _, p := range t.object.params {
		attr, err := f.buildAttribute(t, p, ctx)
		if err != nil {
			return nil, err
		}
		attrs = append(attrs, attr)
	}
	conv := NewObjectConverter(t.Name(), t.object.construct, attrs, f.DumpNilValues)
	conv.TargetType = t.rt
	return conv, nil
}

func (f *ObjectConverterFactory) buildAttribute(t *Type, p Param, ctx Context) (AttributeDefinition, error) {
	attr := AttributeDefinition{
		Name:      p.Name,
		DataKey:   p.Name,
		Aliases:   p.Aliases,
		InjectKey: p.InjectKey,
		Leftovers: p.Leftovers,
		Getter:    p.Getter,
	}
	if attr.Getter == nil && t.rt != nil {
		attr.Getter = structGetter(p.Name)
	}

	pt := p.Type
	if pt == nil {
		switch f.MissingTypePolicy {
		case MissingTypeAny:
			pt = Any
		case MissingTypeFromDefault:
			if !p.HasDefault {
				return attr, fmt.Errorf("objtree: parameter %q of %s has no type and no default to infer one from", p.Name, t.Name())
			}
			inferred, ok := scalarDescriptorOf(p.Default)
			if !ok {
				return attr, fmt.Errorf("objtree: cannot infer a descriptor for parameter %q of %s from default %T", p.Name, t.Name(), p.Default)
			}
			pt = inferred
		default:
			return attr, fmt.Errorf("objtree: missing type descriptor for parameter %q of %s", p.Name, t.Name())
		}
	}

	// A provider takes precedence over a converter for a given attribute.
	if provider, ok := ctx.GetProvider(pt); ok {
		attr.Provider = provider
		return attr, nil
	}
	conv, err := ctx.GetConverter(pt)
	if err != nil {
		return attr, err
	}
	attr.Converter = conv
	return attr, nil
}

// scalarDescriptorOf infers a scalar descriptor from a value's Go kind.
func scalarDescriptorOf(v any) (*Type, bool) {
	switch v.(type) {
	case bool:
		return Bool, true
	case string:
		return String, true
	case []byte:
		return Bytes, true
	case float32, float64:
		return Float, true
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return Int, true
	case nil:
		return None, true
	}
	rv := reflect.ValueOf(v)
	switch {
	case rv.IsValid() && rv.CanInt(), rv.IsValid() && rv.CanUint():
		return Int, true
	case rv.IsValid() && rv.Kind() == reflect.Float64 || rv.IsValid() && rv.Kind() == reflect.Float32:
		return Float, true
	case rv.IsValid() && rv.Kind() == reflect.String:
		return String, true
	}
	return nil, false
}
