package objtree

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/reoring/objtree/internal/reflectutil"
)

// Kind is the closed variant tag of a type descriptor. Factories dispatch by
// pattern-matching on it rather than on open-ended runtime reflection.
type Kind int

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindBytes
	KindNone
	KindTime
	KindUUID
	KindAny
	KindList
	KindSet
	KindMap
	KindTuple
	KindUnion
	KindEnum
	KindLiteral
	KindObject
)

var kindNames = map[Kind]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindInt:     "int",
	KindFloat:   "float",
	KindString:  "string",
	KindBytes:   "bytes",
	KindNone:    "none",
	KindTime:    "time",
	KindUUID:    "uuid",
	KindAny:     "any",
	KindList:    "list",
	KindSet:     "set",
	KindMap:     "map",
	KindTuple:   "tuple",
	KindUnion:   "union",
	KindEnum:    "enum",
	KindLiteral: "literal",
	KindObject:  "object",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Type is an opaque descriptor identifying what to convert: a scalar, a
// generic instantiation ("list of X"), or an object target. Descriptors are
// compared by pointer identity, which is also the converter-cache key, so a
// recursive descriptor may reference itself.
type Type struct {
	kind    Kind
	name    string
	rt      reflect.Type // runtime Go type when derivable; nil otherwise
	elem    *Type        // List/Set element; Map value
	key     *Type        // Map key
	items   []*Type      // Tuple positions or Union members, in declared order
	literal any
	enum    *enumSpec
	object  *objectSpec
}

// Kind returns the variant tag (the generic origin of the descriptor).
func (t *Type) Kind() Kind { return t.kind }

// Name returns a human-readable name used in diagnostics.
func (t *Type) Name() string {
	if t == nil {
		return "<nil>"
	}
	if t.name != "" {
		return t.name
	}
	return t.kind.String()
}

// GoType returns the runtime Go type the descriptor maps to, or nil when no
// single runtime type is derivable (unions, tuples, function targets).
func (t *Type) GoType() reflect.Type { return t.rt }

// Elem returns the element descriptor of a list/set, or the value descriptor
// of a map.
func (t *Type) Elem() *Type { return t.elem }

// KeyType returns the key descriptor of a map.
func (t *Type) KeyType() *Type { return t.key }

// Args returns the generic argument descriptors in declared order.
func (t *Type) Args() []*Type {
	switch t.kind {
	case KindList, KindSet:
		return []*Type{t.elem}
	case KindMap:
		return []*Type{t.key, t.elem}
	case KindTuple, KindUnion:
		return t.items
	default:
		return nil
	}
}

// Params returns the ordered constructor parameter list of an object target.
func (t *Type) Params() []Param {
	if t.object == nil {
		return nil
	}
	return t.object.params
}

// Pre-built scalar descriptors. These are package-level singletons so pointer
// identity works as the cache key across call sites.
var (
	Bool   = &Type{kind: KindBool, name: "bool", rt: reflect.TypeOf(false)}
	Int    = &Type{kind: KindInt, name: "int", rt: reflect.TypeOf(int(0))}
	Float  = &Type{kind: KindFloat, name: "float", rt: reflect.TypeOf(float64(0))}
	String = &Type{kind: KindString, name: "string", rt: reflect.TypeOf("")}
	Bytes  = &Type{kind: KindBytes, name: "bytes", rt: reflect.TypeOf([]byte(nil))}
	None   = &Type{kind: KindNone, name: "none"}
	Time   = &Type{kind: KindTime, name: "time", rt: reflect.TypeOf(time.Time{})}
	UUID   = &Type{kind: KindUUID, name: "uuid", rt: reflect.TypeOf(uuid.UUID{})}
	Any    = &Type{kind: KindAny, name: "any"}
)

// ListOf returns a descriptor for an ordered sequence of elem.
func ListOf(elem *Type) *Type {
	t := &Type{kind: KindList, name: "list[" + elem.Name() + "]", elem: elem}
	if elem.rt != nil {
		t.rt = reflect.SliceOf(elem.rt)
	}
	return t
}

// SetOf returns a descriptor for an unordered collection of unique elems. The
// in-memory form is a map with struct{} values; the tree form is a list.
func SetOf(elem *Type) *Type {
	t := &Type{kind: KindSet, name: "set[" + elem.Name() + "]", elem: elem}
	if elem.rt != nil && elem.rt.Comparable() {
		t.rt = reflect.MapOf(elem.rt, reflect.TypeOf(struct{}{}))
	}
	return t
}

// MapOf returns a descriptor for a string-keyed mapping. Keys pass through
// unconverted; only values are converted.
func MapOf(key, value *Type) *Type {
	t := &Type{kind: KindMap, name: "map[" + key.Name() + "," + value.Name() + "]", key: key, elem: value}
	if key.rt != nil && value.rt != nil && key.rt.Comparable() {
		t.rt = reflect.MapOf(key.rt, value.rt)
	}
	return t
}

// TupleOf returns a descriptor for a fixed-arity heterogeneous sequence.
func TupleOf(items ...*Type) *Type {
	names := make([]string, len(items))
	for i, it := range items {
		names[i] = it.Name()
	}
	return &Type{kind: KindTuple, name: "tuple[" + strings.Join(names, ",") + "]", items: items}
}

// UnionOf returns a descriptor for an untagged union. Member order is
// significant: loads try members first to last and the first success wins.
func UnionOf(members ...*Type) *Type {
	names := make([]string, len(members))
	for i, m := range members {
		names[i] = m.Name()
	}
	return &Type{kind: KindUnion, name: "union[" + strings.Join(names, ",") + "]", items: members}
}

// Optional returns a descriptor accepting either t or nil, as a two-member
// union with t tried first.
func Optional(t *Type) *Type {
	u := UnionOf(t, None)
	u.name = "optional[" + t.Name() + "]"
	return u
}

// LiteralOf returns a descriptor matching exactly one constant value.
func LiteralOf(v any) *Type {
	return &Type{kind: KindLiteral, name: fmt.Sprintf("literal[%v]", v), literal: v}
}

// EnumValue is one enumerant: a name for diagnostics and the typed value whose
// underlying scalar appears in data form.
type EnumValue struct {
	Name  string
	Value any
}

type enumSpec struct {
	values []EnumValue
	flags  bool
}

// EnumOf returns a descriptor for an enumeration-by-value. values must share
// one underlying Go type.
func EnumOf(name string, values ...EnumValue) *Type {
	t := &Type{kind: KindEnum, name: name, enum: &enumSpec{values: values}}
	if len(values) > 0 {
		t.rt = reflect.TypeOf(values[0].Value)
	}
	return t
}

// FlagsOf returns a descriptor for a bitwise-combinable integer enumeration:
// loads accept any combination of the declared flag bits.
func FlagsOf(name string, values ...EnumValue) *Type {
	t := EnumOf(name, values...)
	t.enum.flags = true
	return t
}

// Param is the per-parameter plan of an object target: name, declared type,
// optional default, and the attribute configuration the object factory
// consumes.
type Param struct {
	Name       string
	Type       *Type
	Default    any
	HasDefault bool
	Aliases    []string // alternate data keys, in declared lookup order
	InjectKey  bool     // receive the enclosing collection key
	Leftovers  bool     // receive unmatched input fields
	Getter     func(obj any) (any, bool)
}

// ParamOption configures a Param built by Field.
type ParamOption func(*Param)

// Field declares one constructor parameter of an object target.
func Field(name string, t *Type, opts ...ParamOption) Param {
	p := Param{Name: name, Type: t}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithDefault sets the value applied when no data key, alias, provider, or
// injected key produced one.
func WithDefault(v any) ParamOption {
	return func(p *Param) {
		p.Default = v
		p.HasDefault = true
	}
}

// WithAlias adds an alternate lookup key. Repeatable; aliases are tried in
// declared order after the primary key.
func WithAlias(alias string) ParamOption {
	return func(p *Param) { p.Aliases = append(p.Aliases, alias) }
}

// WithInjectKey marks the parameter to receive the enclosing collection key.
func WithInjectKey() ParamOption {
	return func(p *Param) { p.InjectKey = true }
}

// WithLeftovers marks the parameter to receive a map of all input fields not
// matched by any parameter's key or aliases.
func WithLeftovers() ParamOption {
	return func(p *Param) { p.Leftovers = true }
}

// WithGetter overrides how the value is read off an instance when dumping.
func WithGetter(fn func(obj any) (any, bool)) ParamOption {
	return func(p *Param) { p.Getter = fn }
}

// WithFieldGetter reads the value from the named struct field instead of the
// field matching the parameter name.
func WithFieldGetter(field string) ParamOption {
	return WithGetter(structGetter(field))
}

// Args carries assembled constructor arguments keyed by parameter name.
type Args map[string]any

// Has reports whether the named argument was assembled.
func (a Args) Has(name string) bool {
	_, ok := a[name]
	return ok
}

// Get returns the named argument or nil.
func (a Args) Get(name string) any { return a[name] }

// GetOr returns the named argument, or def when absent.
func (a Args) GetOr(name string, def any) any {
	if v, ok := a[name]; ok {
		return v
	}
	return def
}

type objectSpec struct {
	params    []Param
	construct func(args Args) (any, error)
}

// ObjectOf returns a descriptor for a struct target T. Construction and the
// default per-attribute getters are reflect-backed: parameter names resolve to
// struct fields through the objtree/json tag rule.
func ObjectOf[T any](name string, fields ...Param) *Type {
	rt := reflect.TypeOf((*T)(nil)).Elem()
	if name == "" {
		name = rt.Name()
	}
	return &Type{
		kind: KindObject,
		name: name,
		rt:   rt,
		object: &objectSpec{
			params:    fields,
			construct: structConstruct(rt, fields),
		},
	}
}

// AddFields appends constructor parameters to an object descriptor after the
// fact, so a descriptor can reference itself in its own field types:
//
//	node := objtree.ObjectOf[Node]("Node")
//	node.AddFields(objtree.Field("next", objtree.Optional(node), objtree.WithDefault(nil)))
func (t *Type) AddFields(fields ...Param) *Type {
	t.object.params = append(t.object.params, fields...)
	if t.rt != nil {
		t.object.construct = structConstruct(t.rt, t.object.params)
	}
	return t
}

// ObjectFunc returns a descriptor for a callable target: construction goes
// through the supplied function and no runtime type is assumed, so dump-side
// attributes need explicit getters.
func ObjectFunc(name string, construct func(args Args) (any, error), fields ...Param) *Type {
	return &Type{
		kind: KindObject,
		name: name,
		object: &objectSpec{
			params:    fields,
			construct: construct,
		},
	}
}

// structConstruct builds the default reflect-backed constructor: every
// parameter must land on a struct field; parameters without an argument fall
// back to their declared default or fail, surfacing as object_load_error.
func structConstruct(rt reflect.Type, params []Param) func(Args) (any, error) {
	return func(args Args) (any, error) {
		pv := reflect.New(rt).Elem()
		for _, p := range params {
			v, ok := args[p.Name]
			if !ok {
				if !p.HasDefault {
					return nil, fmt.Errorf("missing required attribute %q", p.Name)
				}
				v = p.Default
			}
			sf, ok := reflectutil.FieldByKey(rt, p.Name)
			if !ok {
				return nil, fmt.Errorf("no field on %s for attribute %q", rt, p.Name)
			}
			if err := reflectutil.Assign(pv.FieldByIndex(sf.Index), v); err != nil {
				return nil, fmt.Errorf("attribute %q: %w", p.Name, err)
			}
		}
		return pv.Interface(), nil
	}
}

// structGetter is the default value getter: it reads the struct field that the
// attribute name resolves to, reporting absence instead of failing.
func structGetter(name string) func(any) (any, bool) {
	return func(obj any) (any, bool) {
		rv := reflect.ValueOf(obj)
		for rv.Kind() == reflect.Pointer {
			if rv.IsNil() {
				return nil, false
			}
			rv = rv.Elem()
		}
		if rv.Kind() != reflect.Struct {
			return nil, false
		}
		sf, ok := reflectutil.FieldByKey(rv.Type(), name)
		if !ok {
			return nil, false
		}
		return rv.FieldByIndex(sf.Index).Interface(), true
	}
}
