package objtree

import (
	"fmt"

	"github.com/reoring/objtree/internal/reflectutil"
)

// notProvidedType is the sentinel distinguishing "value absent" from "value
// present but nil". It deliberately has a single value, NotProvided.
type notProvidedType struct{}

func (notProvidedType) String() string { return "<not provided>" }

// NotProvided marks an absent value: a data key that was never present, or an
// attribute a getter could not read.
var NotProvided any = notProvidedType{}

// noKeyType is the sentinel for "no collection key supplied" in Load calls.
type noKeyType struct{}

func (noKeyType) String() string { return "<no key>" }

// NoKey is passed as the key argument when a value is not being loaded out of
// any enclosing collection.
var NoKey any = noKeyType{}

// IsProvided reports whether v is a real value rather than the NotProvided
// sentinel.
func IsProvided(v any) bool {
	_, absent := v.(notProvidedType)
	return !absent
}

// isNilValue treats typed nil pointers inside interfaces the same as nil.
func isNilValue(v any) bool { return reflectutil.IsNil(v) }

// hasKey reports whether a real collection key was supplied to Load.
func hasKey(key any) bool {
	if key == nil {
		return false
	}
	_, noKey := key.(noKeyType)
	return !noKey
}

// targetOf renders a collection key as an error-path segment. NoKey renders
// empty.
func targetOf(key any) string {
	if key == nil {
		return ""
	}
	if _, ok := key.(noKeyType); ok {
		return ""
	}
	return fmt.Sprint(key)
}

// Context is the resolution surface converters see while converting. It is the
// read side of the Registry; converters request sub-converters through it
// (e.g. the element converter of a list).
type Context interface {
	// GetConverter resolves a converter for the descriptor, building it via
	// the factory chain on first use. It fails with *ResolutionError when no
	// factory claims the descriptor.
	GetConverter(t *Type) (Converter, error)
	// GetProvider looks up a provider for the descriptor, if any.
	GetProvider(t *Type) (Provider, bool)
}

// Converter converts between a generic tree value and a typed in-memory value
// for one type descriptor. Converters are built once and must not be mutated
// afterwards; Dump and Load are safe for concurrent use on a warmed-up
// registry.
type Converter interface {
	// Dump converts a typed value into its tree form.
	Dump(v any, ctx Context) (any, error)
	// Load converts a tree value into its typed form. key is the collection
	// key the value was found under (NoKey at the top level); it feeds error
	// targets and inject-key attributes.
	Load(data any, key any, ctx Context) (any, error)
}

// Provider supplies a value unconditionally from context rather than from
// input data; the dependency-injection escape hatch for attributes that are
// not derived from the serialized payload at all.
type Provider interface {
	Provide(ctx Context) (any, error)
}

// ProviderFunc adapts a plain function to the Provider interface.
type ProviderFunc func(ctx Context) (any, error)

func (f ProviderFunc) Provide(ctx Context) (any, error) { return f(ctx) }

// ConverterFactory is one strategy in the ordered factory chain. A factory
// declines a descriptor by returning (nil, nil); it may fail hard when it
// matches the descriptor's shape but the configuration forbids proceeding.
type ConverterFactory interface {
	TryCreateConverter(t *Type, ctx Context) (Converter, error)
}

// ProviderFactory builds providers on demand, mirroring ConverterFactory on
// the provider side.
type ProviderFactory interface {
	CanProvide(t *Type) bool
	CreateProvider(t *Type, ctx Context) (Provider, error)
}
