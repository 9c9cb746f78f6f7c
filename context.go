package objtree

import (
	"reflect"
	"sync"

	"github.com/rs/zerolog"
)

// Registry owns the memoized converter cache, the ordered factory chain, the
// provider registry, and the in-flight resolution stack used for cycle
// detection. Construction pre-seeds the scalar converters; resolution happens
// lazily on first use and results live for the lifetime of the registry.
//
// Resolution is not synchronized: confine a registry to one goroutine while
// converters are still being built, or warm it up first. Once resolved,
// converters are safe for concurrent read-only use.
type Registry struct {
	converters        map[*Type]Converter
	factories         []ConverterFactory
	providers         map[*Type]Provider
	providerFactories []ProviderFactory

	// inflight holds descriptors currently walking the factory chain; hits
	// produce proxy converters so recursive types terminate.
	inflight map[*Type]struct{}

	// runtime indexes descriptors by their Go type for dump-side dispatch.
	runtime map[reflect.Type]*Type

	anyConverter Converter
	logger       zerolog.Logger

	anyLoadPolicy     AnyLoadPolicy
	anyDumpPolicy     AnyDumpPolicy
	dumpNilValues     bool
	missingTypePolicy MissingTypePolicy
}

// Option configures a Registry at construction.
type Option func(*Registry)

// WithLogger attaches a zerolog logger; the registry emits debug events on
// converter resolution and registration. Default is a no-op logger.
func WithLogger(l zerolog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// WithFactories replaces the default factory chain. Order is precedence:
// the first factory that produces a converter wins.
func WithFactories(factories ...ConverterFactory) Option {
	return func(r *Registry) { r.factories = factories }
}

// WithAnyPolicies configures how the dynamic/any descriptor behaves in each
// direction.
func WithAnyPolicies(load AnyLoadPolicy, dump AnyDumpPolicy) Option {
	return func(r *Registry) {
		r.anyLoadPolicy = load
		r.anyDumpPolicy = dump
	}
}

// WithDumpNilValues controls whether object attributes whose dumped value is
// nil keep their key in the output. Default true.
func WithDumpNilValues(dump bool) Option {
	return func(r *Registry) { r.dumpNilValues = dump }
}

// WithMissingTypePolicy configures the object factory's reaction to
// parameters declared without a type descriptor. Default MissingTypeError.
func WithMissingTypePolicy(p MissingTypePolicy) Option {
	return func(r *Registry) { r.missingTypePolicy = p }
}

// NewRegistry builds a registry with the default factory chain and the scalar
// converters pre-registered.
func NewRegistry(opts ...Option) *Registry {
	r := &Registry{
		converters:    make(map[*Type]Converter),
		providers:     make(map[*Type]Provider),
		inflight:      make(map[*Type]struct{}),
		runtime:       make(map[reflect.Type]*Type),
		logger:        zerolog.Nop(),
		anyLoadPolicy: AnyLoadAsIs,
		anyDumpPolicy: AnyDumpAsIs,
		dumpNilValues: true,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.factories == nil {
		r.factories = DefaultFactories(r.missingTypePolicy, r.dumpNilValues)
	}
	r.anyConverter = &AnyConverter{LoadPolicy: r.anyLoadPolicy, DumpPolicy: r.anyDumpPolicy}

	r.AddConverter(Int, &ScalarConverter{Kind: KindInt})
	r.AddConverter(Float, &ScalarConverter{Kind: KindFloat})
	r.AddConverter(String, &ScalarConverter{Kind: KindString})
	r.AddConverter(Bool, &ScalarConverter{Kind: KindBool})
	r.AddConverter(Bytes, &BytesConverter{})
	r.AddConverter(None, &NoneConverter{})
	r.AddConverter(Time, &TimestampConverter{})
	r.AddConverter(UUID, &UUIDConverter{})
	return r
}

// DefaultFactories returns the default chain in precedence order. Callers
// layering overrides (e.g. a discriminated-union factory) prepend to it.
func DefaultFactories(missing MissingTypePolicy, dumpNilValues bool) []ConverterFactory {
	return []ConverterFactory{
		&TupleConverterFactory{},
		&ListConverterFactory{},
		&MapConverterFactory{},
		&SetConverterFactory{},
		&EnumConverterFactory{},
		&ObjectConverterFactory{MissingTypePolicy: missing, DumpNilValues: dumpNilValues},
		&UnionConverterFactory{},
		&LiteralConverterFactory{},
	}
}

// AddConverter pre-registers a converter for a descriptor, bypassing the
// factory chain. Used for scalar and leaf types at construction and as the
// caller-facing override hook.
func (r *Registry) AddConverter(t *Type, c Converter) {
	r.converters[t] = c
	if t.rt != nil {
		r.runtime[t.rt] = t
	}
	r.logger.Debug().Str("type", t.Name()).Msg("converter registered")
}

// AddProvider registers a provider for a descriptor. Providers take precedence
// over converters when object attributes resolve.
func (r *Registry) AddProvider(t *Type, p Provider) {
	r.providers[t] = p
}

// AddProviderFactory appends a provider factory.
func (r *Registry) AddProviderFactory(f ProviderFactory) {
	r.providerFactories = append(r.providerFactories, f)
}

// PrependFactory puts a factory in front of the chain, giving it precedence
// over every default strategy.
func (r *Registry) PrependFactory(f ConverterFactory) {
	r.factories = append([]ConverterFactory{f}, r.factories...)
}

// AppendFactory puts a factory behind the chain as a fallback.
func (r *Registry) AppendFactory(f ConverterFactory) {
	r.factories = append(r.factories, f)
}

// GetConverter resolves a converter for the descriptor: cache first, then a
// walk of the factory chain in registration order. A descriptor already
// in-flight (a recursive type mid-construction) yields a proxy converter that
// defers the real lookup until first use.
func (r *Registry) GetConverter(t *Type) (Converter, error) {
	if t == nil {
		return nil, &ResolutionError{TypeName: "<nil>"}
	}
	// The any descriptor short-circuits to the policy-bearing converter and
	// never touches the cache.
	if t.kind == KindAny {
		return r.anyConverter, nil
	}
	if c, ok := r.converters[t]; ok {
		return c, nil
	}
	if _, busy := r.inflight[t]; busy {
		return &proxyConverter{t: t}, nil
	}
	r.inflight[t] = struct{}{}
	defer delete(r.inflight, t)

	for _, f := range r.factories {
		c, err := f.TryCreateConverter(t, r)
		if err != nil {
			return nil, err
		}
		if c != nil {
			r.converters[t] = c
			if t.rt != nil {
				r.runtime[t.rt] = t
			}
			r.logger.Debug().
				Str("type", t.Name()).
				Str("factory", reflect.TypeOf(f).String()).
				Msg("converter resolved")
			return c, nil
		}
	}
	r.logger.Debug().Str("type", t.Name()).Msg("no factory claimed type")
	return nil, &ResolutionError{TypeName: t.Name()}
}

// GetProvider looks up a provider for the descriptor, consulting and
// memoizing provider factories.
func (r *Registry) GetProvider(t *Type) (Provider, bool) {
	if p, ok := r.providers[t]; ok {
		return p, true
	}
	for _, f := range r.providerFactories {
		if f.CanProvide(t) {
			p, err := f.CreateProvider(t, r)
			if err != nil || p == nil {
				return nil, false
			}
			r.providers[t] = p
			return p, true
		}
	}
	return nil, false
}

// descriptorFor maps a runtime Go type back to a registered descriptor for
// dump-side dispatch, unwrapping one level of pointer.
func (r *Registry) descriptorFor(rt reflect.Type) (*Type, bool) {
	if t, ok := r.runtime[rt]; ok {
		return t, true
	}
	if rt != nil && rt.Kind() == reflect.Pointer {
		if t, ok := r.runtime[rt.Elem()]; ok {
			return t, true
		}
	}
	return nil, false
}

// proxyConverter breaks resolution cycles: created when a descriptor is
// requested while its own factory call is still on the stack. The first real
// use resolves the genuine converter, which by then is fully constructed, and
// rebinds permanently. The rebind goes through sync.Once so a registry warmed
// up concurrently stays safe.
type proxyConverter struct {
	t    *Type
	once sync.Once
	conv Converter
	err  error
}

func (p *proxyConverter) resolve(ctx Context) (Converter, error) {
	p.once.Do(func() {
		p.conv, p.err = ctx.GetConverter(p.t)
	})
	return p.conv, p.err
}

func (p *proxyConverter) Dump(v any, ctx Context) (any, error) {
	c, err := p.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return c.Dump(v, ctx)
}

func (p *proxyConverter) Load(data any, key any, ctx Context) (any, error) {
	c, err := p.resolve(ctx)
	if err != nil {
		return nil, err
	}
	return c.Load(data, key, ctx)
}
