package objtree_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	objtree "github.com/reoring/objtree"
)

func TestRegistry_ResolutionIsMemoized(t *testing.T) {
	reg := objtree.NewRegistry()
	lt := objtree.ListOf(objtree.Int)

	c1, err := reg.GetConverter(lt)
	require.NoError(t, err)
	c2, err := reg.GetConverter(lt)
	require.NoError(t, err)
	require.Same(t, c1, c2)
}

func TestRegistry_DistinctDescriptorsResolveIndependently(t *testing.T) {
	reg := objtree.NewRegistry()

	// Structurally identical descriptors are still distinct cache entries:
	// identity, not structure, is the key.
	c1, err := reg.GetConverter(objtree.ListOf(objtree.Int))
	require.NoError(t, err)
	c2, err := reg.GetConverter(objtree.ListOf(objtree.Int))
	require.NoError(t, err)
	require.NotSame(t, c1, c2)
}

func TestRegistry_UnresolvableDescriptor(t *testing.T) {
	reg := objtree.NewRegistry()

	_, err := reg.GetConverter(&objtree.Type{})
	var re *objtree.ResolutionError
	require.ErrorAs(t, err, &re)

	// A failed resolution is not cached and the descriptor is not stuck
	// in-flight: the same call fails the same way again.
	_, err = reg.GetConverter(&objtree.Type{})
	require.ErrorAs(t, err, &re)
}

type claimEverythingFactory struct {
	conv objtree.Converter
}

func (f *claimEverythingFactory) TryCreateConverter(t *objtree.Type, ctx objtree.Context) (objtree.Converter, error) {
	return f.conv, nil
}

func TestRegistry_PrependedFactoryWins(t *testing.T) {
	reg := objtree.NewRegistry()
	exact := objtree.ExactConverter{}
	reg.PrependFactory(&claimEverythingFactory{conv: exact})

	c, err := reg.GetConverter(objtree.ListOf(objtree.Int))
	require.NoError(t, err)
	require.Equal(t, exact, c)

	// Pre-registered converters still beat the chain: the cache is consulted
	// before any factory runs.
	c, err = reg.GetConverter(objtree.Int)
	require.NoError(t, err)
	require.IsType(t, &objtree.ScalarConverter{}, c)
}

func TestRegistry_AddConverterOverride(t *testing.T) {
	reg := objtree.NewRegistry()
	lt := objtree.ListOf(objtree.Int)
	reg.AddConverter(lt, objtree.ExactConverter{})

	got, err := reg.Load(lt, "passed through untouched")
	require.NoError(t, err)
	require.Equal(t, "passed through untouched", got)
}

type intProviderFactory struct{}

func (intProviderFactory) CanProvide(t *objtree.Type) bool {
	return t == objtree.Int
}

func (intProviderFactory) CreateProvider(t *objtree.Type, ctx objtree.Context) (objtree.Provider, error) {
	return objtree.ProviderFunc(func(ctx objtree.Context) (any, error) { return 99, nil }), nil
}

func TestRegistry_ProviderFactory(t *testing.T) {
	reg := objtree.NewRegistry()
	reg.AddProviderFactory(intProviderFactory{})

	p, ok := reg.GetProvider(objtree.Int)
	require.True(t, ok)
	v, err := p.Provide(reg)
	require.NoError(t, err)
	require.Equal(t, 99, v)

	// Loading an object whose attribute type has a provider takes the value
	// from the provider, ignoring input data.
	got, err := reg.Load(intAttrType, map[string]any{"attr": 1})
	require.NoError(t, err)
	require.Equal(t, IntAttr{Attr: 99}, got)
}

type Node struct {
	Value int
	Next  *Node
}

func nodeDescriptor() *objtree.Type {
	node := objtree.ObjectOf[Node]("Node",
		objtree.Field("value", objtree.Int))
	node.AddFields(
		objtree.Field("next", objtree.Optional(node), objtree.WithDefault(nil)))
	return node
}

func TestRegistry_RecursiveDescriptor(t *testing.T) {
	reg := objtree.NewRegistry(objtree.WithDumpNilValues(false))
	node := nodeDescriptor()

	got, err := reg.Load(node, map[string]any{
		"value": 1,
		"next": map[string]any{
			"value": 2,
			"next":  map[string]any{"value": 3},
		},
	})
	require.NoError(t, err)
	require.Equal(t, Node{Value: 1, Next: &Node{Value: 2, Next: &Node{Value: 3}}}, got)

	dumped, err := reg.DumpAs(node, got)
	require.NoError(t, err)
	require.Equal(t, map[string]any{
		"value": 1,
		"next": map[string]any{
			"value": 2,
			"next":  map[string]any{"value": 3},
		},
	}, dumped)
}

func TestRegistry_DeepRecursion(t *testing.T) {
	reg := objtree.NewRegistry(objtree.WithDumpNilValues(false))
	node := nodeDescriptor()

	const depth = 3000
	data := map[string]any{"value": depth}
	for i := depth - 1; i >= 1; i-- {
		data = map[string]any{"value": i, "next": data}
	}

	loaded, err := reg.Load(node, data)
	require.NoError(t, err)

	head := loaded.(Node)
	require.Equal(t, 1, head.Value)
	n := 1
	for cur := head.Next; cur != nil; cur = cur.Next {
		n++
	}
	require.Equal(t, depth, n)

	dumped, err := reg.DumpAs(node, head)
	require.NoError(t, err)
	require.Equal(t, data, dumped)
}

func TestRegistry_RuntimeDispatch(t *testing.T) {
	reg := objtree.NewRegistry()

	// Dump without a descriptor resolves through the runtime type index once
	// the descriptor has been seen.
	_, err := reg.GetConverter(intAttrType)
	require.NoError(t, err)

	out, err := reg.Dump(IntAttr{Attr: 4})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"attr": 4}, out)

	out, err = reg.Dump(&IntAttr{Attr: 4})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"attr": 4}, out)

	// Unknown runtime types fail resolution.
	type unregistered struct{ X int }
	_, err = reg.Dump(unregistered{X: 1})
	var re *objtree.ResolutionError
	require.ErrorAs(t, err, &re)
}
