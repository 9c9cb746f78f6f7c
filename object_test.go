package objtree_test

import (
	"errors"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"

	objtree "github.com/reoring/objtree"
)

type EmptyObject struct{}

type IntAttr struct {
	Attr int
}

type DefaultAttr struct {
	Attr int
}

type OptionalAttr struct {
	Attr *int
}

type NestedObject struct {
	Attr IntAttr
}

var (
	emptyType = objtree.ObjectOf[EmptyObject]("EmptyObject")

	intAttrType = objtree.ObjectOf[IntAttr]("IntAttr",
		objtree.Field("attr", objtree.Int))

	defaultAttrType = objtree.ObjectOf[DefaultAttr]("DefaultAttr",
		objtree.Field("attr", objtree.Int, objtree.WithDefault(42)))

	optionalAttrType = objtree.ObjectOf[OptionalAttr]("OptionalAttr",
		objtree.Field("attr", objtree.Optional(objtree.Int)))

	nestedType = objtree.ObjectOf[NestedObject]("NestedObject",
		objtree.Field("attr", intAttrType))
)

func intPtr(v int) *int { return &v }

func TestObjectConverter_Load(t *testing.T) {
	cases := []struct {
		name string
		typ  *objtree.Type
		data any
		want any
	}{
		{"empty object", emptyType, map[string]any{}, EmptyObject{}},
		{"int attr", intAttrType, map[string]any{"attr": 1}, IntAttr{Attr: 1}},
		{"int attr from float", intAttrType, map[string]any{"attr": 1.0}, IntAttr{Attr: 1}},
		{"unused keys ignored", intAttrType, map[string]any{"attr": 1, "not_used": "kek"}, IntAttr{Attr: 1}},
		{"default overridden", defaultAttrType, map[string]any{"attr": 1}, DefaultAttr{Attr: 1}},
		{"default applied", defaultAttrType, map[string]any{}, DefaultAttr{Attr: 42}},
		{"optional nil", optionalAttrType, map[string]any{"attr": nil}, OptionalAttr{Attr: nil}},
		{"optional set", optionalAttrType, map[string]any{"attr": 1}, OptionalAttr{Attr: intPtr(1)}},
		{"nested", nestedType, map[string]any{"attr": map[string]any{"attr": 1}}, NestedObject{Attr: IntAttr{Attr: 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := objtree.NewRegistry()
			got, err := reg.Load(tc.typ, tc.data)
			require.NoError(t, err)
			require.Equal(t, tc.want, got, spew.Sdump(got))
		})
	}
}

func TestObjectConverter_LoadInvalid(t *testing.T) {
	cases := []struct {
		name string
		typ  *objtree.Type
		data any
	}{
		{"missing required", intAttrType, map[string]any{}},
		{"missing optional without default", optionalAttrType, map[string]any{}},
		{"nil data", intAttrType, nil},
		{"wrong data type", intAttrType, "wrong type"},
		{"wrong attr type", intAttrType, map[string]any{"attr": "not int"}},
		{"nested wrong attr", nestedType, map[string]any{"attr": "not obj"}},
		{"nested nil attr", nestedType, map[string]any{"attr": nil}},
		{"nested missing inner", nestedType, map[string]any{"attr": map[string]any{}}},
		{"nested missing", nestedType, map[string]any{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := objtree.NewRegistry()
			_, err := reg.Load(tc.typ, tc.data)
			le, ok := objtree.AsLoadError(err)
			require.True(t, ok, "expected LoadError, got %v", err)
			require.NotNil(t, le.Info)
		})
	}
}

func TestObjectConverter_Dump(t *testing.T) {
	cases := []struct {
		name string
		typ  *objtree.Type
		obj  any
		want any
	}{
		{"empty object", emptyType, EmptyObject{}, map[string]any{}},
		{"int attr", intAttrType, IntAttr{Attr: 1}, map[string]any{"attr": 1}},
		{"default attr", defaultAttrType, DefaultAttr{Attr: 42}, map[string]any{"attr": 42}},
		{"optional nil", optionalAttrType, OptionalAttr{}, map[string]any{"attr": nil}},
		{"optional set", optionalAttrType, OptionalAttr{Attr: intPtr(1)}, map[string]any{"attr": 1}},
		{"nested", nestedType, NestedObject{Attr: IntAttr{Attr: 1}}, map[string]any{"attr": map[string]any{"attr": 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			reg := objtree.NewRegistry()
			got, err := reg.DumpAs(tc.typ, tc.obj)
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestObjectConverter_DumpNil(t *testing.T) {
	reg := objtree.NewRegistry()
	_, err := reg.DumpAs(intAttrType, nil)
	de, ok := objtree.AsDumpError(err)
	require.True(t, ok)
	require.Equal(t, objtree.CodeNoneDump, de.Info.Code)
}

func TestObjectConverter_DumpNilSuppression(t *testing.T) {
	reg := objtree.NewRegistry(objtree.WithDumpNilValues(false))
	got, err := reg.DumpAs(optionalAttrType, OptionalAttr{})
	require.NoError(t, err)
	require.Equal(t, map[string]any{}, got)
}

func TestObjectConverter_ErrorPathPrecision(t *testing.T) {
	reg := objtree.NewRegistry()
	_, err := reg.Load(intAttrType, map[string]any{"attr": "not-an-int"})
	le, ok := objtree.AsLoadError(err)
	require.True(t, ok)

	require.Equal(t, objtree.CodeAttrLoad, le.Info.Code)
	require.Equal(t, "attr", le.Info.Target)
	require.Len(t, le.Info.Details, 1)
	leaf := le.Info.Details[0]
	require.Equal(t, objtree.CodeInvalidType, leaf.Code)
	require.Equal(t, "attr", leaf.Target)
}

func TestObjectConverter_MissingRequiredWrapsConstruction(t *testing.T) {
	reg := objtree.NewRegistry()
	_, err := reg.Load(intAttrType, map[string]any{})
	le, ok := objtree.AsLoadError(err)
	require.True(t, ok)
	require.Equal(t, objtree.CodeObjectLoad, le.Info.Code)
	require.Equal(t, "IntAttr", le.Info.Target)
}

type AliasedAttr struct {
	Name int
}

func TestObjectConverter_Aliases(t *testing.T) {
	typ := objtree.ObjectOf[AliasedAttr]("AliasedAttr",
		objtree.Field("name", objtree.Int, objtree.WithAlias("legacy_name"), objtree.WithAlias("old_name")))
	reg := objtree.NewRegistry()

	got, err := reg.Load(typ, map[string]any{"legacy_name": 5})
	require.NoError(t, err)
	require.Equal(t, AliasedAttr{Name: 5}, got)

	// The primary key wins over aliases.
	got, err = reg.Load(typ, map[string]any{"name": 1, "legacy_name": 5})
	require.NoError(t, err)
	require.Equal(t, AliasedAttr{Name: 1}, got)

	// Aliases are tried in declared order.
	got, err = reg.Load(typ, map[string]any{"old_name": 2, "legacy_name": 5})
	require.NoError(t, err)
	require.Equal(t, AliasedAttr{Name: 5}, got)
}

type ExtrasHolder struct {
	Name  string
	Extra map[string]any
}

func TestObjectConverter_Leftovers(t *testing.T) {
	typ := objtree.ObjectOf[ExtrasHolder]("ExtrasHolder",
		objtree.Field("name", objtree.String),
		objtree.Field("extra", objtree.Any, objtree.WithLeftovers()))
	reg := objtree.NewRegistry()

	got, err := reg.Load(typ, map[string]any{"name": "x", "a": 1, "b": 2})
	require.NoError(t, err)
	require.Equal(t, ExtrasHolder{
		Name:  "x",
		Extra: map[string]any{"a": 1, "b": 2},
	}, got)
}

type KeyedEntry struct {
	ID    string
	Value int
}

func TestObjectConverter_InjectKey(t *testing.T) {
	typ := objtree.ObjectOf[KeyedEntry]("KeyedEntry",
		objtree.Field("id", objtree.String, objtree.WithInjectKey(), objtree.WithDefault("")),
		objtree.Field("value", objtree.Int))
	reg := objtree.NewRegistry()

	got, err := reg.LoadKeyed(typ, map[string]any{"value": 3}, "first")
	require.NoError(t, err)
	require.Equal(t, KeyedEntry{ID: "first", Value: 3}, got)

	// Map values receive their collection key.
	entries := objtree.MapOf(objtree.String, typ)
	gotMap, err := reg.Load(entries, map[string]any{
		"a": map[string]any{"value": 1},
	})
	require.NoError(t, err)
	require.Equal(t, map[string]KeyedEntry{
		"a": {ID: "a", Value: 1},
	}, gotMap)
}

type WithInjected struct {
	Dep Injected
	N   int
}

type Injected struct {
	Origin string
}

func TestObjectConverter_Provider(t *testing.T) {
	depType := objtree.ObjectOf[Injected]("Injected")
	typ := objtree.ObjectOf[WithInjected]("WithInjected",
		objtree.Field("dep", depType),
		objtree.Field("n", objtree.Int))

	reg := objtree.NewRegistry()
	reg.AddProvider(depType, objtree.ProviderFunc(func(ctx objtree.Context) (any, error) {
		return Injected{Origin: "context"}, nil
	}))

	got, err := reg.Load(typ, map[string]any{"n": 7, "dep": map[string]any{}})
	require.NoError(t, err)
	require.Equal(t, WithInjected{Dep: Injected{Origin: "context"}, N: 7}, got)
}

type Renamed struct {
	Raw string
}

func TestObjectConverter_GetterOverride(t *testing.T) {
	typ := objtree.ObjectOf[Renamed]("Renamed",
		objtree.Field("raw", objtree.String,
			objtree.WithGetter(func(obj any) (any, bool) {
				return "overridden", true
			})))
	reg := objtree.NewRegistry()

	got, err := reg.DumpAs(typ, Renamed{Raw: "original"})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"raw": "overridden"}, got)
}

type Celsius struct {
	Degrees float64
}

func TestObjectConverter_FieldGetter(t *testing.T) {
	// Function targets have no runtime type, so dump-side getters must be
	// declared explicitly.
	typ := objtree.ObjectFunc("Celsius",
		func(args objtree.Args) (any, error) {
			return Celsius{Degrees: args.Get("temp").(float64)}, nil
		},
		objtree.Field("temp", objtree.Float, objtree.WithFieldGetter("Degrees")))
	reg := objtree.NewRegistry()

	got, err := reg.Load(typ, map[string]any{"temp": 21.5})
	require.NoError(t, err)
	require.Equal(t, Celsius{Degrees: 21.5}, got)

	dumped, err := reg.DumpAs(typ, Celsius{Degrees: 21.5})
	require.NoError(t, err)
	require.Equal(t, map[string]any{"temp": 21.5}, dumped)
}

func TestObjectConverter_ObjectFunc(t *testing.T) {
	type pair struct{ a, b int }
	typ := objtree.ObjectFunc("pair",
		func(args objtree.Args) (any, error) {
			if !args.Has("a") {
				return nil, errors.New("missing a")
			}
			return pair{a: args.Get("a").(int), b: args.GetOr("b", 0).(int)}, nil
		},
		objtree.Field("a", objtree.Int),
		objtree.Field("b", objtree.Int, objtree.WithDefault(0)))
	reg := objtree.NewRegistry()

	got, err := reg.Load(typ, map[string]any{"a": 1, "b": 2})
	require.NoError(t, err)
	require.Equal(t, pair{a: 1, b: 2}, got)

	_, err = reg.Load(typ, map[string]any{"b": 2})
	le, ok := objtree.AsLoadError(err)
	require.True(t, ok)
	require.Equal(t, objtree.CodeObjectLoad, le.Info.Code)
}

func TestObjectConverter_MissingTypePolicy(t *testing.T) {
	typ := objtree.ObjectOf[DefaultAttr]("DefaultAttrInferred",
		objtree.Field("attr", nil, objtree.WithDefault(42)))

	_, err := objtree.NewRegistry().GetConverter(typ)
	require.Error(t, err)

	reg := objtree.NewRegistry(objtree.WithMissingTypePolicy(objtree.MissingTypeFromDefault))
	got, err := reg.Load(typ, map[string]any{"attr": 7})
	require.NoError(t, err)
	require.Equal(t, DefaultAttr{Attr: 7}, got)
}
