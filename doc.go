package objtree

// Package objtree converts between strongly-typed in-memory values and a
// generic tree representation (nested map[string]any, []any, scalars, nil),
// driven entirely by type descriptors.
//
// It provides:
//
// - A converter Registry with a memoized, cycle-safe resolution algorithm
//   over an ordered, pluggable factory chain
// - Converters for scalars, collections, tuples, unions (untagged and
//   discriminated), enumerations, and generic object targets
// - A tree-shaped error model via ErrorInfo (code, target path segment,
//   nested details) carried by LoadError and DumpError
// - Struct derivation (StructOf) and explicit descriptor builders (ObjectOf,
//   ListOf, UnionOf, ...)
//
// Design policy:
// - Keep only public APIs in the root package; put detailed implementations
//   under internal/.
// - Byte boundaries (JSON, YAML) live under codec/; the engine itself only
//   consumes and produces already-parsed tree values.
// - Contexts are explicit values: call sites construct and pass a Registry,
//   the engine never consults a global.
//
// Typical usage:
//
//  reg := objtree.NewRegistry()
//  point := objtree.ObjectOf[Point]("Point",
//      objtree.Field("x", objtree.Int),
//      objtree.Field("y", objtree.Int),
//  )
//  v, err := reg.Load(point, map[string]any{"x": 1, "y": 2})
//  tree, err := reg.DumpAs(point, v)
