package codec_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	objtree "github.com/reoring/objtree"
	"github.com/reoring/objtree/codec"
)

func TestLoadYAML(t *testing.T) {
	reg := objtree.NewRegistry()
	et := objtree.StructOf[Event]()

	got, err := codec.LoadYAML(reg, et, []byte("name: run\nscore: 9.5\ntags:\n  - a\n  - b\n"))
	require.NoError(t, err)
	require.Equal(t, Event{Name: "run", Score: 9.5, Tags: []string{"a", "b"}}, got)
}

func TestLoadYAML_IntScalars(t *testing.T) {
	// YAML delivers whole numbers as int; the scalar coercions take those
	// where a float is declared.
	reg := objtree.NewRegistry()
	et := objtree.StructOf[Event]()

	got, err := codec.LoadYAML(reg, et, []byte("name: run\nscore: 9\ntags: []\n"))
	require.NoError(t, err)
	require.Equal(t, Event{Name: "run", Score: 9.0, Tags: []string{}}, got)
}

func TestDumpYAML_RoundTrip(t *testing.T) {
	reg := objtree.NewRegistry()
	et := objtree.StructOf[Event]()
	in := Event{Name: "run", Score: 9.5, Tags: []string{"a"}}

	out, err := codec.DumpYAMLAs(reg, et, in)
	require.NoError(t, err)

	back, err := codec.LoadYAML(reg, et, out)
	require.NoError(t, err)
	require.Equal(t, in, back)
}

func TestDecodeYAML_NormalizesKeys(t *testing.T) {
	tree, err := codec.DecodeYAML([]byte("1: one\n2: two\n"))
	require.NoError(t, err)
	require.Equal(t, map[string]any{"1": "one", "2": "two"}, tree)
}
