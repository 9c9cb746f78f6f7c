// Package codec bridges byte-level wire formats and the generic tree values
// the objtree engine consumes and produces. The engine itself never touches
// bytes; everything here is a downstream convenience.
package codec

import (
	json "github.com/goccy/go-json"

	objtree "github.com/reoring/objtree"
)

// DecodeJSON parses JSON bytes into a generic tree value.
func DecodeJSON(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// EncodeJSON renders a generic tree value as JSON bytes.
func EncodeJSON(tree any) ([]byte, error) {
	return json.Marshal(tree)
}

// LoadJSON parses JSON bytes and loads the result as the descriptor's type.
func LoadJSON(r *objtree.Registry, t *objtree.Type, data []byte) (any, error) {
	tree, err := DecodeJSON(data)
	if err != nil {
		return nil, err
	}
	return r.Load(t, tree)
}

// DumpJSON dumps a typed value and renders the resulting tree as JSON bytes.
func DumpJSON(r *objtree.Registry, v any) ([]byte, error) {
	tree, err := r.Dump(v)
	if err != nil {
		return nil, err
	}
	return EncodeJSON(tree)
}

// DumpJSONAs is DumpJSON with an explicit descriptor.
func DumpJSONAs(r *objtree.Registry, t *objtree.Type, v any) ([]byte, error) {
	tree, err := r.DumpAs(t, v)
	if err != nil {
		return nil, err
	}
	return EncodeJSON(tree)
}
