package codec

import (
	"fmt"

	"gopkg.in/yaml.v3"

	objtree "github.com/reoring/objtree"
)

// DecodeYAML parses YAML bytes into a generic tree value. Mapping keys are
// normalized to strings so the result matches what the JSON path produces.
func DecodeYAML(data []byte) (any, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	return normalizeYAML(v), nil
}

// EncodeYAML renders a generic tree value as YAML bytes.
func EncodeYAML(tree any) ([]byte, error) {
	return yaml.Marshal(tree)
}

// LoadYAML parses YAML bytes and loads the result as the descriptor's type.
func LoadYAML(r *objtree.Registry, t *objtree.Type, data []byte) (any, error) {
	tree, err := DecodeYAML(data)
	if err != nil {
		return nil, err
	}
	return r.Load(t, tree)
}

// DumpYAML dumps a typed value and renders the resulting tree as YAML bytes.
func DumpYAML(r *objtree.Registry, v any) ([]byte, error) {
	tree, err := r.Dump(v)
	if err != nil {
		return nil, err
	}
	return EncodeYAML(tree)
}

// DumpYAMLAs is DumpYAML with an explicit descriptor.
func DumpYAMLAs(r *objtree.Registry, t *objtree.Type, v any) ([]byte, error) {
	tree, err := r.DumpAs(t, v)
	if err != nil {
		return nil, err
	}
	return EncodeYAML(tree)
}

// normalizeYAML rewrites yaml.v3's occasional map[any]any mappings into
// map[string]any, recursively.
func normalizeYAML(v any) any {
	switch m := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(m))
		for k, mv := range m {
			out[k] = normalizeYAML(mv)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, mv := range m {
			out[fmt.Sprint(k)] = normalizeYAML(mv)
		}
		return out
	case []any:
		out := make([]any, len(m))
		for i, mv := range m {
			out[i] = normalizeYAML(mv)
		}
		return out
	default:
		return v
	}
}
