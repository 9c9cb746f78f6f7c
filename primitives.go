package objtree

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
)

// AnyLoadPolicy dictates what the any-converter does with incoming data.
type AnyLoadPolicy int

const (
	AnyLoadAsIs  AnyLoadPolicy = iota // Pass the tree value through unchanged.
	AnyLoadError                      // Refuse with an invalid_type error.
)

// AnyDumpPolicy dictates what the any-converter does with outgoing values.
type AnyDumpPolicy int

const (
	AnyDumpAsIs  AnyDumpPolicy = iota
	AnyDumpError
)

// ExactConverter passes values through untouched in both directions.
type ExactConverter struct{}

func (ExactConverter) Dump(v any, ctx Context) (any, error)         { return v, nil }
func (ExactConverter) Load(data, key any, ctx Context) (any, error) { return data, nil }

// ScalarConverter handles one scalar kind with the coercions a parsed text
// format needs: JSON hands back float64 for every number and json.Number when
// a decoder is configured that way.
type ScalarConverter struct {
	Kind Kind
}

func (c *ScalarConverter) Dump(v any, ctx Context) (any, error) {
	if isNilValue(v) {
		return nil, &DumpError{Info: invalidTypeInfo(c.Kind.String(), v, "")}
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	switch c.Kind {
	case KindInt:
		if rv.CanInt() {
			return int(rv.Int()), nil
		}
		if rv.CanUint() {
			return int(rv.Uint()), nil
		}
	case KindFloat:
		if rv.CanFloat() {
			return rv.Float(), nil
		}
		if rv.CanInt() {
			return float64(rv.Int()), nil
		}
	case KindString:
		if rv.Kind() == reflect.String {
			return rv.String(), nil
		}
	case KindBool:
		if rv.Kind() == reflect.Bool {
			return rv.Bool(), nil
		}
	}
	return nil, &DumpError{Info: invalidTypeInfo(c.Kind.String(), v, "")}
}

func (c *ScalarConverter) Load(data, key any, ctx Context) (any, error) {
	switch c.Kind {
	case KindInt:
		if v, ok := asInt(data); ok {
			return v, nil
		}
	case KindFloat:
		if v, ok := asFloat(data); ok {
			return v, nil
		}
	case KindString:
		if s, ok := data.(string); ok {
			return s, nil
		}
	case KindBool:
		if b, ok := data.(bool); ok {
			return b, nil
		}
	}
	return nil, &LoadError{Info: invalidTypeInfo(c.Kind.String(), data, targetOf(key))}
}

func asInt(data any) (int, bool) {
	switch v := data.(type) {
	case int:
		return v, true
	case int8:
		return int(v), true
	case int16:
		return int(v), true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case uint:
		return int(v), true
	case uint8:
		return int(v), true
	case uint16:
		return int(v), true
	case uint32:
		return int(v), true
	case uint64:
		return int(v), true
	case float32:
		return int(v), true
	case float64:
		return int(v), true
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return int(i), true
		}
		if f, err := v.Float64(); err == nil {
			return int(f), true
		}
	}
	return 0, false
}

func asFloat(data any) (float64, bool) {
	switch v := data.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint8:
		return float64(v), true
	case uint16:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f, true
		}
	}
	return 0, false
}

// NoneConverter accepts only nil. Its main job is serving as the null member
// of optional unions.
type NoneConverter struct{}

func (NoneConverter) Dump(v any, ctx Context) (any, error) {
	if !isNilValue(v) {
		return nil, &DumpError{Info: invalidTypeInfo("none", v, "")}
	}
	return nil, nil
}

func (NoneConverter) Load(data, key any, ctx Context) (any, error) {
	if !isNilValue(data) {
		return nil, &LoadError{Info: invalidTypeInfo("none", data, targetOf(key))}
	}
	return nil, nil
}

// BytesConverter carries byte strings as text.
type BytesConverter struct{}

func (BytesConverter) Dump(v any, ctx Context) (any, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, &DumpError{Info: invalidTypeInfo("bytes", v, "")}
	}
	return string(b), nil
}

func (BytesConverter) Load(data, key any, ctx Context) (any, error) {
	s, ok := data.(string)
	if !ok {
		return nil, &LoadError{Info: invalidTypeInfo("string", data, targetOf(key))}
	}
	return []byte(s), nil
}

// TimestampConverter carries time.Time as a Unix timestamp number with
// fractional seconds. The default for the Time descriptor; swap in
// RFC3339Converter via AddConverter for text timestamps.
type TimestampConverter struct{}

func (TimestampConverter) Dump(v any, ctx Context) (any, error) {
	t, ok := v.(time.Time)
	if !ok {
		return nil, &DumpError{Info: invalidTypeInfo("time", v, "")}
	}
	// Not UnixNano: that overflows past year 2262, while the load path
	// accepts any second count.
	return float64(t.Unix()) + float64(t.Nanosecond())/float64(time.Second), nil
}

func (TimestampConverter) Load(data, key any, ctx Context) (any, error) {
	f, ok := asFloat(data)
	if !ok {
		return nil, &LoadError{Info: &ErrorInfo{
			Code:    CodeInvalidDatetime,
			Message: fmt.Sprintf("invalid datetime, expected number, got %T", data),
			Target:  targetOf(key),
		}}
	}
	sec := int64(f)
	nsec := int64((f - float64(sec)) * float64(time.Second))
	return time.Unix(sec, nsec).UTC(), nil
}

// RFC3339Converter carries time.Time as a canonical RFC3339 string (UTC,
// nanoseconds trimmed).
type RFC3339Converter struct{}

func (RFC3339Converter) Dump(v any, ctx Context) (any, error) {
	t, ok := v.(time.Time)
	if !ok {
		return nil, &DumpError{Info: invalidTypeInfo("time", v, "")}
	}
	return t.UTC().Format(time.RFC3339Nano), nil
}

func (RFC3339Converter) Load(data, key any, ctx Context) (any, error) {
	s, ok := data.(string)
	if !ok {
		return nil, &LoadError{Info: invalidTypeInfo("string", data, targetOf(key))}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		if t2, err2 := time.Parse(time.RFC3339, s); err2 == nil {
			return t2, nil
		}
		return nil, wrapLoad(err, CodeInvalidFormat, "invalid RFC3339 time", targetOf(key))
	}
	return t, nil
}

// UUIDConverter carries uuid.UUID as its canonical string form.
type UUIDConverter struct{}

func (UUIDConverter) Dump(v any, ctx Context) (any, error) {
	u, ok := v.(uuid.UUID)
	if !ok {
		return nil, &DumpError{Info: invalidTypeInfo("uuid", v, "")}
	}
	return u.String(), nil
}

func (UUIDConverter) Load(data, key any, ctx Context) (any, error) {
	s, ok := data.(string)
	if !ok {
		return nil, &LoadError{Info: invalidTypeInfo("string", data, targetOf(key))}
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return nil, wrapLoad(err, CodeInvalidFormat, "invalid UUID", targetOf(key))
	}
	return u, nil
}

// AnyConverter implements the dynamic descriptor with independent per-direction
// policies.
type AnyConverter struct {
	LoadPolicy AnyLoadPolicy
	DumpPolicy AnyDumpPolicy
}

func (c *AnyConverter) Dump(v any, ctx Context) (any, error) {
	if c.DumpPolicy == AnyDumpError {
		return nil, &DumpError{Info: &ErrorInfo{
			Code:    CodeInvalidType,
			Message: "dumping a dynamic value is restricted by policy",
		}}
	}
	return v, nil
}

func (c *AnyConverter) Load(data, key any, ctx Context) (any, error) {
	if c.LoadPolicy == AnyLoadError {
		return nil, &LoadError{Info: &ErrorInfo{
			Code:    CodeInvalidType,
			Message: "loading a dynamic value is restricted by policy",
			Target:  targetOf(key),
		}}
	}
	return data, nil
}
