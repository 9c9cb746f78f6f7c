package objtree

import (
	"errors"
	"fmt"
	"strings"
)

// Error codes (exported consts for IDE completion and type safety by convention)
const (
	CodeInvalidType          = "invalid_type"
	CodeNoneLoad             = "none_load"
	CodeNoneDump             = "none_dump"
	CodeAttrLoad             = "attr_load_error"
	CodeObjectLoad           = "object_load_error"
	CodeAttributeDump        = "attribute_dump_error"
	CodeListLoad             = "list_load_error"
	CodeListElementLoad      = "list_element_load_error"
	CodeDictLoad             = "dict_load_error"
	CodeDictValueLoad        = "dict_value_load_error"
	CodeInvalidTupleLen      = "invalid_tuple_len"
	CodeUnionLoad            = "union_load_error"
	CodeUnionDump            = "union_dump_error"
	CodeInvalidLiteral       = "invalid_literal"
	CodeInvalidEnum          = "invalid_enum"
	CodeDiscriminatorMissing = "discriminator_missing"
	CodeDiscriminatorUnknown = "discriminator_unknown"
	CodeInvalidFormat        = "invalid_format"
	CodeInvalidDatetime      = "invalid_datetime"
)

// ErrorInfo is a single node of a diagnostic tree. Every layer that adds
// context wraps the failing child as a new node, so the full causal path from
// the root value down to the failing leaf stays reconstructible.
type ErrorInfo struct {
	Code    string
	Message string
	Target  string // Path segment: attribute name, list index, map key, tuple position.
	Details []*ErrorInfo
}

// ToMap renders the node (recursively) as a machine-readable nested structure.
func (e *ErrorInfo) ToMap() map[string]any {
	details := make([]any, 0, len(e.Details))
	for _, d := range e.Details {
		details = append(details, d.ToMap())
	}
	return map[string]any{
		"code":    e.Code,
		"message": e.Message,
		"target":  e.Target,
		"details": details,
	}
}

// Readable renders the tree as an indented human-readable multi-line trace.
func (e *ErrorInfo) Readable() string {
	b := &strings.Builder{}
	e.writeReadable(b, 0)
	return b.String()
}

func (e *ErrorInfo) writeReadable(b *strings.Builder, indent int) {
	if e.Target != "" {
		fmt.Fprintf(b, "(%s): %s", e.Target, e.Message)
	} else {
		b.WriteString(e.Message)
	}
	for _, d := range e.Details {
		b.WriteString("\n")
		b.WriteString(strings.Repeat("\t", indent+1))
		d.writeReadable(b, indent+1)
	}
}

// errorInfoFrom converts an arbitrary error into a leaf node. LoadError and
// DumpError surface their own tree instead of being flattened.
func errorInfoFrom(err error) *ErrorInfo {
	var le *LoadError
	if errors.As(err, &le) {
		return le.Info
	}
	var de *DumpError
	if errors.As(err, &de) {
		return de.Info
	}
	return &ErrorInfo{Code: fmt.Sprintf("%T", err), Message: err.Error()}
}

func invalidTypeInfo(expected string, actual any, target string) *ErrorInfo {
	return &ErrorInfo{
		Code:    CodeInvalidType,
		Message: fmt.Sprintf("invalid type, expected %s, got %T", expected, actual),
		Target:  target,
	}
}

// LoadError reports a tree->object conversion failure.
type LoadError struct {
	Info *ErrorInfo
}

func (e *LoadError) Error() string { return e.Info.Readable() }

// Code returns the code of the outermost node.
func (e *LoadError) Code() string { return e.Info.Code }

// DumpError reports an object->tree conversion failure.
type DumpError struct {
	Info *ErrorInfo
}

func (e *DumpError) Error() string { return e.Info.Readable() }

// Code returns the code of the outermost node.
func (e *DumpError) Code() string { return e.Info.Code }

// ResolutionError reports that no factory claimed a type descriptor and it was
// not pre-registered. It is raised at registration/first-use time, never at
// load/dump time.
type ResolutionError struct {
	TypeName string
}

func (e *ResolutionError) Error() string {
	return "objtree: no converter found for type " + e.TypeName
}

// AsLoadError extracts a LoadError using errors.As internally.
func AsLoadError(err error) (*LoadError, bool) {
	if err == nil {
		return nil, false
	}
	var le *LoadError
	if errors.As(err, &le) {
		return le, true
	}
	return nil, false
}

// AsDumpError extracts a DumpError using errors.As internally.
func AsDumpError(err error) (*DumpError, bool) {
	if err == nil {
		return nil, false
	}
	var de *DumpError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// wrapLoad rewraps err as a new parent node, preserving the original as a
// child. Non-LoadError causes become leaf nodes.
func wrapLoad(err error, code, message, target string) *LoadError {
	return &LoadError{Info: &ErrorInfo{
		Code:    code,
		Message: message,
		Target:  target,
		Details: []*ErrorInfo{errorInfoFrom(err)},
	}}
}

// wrapDump is the dump-direction counterpart of wrapLoad.
func wrapDump(err error, code, message, target string) *DumpError {
	return &DumpError{Info: &ErrorInfo{
		Code:    code,
		Message: message,
		Target:  target,
		Details: []*ErrorInfo{errorInfoFrom(err)},
	}}
}
