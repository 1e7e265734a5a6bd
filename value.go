package aprconf

import (
	"fmt"
	"strconv"
)

// ValueKind discriminates the variants of a [Value].
type ValueKind int

const (
	// ValueFlag is a 0/1 feature flag.
	ValueFlag ValueKind = iota + 1
	// ValueInt is an integer literal such as a size.
	ValueInt
	// ValueLiteral is a literal token substituted as is.
	ValueLiteral
	// ValueType is a C type name used as an alias target.
	ValueType
	// ValueFormat is a printf format macro definition.
	ValueFormat
	// ValueCode is a verbatim code fragment, possibly several lines.
	ValueCode
)

func (k ValueKind) String() string {
	switch k {
	case ValueFlag:
		return "flag"
	case ValueInt:
		return "int"
	case ValueLiteral:
		return "literal"
	case ValueType:
		return "type"
	case ValueFormat:
		return "format"
	case ValueCode:
		return "code"
	default:
		return fmt.Sprintf("ValueKind(%d)", k)
	}
}

// Value is the value bound to a configuration key.
type Value struct {
	kind  ValueKind
	flag  bool
	n     int
	text  string
	macro string
	// alias is true for formats defined in terms of another macro.
	alias bool
}

// Flag returns a 0/1 flag value.
func Flag(b bool) Value { return Value{kind: ValueFlag, flag: b} }

// Int returns an integer value.
func Int(n int) Value { return Value{kind: ValueInt, n: n} }

// Literal returns a literal token value.
func Literal(s string) Value { return Value{kind: ValueLiteral, text: s} }

// TypeName returns a C type name value.
func TypeName(s string) Value { return Value{kind: ValueType, text: s} }

// Format returns a format macro definition: #define macro "spec".
func Format(macro, spec string) Value {
	return Value{kind: ValueFormat, macro: macro, text: spec}
}

// FormatAlias returns a format macro defined as another macro: #define macro target.
func FormatAlias(macro, target string) Value {
	return Value{kind: ValueFormat, macro: macro, text: target, alias: true}
}

// Code returns a verbatim code fragment.
func Code(s string) Value { return Value{kind: ValueCode, text: s} }

// Kind returns the variant of v.
func (v Value) Kind() ValueKind { return v.kind }

// IsZero reports whether v was never assigned.
func (v Value) IsZero() bool { return v.kind == 0 }

// Bool returns the flag of a [ValueFlag] and whether v is one.
func (v Value) Bool() (bool, bool) { return v.flag, v.kind == ValueFlag }

// Text returns the type name, literal, code, or format specifier of v.
func (v Value) Text() string { return v.text }

// Render returns the text substituted for the key's placeholder.
func (v Value) Render() string {
	switch v.kind {
	case ValueFlag:
		if v.flag {
			return "1"
		}
		return "0"
	case ValueInt:
		return strconv.Itoa(v.n)
	case ValueFormat:
		if v.alias {
			return fmt.Sprintf("#define %s %s", v.macro, v.text)
		}
		return fmt.Sprintf("#define %s %q", v.macro, v.text)
	default:
		return v.text
	}
}

func (v Value) String() string {
	return v.Render()
}
