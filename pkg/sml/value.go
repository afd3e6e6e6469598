package sml

import (
	"fmt"
	"strings"
)

type Kind int

const (
	KIND_STRING Kind = iota
	KIND_BOOL
	KIND_INT
	KIND_UINT
	KIND_LIST
)

func KindToString(kind Kind) string {
	switch kind {
	case KIND_STRING:
		return "string"
	case KIND_BOOL:
		return "bool"
	case KIND_INT:
		return "int"
	case KIND_UINT:
		return "uint"
	case KIND_LIST:
		return "list"
	default:
		return "unknown"
	}
}

// Value is one decoded SML element. Only the field selected by Kind is meaningful.
type Value struct {
	kind  Kind
	bytes []byte
	b     bool
	i     int64
	u     uint64
	list  []Value
}

func StringValue(b []byte) Value { return Value{kind: KIND_STRING, bytes: b} }
func BoolValue(b bool) Value     { return Value{kind: KIND_BOOL, b: b} }
func IntValue(i int64) Value     { return Value{kind: KIND_INT, i: i} }
func UintValue(u uint64) Value   { return Value{kind: KIND_UINT, u: u} }
func ListValue(l []Value) Value  { return Value{kind: KIND_LIST, list: l} }

func (v Value) Kind() Kind {
	return v.kind
}

func (v Value) Bytes() ([]byte, bool) {
	return v.bytes, v.kind == KIND_STRING
}

func (v Value) Bool() (bool, bool) {
	return v.b, v.kind == KIND_BOOL
}

func (v Value) Int() (int64, bool) {
	return v.i, v.kind == KIND_INT
}

func (v Value) Uint() (uint64, bool) {
	return v.u, v.kind == KIND_UINT
}

func (v Value) List() ([]Value, bool) {
	return v.list, v.kind == KIND_LIST
}

// Number returns int and uint values as float64.
func (v Value) Number() (float64, bool) {
	switch v.kind {
	case KIND_INT:
		return float64(v.i), true
	case KIND_UINT:
		return float64(v.u), true
	default:
		return 0, false
	}
}

// At walks nested lists by index.
func (v Value) At(path ...int) (Value, bool) {
	cur := v
	for _, idx := range path {
		if cur.kind != KIND_LIST || idx < 0 || idx >= len(cur.list) {
			return Value{}, false
		}
		cur = cur.list[idx]
	}
	return cur, true
}

func (v Value) String() string {
	var sb strings.Builder
	v.format(&sb, 0)
	return sb.String()
}

func (v Value) format(sb *strings.Builder, indent int) {
	sb.WriteString(strings.Repeat(" ", indent))
	switch v.kind {
	case KIND_LIST:
		sb.WriteString("List:\n")
		for _, item := range v.list {
			item.format(sb, indent+4)
		}
		return
	case KIND_STRING:
		fmt.Fprintf(sb, "String: %X", v.bytes)
	case KIND_BOOL:
		fmt.Fprintf(sb, "Bool: %t", v.b)
	case KIND_INT:
		fmt.Fprintf(sb, "Int: %d", v.i)
	case KIND_UINT:
		fmt.Fprintf(sb, "Uint: %d", v.u)
	}
	sb.WriteString("\n")
}
