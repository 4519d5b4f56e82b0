package vm

import (
	"fmt"
	"strconv"
	"strings"
)

// ValueKind tags a runtime value.
type ValueKind uint8

const (
	KindInt ValueKind = iota
	KindBool
	KindStr
	KindList
	KindFunc
)

// Value is one operand-stack or local-slot entry.
type Value struct {
	Kind ValueKind
	I    int64
	B    bool
	S    string
	L    []Value
	Fn   string // function name for KindFunc
}

// Int builds an integer value.
func Int(v int64) Value { return Value{Kind: KindInt, I: v} }

// Bool builds a boolean value.
func Bool(v bool) Value { return Value{Kind: KindBool, B: v} }

// Str builds a string value.
func Str(v string) Value { return Value{Kind: KindStr, S: v} }

// List builds a list value.
func List(vs ...Value) Value { return Value{Kind: KindList, L: vs} }

// FuncRef builds a reference to a program function.
func FuncRef(name string) Value { return Value{Kind: KindFunc, Fn: name} }

// TypeName returns the value's type name as it appears in trace descriptors.
func (v Value) TypeName() string {
	switch v.Kind {
	case KindInt:
		return "int"
	case KindBool:
		return "bool"
	case KindStr:
		return "str"
	case KindList:
		return "list"
	case KindFunc:
		return "func"
	default:
		return fmt.Sprintf("ValueKind(%d)", uint8(v.Kind))
	}
}

// Repr returns the full textual representation of the value. Bounding the
// length is the capture layer's concern, not the VM's.
func (v Value) Repr() string {
	switch v.Kind {
	case KindInt:
		return strconv.FormatInt(v.I, 10)
	case KindBool:
		return strconv.FormatBool(v.B)
	case KindStr:
		return strconv.Quote(v.S)
	case KindList:
		var sb strings.Builder
		sb.WriteByte('[')
		for i, el := range v.L {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(el.Repr())
		}
		sb.WriteByte(']')
		return sb.String()
	case KindFunc:
		return "<func " + v.Fn + ">"
	default:
		return "<?>"
	}
}

// Truthy reports the value's truth for conditional jumps.
func (v Value) Truthy() bool {
	switch v.Kind {
	case KindInt:
		return v.I != 0
	case KindBool:
		return v.B
	case KindStr:
		return v.S != ""
	case KindList:
		return len(v.L) != 0
	case KindFunc:
		return true
	default:
		return false
	}
}
