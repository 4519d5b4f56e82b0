package bytecode

import "fmt"

// Instruction is one decoded operation. Instructions are immutable once
// decoded; the owning Program holds them as a flat ordered sequence and
// Offset is the instruction's index within that sequence.
type Instruction struct {
	Op     Op
	Arg    int  // operand; meaning depends on Op
	HasArg bool // false for ops without an operand, or a count left to runtime
	Line   int  // 1-based source line, 0 if unknown
	Offset int  // absolute position in the instruction sequence
}

// ArgString renders the operand with program context where available:
// constant values for PUSH_CONST, names for LOAD_NAME/STORE_NAME, the
// comparison symbol for COMPARE. Falls back to the raw integer.
func (in Instruction) ArgString(p *Program) string {
	if !in.HasArg {
		return ""
	}
	switch in.Op {
	case OpPushConst:
		if p != nil && in.Arg >= 0 && in.Arg < len(p.Consts) {
			return p.Consts[in.Arg].String()
		}
	case OpLoadName, OpStoreName:
		if p != nil && in.Arg >= 0 && in.Arg < len(p.Names) {
			return p.Names[in.Arg]
		}
	case OpCompare:
		return CmpKind(in.Arg).String()
	}
	return fmt.Sprintf("%d", in.Arg)
}

// String renders the instruction without program context.
func (in Instruction) String() string {
	if !in.HasArg {
		return in.Op.String()
	}
	if in.Op == OpCompare {
		return fmt.Sprintf("%s %s", in.Op, CmpKind(in.Arg))
	}
	return fmt.Sprintf("%s %d", in.Op, in.Arg)
}
