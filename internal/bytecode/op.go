package bytecode

import "fmt"

// Op identifies one primitive operation of the stack machine.
type Op uint8

const (
	OpNop Op = iota // no effect

	// Constants and names.
	OpPushConst // push constant pool entry: PUSH_CONST <index>
	OpLoadName  // push local, global or function by name index: LOAD_NAME <index>
	OpStoreName // pop into local by name index: STORE_NAME <index>

	// Stack manipulation.
	OpPop  // discard top of stack
	OpDup  // push a copy of top of stack
	OpSwap // exchange top two stack entries

	// Arithmetic (pop two, push result; right operand on top).
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod

	// Unary (pop one, push result).
	OpNeg
	OpNot

	// Comparison: COMPARE <CmpKind>, pops two, pushes bool.
	OpCompare

	// Control flow. Jump targets are absolute instruction offsets.
	OpJump        // unconditional: JUMP <target>
	OpJumpIfFalse // pop condition, jump when false: JUMP_IF_FALSE <target>
	OpJumpIfTrue  // pop condition, jump when true: JUMP_IF_TRUE <target>

	// Calls. CALL <argc> pops argc arguments plus the callee, pushes result.
	OpCall
	OpReturn // pop return value, leave frame

	// Aggregates.
	OpBuildList // BUILD_LIST <n>: pop n elements, push list
	OpUnpack    // UNPACK <n>: pop list, push n elements (first element on top)

	// Failure and effects.
	OpRaise // pop message, begin unwinding
	OpPrint // pop value, write to the machine's output

	opMax // keep last
)

var opNames = [...]string{
	OpNop:         "NOP",
	OpPushConst:   "PUSH_CONST",
	OpLoadName:    "LOAD_NAME",
	OpStoreName:   "STORE_NAME",
	OpPop:         "POP",
	OpDup:         "DUP",
	OpSwap:        "SWAP",
	OpAdd:         "ADD",
	OpSub:         "SUB",
	OpMul:         "MUL",
	OpDiv:         "DIV",
	OpMod:         "MOD",
	OpNeg:         "NEG",
	OpNot:         "NOT",
	OpCompare:     "COMPARE",
	OpJump:        "JUMP",
	OpJumpIfFalse: "JUMP_IF_FALSE",
	OpJumpIfTrue:  "JUMP_IF_TRUE",
	OpCall:        "CALL",
	OpReturn:      "RETURN",
	OpBuildList:   "BUILD_LIST",
	OpUnpack:      "UNPACK",
	OpRaise:       "RAISE",
	OpPrint:       "PRINT",
}

// String returns the mnemonic for the opcode.
func (op Op) String() string {
	if int(op) < len(opNames) && opNames[op] != "" {
		return opNames[op]
	}
	return fmt.Sprintf("Op(%d)", uint8(op))
}

// ParseOp converts a mnemonic to an Op.
func ParseOp(s string) (Op, error) {
	for op, name := range opNames {
		if name == s {
			return Op(op), nil
		}
	}
	return OpNop, fmt.Errorf("unknown opcode mnemonic: %q", s)
}

// IsJump reports whether the opcode transfers control to its operand.
func (op Op) IsJump() bool {
	return op == OpJump || op == OpJumpIfFalse || op == OpJumpIfTrue
}

// IsConditionalJump reports whether the opcode has a fall-through edge in
// addition to its jump target.
func (op Op) IsConditionalJump() bool {
	return op == OpJumpIfFalse || op == OpJumpIfTrue
}

// CmpKind selects the comparison performed by COMPARE.
type CmpKind uint8

const (
	CmpLT CmpKind = iota
	CmpLE
	CmpEQ
	CmpNE
	CmpGT
	CmpGE

	cmpMax // keep last
)

var cmpNames = [...]string{
	CmpLT: "LT",
	CmpLE: "LE",
	CmpEQ: "EQ",
	CmpNE: "NE",
	CmpGT: "GT",
	CmpGE: "GE",
}

// String returns the symbolic name of the comparison.
func (k CmpKind) String() string {
	if int(k) < len(cmpNames) {
		return cmpNames[k]
	}
	return fmt.Sprintf("CmpKind(%d)", uint8(k))
}

// ParseCmpKind converts a symbolic comparison name to a CmpKind.
func ParseCmpKind(s string) (CmpKind, error) {
	for k, name := range cmpNames {
		if name == s {
			return CmpKind(k), nil
		}
	}
	return CmpLT, fmt.Errorf("invalid comparison: %q (expected: LT|LE|EQ|NE|GT|GE)", s)
}
