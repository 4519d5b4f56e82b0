package bytecode

import "fmt"

// Effect declares an opcode's net operand-stack behavior. For Variable
// opcodes Pops/Pushes hold the declared minimum; the actual count comes from
// the instruction operand (or stays at the minimum when the operand is left
// to runtime, in which case the resolution is flagged abstract).
type Effect struct {
	Pops     int
	Pushes   int
	Variable bool
}

// UnknownOpcodeError reports an opcode with no stack-effect entry. The table
// is static configuration; a missing entry corrupts all downstream depth
// bookkeeping, so callers must treat this as fatal to the session.
type UnknownOpcodeError struct {
	Op Op
}

func (e *UnknownOpcodeError) Error() string {
	return fmt.Sprintf("no stack effect registered for opcode %s", e.Op)
}

// effects is the static, read-only stack-effect table. Built once; never
// mutated during a session.
var effects = map[Op]Effect{
	OpNop:         {Pops: 0, Pushes: 0},
	OpPushConst:   {Pops: 0, Pushes: 1},
	OpLoadName:    {Pops: 0, Pushes: 1},
	OpStoreName:   {Pops: 1, Pushes: 0},
	OpPop:         {Pops: 1, Pushes: 0},
	OpDup:         {Pops: 0, Pushes: 1},
	OpSwap:        {Pops: 2, Pushes: 2},
	OpAdd:         {Pops: 2, Pushes: 1},
	OpSub:         {Pops: 2, Pushes: 1},
	OpMul:         {Pops: 2, Pushes: 1},
	OpDiv:         {Pops: 2, Pushes: 1},
	OpMod:         {Pops: 2, Pushes: 1},
	OpNeg:         {Pops: 1, Pushes: 1},
	OpNot:         {Pops: 1, Pushes: 1},
	OpCompare:     {Pops: 2, Pushes: 1},
	OpJump:        {Pops: 0, Pushes: 0},
	OpJumpIfFalse: {Pops: 1, Pushes: 0},
	OpJumpIfTrue:  {Pops: 1, Pushes: 0},
	OpCall:        {Pops: 1, Pushes: 1, Variable: true}, // pops argc + callee
	OpReturn:      {Pops: 1, Pushes: 0},
	OpBuildList:   {Pops: 0, Pushes: 1, Variable: true}, // pops n elements
	OpUnpack:      {Pops: 1, Pushes: 1, Variable: true}, // pushes n elements
	OpRaise:       {Pops: 1, Pushes: 0},
	OpPrint:       {Pops: 1, Pushes: 0},
}

// EffectOf returns the declared effect for op.
func EffectOf(op Op) (Effect, error) {
	eff, ok := effects[op]
	if !ok {
		return Effect{}, &UnknownOpcodeError{Op: op}
	}
	return eff, nil
}

// ResolveEffect resolves the concrete pop/push counts for one instruction.
// For variable-effect opcodes the counts come from the operand; when the
// operand is left to runtime (HasArg false) the declared minimum is used and
// abstract is true, marking the result as an approximation rather than a
// runtime fact.
func ResolveEffect(in Instruction) (pops, pushes int, abstract bool, err error) {
	eff, err := EffectOf(in.Op)
	if err != nil {
		return 0, 0, false, err
	}
	if !eff.Variable {
		return eff.Pops, eff.Pushes, false, nil
	}
	if !in.HasArg {
		return eff.Pops, eff.Pushes, true, nil
	}
	if in.Arg < 0 {
		return 0, 0, false, fmt.Errorf("negative count %d on %s at offset %d", in.Arg, in.Op, in.Offset)
	}
	switch in.Op {
	case OpCall:
		return in.Arg + 1, 1, false, nil
	case OpBuildList:
		return in.Arg, 1, false, nil
	case OpUnpack:
		return 1, in.Arg, false, nil
	default:
		return 0, 0, false, fmt.Errorf("opcode %s marked variable but has no resolver", in.Op)
	}
}

// NextDepth computes the stack depth after executing in, given the depth
// before it.
func NextDepth(in Instruction, before int) (int, error) {
	pops, pushes, _, err := ResolveEffect(in)
	if err != nil {
		return 0, err
	}
	return before - pops + pushes, nil
}
