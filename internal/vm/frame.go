package vm

import "stackscope/internal/bytecode"

// Frame is a function activation record on the VM's explicit call stack.
type Frame struct {
	Fn     bytecode.Func
	PC     int // absolute instruction offset
	Stack  []Value
	Locals map[string]Value

	// pending is the caller-side CALL instruction whose Step event is
	// deferred until the callee returns and its result lands on this
	// frame's stack.
	pending *bytecode.Instruction
}

// newFrame binds args to the function's parameters and positions the frame
// at its entry offset.
func newFrame(fn bytecode.Func, args []Value) *Frame {
	locals := make(map[string]Value, len(fn.Params))
	for i, p := range fn.Params {
		locals[p] = args[i]
	}
	return &Frame{Fn: fn, PC: fn.Entry, Locals: locals}
}

func (f *Frame) push(v Value) {
	f.Stack = append(f.Stack, v)
}

func (f *Frame) pop() (Value, bool) {
	if len(f.Stack) == 0 {
		return Value{}, false
	}
	v := f.Stack[len(f.Stack)-1]
	f.Stack = f.Stack[:len(f.Stack)-1]
	return v, true
}

func (f *Frame) popN(n int) ([]Value, bool) {
	if n > len(f.Stack) {
		return nil, false
	}
	vs := make([]Value, n)
	copy(vs, f.Stack[len(f.Stack)-n:])
	f.Stack = f.Stack[:len(f.Stack)-n]
	return vs, true
}
