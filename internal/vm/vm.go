// Package vm is a reference interpreter for the instruction set. It is the
// live execution substrate the capture component instruments: it owns the
// process's single hook slot and delivers frame, step, return and unwind
// notifications in true program order.
package vm

import (
	"errors"
	"fmt"
	"io"
	"os"

	"stackscope/internal/bytecode"
	"stackscope/internal/capture"
)

var (
	// ErrNoSuchFunction reports a call target absent from the program.
	ErrNoSuchFunction = errors.New("vm: no such function")
	// ErrHookInstalled rejects a second hook while one occupies the slot.
	ErrHookInstalled = errors.New("vm: hook slot already occupied")
)

// RuntimeError is a failure raised by the executed program itself, either
// explicitly via RAISE or by a runtime fault. It is data to the capture
// layer: unwind events are recorded first, then the error propagates.
type RuntimeError struct {
	Msg string
}

func (e *RuntimeError) Error() string {
	return "runtime error: " + e.Msg
}

// VM executes one program. Not safe for concurrent use; the engine drives
// exactly one control flow at a time.
type VM struct {
	Out     io.Writer
	Globals map[string]Value

	prog   *bytecode.Program
	frames []*Frame
	hook   capture.Hook
}

// New creates a VM for the given program.
func New(p *bytecode.Program) *VM {
	return &VM{
		Out:     os.Stdout,
		Globals: make(map[string]Value),
		prog:    p,
	}
}

// InstallHook implements capture.Substrate. The slot holds at most one hook.
func (m *VM) InstallHook(h capture.Hook) error {
	if m.hook != nil {
		return ErrHookInstalled
	}
	m.hook = h
	return nil
}

// UninstallHook implements capture.Substrate. Idempotent.
func (m *VM) UninstallHook() {
	m.hook = nil
}

// Hooked reports whether the hook slot is occupied.
func (m *VM) Hooked() bool { return m.hook != nil }

// Run executes the named function with args and returns its result.
// Failures raised by the program surface as *RuntimeError after every open
// frame has been unwound (and reported to the hook, innermost first).
func (m *VM) Run(name string, args []Value) (Value, error) {
	fn, ok := m.prog.Lookup(name)
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrNoSuchFunction, name)
	}
	if len(args) != len(fn.Params) {
		return Value{}, fmt.Errorf("vm: %s takes %d arguments, got %d", name, len(fn.Params), len(args))
	}
	// A run abandoned by a hook stop leaves frames behind; drop them so the
	// VM can run again.
	defer func() { m.frames = m.frames[:0] }()
	if err := m.enter(fn, args); err != nil {
		return Value{}, err
	}
	return m.dispatch()
}

// dispatch is the main interpreter loop over the explicit frame stack.
func (m *VM) dispatch() (Value, error) {
	for len(m.frames) > 0 {
		f := m.frames[len(m.frames)-1]
		if f.PC < 0 || f.PC >= m.prog.Len() {
			return Value{}, m.raise(fmt.Sprintf("execution ran past the end of %s", f.Fn.Name))
		}
		in := m.prog.Instrs[f.PC]
		f.PC++

		switch in.Op {
		case bytecode.OpNop:
			// nothing

		case bytecode.OpPushConst:
			if in.Arg < 0 || in.Arg >= len(m.prog.Consts) {
				return Value{}, m.raise(fmt.Sprintf("constant index %d out of range", in.Arg))
			}
			f.push(fromConst(m.prog.Consts[in.Arg]))

		case bytecode.OpLoadName:
			name, err := m.name(in.Arg)
			if err != nil {
				return Value{}, m.raise(err.Error())
			}
			v, ok := m.resolve(f, name)
			if !ok {
				return Value{}, m.raise(fmt.Sprintf("undefined name %q", name))
			}
			f.push(v)

		case bytecode.OpStoreName:
			name, err := m.name(in.Arg)
			if err != nil {
				return Value{}, m.raise(err.Error())
			}
			v, ok := f.pop()
			if !ok {
				return Value{}, m.raise("store from empty stack")
			}
			f.Locals[name] = v

		case bytecode.OpPop:
			if _, ok := f.pop(); !ok {
				return Value{}, m.raise("pop from empty stack")
			}

		case bytecode.OpDup:
			if len(f.Stack) == 0 {
				return Value{}, m.raise("dup on empty stack")
			}
			f.push(f.Stack[len(f.Stack)-1])

		case bytecode.OpSwap:
			n := len(f.Stack)
			if n < 2 {
				return Value{}, m.raise("swap needs two stack entries")
			}
			f.Stack[n-1], f.Stack[n-2] = f.Stack[n-2], f.Stack[n-1]

		case bytecode.OpAdd, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv, bytecode.OpMod:
			b, okB := f.pop()
			a, okA := f.pop()
			if !okA || !okB {
				return Value{}, m.raise(fmt.Sprintf("%s needs two operands", in.Op))
			}
			v, err := arith(in.Op, a, b)
			if err != nil {
				return Value{}, m.raise(err.Error())
			}
			f.push(v)

		case bytecode.OpNeg:
			v, ok := f.pop()
			if !ok || v.Kind != KindInt {
				return Value{}, m.raise("NEG needs an int operand")
			}
			f.push(Int(-v.I))

		case bytecode.OpNot:
			v, ok := f.pop()
			if !ok {
				return Value{}, m.raise("NOT on empty stack")
			}
			f.push(Bool(!v.Truthy()))

		case bytecode.OpCompare:
			b, okB := f.pop()
			a, okA := f.pop()
			if !okA || !okB {
				return Value{}, m.raise("COMPARE needs two operands")
			}
			v, err := compare(bytecode.CmpKind(in.Arg), a, b)
			if err != nil {
				return Value{}, m.raise(err.Error())
			}
			f.push(v)

		case bytecode.OpJump:
			f.PC = in.Arg

		case bytecode.OpJumpIfFalse, bytecode.OpJumpIfTrue:
			v, ok := f.pop()
			if !ok {
				return Value{}, m.raise("conditional jump on empty stack")
			}
			if v.Truthy() == (in.Op == bytecode.OpJumpIfTrue) {
				f.PC = in.Arg
			}

		case bytecode.OpCall:
			if err := m.call(f, in); err != nil {
				return Value{}, err
			}
			// The CALL step event is deferred until the callee's result
			// lands on this frame's stack.
			continue

		case bytecode.OpReturn:
			ret, ok := f.pop()
			if !ok {
				return Value{}, m.raise("return from empty stack")
			}
			if err := m.fireStep(f, in); err != nil {
				return Value{}, err
			}
			if err := m.fireExit(f); err != nil {
				return Value{}, err
			}
			m.frames = m.frames[:len(m.frames)-1]
			if len(m.frames) == 0 {
				return ret, nil
			}
			caller := m.frames[len(m.frames)-1]
			caller.push(ret)
			if caller.pending != nil {
				pending := *caller.pending
				caller.pending = nil
				if err := m.fireStep(caller, pending); err != nil {
					return Value{}, err
				}
			}
			continue

		case bytecode.OpBuildList:
			vs, ok := f.popN(in.Arg)
			if !ok {
				return Value{}, m.raise(fmt.Sprintf("BUILD_LIST %d on stack of depth %d", in.Arg, len(f.Stack)))
			}
			f.push(List(vs...))

		case bytecode.OpUnpack:
			v, ok := f.pop()
			if !ok || v.Kind != KindList {
				return Value{}, m.raise("UNPACK needs a list operand")
			}
			if in.HasArg && len(v.L) != in.Arg {
				return Value{}, m.raise(fmt.Sprintf("UNPACK expected %d elements, list has %d", in.Arg, len(v.L)))
			}
			for i := len(v.L) - 1; i >= 0; i-- {
				f.push(v.L[i])
			}

		case bytecode.OpRaise:
			v, ok := f.pop()
			if !ok {
				return Value{}, m.raise("raise from empty stack")
			}
			if v.Kind == KindStr {
				return Value{}, m.raise(v.S)
			}
			return Value{}, m.raise(v.Repr())

		case bytecode.OpPrint:
			v, ok := f.pop()
			if !ok {
				return Value{}, m.raise("print from empty stack")
			}
			if v.Kind == KindStr {
				fmt.Fprintln(m.Out, v.S)
			} else {
				fmt.Fprintln(m.Out, v.Repr())
			}

		default:
			return Value{}, m.raise(fmt.Sprintf("unimplemented opcode %s", in.Op))
		}

		if err := m.fireStep(f, in); err != nil {
			return Value{}, err
		}
	}
	return Value{}, fmt.Errorf("vm: dispatch on empty frame stack")
}

// call activates the function on top of the operand stack. The caller's
// CALL instruction is remembered on its frame and stepped when the result
// arrives.
func (m *VM) call(f *Frame, in bytecode.Instruction) error {
	args, ok := f.popN(in.Arg)
	if !ok {
		return m.raise(fmt.Sprintf("CALL %d on stack of depth %d", in.Arg, len(f.Stack)))
	}
	callee, ok := f.pop()
	if !ok {
		return m.raise("call with no callee on the stack")
	}
	if callee.Kind != KindFunc {
		return m.raise(fmt.Sprintf("%s is not callable", callee.TypeName()))
	}
	fn, found := m.prog.Lookup(callee.Fn)
	if !found {
		return m.raise(fmt.Sprintf("no such function %q", callee.Fn))
	}
	if len(args) != len(fn.Params) {
		return m.raise(fmt.Sprintf("%s takes %d arguments, got %d", fn.Name, len(fn.Params), len(args)))
	}
	callIn := in
	f.pending = &callIn
	return m.enter(fn, args)
}

// enter pushes a frame and notifies the hook.
func (m *VM) enter(fn bytecode.Func, args []Value) error {
	m.frames = append(m.frames, newFrame(fn, args))
	if m.hook == nil {
		return nil
	}
	return m.hook.OnFrameEnter(capture.FrameInfo{
		Name:     fn.Name,
		QualName: fn.QualName(m.prog),
		File:     fn.File,
	})
}

// raise builds the runtime error and unwinds every open frame, notifying
// the hook innermost first. The hook sees one unwind notification per frame;
// if the hook itself fails mid-unwind, remaining frames are still popped but
// no longer reported.
func (m *VM) raise(msg string) error {
	err := &RuntimeError{Msg: msg}
	notify := m.hook != nil
	for len(m.frames) > 0 {
		if notify {
			if hookErr := m.hook.OnUnwind(err.Error()); hookErr != nil {
				notify = false
			}
		}
		m.frames = m.frames[:len(m.frames)-1]
	}
	return err
}

func (m *VM) fireStep(f *Frame, in bytecode.Instruction) error {
	if m.hook == nil {
		return nil
	}
	return m.hook.OnStep(in, reportStack(f.Stack))
}

func (m *VM) fireExit(f *Frame) error {
	if m.hook == nil {
		return nil
	}
	return m.hook.OnFrameExit(reportStack(f.Stack))
}

func reportStack(stack []Value) []capture.ValueInfo {
	out := make([]capture.ValueInfo, 0, len(stack))
	for _, v := range stack {
		out = append(out, capture.ValueInfo{TypeName: v.TypeName(), Repr: v.Repr()})
	}
	return out
}

// resolve looks a name up in the frame's locals, then the VM globals, then
// the program's function table.
func (m *VM) resolve(f *Frame, name string) (Value, bool) {
	if v, ok := f.Locals[name]; ok {
		return v, true
	}
	if v, ok := m.Globals[name]; ok {
		return v, true
	}
	if _, ok := m.prog.Lookup(name); ok {
		return FuncRef(name), true
	}
	return Value{}, false
}

func (m *VM) name(idx int) (string, error) {
	if idx < 0 || idx >= len(m.prog.Names) {
		return "", fmt.Errorf("name index %d out of range", idx)
	}
	return m.prog.Names[idx], nil
}

func fromConst(c bytecode.Constant) Value {
	switch c.Kind {
	case bytecode.ConstInt:
		return Int(c.I)
	case bytecode.ConstStr:
		return Str(c.S)
	case bytecode.ConstBool:
		return Bool(c.B)
	default:
		return Value{}
	}
}

func arith(op bytecode.Op, a, b Value) (Value, error) {
	if op == bytecode.OpAdd && a.Kind == KindStr && b.Kind == KindStr {
		return Str(a.S + b.S), nil
	}
	if a.Kind != KindInt || b.Kind != KindInt {
		return Value{}, fmt.Errorf("%s on %s and %s", op, a.TypeName(), b.TypeName())
	}
	switch op {
	case bytecode.OpAdd:
		return Int(a.I + b.I), nil
	case bytecode.OpSub:
		return Int(a.I - b.I), nil
	case bytecode.OpMul:
		return Int(a.I * b.I), nil
	case bytecode.OpDiv:
		if b.I == 0 {
			return Value{}, fmt.Errorf("division by zero")
		}
		return Int(a.I / b.I), nil
	case bytecode.OpMod:
		if b.I == 0 {
			return Value{}, fmt.Errorf("modulo by zero")
		}
		return Int(a.I % b.I), nil
	default:
		return Value{}, fmt.Errorf("not an arithmetic opcode: %s", op)
	}
}

func compare(kind bytecode.CmpKind, a, b Value) (Value, error) {
	if a.Kind != b.Kind {
		switch kind {
		case bytecode.CmpEQ:
			return Bool(false), nil
		case bytecode.CmpNE:
			return Bool(true), nil
		default:
			return Value{}, fmt.Errorf("ordered comparison of %s and %s", a.TypeName(), b.TypeName())
		}
	}
	var cmp int
	switch a.Kind {
	case KindInt:
		switch {
		case a.I < b.I:
			cmp = -1
		case a.I > b.I:
			cmp = 1
		}
	case KindStr:
		switch {
		case a.S < b.S:
			cmp = -1
		case a.S > b.S:
			cmp = 1
		}
	default:
		// Unordered kinds support equality only.
		eq := a.Repr() == b.Repr()
		switch kind {
		case bytecode.CmpEQ:
			return Bool(eq), nil
		case bytecode.CmpNE:
			return Bool(!eq), nil
		default:
			return Value{}, fmt.Errorf("ordered comparison of %s values", a.TypeName())
		}
	}
	switch kind {
	case bytecode.CmpLT:
		return Bool(cmp < 0), nil
	case bytecode.CmpLE:
		return Bool(cmp <= 0), nil
	case bytecode.CmpEQ:
		return Bool(cmp == 0), nil
	case bytecode.CmpNE:
		return Bool(cmp != 0), nil
	case bytecode.CmpGT:
		return Bool(cmp > 0), nil
	case bytecode.CmpGE:
		return Bool(cmp >= 0), nil
	default:
		return Value{}, fmt.Errorf("invalid comparison kind %d", uint8(kind))
	}
}
