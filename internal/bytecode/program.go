package bytecode

import (
	"fmt"
	"strconv"
)

// ConstKind tags a constant pool entry.
type ConstKind uint8

const (
	ConstInt ConstKind = iota
	ConstStr
	ConstBool
)

// Constant is one entry in a program's constant pool.
type Constant struct {
	Kind ConstKind
	I    int64
	S    string
	B    bool
}

// IntConst builds an integer constant.
func IntConst(v int64) Constant { return Constant{Kind: ConstInt, I: v} }

// StrConst builds a string constant.
func StrConst(v string) Constant { return Constant{Kind: ConstStr, S: v} }

// BoolConst builds a boolean constant.
func BoolConst(v bool) Constant { return Constant{Kind: ConstBool, B: v} }

// String renders the constant the way the disassembly shows it.
func (c Constant) String() string {
	switch c.Kind {
	case ConstInt:
		return strconv.FormatInt(c.I, 10)
	case ConstStr:
		return strconv.Quote(c.S)
	case ConstBool:
		return strconv.FormatBool(c.B)
	default:
		return fmt.Sprintf("Constant(%d)", c.Kind)
	}
}

// Func describes one callable region of a program: a contiguous run of
// instructions starting at Entry and ending at its RETURN/RAISE.
type Func struct {
	Name   string
	Entry  int      // absolute offset of the first instruction
	Params []string // bound in declaration order, first argument pushed first
	File   string   // source file, "" if unknown
}

// QualName returns the function's qualified name within the program.
func (f Func) QualName(p *Program) string {
	if p == nil || p.Name == "" {
		return f.Name
	}
	return p.Name + "." + f.Name
}

// Program is an ordered, immutable instruction sequence together with the
// pools its instructions index into. Programs are produced by an external
// compiler or by Assemble; the engine never mutates one.
type Program struct {
	Name   string
	Instrs []Instruction
	Consts []Constant
	Names  []string
	Funcs  []Func
}

// Len returns the number of instructions.
func (p *Program) Len() int { return len(p.Instrs) }

// At returns the instruction at offset.
func (p *Program) At(offset int) (Instruction, error) {
	if offset < 0 || offset >= len(p.Instrs) {
		return Instruction{}, fmt.Errorf("instruction offset %d out of range [0,%d)", offset, len(p.Instrs))
	}
	return p.Instrs[offset], nil
}

// Lookup returns the function with the given name.
func (p *Program) Lookup(name string) (Func, bool) {
	for _, fn := range p.Funcs {
		if fn.Name == name {
			return fn, true
		}
	}
	return Func{}, false
}

// FuncAt returns the function whose region contains offset, preferring the
// function with the greatest Entry not beyond offset.
func (p *Program) FuncAt(offset int) (Func, bool) {
	best := -1
	for i, fn := range p.Funcs {
		if fn.Entry <= offset && (best < 0 || fn.Entry > p.Funcs[best].Entry) {
			best = i
		}
	}
	if best < 0 {
		return Func{}, false
	}
	return p.Funcs[best], true
}

// nameIndex returns the index of name in the name table, appending it if
// absent. Used by the assembler only; decoded programs are immutable.
func (p *Program) nameIndex(name string) int {
	for i, n := range p.Names {
		if n == name {
			return i
		}
	}
	p.Names = append(p.Names, name)
	return len(p.Names) - 1
}

// constIndex interns c into the constant pool.
func (p *Program) constIndex(c Constant) int {
	for i, have := range p.Consts {
		if have == c {
			return i
		}
	}
	p.Consts = append(p.Consts, c)
	return len(p.Consts) - 1
}
