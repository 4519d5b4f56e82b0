package bytecode

import (
	"errors"
	"strings"
	"testing"
)

func mustAssemble(t *testing.T, src string) *Program {
	t.Helper()
	p, err := Assemble("test", strings.NewReader(src))
	if err != nil {
		t.Fatalf("assemble: %v", err)
	}
	return p
}

func TestAssembleBasicProgram(t *testing.T) {
	p := mustAssemble(t, `
; compute x = 1 + 2
.func main
    PUSH_CONST 1
    PUSH_CONST 2
    ADD
    STORE_NAME x
    PUSH_CONST 0
    RETURN
`)
	if len(p.Funcs) != 1 || p.Funcs[0].Name != "main" || p.Funcs[0].Entry != 0 {
		t.Fatalf("unexpected function table: %+v", p.Funcs)
	}
	want := []Op{OpPushConst, OpPushConst, OpAdd, OpStoreName, OpPushConst, OpReturn}
	if len(p.Instrs) != len(want) {
		t.Fatalf("got %d instructions, want %d", len(p.Instrs), len(want))
	}
	for i, op := range want {
		if p.Instrs[i].Op != op {
			t.Errorf("instr %d: got %s, want %s", i, p.Instrs[i].Op, op)
		}
		if p.Instrs[i].Offset != i {
			t.Errorf("instr %d: offset %d", i, p.Instrs[i].Offset)
		}
	}
	// 1, 2 and 0 interned; x in the name table.
	if len(p.Consts) != 3 {
		t.Errorf("constant pool: %v", p.Consts)
	}
	if len(p.Names) != 1 || p.Names[0] != "x" {
		t.Errorf("name table: %v", p.Names)
	}
}

func TestAssembleInternsConstants(t *testing.T) {
	p := mustAssemble(t, `
PUSH_CONST 7
PUSH_CONST 7
PUSH_CONST "seven"
`)
	if len(p.Consts) != 2 {
		t.Fatalf("expected 2 pooled constants, got %v", p.Consts)
	}
	if p.Instrs[0].Arg != p.Instrs[1].Arg {
		t.Error("equal constants not shared")
	}
}

func TestAssembleLabels(t *testing.T) {
	p := mustAssemble(t, `
.func main
loop:
    PUSH_CONST 1
    JUMP_IF_TRUE loop
    PUSH_CONST 0
    RETURN
`)
	if got := p.Instrs[1].Arg; got != 0 {
		t.Errorf("backward label resolved to %d, want 0", got)
	}

	p = mustAssemble(t, `
PUSH_CONST 1
JUMP_IF_FALSE done
NOP
done:
NOP
`)
	if got := p.Instrs[1].Arg; got != 3 {
		t.Errorf("forward label resolved to %d, want 3", got)
	}
}

func TestAssembleRuntimeCount(t *testing.T) {
	p := mustAssemble(t, "UNPACK ?")
	if p.Instrs[0].HasArg {
		t.Error("runtime-resolved count should leave HasArg unset")
	}
	if _, err := Assemble("bad", strings.NewReader("ADD ?")); err == nil {
		t.Error("expected an error: ADD has a fixed effect")
	}
}

func TestAssembleCompare(t *testing.T) {
	p := mustAssemble(t, "COMPARE GE")
	if CmpKind(p.Instrs[0].Arg) != CmpGE {
		t.Errorf("got %s", CmpKind(p.Instrs[0].Arg))
	}
}

func TestAssembleErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"unknown mnemonic", "FROB 1"},
		{"undefined label", "JUMP nowhere"},
		{"duplicate label", "x:\nNOP\nx:\nNOP"},
		{"bad constant", `PUSH_CONST 12x`},
		{"count out of range", "BUILD_LIST 300"},
		{"missing func name", ".func"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble("bad", strings.NewReader(tt.src))
			if err == nil {
				t.Fatal("expected an error")
			}
			var perr *ParseError
			if !errors.As(err, &perr) {
				t.Fatalf("expected ParseError, got %T: %v", err, err)
			}
			if perr.Line == 0 {
				t.Error("ParseError carries no line number")
			}
		})
	}
}

func TestProgramLookup(t *testing.T) {
	p := mustAssemble(t, `
.func main
    PUSH_CONST 0
    RETURN
.func helper a b
    LOAD_NAME a
    RETURN
`)
	fn, ok := p.Lookup("helper")
	if !ok {
		t.Fatal("helper not found")
	}
	if fn.Entry != 2 || len(fn.Params) != 2 {
		t.Errorf("unexpected func: %+v", fn)
	}
	if got, ok := p.FuncAt(3); !ok || got.Name != "helper" {
		t.Errorf("FuncAt(3) = %+v, %v", got, ok)
	}
	if got, ok := p.FuncAt(1); !ok || got.Name != "main" {
		t.Errorf("FuncAt(1) = %+v, %v", got, ok)
	}
	if _, ok := p.Lookup("absent"); ok {
		t.Error("lookup of absent function succeeded")
	}
}
