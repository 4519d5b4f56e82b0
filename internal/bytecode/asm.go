package bytecode

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// ParseError reports a malformed line in textual assembly input.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("asm: line %d: %s", e.Line, e.Msg)
}

// Assemble reads the line-oriented textual form of a program:
//
//	; comment
//	.func main
//	loop:
//	    PUSH_CONST 1
//	    LOAD_NAME x
//	    COMPARE LT
//	    JUMP_IF_FALSE done
//	    JUMP loop
//	done:
//	    RETURN
//
// One instruction per line. `.func name [params...]` opens a callable
// region, `label:` defines a jump target, `?` as the operand of a
// variable-effect opcode leaves the count to runtime. This is a thin input
// adapter standing in for the external compiler; it carries no semantics of
// its own beyond interning operands into the program's pools.
func Assemble(name string, r io.Reader) (*Program, error) {
	p := &Program{Name: name}
	labels := make(map[string]int)
	type fixup struct {
		instr int
		label string
		line  int
	}
	var fixups []fixup

	sc := bufio.NewScanner(r)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := sc.Text()
		if i := strings.IndexByte(line, ';'); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if rest, ok := strings.CutPrefix(line, ".func"); ok {
			fields := strings.Fields(rest)
			if len(fields) == 0 {
				return nil, &ParseError{Line: lineno, Msg: "missing function name after .func"}
			}
			p.Funcs = append(p.Funcs, Func{
				Name:   fields[0],
				Entry:  len(p.Instrs),
				Params: fields[1:],
			})
			continue
		}

		if lbl, ok := strings.CutSuffix(line, ":"); ok && !strings.ContainsAny(lbl, " \t") {
			if _, dup := labels[lbl]; dup {
				return nil, &ParseError{Line: lineno, Msg: fmt.Sprintf("duplicate label %q", lbl)}
			}
			labels[lbl] = len(p.Instrs)
			continue
		}

		mnemonic, operand, hasOperand := strings.Cut(line, " ")
		operand = strings.TrimSpace(operand)
		op, err := ParseOp(mnemonic)
		if err != nil {
			return nil, &ParseError{Line: lineno, Msg: err.Error()}
		}

		in := Instruction{Op: op, Line: lineno, Offset: len(p.Instrs)}
		switch {
		case !hasOperand || operand == "":
			// no operand
		case operand == "?":
			eff, err := EffectOf(op)
			if err != nil || !eff.Variable {
				return nil, &ParseError{Line: lineno, Msg: fmt.Sprintf("%s does not take a runtime-resolved count", op)}
			}
		case op.IsJump():
			in.HasArg = true
			if target, err := strconv.Atoi(operand); err == nil {
				in.Arg = target
			} else {
				fixups = append(fixups, fixup{instr: len(p.Instrs), label: operand, line: lineno})
			}
		case op == OpCompare:
			kind, err := ParseCmpKind(operand)
			if err != nil {
				return nil, &ParseError{Line: lineno, Msg: err.Error()}
			}
			in.HasArg = true
			in.Arg = int(kind)
		case op == OpPushConst:
			c, err := parseConstant(operand)
			if err != nil {
				return nil, &ParseError{Line: lineno, Msg: err.Error()}
			}
			in.HasArg = true
			in.Arg = p.constIndex(c)
		case op == OpLoadName || op == OpStoreName:
			in.HasArg = true
			in.Arg = p.nameIndex(operand)
		default:
			n, err := strconv.Atoi(operand)
			if err != nil {
				return nil, &ParseError{Line: lineno, Msg: fmt.Sprintf("bad operand %q for %s", operand, op)}
			}
			// Counts are encoded as a single byte in the wire form.
			if _, err := safecast.Conv[uint8](n); err != nil {
				return nil, &ParseError{Line: lineno, Msg: fmt.Sprintf("count %d out of range for %s: %v", n, op, err)}
			}
			in.HasArg = true
			in.Arg = n
		}
		p.Instrs = append(p.Instrs, in)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("asm: read: %w", err)
	}

	for _, f := range fixups {
		target, ok := labels[f.label]
		if !ok {
			return nil, &ParseError{Line: f.line, Msg: fmt.Sprintf("undefined label %q", f.label)}
		}
		p.Instrs[f.instr].Arg = target
	}
	return p, nil
}

// parseConstant accepts an integer, a double-quoted string, or true/false.
func parseConstant(s string) (Constant, error) {
	switch {
	case s == "true":
		return BoolConst(true), nil
	case s == "false":
		return BoolConst(false), nil
	case strings.HasPrefix(s, `"`):
		unq, err := strconv.Unquote(s)
		if err != nil {
			return Constant{}, fmt.Errorf("bad string constant %s: %w", s, err)
		}
		return StrConst(unq), nil
	default:
		v, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return Constant{}, fmt.Errorf("bad constant %q (expected: int, quoted string, true or false)", s)
		}
		return IntConst(v), nil
	}
}
