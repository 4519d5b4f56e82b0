// Package sim replays an instruction sequence against an abstract operand
// stack, without executing real code, and produces the step-indexed trace of
// stack snapshots the rendering layer visualizes.
package sim

import (
	"fmt"

	"stackscope/internal/bytecode"
	"stackscope/internal/trace"
)

// BranchPolicy fixes how the simulator resolves conditional jumps. Only one
// policy exists: follow the fall-through edge, never the target, so a single
// deterministic path is explored per pass. The skipped target is recorded on
// the Step event rather than silently dropped.
type BranchPolicy uint8

const (
	FallthroughOnly BranchPolicy = iota + 1
)

// String returns the string representation of BranchPolicy.
func (p BranchPolicy) String() string {
	switch p {
	case FallthroughOnly:
		return "fallthrough"
	default:
		return fmt.Sprintf("BranchPolicy(%d)", uint8(p))
	}
}

// ParseBranchPolicy converts a string to a BranchPolicy.
func ParseBranchPolicy(s string) (BranchPolicy, error) {
	switch s {
	case "fallthrough":
		return FallthroughOnly, nil
	default:
		return 0, fmt.Errorf("invalid branch policy: %q (expected: fallthrough)", s)
	}
}

// Options configures one simulation pass.
type Options struct {
	MaxSteps int // 0 means no cap
	Branch   BranchPolicy
}

// DefaultMaxSteps caps runaway loops when the caller sets no explicit limit
// through config.
const DefaultMaxSteps = 10000

// Simulate replays the program from entry against an abstract stack and
// returns the resulting trace. The trace's stop reason distinguishes normal
// termination (running off the end of the sequence, or RETURN/RAISE), the
// loop revisit guard, and the step cap; none of these are errors, and the
// trace is valid up to its last event in every case.
//
// Errors are reserved for engine-invalidating defects: an opcode missing
// from the stack-effect table, or abstract-stack underflow on a malformed
// sequence.
func Simulate(p *bytecode.Program, entry int, opts Options) (*trace.Trace, error) {
	if opts.Branch == 0 {
		opts.Branch = FallthroughOnly
	}
	if entry < 0 || entry >= p.Len() {
		return nil, fmt.Errorf("sim: entry offset %d out of range [0,%d)", entry, p.Len())
	}

	b := trace.NewBuilder()
	name, qual, file := entryIdentity(p, entry)
	frameID, err := b.EnterFrame(name, qual, file)
	if err != nil {
		return nil, err
	}

	stack := trace.Snapshot{}
	visited := make(map[int]bool, p.Len())
	pc := entry
	steps := 0
	reason := trace.StopEnd

	for {
		if pc < 0 || pc >= p.Len() {
			reason = trace.StopEnd
			break
		}
		if visited[pc] {
			// Loop guard: a revisited offset ends the pass at a normal
			// frame boundary, not with an error.
			reason = trace.StopLoop
			break
		}
		if opts.MaxSteps > 0 && steps >= opts.MaxSteps {
			reason = trace.StopStepLimit
			break
		}
		visited[pc] = true

		in := p.Instrs[pc]
		pops, pushes, abstract, err := bytecode.ResolveEffect(in)
		if err != nil {
			return nil, fmt.Errorf("sim: offset %d: %w", pc, err)
		}
		if pops > len(stack) {
			return nil, fmt.Errorf("sim: offset %d: %s pops %d from stack of depth %d", pc, in.Op, pops, len(stack))
		}
		stack = stack[:len(stack)-pops]
		for i := 0; i < pushes; i++ {
			stack = append(stack, trace.AbstractValue())
		}

		detail := ""
		if abstract {
			// Declared-minimum approximation for a runtime-resolved count.
			detail = "approximate effect: count resolved at runtime"
		}
		next := pc + 1
		switch {
		case in.Op == bytecode.OpJump:
			next = in.Arg
		case in.Op.IsConditionalJump():
			// Fall-through only, by policy. The unexplored edge is recorded.
			detail = fmt.Sprintf("branch not taken: target %d", in.Arg)
		}

		if err := b.Step(frameID, in, stack, detail); err != nil {
			return nil, err
		}
		steps++

		if in.Op == bytecode.OpReturn || in.Op == bytecode.OpRaise {
			reason = trace.StopEnd
			pc = p.Len() // past the end; frame is done
			break
		}
		pc = next
	}

	if err := b.ExitFrame(frameID, stack); err != nil {
		return nil, err
	}
	return b.Finish(reason), nil
}

// entryIdentity names the simulated frame after the function whose region
// contains the entry offset, falling back to the program name.
func entryIdentity(p *bytecode.Program, entry int) (name, qual, file string) {
	if fn, ok := p.FuncAt(entry); ok {
		return fn.Name, fn.QualName(p), fn.File
	}
	if p.Name != "" {
		return p.Name, p.Name, ""
	}
	return "main", "main", ""
}
