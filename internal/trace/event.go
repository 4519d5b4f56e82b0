package trace

import (
	"fmt"

	"stackscope/internal/bytecode"
)

// Kind represents the type of trace event.
type Kind uint8

const (
	// KindFrameEnter marks activation of a new frame.
	KindFrameEnter Kind = iota + 1
	// KindStep records one executed or simulated instruction.
	KindStep
	// KindFrameExit marks a frame returning normally.
	KindFrameExit
	// KindExceptionUnwind marks a frame being unwound by a propagating failure.
	KindExceptionUnwind
)

// String returns the string representation of Kind.
func (k Kind) String() string {
	switch k {
	case KindFrameEnter:
		return "enter"
	case KindStep:
		return "step"
	case KindFrameExit:
		return "exit"
	case KindExceptionUnwind:
		return "unwind"
	default:
		return "unknown"
	}
}

// ParseKind converts a string to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "enter":
		return KindFrameEnter, nil
	case "step":
		return KindStep, nil
	case "exit":
		return KindFrameExit, nil
	case "unwind":
		return KindExceptionUnwind, nil
	default:
		return 0, fmt.Errorf("invalid event kind: %q (expected: enter|step|exit|unwind)", s)
	}
}

// Event is one record in a trace. Seq is gapless and strictly increasing
// within one trace, starting at 0. Stack is the operand-stack snapshot after
// the event took effect in its frame.
type Event struct {
	Seq     uint64
	FrameID uint64
	Kind    Kind
	Instr   *bytecode.Instruction // nil for non-Step events
	Stack   Snapshot
	Detail  string // optional, e.g. "branch not taken: target 7"
}
