package capture

import "stackscope/internal/bytecode"

// FrameInfo identifies the code a newly entered frame executes.
type FrameInfo struct {
	Name     string
	QualName string
	File     string
}

// ValueInfo is the substrate's view of one live operand-stack entry: a type
// name plus a full textual representation. The capture session bounds the
// representation before it reaches the trace.
type ValueInfo struct {
	TypeName string
	Repr     string
}

// Hook receives low-level execution notifications from the substrate, in
// true program order, synchronously on the executing goroutine. Control
// returns to the instrumented code as soon as each callback returns.
//
// A non-nil return value tells the substrate to abandon execution. The stop
// is cooperative: it is observed at an event boundary, after the event that
// was in flight has been recorded, and the substrate exits without further
// notifications.
type Hook interface {
	// OnFrameEnter fires when a call activates a new frame.
	OnFrameEnter(f FrameInfo) error
	// OnStep fires after each instruction, with the frame's operand stack
	// as the instruction left it.
	OnStep(in bytecode.Instruction, stack []ValueInfo) error
	// OnFrameExit fires when a frame returns normally, with the frame's
	// final operand stack.
	OnFrameExit(stack []ValueInfo) error
	// OnUnwind fires once per frame closed by a propagating failure,
	// innermost first.
	OnUnwind(cause string) error
}

// Substrate is the narrow contract an execution engine offers for
// instrumentation: a single hook slot with scoped install/uninstall. The
// capture session holds the slot for exactly the Armed..Draining window and
// releases it on every exit path.
type Substrate interface {
	// InstallHook occupies the slot. Fails if a hook is already installed.
	InstallHook(h Hook) error
	// UninstallHook vacates the slot. Idempotent.
	UninstallHook()
}
