package trace

import "fmt"

// StopReason records why a trace's producing session ended. It is a tag on
// the finished trace, not an error: a trace cut short by a step cap or a
// revisit guard is still valid up to its last event.
type StopReason uint8

const (
	// StopEnd: the instruction sequence ran to its end or the outermost
	// frame returned.
	StopEnd StopReason = iota + 1
	// StopLoop: static simulation revisited an offset already executed in
	// this pass (loop-termination guard).
	StopLoop
	// StopStepLimit: the configured step cap was reached; the partial trace
	// is returned, not discarded.
	StopStepLimit
	// StopInterrupted: an external stop request ended the capture.
	StopInterrupted
	// StopUnwound: the instrumented code failed and every open frame was
	// unwound.
	StopUnwound
)

// String returns the string representation of StopReason.
func (r StopReason) String() string {
	switch r {
	case StopEnd:
		return "end"
	case StopLoop:
		return "loop"
	case StopStepLimit:
		return "step-limit"
	case StopInterrupted:
		return "interrupted"
	case StopUnwound:
		return "unwound"
	default:
		return fmt.Sprintf("StopReason(%d)", uint8(r))
	}
}
