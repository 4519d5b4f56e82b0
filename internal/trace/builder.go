package trace

import (
	"fmt"

	"stackscope/internal/bytecode"
)

// Builder assembles a trace. It is append-only and is used by exactly two
// producers, the static simulator and dynamic capture; once Finish is called
// the builder is sealed and the trace immutable.
//
// Builder errors mean the producer's own bookkeeping went wrong (events for
// a frame that is not open, exits without matching enters). They are never
// swallowed: a corrupted frame model makes all later events meaningless, so
// producers must abort the session on the first builder error.
type Builder struct {
	events []Event
	frames []Frame
	byID   map[uint64]int
	open   []uint64 // stack of open frame ids, innermost last
	nextID uint64
	sealed bool
}

// NewBuilder creates an empty trace under construction.
func NewBuilder() *Builder {
	return &Builder{byID: make(map[uint64]int), nextID: 1}
}

// Depth returns the number of currently open frames.
func (b *Builder) Depth() int { return len(b.open) }

// Current returns the innermost open frame id, or 0 when no frame is open.
func (b *Builder) Current() uint64 {
	if len(b.open) == 0 {
		return 0
	}
	return b.open[len(b.open)-1]
}

// EnterFrame opens a new frame nested in the current one and appends its
// FrameEnter event. The new frame's operand stack starts empty.
func (b *Builder) EnterFrame(name, qualName, file string) (uint64, error) {
	if b.sealed {
		return 0, errSealed("EnterFrame")
	}
	f := Frame{
		ID:       b.nextID,
		Name:     name,
		QualName: qualName,
		File:     file,
	}
	b.nextID++
	if n := len(b.open); n > 0 {
		parent := b.frames[b.byID[b.open[n-1]]]
		f.ParentID = parent.ID
		f.Depth = parent.Depth + 1
	}
	b.byID[f.ID] = len(b.frames)
	b.frames = append(b.frames, f)
	b.open = append(b.open, f.ID)
	b.append(Event{FrameID: f.ID, Kind: KindFrameEnter, Stack: Snapshot{}})
	return f.ID, nil
}

// Step appends one Step event for the innermost open frame. The snapshot is
// cloned so later producer mutation cannot reach into the trace.
func (b *Builder) Step(frameID uint64, in bytecode.Instruction, stack Snapshot, detail string) error {
	if b.sealed {
		return errSealed("Step")
	}
	if err := b.checkInnermost(frameID, "step"); err != nil {
		return err
	}
	instr := in
	b.append(Event{
		FrameID: frameID,
		Kind:    KindStep,
		Instr:   &instr,
		Stack:   stack.Clone(),
		Detail:  detail,
	})
	return nil
}

// ExitFrame closes the innermost open frame with a FrameExit event.
func (b *Builder) ExitFrame(frameID uint64, stack Snapshot) error {
	if b.sealed {
		return errSealed("ExitFrame")
	}
	if err := b.checkInnermost(frameID, "exit"); err != nil {
		return err
	}
	b.open = b.open[:len(b.open)-1]
	b.append(Event{FrameID: frameID, Kind: KindFrameExit, Stack: stack.Clone()})
	return nil
}

// Unwind closes the innermost open frame with an ExceptionUnwind event.
// Producers call it once per open frame, innermost first, while a failure
// propagates.
func (b *Builder) Unwind(frameID uint64, detail string) error {
	if b.sealed {
		return errSealed("Unwind")
	}
	if err := b.checkInnermost(frameID, "unwind"); err != nil {
		return err
	}
	b.open = b.open[:len(b.open)-1]
	b.append(Event{FrameID: frameID, Kind: KindExceptionUnwind, Stack: Snapshot{}, Detail: detail})
	return nil
}

// Finish seals the builder and returns the immutable trace tagged with the
// reason the session ended.
func (b *Builder) Finish(reason StopReason) *Trace {
	b.sealed = true
	frames := make([]Frame, len(b.frames))
	copy(frames, b.frames)
	byID := make(map[uint64]int, len(b.byID))
	for id, i := range b.byID {
		byID[id] = i
	}
	return &Trace{events: b.events, frames: frames, byID: byID, stop: reason}
}

func (b *Builder) append(ev Event) {
	ev.Seq = uint64(len(b.events))
	b.events = append(b.events, ev)
}

func (b *Builder) checkInnermost(frameID uint64, what string) error {
	if len(b.open) == 0 {
		return fmt.Errorf("trace: %s for frame %d with no open frame", what, frameID)
	}
	if cur := b.open[len(b.open)-1]; cur != frameID {
		return fmt.Errorf("trace: %s for frame %d but innermost open frame is %d", what, frameID, cur)
	}
	return nil
}

func errSealed(op string) error {
	return fmt.Errorf("trace: %s on a sealed builder", op)
}
