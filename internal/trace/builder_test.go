package trace

import (
	"testing"

	"stackscope/internal/bytecode"
)

func step(t *testing.T, b *Builder, frameID uint64, op bytecode.Op, stack Snapshot) {
	t.Helper()
	in := bytecode.Instruction{Op: op}
	if err := b.Step(frameID, in, stack, ""); err != nil {
		t.Fatalf("step: %v", err)
	}
}

func TestSeqGapless(t *testing.T) {
	b := NewBuilder()
	id, err := b.EnterFrame("main", "test.main", "")
	if err != nil {
		t.Fatal(err)
	}
	step(t, b, id, bytecode.OpPushConst, Snapshot{AbstractValue()})
	step(t, b, id, bytecode.OpPop, Snapshot{})
	if err := b.ExitFrame(id, Snapshot{}); err != nil {
		t.Fatal(err)
	}
	tr := b.Finish(StopEnd)

	if tr.Len() != 4 {
		t.Fatalf("trace length %d, want 4", tr.Len())
	}
	for i, ev := range tr.Events() {
		if ev.Seq != uint64(i) {
			t.Errorf("event %d has seq %d", i, ev.Seq)
		}
	}
}

func TestFrameDepthAndParents(t *testing.T) {
	b := NewBuilder()
	outer, _ := b.EnterFrame("outer", "t.outer", "")
	inner, _ := b.EnterFrame("inner", "t.inner", "")
	if err := b.ExitFrame(inner, Snapshot{}); err != nil {
		t.Fatal(err)
	}
	if err := b.ExitFrame(outer, Snapshot{}); err != nil {
		t.Fatal(err)
	}
	tr := b.Finish(StopEnd)

	fo, ok := tr.Frame(outer)
	if !ok || fo.Depth != 0 || fo.ParentID != 0 {
		t.Errorf("outer frame: %+v", fo)
	}
	fi, ok := tr.Frame(inner)
	if !ok || fi.Depth != 1 || fi.ParentID != outer {
		t.Errorf("inner frame: %+v", fi)
	}
	if len(tr.Frames()) != 2 {
		t.Errorf("frame count %d", len(tr.Frames()))
	}
}

func TestBuilderRejectsEventsForNonInnermostFrame(t *testing.T) {
	b := NewBuilder()
	outer, _ := b.EnterFrame("outer", "t.outer", "")
	if _, err := b.EnterFrame("inner", "t.inner", ""); err != nil {
		t.Fatal(err)
	}
	if err := b.Step(outer, bytecode.Instruction{Op: bytecode.OpNop}, Snapshot{}, ""); err == nil {
		t.Error("step attributed to a non-innermost frame was accepted")
	}
	if err := b.ExitFrame(outer, Snapshot{}); err == nil {
		t.Error("exit of a non-innermost frame was accepted")
	}
}

func TestBuilderRejectsEventsWithNoOpenFrame(t *testing.T) {
	b := NewBuilder()
	if err := b.Step(1, bytecode.Instruction{Op: bytecode.OpNop}, Snapshot{}, ""); err == nil {
		t.Error("step with no open frame was accepted")
	}
	if err := b.Unwind(1, "boom"); err == nil {
		t.Error("unwind with no open frame was accepted")
	}
}

func TestSealedBuilder(t *testing.T) {
	b := NewBuilder()
	id, _ := b.EnterFrame("main", "t.main", "")
	_ = b.ExitFrame(id, Snapshot{})
	b.Finish(StopEnd)

	if _, err := b.EnterFrame("again", "t.again", ""); err == nil {
		t.Error("EnterFrame on a sealed builder was accepted")
	}
	if err := b.Step(id, bytecode.Instruction{Op: bytecode.OpNop}, Snapshot{}, ""); err == nil {
		t.Error("Step on a sealed builder was accepted")
	}
}

func TestSnapshotIsolation(t *testing.T) {
	b := NewBuilder()
	id, _ := b.EnterFrame("main", "t.main", "")
	stack := Snapshot{{TypeName: "int", Repr: "1"}}
	step(t, b, id, bytecode.OpPushConst, stack)
	stack[0].Repr = "mutated"
	_ = b.ExitFrame(id, stack)
	tr := b.Finish(StopEnd)

	ev, err := tr.At(1)
	if err != nil {
		t.Fatal(err)
	}
	if ev.Stack[0].Repr != "1" {
		t.Errorf("trace snapshot shares memory with the producer: %q", ev.Stack[0].Repr)
	}
}

func TestViews(t *testing.T) {
	b := NewBuilder()
	outer, _ := b.EnterFrame("outer", "t.outer", "")
	step(t, b, outer, bytecode.OpPushConst, Snapshot{AbstractValue()})
	inner, _ := b.EnterFrame("inner", "t.inner", "")
	step(t, b, inner, bytecode.OpNop, Snapshot{})
	_ = b.ExitFrame(inner, Snapshot{})
	_ = b.ExitFrame(outer, Snapshot{})
	tr := b.Finish(StopEnd)

	steps := tr.Steps()
	if len(steps) != 2 {
		t.Fatalf("got %d steps, want 2", len(steps))
	}
	for _, ev := range steps {
		if ev.Kind != KindStep {
			t.Errorf("non-step event in Steps view: %s", ev.Kind)
		}
	}

	outerEvents := tr.FrameEvents(outer)
	if len(outerEvents) != 3 { // enter, step, exit
		t.Fatalf("outer frame has %d events, want 3", len(outerEvents))
	}
	for _, ev := range outerEvents {
		if ev.FrameID != outer {
			t.Errorf("foreign event in frame view: frame %d", ev.FrameID)
		}
	}

	if _, err := tr.At(tr.Len()); err == nil {
		t.Error("At past the end succeeded")
	}
	if _, ok := tr.Frame(99); ok {
		t.Error("lookup of unknown frame succeeded")
	}
}

func TestFrameExitOrderingInvariant(t *testing.T) {
	// Nested frames must close before their parent: enter A, enter B,
	// exit B, exit A is the only legal shape, and the builder enforces it.
	b := NewBuilder()
	a, _ := b.EnterFrame("a", "t.a", "")
	bID, _ := b.EnterFrame("b", "t.b", "")
	if err := b.ExitFrame(bID, Snapshot{}); err != nil {
		t.Fatal(err)
	}
	if err := b.ExitFrame(a, Snapshot{}); err != nil {
		t.Fatal(err)
	}
	tr := b.Finish(StopEnd)

	var enteredA, exitedA bool
	for _, ev := range tr.Events() {
		switch {
		case ev.FrameID == a && ev.Kind == KindFrameEnter:
			enteredA = true
		case ev.FrameID == a && ev.Kind == KindFrameExit:
			exitedA = true
		case ev.FrameID == bID && !enteredA:
			t.Error("child frame event before parent's enter")
		case ev.FrameID == bID && exitedA:
			t.Error("child frame event after parent's exit")
		}
	}
}
