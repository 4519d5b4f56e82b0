package capture_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/mattn/go-runewidth"

	"stackscope/internal/bytecode"
	"stackscope/internal/capture"
	"stackscope/internal/trace"
)

// fakeSubstrate is a synthetic event source: tests drive the installed hook
// directly, so the session logic is exercised without any real interpreter.
type fakeSubstrate struct {
	hook       capture.Hook
	installErr error
}

func (f *fakeSubstrate) InstallHook(h capture.Hook) error {
	if f.installErr != nil {
		return f.installErr
	}
	if f.hook != nil {
		return errors.New("fake: hook already installed")
	}
	f.hook = h
	return nil
}

func (f *fakeSubstrate) UninstallHook() { f.hook = nil }

func (f *fakeSubstrate) Hooked() bool { return f.hook != nil }

func enter(t *testing.T, h capture.Hook, name string) {
	t.Helper()
	if err := h.OnFrameEnter(capture.FrameInfo{Name: name, QualName: "t." + name}); err != nil {
		t.Fatalf("OnFrameEnter(%s): %v", name, err)
	}
}

func step(t *testing.T, h capture.Hook, stack ...capture.ValueInfo) {
	t.Helper()
	in := bytecode.Instruction{Op: bytecode.OpNop}
	if err := h.OnStep(in, stack); err != nil {
		t.Fatalf("OnStep: %v", err)
	}
}

func TestCaptureLifecycle(t *testing.T) {
	sub := &fakeSubstrate{}
	s, err := capture.Start(sub, capture.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if got := s.State(); got != capture.StateArmed {
		t.Fatalf("state after start: %s", got)
	}
	if !sub.Hooked() {
		t.Fatal("hook not installed")
	}

	enter(t, sub.hook, "main")
	if got := s.State(); got != capture.StateCapturing {
		t.Errorf("state after first frame: %s", got)
	}
	step(t, sub.hook, capture.ValueInfo{TypeName: "int", Repr: "1"})
	if err := sub.hook.OnFrameExit([]capture.ValueInfo{}); err != nil {
		t.Fatal(err)
	}
	if got := s.State(); got != capture.StateDraining {
		t.Errorf("state after outermost exit: %s", got)
	}

	tr, err := s.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if sub.Hooked() {
		t.Error("hook still installed after Stop")
	}
	if got := s.State(); got != capture.StateIdle {
		t.Errorf("state after stop: %s", got)
	}

	if tr.Len() != 3 {
		t.Fatalf("trace length %d, want 3", tr.Len())
	}
	for i, ev := range tr.Events() {
		if ev.Seq != uint64(i) {
			t.Errorf("event %d has seq %d", i, ev.Seq)
		}
	}
	steps := tr.Steps()
	if len(steps) != 1 {
		t.Fatalf("got %d steps", len(steps))
	}
	v := steps[0].Stack[0]
	if v.Abstract || v.TypeName != "int" || v.Repr != "1" {
		t.Errorf("captured descriptor: %+v", v)
	}
	if tr.Stop() != trace.StopEnd {
		t.Errorf("stop reason %s", tr.Stop())
	}
}

func TestSecondStartRejectedWhileActive(t *testing.T) {
	sub := &fakeSubstrate{}
	s, err := capture.Start(sub, capture.Options{})
	if err != nil {
		t.Fatal(err)
	}
	enter(t, sub.hook, "main")
	step(t, sub.hook)

	if _, err := capture.Start(&fakeSubstrate{}, capture.Options{}); !errors.Is(err, capture.ErrCaptureActive) {
		t.Fatalf("second start: %v, want ErrCaptureActive", err)
	}

	// The first session is unaffected by the rejected start.
	step(t, sub.hook)
	tr, err := s.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.Steps()) != 2 {
		t.Errorf("first session lost events: %d steps", len(tr.Steps()))
	}

	// The slot is free again.
	s2, err := capture.Start(&fakeSubstrate{}, capture.Options{})
	if err != nil {
		t.Fatalf("start after stop: %v", err)
	}
	if _, err := s2.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestStopTwice(t *testing.T) {
	sub := &fakeSubstrate{}
	s, err := capture.Start(sub, capture.Options{})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Stop(); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Stop(); !errors.Is(err, capture.ErrAlreadyStopped) {
		t.Fatalf("second stop: %v, want ErrAlreadyStopped", err)
	}
}

func TestUnwindInnermostFirst(t *testing.T) {
	sub := &fakeSubstrate{}
	s, err := capture.Start(sub, capture.Options{})
	if err != nil {
		t.Fatal(err)
	}
	enter(t, sub.hook, "outer")
	enter(t, sub.hook, "middle")
	enter(t, sub.hook, "inner")
	for i := 0; i < 3; i++ {
		if err := sub.hook.OnUnwind("boom"); err != nil {
			t.Fatalf("unwind %d: %v", i, err)
		}
	}

	tr, err := s.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if sub.Hooked() {
		t.Error("hook still installed after exception-path stop")
	}
	if tr.Stop() != trace.StopUnwound {
		t.Errorf("stop reason %s", tr.Stop())
	}

	var unwound []string
	for _, ev := range tr.Events() {
		if ev.Kind != trace.KindExceptionUnwind {
			continue
		}
		f, ok := tr.Frame(ev.FrameID)
		if !ok {
			t.Fatalf("unwind event for unknown frame %d", ev.FrameID)
		}
		unwound = append(unwound, f.Name)
		if ev.Detail != "boom" {
			t.Errorf("unwind detail %q", ev.Detail)
		}
	}
	want := []string{"inner", "middle", "outer"}
	if strings.Join(unwound, ",") != strings.Join(want, ",") {
		t.Errorf("unwind order %v, want %v", unwound, want)
	}
}

func TestReprTruncation(t *testing.T) {
	sub := &fakeSubstrate{}
	s, err := capture.Start(sub, capture.Options{ValueReprLimit: 8})
	if err != nil {
		t.Fatal(err)
	}
	enter(t, sub.hook, "main")
	long := strings.Repeat("длинный", 10)
	step(t, sub.hook, capture.ValueInfo{TypeName: "str", Repr: long})

	tr, err := s.Stop()
	if err != nil {
		t.Fatal(err)
	}
	got := tr.Steps()[0].Stack[0].Repr
	if w := runewidth.StringWidth(got); w > 8 {
		t.Errorf("repr width %d exceeds the limit: %q", w, got)
	}
	if !strings.HasSuffix(got, "…") {
		t.Errorf("truncated repr has no ellipsis: %q", got)
	}
}

func TestReprUnlimitedWhenNegative(t *testing.T) {
	sub := &fakeSubstrate{}
	s, err := capture.Start(sub, capture.Options{ValueReprLimit: -1})
	if err != nil {
		t.Fatal(err)
	}
	enter(t, sub.hook, "main")
	long := strings.Repeat("x", 500)
	step(t, sub.hook, capture.ValueInfo{TypeName: "str", Repr: long})
	tr, err := s.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if got := tr.Steps()[0].Stack[0].Repr; got != long {
		t.Errorf("unbounded repr was modified: %d chars", len(got))
	}
}

func TestInterruptObservedAtNextBoundary(t *testing.T) {
	sub := &fakeSubstrate{}
	s, err := capture.Start(sub, capture.Options{})
	if err != nil {
		t.Fatal(err)
	}
	enter(t, sub.hook, "main")
	step(t, sub.hook)

	s.Interrupt()

	// The event at the boundary is still recorded; the substrate is told
	// to unwind afterwards.
	in := bytecode.Instruction{Op: bytecode.OpNop}
	if err := sub.hook.OnStep(in, nil); !errors.Is(err, capture.ErrStopRequested) {
		t.Fatalf("step after interrupt: %v, want ErrStopRequested", err)
	}

	tr, err := s.Stop()
	if err != nil {
		t.Fatal(err)
	}
	if len(tr.Steps()) != 2 {
		t.Errorf("in-flight event lost: %d steps", len(tr.Steps()))
	}
	if tr.Stop() != trace.StopInterrupted {
		t.Errorf("stop reason %s", tr.Stop())
	}
}

func TestInstallFailureReleasesSlot(t *testing.T) {
	bad := &fakeSubstrate{installErr: errors.New("no hook slot")}
	if _, err := capture.Start(bad, capture.Options{}); err == nil {
		t.Fatal("start succeeded despite install failure")
	}
	// The slot must not be leaked.
	sub := &fakeSubstrate{}
	s, err := capture.Start(sub, capture.Options{})
	if err != nil {
		t.Fatalf("slot leaked by failed start: %v", err)
	}
	if _, err := s.Stop(); err != nil {
		t.Fatal(err)
	}
}

func TestRecursionAttributedByFrameID(t *testing.T) {
	sub := &fakeSubstrate{}
	s, err := capture.Start(sub, capture.Options{})
	if err != nil {
		t.Fatal(err)
	}
	// Two recursive activations of the same function must get distinct
	// frame ids and correct depths.
	enter(t, sub.hook, "fib")
	enter(t, sub.hook, "fib")
	step(t, sub.hook)
	if err := sub.hook.OnFrameExit(nil); err != nil {
		t.Fatal(err)
	}
	if err := sub.hook.OnFrameExit(nil); err != nil {
		t.Fatal(err)
	}

	tr, err := s.Stop()
	if err != nil {
		t.Fatal(err)
	}
	frames := tr.Frames()
	if len(frames) != 2 {
		t.Fatalf("got %d frames", len(frames))
	}
	if frames[0].ID == frames[1].ID {
		t.Error("recursive activations share a frame id")
	}
	if frames[1].ParentID != frames[0].ID || frames[1].Depth != frames[0].Depth+1 {
		t.Errorf("nesting wrong: %+v", frames)
	}
	// The step belongs to the inner activation.
	if got := tr.Steps()[0].FrameID; got != frames[1].ID {
		t.Errorf("step attributed to frame %d, want %d", got, frames[1].ID)
	}
}

func TestRunPropagatesTargetFailureAfterTeardown(t *testing.T) {
	sub := &fakeSubstrate{}
	boom := errors.New("target failed")
	tr, err := capture.Run(sub, func() error {
		enter(t, sub.hook, "main")
		if err := sub.hook.OnUnwind("target failed"); err != nil {
			return err
		}
		return boom
	}, capture.Options{})
	if !errors.Is(err, boom) {
		t.Fatalf("run error %v, want the target's failure", err)
	}
	if tr == nil {
		t.Fatal("partial trace discarded on failure")
	}
	if sub.Hooked() {
		t.Error("hook still installed after failed run")
	}
	if tr.Stop() != trace.StopUnwound {
		t.Errorf("stop reason %s", tr.Stop())
	}
}

func TestStateString(t *testing.T) {
	states := map[capture.State]string{
		capture.StateIdle:      "idle",
		capture.StateArmed:     "armed",
		capture.StateCapturing: "capturing",
		capture.StateDraining:  "draining",
	}
	for st, want := range states {
		if st.String() != want {
			t.Errorf("%d: %s", uint8(st), st)
		}
	}
}
