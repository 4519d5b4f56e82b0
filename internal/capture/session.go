// Package capture attaches low-overhead instrumentation to a live run and
// assembles the delivered execution events into an ordered trace with
// concrete values. The execution substrate is injected through the narrow
// Hook/Substrate contract, so the session logic is testable against a
// synthetic event source.
package capture

import (
	"errors"
	"fmt"
	"sync"

	"stackscope/internal/bytecode"
	"stackscope/internal/trace"
)

var (
	// ErrCaptureActive rejects a start request while another session holds
	// the capture slot.
	ErrCaptureActive = errors.New("capture: a session is already active")
	// ErrAlreadyStopped rejects reuse of a stale session handle.
	ErrAlreadyStopped = errors.New("capture: session already stopped")
	// ErrStopRequested is returned to the substrate from a hook callback
	// once an external Stop has been requested.
	ErrStopRequested = errors.New("capture: stop requested")
)

// State of a capture session.
type State uint8

const (
	StateIdle State = iota
	StateArmed
	StateCapturing
	StateDraining
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateArmed:
		return "armed"
	case StateCapturing:
		return "capturing"
	case StateDraining:
		return "draining"
	default:
		return fmt.Sprintf("State(%d)", uint8(s))
	}
}

// Options configures a capture session.
type Options struct {
	// ValueReprLimit truncates captured value representations to this many
	// display cells. 0 applies DefaultReprLimit; negative disables the bound.
	ValueReprLimit int
}

func (o Options) reprLimit() int {
	switch {
	case o.ValueReprLimit == 0:
		return DefaultReprLimit
	case o.ValueReprLimit < 0:
		return 0
	default:
		return o.ValueReprLimit
	}
}

// Session is one dynamic capture: Idle → Armed (hook installed) → Capturing
// (first frame entered) → Draining (outermost frame closed or Stop called)
// → Idle (hook removed, trace handed back, handle invalidated).
type Session struct {
	mu      sync.Mutex
	sub     Substrate
	b       *trace.Builder
	open    []uint64 // capture-side frame stack, innermost last
	limit   int
	state   State
	stopped bool // handle invalidated
	stopReq bool
	unwound bool
	err     error // first bookkeeping error; invalidates the session
}

// Start installs instrumentation on the substrate and arms a new session.
// Only one session may hold the capture slot; concurrent starts fail with
// ErrCaptureActive and leave the active session untouched.
func Start(sub Substrate, opts Options) (*Session, error) {
	s := &Session{
		sub:   sub,
		b:     trace.NewBuilder(),
		limit: opts.reprLimit(),
		state: StateIdle,
	}
	if err := acquireSlot(s); err != nil {
		return nil, err
	}
	if err := sub.InstallHook(s); err != nil {
		releaseSlot(s)
		return nil, fmt.Errorf("capture: install hook: %w", err)
	}
	s.state = StateArmed
	return s, nil
}

// State returns the session's current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Interrupt requests a cooperative stop without collecting the trace: the
// flag is observed at the instrumented code's next event boundary, so
// whatever is in flight completes and is recorded first. Stop still performs
// the teardown and hands the trace back.
func (s *Session) Interrupt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopReq = true
}

// Stop drains the session: the instrumentation hook is removed
// unconditionally, the capture slot is released, and the assembled trace is
// returned. If the instrumented code is still running, the stop is observed
// cooperatively at its next event boundary; events already in flight are
// recorded first. A second Stop on the same handle fails with
// ErrAlreadyStopped.
func (s *Session) Stop() (*trace.Trace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil, ErrAlreadyStopped
	}
	s.stopped = true
	s.stopReq = true
	s.state = StateDraining

	// Uninstall on every exit path, including after instrumented failure:
	// a dangling hook on the substrate outlives the session otherwise.
	s.sub.UninstallHook()
	releaseSlot(s)

	reason := trace.StopEnd
	switch {
	case s.unwound:
		reason = trace.StopUnwound
	case len(s.open) > 0:
		reason = trace.StopInterrupted
	}
	t := s.b.Finish(reason)
	s.state = StateIdle
	if s.err != nil {
		return t, s.err
	}
	return t, nil
}

// OnFrameEnter implements Hook.
func (s *Session) OnFrameEnter(f FrameInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.recording(); err != nil {
		return err
	}
	if s.state == StateArmed {
		s.state = StateCapturing
	}
	id, err := s.b.EnterFrame(f.Name, f.QualName, f.File)
	if err != nil {
		return s.invalidate(err)
	}
	s.open = append(s.open, id)
	return s.afterEvent()
}

// OnStep implements Hook.
func (s *Session) OnStep(in bytecode.Instruction, stack []ValueInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.recording(); err != nil {
		return err
	}
	if len(s.open) == 0 {
		return s.invalidate(fmt.Errorf("capture: step with no open frame"))
	}
	id := s.open[len(s.open)-1]
	if err := s.b.Step(id, in, describeStack(stack, s.limit), ""); err != nil {
		return s.invalidate(err)
	}
	return s.afterEvent()
}

// OnFrameExit implements Hook.
func (s *Session) OnFrameExit(stack []ValueInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.recording(); err != nil {
		return err
	}
	if len(s.open) == 0 {
		return s.invalidate(fmt.Errorf("capture: frame exit with no open frame"))
	}
	id := s.open[len(s.open)-1]
	if err := s.b.ExitFrame(id, describeStack(stack, s.limit)); err != nil {
		return s.invalidate(err)
	}
	s.open = s.open[:len(s.open)-1]
	if len(s.open) == 0 {
		// Outermost frame closed; nothing further may be recorded.
		s.state = StateDraining
	}
	return s.afterEvent()
}

// OnUnwind implements Hook.
func (s *Session) OnUnwind(cause string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.recording(); err != nil {
		return err
	}
	if len(s.open) == 0 {
		return s.invalidate(fmt.Errorf("capture: unwind with no open frame"))
	}
	id := s.open[len(s.open)-1]
	if err := s.b.Unwind(id, cause); err != nil {
		return s.invalidate(err)
	}
	s.open = s.open[:len(s.open)-1]
	s.unwound = true
	if len(s.open) == 0 {
		s.state = StateDraining
	}
	return nil
}

// recording gates event delivery on session liveness.
func (s *Session) recording() error {
	if s.err != nil {
		return s.err
	}
	if s.stopped {
		// The session was torn down between event boundaries; tell the
		// substrate to unwind cooperatively.
		return ErrStopRequested
	}
	return nil
}

// afterEvent is the cooperative cancellation point: the event that was in
// flight has been recorded, so a pending stop request may now take effect.
func (s *Session) afterEvent() error {
	if s.stopReq {
		return ErrStopRequested
	}
	return nil
}

// invalidate latches the first bookkeeping error. A corrupted frame model
// makes all later events meaningless, so the session fails closed.
func (s *Session) invalidate(err error) error {
	if s.err == nil {
		s.err = err
	}
	return s.err
}

// Run captures one invocation of target end to end: start a session on sub,
// run target, stop, and return the trace together with target's failure, if
// any. A failure inside target is data — its unwind events are already in
// the trace — and is returned after teardown rather than swallowed.
func Run(sub Substrate, target func() error, opts Options) (*trace.Trace, error) {
	s, err := Start(sub, opts)
	if err != nil {
		return nil, err
	}
	targetErr := target()
	t, stopErr := s.Stop()
	if stopErr != nil {
		return t, stopErr
	}
	if targetErr != nil && !errors.Is(targetErr, ErrStopRequested) {
		return t, targetErr
	}
	return t, nil
}
