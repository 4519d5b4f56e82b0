// Package trace defines the trace assembly shared by the engine's two
// producers: an ordered, append-only log of execution or simulation events,
// exposed to consumers as a read-only, randomly indexable sequence.
package trace

import "fmt"

// Trace is the finished, immutable event log of one run or one simulation
// pass. It is the sole artifact handed to external consumers.
type Trace struct {
	events []Event
	frames []Frame
	byID   map[uint64]int
	stop   StopReason
}

// Len returns the number of events.
func (t *Trace) Len() int { return len(t.events) }

// Stop returns why the producing session ended.
func (t *Trace) Stop() StopReason { return t.stop }

// At returns the event at index i.
func (t *Trace) At(i int) (Event, error) {
	if i < 0 || i >= len(t.events) {
		return Event{}, fmt.Errorf("trace: event index %d out of range [0,%d)", i, len(t.events))
	}
	return t.events[i], nil
}

// Events returns a copy of all events in append order.
func (t *Trace) Events() []Event {
	out := make([]Event, len(t.events))
	copy(out, t.events)
	return out
}

// Steps returns only the Step events, in order.
func (t *Trace) Steps() []Event {
	var out []Event
	for _, ev := range t.events {
		if ev.Kind == KindStep {
			out = append(out, ev)
		}
	}
	return out
}

// FrameEvents returns only the events attributed to the given frame, in
// order. Events of frames nested inside it are not included.
func (t *Trace) FrameEvents(id uint64) []Event {
	var out []Event
	for _, ev := range t.events {
		if ev.FrameID == id {
			out = append(out, ev)
		}
	}
	return out
}

// Frames returns a copy of every frame record, in creation order.
func (t *Trace) Frames() []Frame {
	out := make([]Frame, len(t.frames))
	copy(out, t.frames)
	return out
}

// Frame returns the frame record with the given id.
func (t *Trace) Frame(id uint64) (Frame, bool) {
	i, ok := t.byID[id]
	if !ok {
		return Frame{}, false
	}
	return t.frames[i], true
}
