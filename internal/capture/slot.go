package capture

import "sync"

// The process-wide capture slot. The engine drives one instrumented control
// flow at a time; a second session attempting to start while one is
// Armed/Capturing is rejected rather than silently nested.
var slot struct {
	mu     sync.Mutex
	active *Session
}

func acquireSlot(s *Session) error {
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.active != nil {
		return ErrCaptureActive
	}
	slot.active = s
	return nil
}

func releaseSlot(s *Session) {
	slot.mu.Lock()
	defer slot.mu.Unlock()
	if slot.active == s {
		slot.active = nil
	}
}
