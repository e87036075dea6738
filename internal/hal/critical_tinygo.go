//go:build tinygo

package hal

import "runtime/interrupt"

// interruptSection masks interrupts on the current core. Sections do not nest.
type interruptSection struct {
	state interrupt.State
}

func newCriticalSection() CriticalSection {
	return &interruptSection{}
}

func (s *interruptSection) Lock() {
	state := interrupt.Disable()
	s.state = state
}

func (s *interruptSection) Unlock() {
	interrupt.Restore(s.state)
}
