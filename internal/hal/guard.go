package hal

import "sync"

// CriticalSection excludes the interrupt handler and the foreground from
// shared state. On target it masks interrupts; on a host it is a mutex.
type CriticalSection interface {
	Lock()
	Unlock()
}

// NewCriticalSection returns the critical section for the current target.
func NewCriticalSection() CriticalSection {
	return newCriticalSection()
}

// Guard owns a value that is only reachable inside a critical section.
type Guard[T any] struct {
	cs CriticalSection
	v  T
}

// NewGuard wraps v. A nil cs gets a mutex.
func NewGuard[T any](cs CriticalSection, v T) *Guard[T] {
	if cs == nil {
		cs = &sync.Mutex{}
	}

	return &Guard[T]{cs: cs, v: v}
}

// With runs fn with exclusive access to the guarded value. fn must not
// retain the pointer.
func (g *Guard[T]) With(fn func(v *T)) {
	g.cs.Lock()
	defer g.cs.Unlock()

	fn(&g.v)
}

// Lock exposes the guard's critical section, for transfers that write into
// guarded memory.
func (g *Guard[T]) Lock() CriticalSection {
	return g.cs
}
