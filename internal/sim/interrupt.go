package sim

import (
	"sync"

	"codeberg.org/mutker/fanctl/internal/errors"
	"codeberg.org/mutker/fanctl/internal/hal"
)

// Interrupts is a single core interrupt controller. Handlers run on the
// raising goroutine, one at a time. Raising a masked line latches it until
// it is unmasked.
type Interrupts struct {
	mu       sync.Mutex
	handlers map[hal.IRQ]hal.Handler
	enabled  map[hal.IRQ]bool
	pending  map[hal.IRQ]bool

	// dispatch serializes handlers; a core runs one ISR at a time.
	dispatch sync.Mutex
}

var _ hal.InterruptController = (*Interrupts)(nil)

func NewInterrupts() *Interrupts {
	return &Interrupts{
		handlers: make(map[hal.IRQ]hal.Handler),
		enabled:  make(map[hal.IRQ]bool),
		pending:  make(map[hal.IRQ]bool),
	}
}

func (ic *Interrupts) Register(irq hal.IRQ, h hal.Handler) error {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	if _, ok := ic.handlers[irq]; ok {
		return errors.New().WithData(errors.ErrResourceBusy, struct{ IRQ hal.IRQ }{irq})
	}
	ic.handlers[irq] = h

	return nil
}

func (ic *Interrupts) Unregister(irq hal.IRQ) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	delete(ic.handlers, irq)
	delete(ic.pending, irq)
	ic.enabled[irq] = false
}

func (ic *Interrupts) Unmask(irq hal.IRQ) {
	ic.mu.Lock()
	ic.enabled[irq] = true
	fire := ic.pending[irq]
	ic.mu.Unlock()

	if fire {
		ic.Raise(irq)
	}
}

func (ic *Interrupts) Mask(irq hal.IRQ) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	ic.enabled[irq] = false
}

// Raise signals irq, running its handler if the line is unmasked.
func (ic *Interrupts) Raise(irq hal.IRQ) {
	ic.dispatch.Lock()
	defer ic.dispatch.Unlock()

	ic.mu.Lock()
	h, ok := ic.handlers[irq]
	if !ok || !ic.enabled[irq] {
		ic.pending[irq] = true
		ic.mu.Unlock()
		return
	}
	ic.pending[irq] = false
	ic.mu.Unlock()

	h.HandleInterrupt()
}

// Enabled reports whether irq is unmasked.
func (ic *Interrupts) Enabled(irq hal.IRQ) bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	return ic.enabled[irq]
}

// Registered reports whether a handler is installed for irq.
func (ic *Interrupts) Registered(irq hal.IRQ) bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	_, ok := ic.handlers[irq]
	return ok
}
