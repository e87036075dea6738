//go:build rp2040

package rp2040

import (
	"device/rp"
	"runtime/interrupt"

	"codeberg.org/mutker/fanctl/internal/errors"
	"codeberg.org/mutker/fanctl/internal/hal"
)

// IRQDMA0 is the NVIC line shared by every DMA channel routed to INTE0.
const IRQDMA0 hal.IRQ = rp.IRQ_DMA_IRQ_0

// Interrupts routes DMA_IRQ_0 to a registered handler. Other lines belong to
// the TinyGo runtime.
type Interrupts struct {
	dma0    interrupt.Interrupt
	handler hal.Handler
}

var _ hal.InterruptController = (*Interrupts)(nil)

var interrupts Interrupts

func handleDMAIRQ0(interrupt.Interrupt) {
	if h := interrupts.handler; h != nil {
		h.HandleInterrupt()
	}
}

func newInterrupts() *Interrupts {
	interrupts.dma0 = interrupt.New(rp.IRQ_DMA_IRQ_0, handleDMAIRQ0)
	return &interrupts
}

func (ic *Interrupts) Register(irq hal.IRQ, h hal.Handler) error {
	errFactory := errors.New()

	if irq != IRQDMA0 {
		return errFactory.WithData(errors.ErrInvalidArgument, irq)
	}

	state := interrupt.Disable()
	defer interrupt.Restore(state)

	if ic.handler != nil {
		return errFactory.WithData(errors.ErrResourceBusy, irq)
	}
	ic.handler = h

	return nil
}

func (ic *Interrupts) Unregister(irq hal.IRQ) {
	if irq != IRQDMA0 {
		return
	}

	state := interrupt.Disable()
	ic.handler = nil
	interrupt.Restore(state)
}

func (ic *Interrupts) Unmask(irq hal.IRQ) {
	if irq == IRQDMA0 {
		ic.dma0.Enable()
	}
}

func (ic *Interrupts) Mask(irq hal.IRQ) {
	if irq == IRQDMA0 {
		ic.dma0.Disable()
	}
}
