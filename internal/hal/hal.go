// Package hal describes the peripherals the acquisition pipeline and control
// loop need, independent of the board that provides them.
package hal

// IRQ identifies an interrupt line.
type IRQ uint8

// OutputPin is a digital output, such as a status LED.
type OutputPin interface {
	Set(high bool)
	Get() bool
}

// PWM is a single PWM output. Duty is in ticks of Top.
type PWM interface {
	Set(duty uint32)
	Top() uint32
}

// ReadTarget is a peripheral register the DMA engine copies from.
type ReadTarget interface {
	// Address is the bus address of the register, zero off target.
	Address() uintptr
	// DREQ is the transfer request line that paces the copy.
	DREQ() uint8
}

// ADC is an analog converter that either free runs into a FIFO or takes
// single conversions on request.
type ADC interface {
	ReadTarget() ReadTarget
	Resume()
	Pause()
	// Read takes one conversion. The converter must be paused.
	Read() (uint16, error)
}

// Transfer describes a peripheral to memory copy of len(Dest) samples.
type Transfer struct {
	Source ReadTarget
	Dest   []uint16
	// Lock guards Dest. Boards where the CPU copies the samples take it
	// around each write; hardware DMA ignores it.
	Lock CriticalSection
}

// DMAChannel is one channel of the DMA engine.
type DMAChannel interface {
	IRQ() IRQ
	// Start begins t. It must not block and is called from interrupt context.
	Start(t *Transfer) error
	// Acknowledge clears the channel's pending completion.
	Acknowledge()
	EnableIRQ()
	DisableIRQ()
}

// Handler is an object invoked when its interrupt fires.
type Handler interface {
	HandleInterrupt()
}

// InterruptController routes interrupt lines to registered handlers.
type InterruptController interface {
	Register(irq IRQ, h Handler) error
	Unregister(irq IRQ)
	Unmask(irq IRQ)
	Mask(irq IRQ)
}
