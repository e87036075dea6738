// Package acquisition streams thermistor conversions from the ADC into a
// fixed buffer by DMA and turns snapshots of that buffer into temperatures.
//
// Only one pipeline may exist at a time. Start hands out a Token that owns
// it; Release gives it up.
package acquisition

import (
	"codeberg.org/mutker/fanctl/internal/degrees"
	"codeberg.org/mutker/fanctl/internal/dsp"
	"codeberg.org/mutker/fanctl/internal/errors"
	"codeberg.org/mutker/fanctl/internal/hal"
)

const (
	// BufferLen is the number of conversions per DMA transfer.
	BufferLen = 32

	// sampleMask keeps the 12 result bits of a FIFO entry.
	sampleMask = 0x0fff
)

// FailSafe is reported until the first transfer completes. It is warm
// enough to spin the fan well above its minimum.
var FailSafe = degrees.FromInt(50)

var active hal.Claim

// Stats counts completion handler activity.
type Stats struct {
	Completions uint32
	RearmErrors uint32
}

// state is everything shared between the completion handler and the
// foreground. It is only touched through a hal.Guard.
type state struct {
	samples  [BufferLen]uint16
	valid    bool
	released bool
	stats    Stats
	// last is the most recent Update result, for the Sensor interface.
	last degrees.Degrees
}

// completion is the DMA_IRQ handler object. It holds exactly what it needs
// to service a finished transfer.
type completion struct {
	shared    *hal.Guard[state]
	dma       hal.DMAChannel
	transfer  *hal.Transfer
	heartbeat hal.OutputPin
}

func (c *completion) HandleInterrupt() {
	c.dma.Acknowledge()

	c.shared.With(func(s *state) {
		if s.released {
			return
		}

		s.stats.Completions++
		if s.stats.Completions%2 == 0 {
			c.heartbeat.Set(!c.heartbeat.Get())
		}

		s.valid = true

		// Re-arm in the same section that publishes validity.
		if err := c.dma.Start(c.transfer); err != nil {
			s.stats.RearmErrors++
		}
	})
}

// Token owns the running pipeline.
type Token struct {
	shared  *hal.Guard[state]
	adc     hal.ADC
	dma     hal.DMAChannel
	ic      hal.InterruptController
	handler *completion
}

// Start brings up the pipeline: the DMA channel copies BufferLen ADC
// conversions into the shared buffer, and every completion re-arms the same
// transfer. It fails with ErrResourceBusy while another Token is live.
func Start(
	adc hal.ADC,
	dma hal.DMAChannel,
	heartbeat hal.OutputPin,
	ic hal.InterruptController,
	cs hal.CriticalSection,
) (*Token, error) {
	errFactory := errors.New()

	if adc == nil || dma == nil || heartbeat == nil || ic == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "acquisition needs an adc, a dma channel, a heartbeat pin and an interrupt controller")
	}
	if err := active.Take("acquisition pipeline"); err != nil {
		return nil, err
	}
	if cs == nil {
		cs = hal.NewCriticalSection()
	}

	shared := hal.NewGuard(cs, state{last: FailSafe})

	t := &Token{
		shared: shared,
		adc:    adc,
		dma:    dma,
		ic:     ic,
	}

	// The buffer never moves, so the hardware can be pointed at it once.
	var dest []uint16
	shared.With(func(s *state) { dest = s.samples[:] })

	t.handler = &completion{
		shared:    shared,
		dma:       dma,
		transfer:  &hal.Transfer{Source: adc.ReadTarget(), Dest: dest, Lock: shared.Lock()},
		heartbeat: heartbeat,
	}

	if err := ic.Register(dma.IRQ(), t.handler); err != nil {
		active.Release()
		return nil, errFactory.Wrap(errors.ErrInitFailed, err)
	}

	dma.EnableIRQ()
	if err := dma.Start(t.handler.transfer); err != nil {
		dma.DisableIRQ()
		ic.Unregister(dma.IRQ())
		active.Release()
		return nil, errFactory.Wrap(errors.ErrInitFailed, err)
	}
	adc.Resume()
	ic.Unmask(dma.IRQ())

	return t, nil
}

// CurrentTemperature returns the mean of the latest buffer snapshot as a
// temperature, or FailSafe if no transfer has completed yet.
func (t *Token) CurrentTemperature() degrees.Degrees {
	var (
		avg   uint16
		valid bool
	)
	t.shared.With(func(s *state) {
		if !s.valid {
			return
		}
		valid = true

		var buf [BufferLen]uint16
		for i, v := range s.samples {
			buf[i] = v & sampleMask
		}
		avg = dsp.Boxcar(buf[:])
	})

	if !valid {
		return FailSafe
	}

	return degrees.Convert(avg)
}

// Snapshot copies the buffer. ok is false until the first completion.
func (t *Token) Snapshot() (samples [BufferLen]uint16, ok bool) {
	t.shared.With(func(s *state) {
		samples = s.samples
		ok = s.valid
	})

	return samples, ok
}

// Stats returns the completion counters.
func (t *Token) Stats() Stats {
	var st Stats
	t.shared.With(func(s *state) { st = s.stats })

	return st
}

// Release stops the pipeline and frees it for another Start. Further reads
// return FailSafe. Calling it again does nothing.
func (t *Token) Release() {
	var already bool
	t.shared.With(func(s *state) {
		already = s.released
		s.released = true
		s.valid = false
		s.last = FailSafe
	})
	if already {
		return
	}

	irq := t.dma.IRQ()
	t.ic.Mask(irq)
	t.dma.DisableIRQ()
	t.ic.Unregister(irq)
	t.adc.Pause()

	active.Release()
}
