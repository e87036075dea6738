package acquisition

import (
	"codeberg.org/mutker/fanctl/internal/degrees"
	"codeberg.org/mutker/fanctl/internal/dsp"
	"codeberg.org/mutker/fanctl/internal/hal"
)

// Polled reads the thermistor one conversion per call and smooths the
// stream with a running average. It needs neither DMA nor an interrupt, at
// the cost of one blocking conversion per control cycle.
//
// Polled is not safe for concurrent use.
type Polled struct {
	adc    hal.ADC
	filter dsp.MovingAverage
	primed bool
	errs   uint32
}

// NewPolled pauses adc and reads it on demand.
func NewPolled(adc hal.ADC) *Polled {
	adc.Pause()

	return &Polled{adc: adc}
}

// CurrentTemperature takes a conversion and returns the filtered
// temperature. A failed conversion reports FailSafe and leaves the window
// untouched.
func (p *Polled) CurrentTemperature() degrees.Degrees {
	raw, err := p.adc.Read()
	if err != nil {
		p.errs++
		return FailSafe
	}

	// The first conversion fills the window so start up does not read cold.
	if !p.primed {
		for i := 1; i < dsp.Window; i++ {
			p.filter.Update(raw)
		}
		p.primed = true
	}

	return degrees.Convert(p.filter.Update(raw))
}

// Errors returns the number of failed conversions.
func (p *Polled) Errors() uint32 {
	return p.errs
}
