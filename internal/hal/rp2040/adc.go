//go:build rp2040

package rp2040

import (
	"machine"

	"codeberg.org/mutker/fanctl/internal/errors"
	"codeberg.org/mutker/fanctl/internal/hal"
)

// ADC free runs on the thermistor input and paces DMA through its FIFO.
type ADC struct{}

var (
	_ hal.ADC        = (*ADC)(nil)
	_ hal.ReadTarget = (*ADC)(nil)
)

// NewADC brings the converter up paused, with the FIFO raising DREQ for
// every conversion.
func NewADC() *ADC {
	machine.InitADC()
	unreset(resetADC)

	pin := machine.ADC{Pin: machine.ADC0}
	pin.Configure(machine.ADCConfig{})

	reg(adcBase + adcCS).Set(adcCSEn | adcThermistorInput<<adcCSAinselPos)
	reg(adcBase + adcDIV).Set(adcClockDivider << adcDIVIntPos)
	reg(adcBase + adcFCS).Set(adcFCSEn | adcFCSDreqEn | 1<<adcFCSThreshPos)

	return &ADC{}
}

func (a *ADC) ReadTarget() hal.ReadTarget { return a }

func (*ADC) Address() uintptr { return adcBase + adcFIFO }
func (*ADC) DREQ() uint8      { return adcDREQ }

// Resume drops stale conversions and starts free running.
func (*ADC) Resume() {
	for reg(adcBase+adcFCS).Get()&adcFCSEmpty == 0 {
		reg(adcBase + adcFIFO).Get()
	}
	reg(adcBase + adcCS).SetBits(adcCSStartMany)
}

func (*ADC) Pause() {
	reg(adcBase + adcCS).ClearBits(adcCSStartMany)
}

// Read runs a single conversion and waits for its result.
func (*ADC) Read() (uint16, error) {
	cs := reg(adcBase + adcCS)
	cs.SetBits(adcCSStartOnce)
	for cs.Get()&adcCSReady == 0 {
	}

	if cs.Get()&adcCSErr != 0 {
		return 0, errors.New().New(errors.ErrReadTemperature)
	}

	return uint16(reg(adcBase+adcResult).Get() & 0xfff), nil
}
