//go:build rp2040

package rp2040

import (
	"machine"

	"codeberg.org/mutker/fanctl/internal/control"
	"codeberg.org/mutker/fanctl/internal/errors"
	"codeberg.org/mutker/fanctl/internal/hal"
)

// Tiny 2040 wiring.
const (
	FanPin      = machine.GPIO4 // PWM2 A
	RedLED      = machine.GPIO18
	GreenLED    = machine.GPIO19
	BlueLED     = machine.GPIO20
	SamplingDMA = 0

	sysClockHz   = control.ClockHz
	fanPeriodNs  = 1_000_000_000 / control.PWMHz
	usedChannels = 2
)

// Pin drives one of the active low LEDs.
type Pin struct {
	pin machine.Pin
}

var _ hal.OutputPin = (*Pin)(nil)

func newLED(p machine.Pin) *Pin {
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.High()

	return &Pin{pin: p}
}

func (p *Pin) Set(on bool) { p.pin.Set(!on) }
func (p *Pin) Get() bool   { return !p.pin.Get() }

type pwmGroup interface {
	Configure(config machine.PWMConfig) error
	Channel(pin machine.Pin) (uint8, error)
	Set(channel uint8, value uint32)
	Top() uint32
}

// PWM is one channel of a PWM slice. Top counts the full period, so a duty
// of Top holds the output high.
type PWM struct {
	group pwmGroup
	ch    uint8
}

var _ hal.PWM = (*PWM)(nil)

func newPWM(group pwmGroup, pin machine.Pin, periodNs uint64) (*PWM, error) {
	if err := group.Configure(machine.PWMConfig{Period: periodNs}); err != nil {
		return nil, err
	}
	ch, err := group.Channel(pin)
	if err != nil {
		return nil, err
	}

	return &PWM{group: group, ch: ch}, nil
}

func (p *PWM) Set(duty uint32) { p.group.Set(p.ch, duty) }
func (p *PWM) Top() uint32     { return p.group.Top() + 1 }

// NewBoard configures the Tiny 2040. It fails with ErrClockInit when the
// system clock is not running at the rate the fan PWM is derived from.
func NewBoard() (hal.Board, error) {
	errFactory := errors.New()

	if f := machine.CPUFrequency(); f != sysClockHz {
		return hal.Board{}, errFactory.WithData(errors.ErrClockInit, f)
	}

	unreset(resetDMA)

	fan, err := newPWM(machine.PWM2, FanPin, fanPeriodNs)
	if err != nil {
		return hal.Board{}, errFactory.Wrap(errors.ErrClockInit, err)
	}
	if fan.Top() != control.PWMTicks {
		return hal.Board{}, errFactory.WithData(errors.ErrClockInit, fan.Top())
	}

	b := hal.Board{
		ADC:        NewADC(),
		Heartbeat:  newLED(RedLED),
		Indicator:  newLED(GreenLED),
		Fan:        fan,
		Interrupts: newInterrupts(),
	}
	for ch := uint8(0); ch < usedChannels; ch++ {
		b.DMA = append(b.DMA, &DMAChannel{ch: ch})
	}

	return b, nil
}
