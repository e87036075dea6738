// Package sim emulates the fan controller board on a host so the firmware
// pipeline can run unmodified in tests and in simulate mode.
package sim

import "codeberg.org/mutker/fanctl/internal/hal"

const (
	// PWMTicks matches the firmware: 125 MHz system clock, 25 kHz fan PWM.
	PWMTicks = 125_000_000 / 25_000
	// DMAChannels is the number of simulated DMA channels.
	DMAChannels = 2
)

// Board is a simulated RP2040 with a thermistor on the ADC, a fan on a PWM
// slice and two LEDs.
type Board struct {
	ADC        *ADC
	DMA        []*DMAChannel
	Heartbeat  *Pin
	Indicator  *Pin
	Fan        *PWM
	Interrupts *Interrupts
	Scenario   *Scenario
}

func NewBoard(s *Scenario) *Board {
	if s == nil {
		s = DefaultScenario()
	}

	ic := NewInterrupts()
	b := &Board{
		ADC:        NewADC(s),
		Heartbeat:  &Pin{},
		Indicator:  &Pin{},
		Fan:        NewPWM(PWMTicks),
		Interrupts: ic,
		Scenario:   s,
	}
	for i := 0; i < DMAChannels; i++ {
		b.DMA = append(b.DMA, NewDMAChannel(DMAIRQ0, ic, s.Interval))
	}

	return b
}

// HAL returns the board description used to build a peripheral table.
func (b *Board) HAL() hal.Board {
	hb := hal.Board{
		ADC:        b.ADC,
		Heartbeat:  b.Heartbeat,
		Indicator:  b.Indicator,
		Fan:        b.Fan,
		Interrupts: b.Interrupts,
	}
	for _, ch := range b.DMA {
		hb.DMA = append(hb.DMA, ch)
	}

	return hb
}

// Peripherals returns a fresh take-once table over the board.
func (b *Board) Peripherals() *hal.Peripherals {
	return hal.NewPeripherals(b.HAL())
}

// Close stops all DMA activity.
func (b *Board) Close() {
	for _, ch := range b.DMA {
		ch.Close()
	}
}
