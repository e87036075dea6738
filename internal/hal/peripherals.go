package hal

import (
	"strconv"

	"codeberg.org/mutker/fanctl/internal/errors"
)

// Board lists the peripherals a target exposes.
type Board struct {
	ADC        ADC
	DMA        []DMAChannel
	Heartbeat  OutputPin
	Indicator  OutputPin
	Fan        PWM
	Interrupts InterruptController
}

type resource[T any] struct {
	name  string
	claim Claim
	v     T
	ok    bool
}

func newResource[T any](name string, v T, ok bool) *resource[T] {
	return &resource[T]{name: name, v: v, ok: ok}
}

func (r *resource[T]) take() (T, error) {
	var zero T
	if !r.ok {
		return zero, errors.New().WithData(errors.ErrResourceNotFound, r.name)
	}
	if err := r.claim.Take(r.name); err != nil {
		return zero, err
	}

	return r.v, nil
}

// Peripherals hands out each of a board's peripherals at most once.
type Peripherals struct {
	adc       *resource[ADC]
	dma       []*resource[DMAChannel]
	heartbeat *resource[OutputPin]
	indicator *resource[OutputPin]
	fan       *resource[PWM]
	ic        InterruptController
}

func NewPeripherals(b Board) *Peripherals {
	p := &Peripherals{
		adc:       newResource("adc", b.ADC, b.ADC != nil),
		heartbeat: newResource("heartbeat", b.Heartbeat, b.Heartbeat != nil),
		indicator: newResource("indicator", b.Indicator, b.Indicator != nil),
		fan:       newResource("fan", b.Fan, b.Fan != nil),
		ic:        b.Interrupts,
	}
	for i, ch := range b.DMA {
		p.dma = append(p.dma, newResource("dma"+strconv.Itoa(i), ch, ch != nil))
	}

	return p
}

func (p *Peripherals) TakeADC() (ADC, error) {
	return p.adc.take()
}

func (p *Peripherals) TakeDMA(ch int) (DMAChannel, error) {
	if ch < 0 || ch >= len(p.dma) {
		return nil, errors.New().WithData(errors.ErrResourceNotFound, "dma"+strconv.Itoa(ch))
	}

	return p.dma[ch].take()
}

func (p *Peripherals) TakeHeartbeat() (OutputPin, error) {
	return p.heartbeat.take()
}

func (p *Peripherals) TakeIndicator() (OutputPin, error) {
	return p.indicator.take()
}

func (p *Peripherals) TakeFan() (PWM, error) {
	return p.fan.take()
}

// Interrupts is shared; handlers claim individual lines on Register.
func (p *Peripherals) Interrupts() InterruptController {
	return p.ic
}
