package sim

import (
	"sync"
	"sync/atomic"
)

// Pin is a simulated digital output that counts its edges.
type Pin struct {
	mu    sync.Mutex
	high  bool
	edges int
}

func (p *Pin) Set(high bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.high != high {
		p.edges++
	}
	p.high = high
}

func (p *Pin) Get() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.high
}

// Edges returns the number of level changes since creation.
func (p *Pin) Edges() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.edges
}

// PWM is a simulated PWM slice.
type PWM struct {
	top    uint32
	duty   atomic.Uint32
	writes atomic.Uint64
}

func NewPWM(top uint32) *PWM {
	return &PWM{top: top}
}

func (p *PWM) Set(duty uint32) {
	if duty > p.top {
		duty = p.top
	}
	p.duty.Store(duty)
	p.writes.Add(1)
}

func (p *PWM) Top() uint32 {
	return p.top
}

// Duty returns the last written compare value.
func (p *PWM) Duty() uint32 {
	return p.duty.Load()
}

// Writes returns the number of Set calls.
func (p *PWM) Writes() uint64 {
	return p.writes.Load()
}
