package sim

import (
	"math/rand"
	"sync"
	"time"

	"codeberg.org/mutker/fanctl/internal/degrees"
	"codeberg.org/mutker/fanctl/internal/hal"
)

// ADCDREQ is the RP2040 transfer request line of the ADC FIFO.
const ADCDREQ = 36

// ADC is a free running converter reading a thermistor whose temperature
// follows a Scenario, unless pinned with SetTemperature.
type ADC struct {
	mu       sync.Mutex
	scenario *Scenario
	start    time.Time
	now      func() time.Time
	pinned   *float32
	rng      *rand.Rand
	running  bool
	reads    uint64
}

var (
	_ hal.ADC        = (*ADC)(nil)
	_ hal.ReadTarget = (*ADC)(nil)
)

func NewADC(s *Scenario) *ADC {
	if s == nil {
		s = DefaultScenario()
	}

	return &ADC{
		scenario: s,
		start:    time.Now(),
		now:      time.Now,
		rng:      rand.New(rand.NewSource(1)),
	}
}

func (a *ADC) ReadTarget() hal.ReadTarget { return a }

func (*ADC) Address() uintptr { return 0 }
func (*ADC) DREQ() uint8      { return ADCDREQ }

func (a *ADC) Resume() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.running = true
}

func (a *ADC) Pause() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.running = false
}

func (a *ADC) Running() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.running
}

// SetTemperature pins the thermistor at c °C.
func (a *ADC) SetTemperature(c float32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pinned = &c
}

// FollowScenario releases a pinned temperature and restarts the profile.
func (a *ADC) FollowScenario() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.pinned = nil
	a.start = a.now()
}

// Temperature returns the thermistor temperature the converter sees now.
func (a *ADC) Temperature() float32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.temperature()
}

func (a *ADC) temperature() float32 {
	if a.pinned != nil {
		return *a.pinned
	}

	return a.scenario.TemperatureAt(a.now().Sub(a.start))
}

// Next returns one conversion.
func (a *ADC) Next() uint16 {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.reads++
	raw := int(RawForTemperature(a.temperature()))
	if n := int(a.scenario.Noise); n > 0 && a.pinned == nil {
		raw += a.rng.Intn(2*n+1) - n
	}

	switch {
	case raw < 0:
		raw = 0
	case raw > degrees.MaxRaw:
		raw = degrees.MaxRaw
	}

	return uint16(raw)
}

// Read takes a single conversion.
func (a *ADC) Read() (uint16, error) {
	return a.Next(), nil
}

// Reads returns the number of conversions taken.
func (a *ADC) Reads() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()

	return a.reads
}
