package acquisition

import (
	"testing"

	"codeberg.org/mutker/fanctl/internal/degrees"
	"codeberg.org/mutker/fanctl/internal/dsp"
	"codeberg.org/mutker/fanctl/internal/errors"
	"codeberg.org/mutker/fanctl/internal/hal"
	"codeberg.org/mutker/fanctl/internal/sim"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedADC returns queued conversions, then fails.
type scriptedADC struct {
	raw    []uint16
	paused bool
}

func (a *scriptedADC) ReadTarget() hal.ReadTarget { return nil }
func (a *scriptedADC) Resume()                    { a.paused = false }
func (a *scriptedADC) Pause()                     { a.paused = true }

func (a *scriptedADC) Read() (uint16, error) {
	if len(a.raw) == 0 {
		return 0, errors.New().New(errors.ErrReadTemperature)
	}
	v := a.raw[0]
	a.raw = a.raw[1:]

	return v, nil
}

func TestPolledPausesConverter(t *testing.T) {
	adc := &scriptedADC{}
	NewPolled(adc)
	assert.True(t, adc.paused)
}

func TestPolledFirstReadIsNotCold(t *testing.T) {
	p := NewPolled(&scriptedADC{raw: []uint16{2048}})
	assert.Equal(t, degrees.Convert(2048), p.CurrentTemperature())
}

func TestPolledSmoothsSteps(t *testing.T) {
	raw := []uint16{1000}
	for i := 0; i < dsp.Window; i++ {
		raw = append(raw, 3000)
	}
	p := NewPolled(&scriptedADC{raw: raw})

	require.Equal(t, degrees.Convert(1000), p.CurrentTemperature())

	// One new sample moves the mean by a single window slot.
	want := uint16((uint32(dsp.Window-1)*1000 + 3000) / dsp.Window)
	assert.Equal(t, degrees.Convert(want), p.CurrentTemperature())

	var last degrees.Degrees
	for i := 1; i < dsp.Window; i++ {
		last = p.CurrentTemperature()
	}
	assert.Equal(t, degrees.Convert(3000), last)
}

func TestPolledFailedReadIsFailSafe(t *testing.T) {
	p := NewPolled(&scriptedADC{raw: []uint16{2048}})
	p.CurrentTemperature()

	assert.Equal(t, FailSafe, p.CurrentTemperature())
	assert.Equal(t, uint32(1), p.Errors())
}

func TestPolledOnSimulatedBoard(t *testing.T) {
	b := sim.NewBoard(nil)
	t.Cleanup(b.Close)
	b.ADC.SetTemperature(35)

	adc, err := b.Peripherals().TakeADC()
	require.NoError(t, err)

	p := NewPolled(adc)
	assert.False(t, b.ADC.Running())
	assert.Equal(t, degrees.Convert(sim.RawForTemperature(35)), p.CurrentTemperature())
}
