// Package dsp provides the integer filters used on raw ADC conversions.
package dsp

// Window is the number of samples averaged by MovingAverage.
const Window = 32

// MovingAverage is a fixed window running mean over unsigned 16-bit samples.
// The zero value is an empty window, which reads as zeros.
type MovingAverage struct {
	samples [Window]uint16
	index   int
	acc     uint32
}

// Update adds v to the window, evicting the oldest sample, and returns the
// floor of the window mean.
func (m *MovingAverage) Update(v uint16) uint16 {
	m.acc -= uint32(m.samples[m.index])
	m.samples[m.index] = v
	m.acc += uint32(v)
	m.index = (m.index + 1) % Window

	return uint16(m.acc / Window)
}

// Value returns the current mean without adding a sample.
func (m *MovingAverage) Value() uint16 {
	return uint16(m.acc / Window)
}

// Reset empties the window.
func (m *MovingAverage) Reset() {
	*m = MovingAverage{}
}

// Boxcar returns the floor mean of samples, or 0 when there are none.
func Boxcar(samples []uint16) uint16 {
	if len(samples) == 0 {
		return 0
	}

	var sum uint32
	for _, s := range samples {
		sum += uint32(s)
	}

	return uint16(sum / uint32(len(samples)))
}
