package sim

import (
	"github.com/chewxy/math32"

	"codeberg.org/mutker/fanctl/internal/degrees"
)

// Calibration line of the divider, in °C and kΩ.
var (
	calibrationSlope     = float32(degrees.SlopeFixed) / float32(degrees.One)
	calibrationIntercept = float32(degrees.InterceptFixed) / float32(degrees.One)
)

// RawForTemperature returns the 12-bit divider reading that converts back to
// roughly c. Temperatures above the open-circuit point read as 0 and very
// cold ones as full scale.
func RawForTemperature(c float32) uint16 {
	rk := (c - calibrationIntercept) / calibrationSlope
	if rk <= 0 || math32.IsNaN(rk) {
		return 0
	}

	r := rk * 1000
	raw := math32.Floor(float32(degrees.MaxRaw+1)*r/(degrees.R1+r) + 0.5)
	if raw > degrees.MaxRaw {
		return degrees.MaxRaw
	}

	return uint16(raw)
}
