// Package degrees holds the Q12 fixed point temperature type and the
// thermistor transfer function.
package degrees

import "strconv"

const (
	// FractionBits is the number of fractional bits in a Degrees value.
	FractionBits = 12
	// One is 1 °C.
	One Degrees = 1 << FractionBits

	// R1 is the fixed leg of the divider, in ohms.
	R1 = 10_000
	// MaxRaw is the largest conversion a 12-bit ADC produces.
	MaxRaw = 1<<FractionBits - 1

	// SlopeFixed is the calibration slope, −4.2725 °C per kΩ.
	SlopeFixed = (-4 << FractionBits) - 1116
	// InterceptFixed is the calibration intercept, 65.753 °C.
	InterceptFixed = (65 << FractionBits) + 3084

	// Max and Min bound every converted reading.
	Max Degrees = 128<<FractionBits - 1
	Min Degrees = -128 << FractionBits
)

// Degrees is a temperature in °C, stored as a signed Q12 fixed point number.
type Degrees int32

// FromInt returns the Degrees value of a whole number of °C.
func FromInt(c int32) Degrees {
	return Degrees(c << FractionBits)
}

// Int returns the whole part, rounded toward negative infinity.
func (d Degrees) Int() int32 {
	return int32(d) >> FractionBits
}

// MilliCelsius returns the value in thousandths of a degree.
func (d Degrees) MilliCelsius() int32 {
	return int32((int64(d) * 1000) >> FractionBits)
}

// FromMilliCelsius converts thousandths of a degree, rounding up to the next
// Q12 step so that MilliCelsius gives m back. The result saturates to
// [Min, Max].
func FromMilliCelsius(m int32) Degrees {
	n := int64(m) << FractionBits
	q := n / 1000
	if n > 0 && n%1000 != 0 {
		q++
	}

	switch {
	case q > int64(Max):
		return Max
	case q < int64(Min):
		return Min
	}

	return Degrees(q)
}

// Float returns the value as a float, for logs and metrics only.
func (d Degrees) Float() float64 {
	return float64(d) / float64(One)
}

func (d Degrees) String() string {
	return strconv.FormatInt(int64(d.Int()), 10)
}

// Convert maps a 12-bit divider reading to a temperature.
//
// The thermistor resistance is derived from the divider ratio and mapped
// linearly using a two point calibration at 25 °C and 50 °C. Readings at or
// beyond full scale are treated as MaxRaw, and the result saturates to
// [Min, Max], so the output is non-increasing over every input.
func Convert(raw uint16) Degrees {
	if raw > MaxRaw {
		raw = MaxRaw
	}

	r := (int64(raw) * R1 << FractionBits) / (1<<FractionBits - int64(raw))
	t := ((SlopeFixed*r)/1000)>>FractionBits + InterceptFixed

	switch {
	case t > int64(Max):
		return Max
	case t < int64(Min):
		return Min
	}

	return Degrees(t)
}
