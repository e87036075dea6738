package acquisition

import (
	"tinygo.org/x/drivers"

	"codeberg.org/mutker/fanctl/internal/degrees"
)

var _ drivers.Sensor = (*Token)(nil)

// Update latches the current temperature for Temperature. Only
// drivers.Temperature is measured; other bits are ignored.
func (t *Token) Update(which drivers.Measurement) error {
	if which&drivers.Temperature == 0 {
		return nil
	}

	temp := t.CurrentTemperature()
	t.shared.With(func(s *state) { s.last = temp })

	return nil
}

// Temperature returns the temperature latched by the last Update, in
// milli-°C. It is FailSafe before the first Update and after Release.
func (t *Token) Temperature() int32 {
	var last degrees.Degrees
	t.shared.With(func(s *state) { last = s.last })

	return last.MilliCelsius()
}

// TemperatureSensor is a drivers.Sensor that measures temperature.
type TemperatureSensor interface {
	drivers.Sensor
	Temperature() int32
}

// SensorSource reads a temperature sensor once per control cycle. A failed
// Update reports FailSafe.
type SensorSource struct {
	sensor TemperatureSensor
	errs   uint32
}

func NewSensorSource(s TemperatureSensor) *SensorSource {
	return &SensorSource{sensor: s}
}

func (s *SensorSource) CurrentTemperature() degrees.Degrees {
	if err := s.sensor.Update(drivers.Temperature); err != nil {
		s.errs++
		return FailSafe
	}

	return degrees.FromMilliCelsius(s.sensor.Temperature())
}

// Errors returns the number of failed updates.
func (s *SensorSource) Errors() uint32 {
	return s.errs
}
