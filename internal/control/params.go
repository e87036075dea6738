package control

import (
	"codeberg.org/mutker/fanctl/internal/degrees"
	"codeberg.org/mutker/fanctl/internal/errors"
	"codeberg.org/mutker/fanctl/internal/fancurve"
)

const (
	// ClockHz is the RP2040 system clock the PWM slice divides.
	ClockHz = 125_000_000
	// PWMHz is the standard 4-pin fan PWM frequency.
	PWMHz = 25_000
	// PWMTicks is the PWM wrap value at PWMHz with no clock divider.
	PWMTicks = ClockHz / PWMHz
)

// Params calibrates the fan curve against the PWM output.
type Params struct {
	MaxDuty  uint16
	MinDuty  uint16
	MaxTemp  degrees.Degrees
	MinTemp  degrees.Degrees
	PWMTicks uint32
}

// DefaultParams is full speed at 48 °C and 20 % below 35 °C.
func DefaultParams() Params {
	return Params{
		MaxDuty:  PWMTicks,
		MinDuty:  PWMTicks * 2 / 10,
		MaxTemp:  degrees.FromInt(48),
		MinTemp:  degrees.FromInt(35),
		PWMTicks: PWMTicks,
	}
}

func (p Params) Validate() error {
	if p.PWMTicks == 0 {
		return errors.New().WithMessage(errors.ErrInvalidArgument, "pwm ticks must be positive")
	}
	if uint32(p.MaxDuty) > p.PWMTicks {
		return errors.New().WithData(errors.ErrInvalidArgument, struct {
			MaxDuty  uint16
			PWMTicks uint32
		}{p.MaxDuty, p.PWMTicks}).WithMessage("max duty exceeds pwm ticks")
	}

	return nil
}

// Curve builds the fan curve described by p.
func (p Params) Curve() (*fancurve.FanCurve, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	return fancurve.New(p.MaxDuty, p.MinDuty, p.MaxTemp, p.MinTemp)
}
