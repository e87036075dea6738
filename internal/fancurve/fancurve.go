// Package fancurve maps temperature to PWM duty along a clamped line.
package fancurve

import (
	"codeberg.org/mutker/fanctl/internal/degrees"
	"codeberg.org/mutker/fanctl/internal/errors"
)

// FanCurve is a linear temperature to duty mapping between two calibration
// points, clamped outside them. It is immutable after New.
type FanCurve struct {
	maxDuty uint16
	minDuty uint16
	maxTemp degrees.Degrees
	minTemp degrees.Degrees

	// m is the Q12 slope in duty per degree, b the Q12 intercept.
	m int64
	b int64
}

// New builds the curve through (minTemp, minDuty) and (maxTemp, maxDuty).
func New(maxDuty, minDuty uint16, maxTemp, minTemp degrees.Degrees) (*FanCurve, error) {
	errFactory := errors.New()

	if maxTemp <= minTemp {
		return nil, errFactory.WithData(errors.ErrInvalidArgument, struct {
			MaxTemp string
			MinTemp string
		}{maxTemp.String(), minTemp.String()}).WithMessage("max temperature must exceed min temperature")
	}
	if minTemp < degrees.Min || maxTemp > degrees.Max {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "calibration temperatures out of range")
	}
	if maxDuty < minDuty {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "max duty must not be below min duty")
	}

	diff := int64(maxDuty-minDuty) << 24
	span := int64(maxTemp - minTemp)

	// Round up so the line reaches maxDuty at maxTemp.
	m := (diff + span - 1) / span
	b := int64(minDuty)<<degrees.FractionBits - (m*int64(minTemp))>>degrees.FractionBits

	return &FanCurve{
		maxDuty: maxDuty,
		minDuty: minDuty,
		maxTemp: maxTemp,
		minTemp: minTemp,
		m:       m,
		b:       b,
	}, nil
}

// Evaluate returns the duty for temp.
func (c *FanCurve) Evaluate(temp degrees.Degrees) uint16 {
	switch {
	case temp > degrees.Max:
		temp = degrees.Max
	case temp < degrees.Min:
		temp = degrees.Min
	}

	t := (c.m * int64(temp)) >> degrees.FractionBits
	duty := (t + c.b) >> degrees.FractionBits

	switch {
	case duty > int64(c.maxDuty):
		return c.maxDuty
	case duty < int64(c.minDuty):
		return c.minDuty
	}

	return uint16(duty)
}

func (c *FanCurve) MinDuty() uint16 { return c.minDuty }
func (c *FanCurve) MaxDuty() uint16 { return c.maxDuty }

func (c *FanCurve) MinTemp() degrees.Degrees { return c.minTemp }
func (c *FanCurve) MaxTemp() degrees.Degrees { return c.maxTemp }
