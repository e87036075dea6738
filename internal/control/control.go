// Package control runs the fixed period loop that turns the latest
// temperature into a fan duty.
package control

import (
	"context"
	"time"

	"codeberg.org/mutker/fanctl/internal/degrees"
	"codeberg.org/mutker/fanctl/internal/errors"
	"codeberg.org/mutker/fanctl/internal/fancurve"
	"codeberg.org/mutker/fanctl/internal/hal"
)

// TemperatureSource supplies the temperature for each cycle.
type TemperatureSource interface {
	CurrentTemperature() degrees.Degrees
}

// Status is the temperature and duty pair published after each cycle.
type Status struct {
	Temperature degrees.Degrees
	Duty        uint16
	PWMTicks    uint32
	Cycle       uint64
}

// Permyriad returns the duty in hundredths of a percent.
func (s Status) Permyriad() uint32 {
	if s.PWMTicks == 0 {
		return 0
	}

	return uint32(s.Duty) * 10000 / s.PWMTicks
}

type Option func(*Loop)

// WithIndicator toggles pin once per cycle.
func WithIndicator(pin hal.OutputPin) Option {
	return func(l *Loop) { l.indicator = pin }
}

// WithCriticalSection guards the published status with cs instead of a mutex.
func WithCriticalSection(cs hal.CriticalSection) Option {
	return func(l *Loop) { l.cs = cs }
}

// WithObserver calls fn with every new status, outside any lock.
func WithObserver(fn func(Status)) Option {
	return func(l *Loop) { l.observer = fn }
}

// Loop reads the temperature, applies the fan curve and drives the fan.
type Loop struct {
	src       TemperatureSource
	curve     *fancurve.FanCurve
	fan       hal.PWM
	ticks     uint32
	indicator hal.OutputPin
	observer  func(Status)
	cs        hal.CriticalSection
	status    *hal.Guard[Status]
}

func New(src TemperatureSource, fan hal.PWM, p Params, opts ...Option) (*Loop, error) {
	errFactory := errors.New()

	if src == nil || fan == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "control loop needs a temperature source and a fan")
	}
	if p.PWMTicks == 0 {
		p.PWMTicks = fan.Top()
	}

	curve, err := p.Curve()
	if err != nil {
		return nil, err
	}

	l := &Loop{
		src:   src,
		curve: curve,
		fan:   fan,
		ticks: p.PWMTicks,
	}
	for _, opt := range opts {
		opt(l)
	}

	// Nothing has been measured yet, so start the fan at full speed.
	l.status = hal.NewGuard(l.cs, Status{Duty: curve.MaxDuty(), PWMTicks: l.ticks})
	fan.Set(uint32(curve.MaxDuty()))

	return l, nil
}

// Step runs one cycle and returns the status it published.
func (l *Loop) Step() Status {
	temp := l.src.CurrentTemperature()
	duty := l.curve.Evaluate(temp)
	l.fan.Set(uint32(duty))

	if l.indicator != nil {
		l.indicator.Set(!l.indicator.Get())
	}

	var st Status
	l.status.With(func(s *Status) {
		s.Temperature = temp
		s.Duty = duty
		s.Cycle++
		st = *s
	})

	if l.observer != nil {
		l.observer(st)
	}

	return st
}

// Status returns the last published status.
func (l *Loop) Status() Status {
	var st Status
	l.status.With(func(s *Status) { st = *s })

	return st
}

// Curve returns the loop's fan curve.
func (l *Loop) Curve() *fancurve.FanCurve {
	return l.curve
}

// Run steps the loop on every tick until ctx is done.
func (l *Loop) Run(ctx context.Context, tick <-chan time.Time) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick:
			l.Step()
		}
	}
}
