// Package firmware is the controller's foreground: it steps the control loop,
// schedules status reports and services host commands on the serial port.
package firmware

import (
	"context"
	"io"
	"time"

	"codeberg.org/mutker/fanctl/internal/control"
	"codeberg.org/mutker/fanctl/internal/errors"
	"codeberg.org/mutker/fanctl/internal/report"
)

const (
	DefaultControlPeriod = 100 * time.Millisecond
	DefaultStatusPeriod  = time.Second
	// DefaultPollPeriod matches a 100 Hz USB poll.
	DefaultPollPeriod = 10 * time.Millisecond

	// maxChunk bounds the bytes consumed per poll, one full-speed CDC packet.
	maxChunk = 64
)

// Port is the command/report link. machine.Serial satisfies it on target.
type Port interface {
	io.Writer
	Buffered() int
	ReadByte() (byte, error)
}

type Config struct {
	ControlPeriod time.Duration
	StatusPeriod  time.Duration
	PollPeriod    time.Duration
	// Bootloader resets into the USB bootloader. On target it does not
	// return.
	Bootloader func()
	// Tick runs at the top of every poll, e.g. to feed a watchdog.
	Tick func()
}

func DefaultConfig() Config {
	return Config{
		ControlPeriod: DefaultControlPeriod,
		StatusPeriod:  DefaultStatusPeriod,
		PollPeriod:    DefaultPollPeriod,
	}
}

// Runtime owns the foreground schedule.
type Runtime struct {
	loop       *control.Loop
	cfg        Config
	dispatcher report.Dispatcher
	rx         [maxChunk]byte
}

func New(loop *control.Loop, cfg Config) (*Runtime, error) {
	errFactory := errors.New()

	if loop == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "firmware runtime needs a control loop")
	}

	if cfg.ControlPeriod <= 0 || cfg.StatusPeriod <= 0 || cfg.PollPeriod <= 0 {
		return nil, errFactory.WithData(errors.ErrInvalidArgument, struct {
			ControlPeriod time.Duration
			StatusPeriod  time.Duration
			PollPeriod    time.Duration
		}{cfg.ControlPeriod, cfg.StatusPeriod, cfg.PollPeriod})
	}

	r := &Runtime{loop: loop, cfg: cfg}
	r.dispatcher.Bootloader = cfg.Bootloader

	return r, nil
}

// Service drains pending command bytes from port and writes a status line
// if one is due. It returns true when the host requested a bootloader reset;
// no status line is written then.
func (r *Runtime) Service(port Port) bool {
	n := 0
	for n < len(r.rx) && port.Buffered() > 0 {
		b, err := port.ReadByte()
		if err != nil {
			break
		}
		r.rx[n] = b
		n++
	}
	if n > 0 && r.dispatcher.Feed(r.rx[:n]) {
		return true
	}

	r.dispatcher.Flush(port, r.loop.Status())

	return false
}

// RequestReport queues a status line for the next Service.
func (r *Runtime) RequestReport() {
	r.dispatcher.Request()
}

// Run drives the schedule until ctx is done. Between events the goroutine
// sleeps, which idles the core until the next timer interrupt.
func (r *Runtime) Run(ctx context.Context, port Port) error {
	step := time.NewTicker(r.cfg.ControlPeriod)
	defer step.Stop()
	status := time.NewTicker(r.cfg.StatusPeriod)
	defer status.Stop()
	poll := time.NewTicker(r.cfg.PollPeriod)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-step.C:
			r.loop.Step()
		case <-status.C:
			r.dispatcher.Request()
		case <-poll.C:
			if r.cfg.Tick != nil {
				r.cfg.Tick()
			}
			r.Service(port)
		}
	}
}
