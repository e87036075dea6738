//go:build rp2040

//go:generate tinygo flash -target=tiny2040

package main

import (
	"context"
	"machine"
	"time"

	"codeberg.org/mutker/fanctl/internal/acquisition"
	"codeberg.org/mutker/fanctl/internal/control"
	"codeberg.org/mutker/fanctl/internal/firmware"
	"codeberg.org/mutker/fanctl/internal/hal"
	"codeberg.org/mutker/fanctl/internal/hal/rp2040"
)

const watchdogTimeoutMs = 1000

func main() {
	board, err := rp2040.NewBoard()
	if err != nil {
		halt(err)
	}
	p := hal.NewPeripherals(board)

	adc, err := p.TakeADC()
	if err != nil {
		halt(err)
	}
	dma, err := p.TakeDMA(rp2040.SamplingDMA)
	if err != nil {
		halt(err)
	}
	heartbeat, err := p.TakeHeartbeat()
	if err != nil {
		halt(err)
	}
	indicator, err := p.TakeIndicator()
	if err != nil {
		halt(err)
	}
	fan, err := p.TakeFan()
	if err != nil {
		halt(err)
	}

	token, err := acquisition.Start(adc, dma, heartbeat, p.Interrupts(), nil)
	if err != nil {
		halt(err)
	}
	loop, err := control.New(acquisition.NewSensorSource(token), fan, control.DefaultParams(), control.WithIndicator(indicator))
	if err != nil {
		halt(err)
	}

	cfg := firmware.DefaultConfig()
	cfg.Bootloader = machine.EnterBootloader
	cfg.Tick = machine.Watchdog.Update
	rt, err := firmware.New(loop, cfg)
	if err != nil {
		halt(err)
	}

	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: watchdogTimeoutMs}); err != nil {
		halt(err)
	}
	if err := machine.Watchdog.Start(); err != nil {
		halt(err)
	}

	_ = rt.Run(context.Background(), machine.Serial)
}

// halt reports a fatal start-up error on the console forever.
func halt(err error) {
	for {
		println("fanctl:", err.Error())
		time.Sleep(time.Second)
	}
}
