package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"codeberg.org/mutker/fanctl/internal/config"
	"codeberg.org/mutker/fanctl/internal/device"
	"codeberg.org/mutker/fanctl/internal/errors"
	"codeberg.org/mutker/fanctl/internal/logger"
	"codeberg.org/mutker/fanctl/internal/metrics"
	"codeberg.org/mutker/fanctl/internal/pid"
	"codeberg.org/mutker/fanctl/internal/sim"
	"codeberg.org/mutker/fanctl/internal/telemetry"
)

const reconnectDelay = 2 * time.Second

// controller is the device plus the link counters telemetry exports.
type controller interface {
	device.Device
	telemetry.LinkStats
}

type app struct {
	cfg       *config.Config
	dev       controller
	emulator  *device.Emulator
	metrics   metrics.MetricsCollector
	telemetry *telemetry.Service
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			os.Exit(0)
		}
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	level := cfg.GetLogLevel()
	logger.Init(level == config.LogLevelDebug, level == config.LogLevelInfo || cfg.Verbose, logger.IsService())
	if level == config.LogLevelError {
		logger.SetLogLevel(logger.ErrorLevel)
	}
	logger.Debug().Msg("Config loaded")

	if cfg.ListPorts {
		if err := listPorts(); err != nil {
			fatal(err, "list_ports")
		}
		return
	}

	if cfg.Bootload {
		if err := enterBootloader(cfg); err != nil {
			fatal(err, "bootloader")
		}
		return
	}

	if err := pid.Write(); err != nil {
		fatal(err, "pid")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Warn().Err(err).Msg("Failed to remove PID file")
		}
	}()

	a, err := newApp(cfg)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to initialize")
		_ = pid.Remove()
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := a.run(ctx); err != nil {
		logger.Error().Err(err).Msg("error in main loop")
	}
	a.cleanup()
}

func fatal(err error, operation string) {
	var coded errors.Error
	if errors.As(err, &coded) {
		logger.ErrorWithContext(coded, "main", operation).Msg("Exiting")
	} else {
		logger.Error().Err(err).Str("operation", operation).Msg("Exiting")
	}
	os.Exit(1)
}

func newApp(cfg *config.Config) (*app, error) {
	errFactory := errors.New()
	a := &app{cfg: cfg}

	switch cfg.GetMode() {
	case config.ModeSimulate:
		mc := device.DefaultMockConfig()
		mc.Params = cfg.GetCurve()
		mc.Sampling = device.Sampling(cfg.GetSampling())
		if path := cfg.GetScenarioPath(); path != "" {
			s, err := sim.LoadScenario(path)
			if err != nil {
				return nil, err
			}
			mc.Scenario = s
		}
		dev, emu := device.NewMock(mc)
		a.dev, a.emulator = dev, emu
		logger.Info().Msg("Simulate mode activated. Running the controller on an emulated board...")
	case config.ModeMonitor:
		a.dev = device.New(cfg.GetSerialPort(), cfg.GetBaudRate(), device.DefaultBufferSize)
	default:
		return nil, errFactory.WithData(errors.ErrInvalidMode, cfg.GetMode())
	}

	mcfg := metrics.DefaultConfig()
	mcfg.Enabled = cfg.IsMetricsEnabled()
	mcfg.DBPath = cfg.GetMetricsDBPath()
	collector, err := metrics.NewService(mcfg, logger.Default())
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrInitMetrics, err)
	}
	a.metrics = collector

	tcfg := telemetry.DefaultConfig()
	tcfg.Listen = cfg.GetTelemetryListen()
	tel, err := telemetry.NewService(tcfg, a.dev)
	if err != nil {
		_ = collector.Close()
		return nil, errFactory.Wrap(errors.ErrInitTelemetry, err)
	}
	a.telemetry = tel

	return a, nil
}

func (a *app) run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return a.telemetry.Serve(ctx)
	})
	g.Go(func() error {
		return a.monitor(ctx)
	})

	return g.Wait()
}

// monitor keeps a link to the controller open and records every status line.
func (a *app) monitor(ctx context.Context) error {
	for {
		if err := a.dev.Connect(); err != nil {
			logger.Warn().Err(err).Dur("retry_in", reconnectDelay).Msg("Controller unavailable")
		} else {
			a.telemetry.SetConnected(true)
			err := a.session(ctx)
			a.telemetry.SetConnected(false)
			if cerr := a.dev.Close(); cerr != nil {
				logger.Debug().Err(cerr).Msg("Error closing controller link")
			}
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn().Err(err).Msg("Lost controller link")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(reconnectDelay):
		}
	}
}

func (a *app) session(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pollErr := make(chan error, 1)
	go func() {
		pollErr <- device.Poll(ctx, a.dev, a.cfg.GetInterval())
	}()

	samples := a.dev.Samples()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-pollErr:
			return err
		case s, ok := <-samples:
			if !ok {
				return errors.New().New(errors.ErrNotConnected)
			}
			a.record(ctx, s)
		}
	}
}

func (a *app) record(ctx context.Context, s device.Sample) {
	a.telemetry.Observe(s.Reading)

	snap := &metrics.MetricsSnapshot{
		Timestamp:     s.Timestamp,
		Temperature:   s.Temperature,
		DutyPermyriad: s.Permyriad,
		Simulated:     a.emulator != nil,
	}
	if err := a.metrics.Record(ctx, snap); err != nil {
		logger.Warn().Err(err).Msg("Failed to record metrics")
	}

	logger.Debug().
		Int("temperature", s.Temperature).
		Float64("duty_percent", s.DutyPercent()).
		Uint64("malformed", a.dev.Malformed()).
		Uint64("dropped", a.dev.Dropped()).
		Msg("")
}

func (a *app) cleanup() {
	if err := a.metrics.Close(); err != nil {
		logger.Error().Err(err).Msg("failed to close metrics")
	}
	if err := a.dev.Close(); err != nil {
		logger.Debug().Err(err).Msg("failed to close controller link")
	}
	if a.emulator != nil {
		a.emulator.Close()
	}
	logger.Info().Msg("Exiting...")
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}

func listPorts() error {
	ports, err := device.Ports()
	if err != nil {
		return err
	}

	for _, p := range ports {
		marker := " "
		if p.Controller {
			marker = "*"
		}
		fmt.Printf("%s %-20s %s\n", marker, p.Name, p.Description)
	}

	return nil
}

func enterBootloader(cfg *config.Config) error {
	dev := device.New(cfg.GetSerialPort(), cfg.GetBaudRate(), device.DefaultBufferSize)
	if err := dev.Connect(); err != nil {
		return err
	}
	defer func() { _ = dev.Close() }()

	if err := dev.EnterBootloader(); err != nil {
		return err
	}
	logger.Info().Str("port", cfg.GetSerialPort()).Msg("Controller reset into bootloader")

	return nil
}
