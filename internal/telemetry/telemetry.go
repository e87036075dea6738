// Package telemetry exports the latest controller readings as Prometheus
// metrics.
package telemetry

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codeberg.org/mutker/fanctl/internal/errors"
	"codeberg.org/mutker/fanctl/internal/logger"
	"codeberg.org/mutker/fanctl/internal/report"
)

// Service holds the controller gauges on their own registry.
type Service struct {
	cfg      Config
	registry *prometheus.Registry

	temperature prometheus.Gauge
	duty        prometheus.Gauge
	connected   prometheus.Gauge
	readings    prometheus.Counter
	lastReading prometheus.Gauge
}

var _ Collector = (*Service)(nil)

// NewService registers the controller metrics on a private registry. link
// may be nil.
func NewService(cfg Config, link LinkStats) (*Service, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	s := &Service{
		cfg:      cfg,
		registry: reg,
		temperature: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "temperature_celsius",
			Help:      "Thermistor temperature reported by the controller",
		}),
		duty: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "fan_duty_ratio",
			Help:      "Fan PWM duty cycle, 0 to 1",
		}),
		connected: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "connected",
			Help:      "Whether the controller link is up",
		}),
		readings: factory.NewCounter(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "readings_total",
			Help:      "Status lines received from the controller",
		}),
		lastReading: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: cfg.Namespace,
			Name:      "last_reading_timestamp_seconds",
			Help:      "Unix time of the latest status line",
		}),
	}

	if link != nil {
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "malformed_lines_total",
			Help:      "Status lines that failed to parse",
		}, func() float64 { return float64(link.Malformed()) })
		factory.NewCounterFunc(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Name:      "dropped_readings_total",
			Help:      "Readings dropped because the consumer fell behind",
		}, func() float64 { return float64(link.Dropped()) })
	}

	return s, nil
}

func (s *Service) Observe(reading report.Reading) {
	s.temperature.Set(float64(reading.Temperature))
	s.duty.Set(float64(reading.Permyriad) / 10000)
	s.readings.Inc()
	s.lastReading.SetToCurrentTime()
}

func (s *Service) SetConnected(connected bool) {
	if connected {
		s.connected.Set(1)
		return
	}
	s.connected.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (s *Service) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// Serve listens on the configured address until ctx is done. It returns nil
// at once when no address is configured.
func (s *Service) Serve(ctx context.Context) error {
	if !s.cfg.Enabled() {
		return nil
	}

	l, err := net.Listen("tcp", s.cfg.Listen)
	if err != nil {
		return errors.New().Wrap(ErrInit, err)
	}

	return s.ServeListener(ctx, l)
}

// ServeListener serves /metrics on l until ctx is done.
func (s *Service) ServeListener(ctx context.Context, l net.Listener) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.Handler())

	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(l)
	}()

	logger.Info().Str("addr", l.Addr().String()).Msg("Serving telemetry")

	select {
	case err := <-errCh:
		return errors.New().Wrap(ErrServe, err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.New().Wrap(ErrShutdown, err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.New().Wrap(ErrServe, err)
	}

	return nil
}
