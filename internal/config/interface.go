package config

import (
	"time"

	"codeberg.org/mutker/fanctl/internal/control"
)

// Provider defines the interface for accessing configuration values
// All configuration values are immutable after initial loading
type Provider interface {
	// GetMode returns whether to poll real hardware or the simulator
	GetMode() Mode

	// GetInterval returns the time between status requests
	GetInterval() time.Duration

	// GetLogLevel returns the configured logging level
	GetLogLevel() LogLevel

	// GetSerialPort returns the controller port, or "auto"
	GetSerialPort() string

	GetBaudRate() int

	// GetCurve returns the fan curve calibration for the simulated firmware
	GetCurve() control.Params

	// GetScenarioPath returns the simulation scenario file, if any
	GetScenarioPath() string

	// GetSampling returns how the simulated firmware reads the thermistor
	GetSampling() string

	// IsMetricsEnabled returns whether metrics collection is enabled
	IsMetricsEnabled() bool

	// GetMetricsDBPath returns the path to the metrics database
	GetMetricsDBPath() string

	// GetTelemetryListen returns the Prometheus listen address, empty when disabled
	GetTelemetryListen() string
}

// Option defines a configuration option that can be passed to Load
type Option func(*options) error

// options holds internal configuration options
type options struct {
	configPath string
	envPrefix  string
}

// WithConfigFile specifies an explicit configuration file path
func WithConfigFile(path string) Option {
	return func(o *options) error {
		o.configPath = path
		return nil
	}
}

// WithEnvPrefix specifies a custom environment variable prefix
// Default is "FANCTL"
func WithEnvPrefix(prefix string) Option {
	return func(o *options) error {
		o.envPrefix = prefix
		return nil
	}
}

// LogLevel represents valid logging levels
type LogLevel string

const (
	LogLevelDebug   LogLevel = "debug"
	LogLevelInfo    LogLevel = "info"
	LogLevelWarning LogLevel = "warning"
	LogLevelError   LogLevel = "error"
)

// IsValid returns whether the log level is valid
func (l LogLevel) IsValid() bool {
	switch l {
	case LogLevelDebug, LogLevelInfo, LogLevelWarning, LogLevelError:
		return true
	default:
		return false
	}
}

// String implements the Stringer interface
func (l LogLevel) String() string {
	return string(l)
}
