package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/fanctl/internal/config"
	"codeberg.org/mutker/fanctl/internal/control"
	"codeberg.org/mutker/fanctl/internal/degrees"
	"codeberg.org/mutker/fanctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "fanctl.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
mode = "simulate"
interval = 250
log_level = "debug"

[serial]
port = "/dev/ttyACM1"
baud = 9600

[curve]
min_duty = 500
max_duty = 4000
min_temp = 30
max_temp = 45.5

[sim]
scenario = "/etc/fanctl/ramp.yaml"
sampling = "polled"

[metrics]
enabled = true
db_path = "/path/to/metrics.db"

[telemetry]
listen = ":9101"
`)
	t.Setenv("FANCTL_CONFIG", path)

	cfg, err := config.LoadArgs(nil)
	require.NoError(t, err)

	assert.Equal(t, config.ModeSimulate, cfg.GetMode())
	assert.Equal(t, 250*time.Millisecond, cfg.GetInterval())
	assert.Equal(t, config.LogLevelDebug, cfg.GetLogLevel())
	assert.Equal(t, "/dev/ttyACM1", cfg.GetSerialPort())
	assert.Equal(t, 9600, cfg.GetBaudRate())
	assert.Equal(t, "/etc/fanctl/ramp.yaml", cfg.GetScenarioPath())
	assert.Equal(t, "polled", cfg.GetSampling())
	assert.True(t, cfg.IsMetricsEnabled())
	assert.Equal(t, "/path/to/metrics.db", cfg.GetMetricsDBPath())
	assert.Equal(t, ":9101", cfg.GetTelemetryListen())

	p := cfg.GetCurve()
	assert.Equal(t, uint16(500), p.MinDuty)
	assert.Equal(t, uint16(4000), p.MaxDuty)
	assert.Equal(t, degrees.FromInt(30), p.MinTemp)
	assert.Equal(t, degrees.FromInt(45)+degrees.One/2, p.MaxTemp)
	assert.Equal(t, uint32(control.PWMTicks), p.PWMTicks)
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("FANCTL_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	// An explicit file that does not exist is an error, searching is not.
	_, err := config.LoadArgs(nil)
	require.Error(t, err)

	t.Setenv("FANCTL_CONFIG", "")

	cfg, err := config.LoadArgs(nil)
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, config.ModeMonitor, cfg.Mode)
	assert.Equal(t, config.DefaultInterval, cfg.Interval)
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, "auto", cfg.Serial.Port)
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, config.DefaultDBPath, cfg.Metrics.DBPath)
	assert.Empty(t, cfg.Telemetry.Listen)
	assert.Equal(t, "dma", cfg.GetSampling())
	assert.Equal(t, control.DefaultParams(), cfg.GetCurve())
}

func TestFlagsOverrideFile(t *testing.T) {
	path := writeConfig(t, `
interval = 250

[serial]
port = "/dev/ttyACM1"
`)

	cfg, err := config.LoadArgs(
		[]string{"--interval", "500", "--port", "/dev/ttyACM2", "--debug", "--list-ports"},
		config.WithConfigFile(path),
	)
	require.NoError(t, err)

	assert.Equal(t, 500, cfg.Interval)
	assert.Equal(t, "/dev/ttyACM2", cfg.Serial.Port)
	assert.True(t, cfg.Debug)
	assert.True(t, cfg.ListPorts)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected --debug to force the debug level")
}

func TestEnvironmentOverridesFile(t *testing.T) {
	path := writeConfig(t, `
[serial]
port = "/dev/ttyACM1"
`)
	t.Setenv("FANCTL_CONFIG", path)
	t.Setenv("FANCTL_SERIAL_PORT", "/dev/ttyUSB0")
	t.Setenv("FANCTL_MODE", "simulate")

	cfg, err := config.LoadArgs(nil)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB0", cfg.Serial.Port)
	assert.Equal(t, config.ModeSimulate, cfg.Mode)
}

func TestCustomEnvPrefix(t *testing.T) {
	t.Setenv("FANCTL_CONFIG", "")
	t.Setenv("FANTEST_LOG_LEVEL", "error")

	cfg, err := config.LoadArgs(nil, config.WithEnvPrefix("FANTEST"))
	require.NoError(t, err)
	assert.Equal(t, config.LogLevelError, cfg.GetLogLevel())
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	path := writeConfig(t, `
This is not a valid TOML file
`)

	_, err := config.LoadArgs(nil, config.WithConfigFile(path))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig))
}

func TestValidation(t *testing.T) {
	tests := []struct {
		name string
		args []string
		file string
		code errors.ErrorCode
	}{
		{"invalid mode", []string{"--mode", "fly"}, "", errors.ErrInvalidMode},
		{"zero interval", []string{"--interval", "0"}, "", errors.ErrInvalidInterval},
		{"huge interval", []string{"--interval", "600000"}, "", errors.ErrInvalidInterval},
		{"invalid log level", []string{"--log-level", "invalid"}, "", errors.ErrInvalidLogLevel},
		{"zero baud", []string{"--baud", "0"}, "", errors.ErrInvalidConfig},
		{"unknown sampling", []string{"--sampling", "irq"}, "", errors.ErrInvalidConfig},
		{"metrics without path", []string{"--metrics", "--db", ""}, "", errors.ErrMissingConfig},
		{"unknown flag", []string{"--nope"}, "", errors.ErrBindFlags},
		{
			"inverted temperatures", nil,
			"[curve]\nmin_temp = 50\nmax_temp = 40\n",
			errors.ErrInvalidConfig,
		},
		{
			"inverted duties", nil,
			"[curve]\nmin_duty = 4000\nmax_duty = 1000\n",
			errors.ErrInvalidConfig,
		},
		{
			"duty beyond wrap", nil,
			"[curve]\nmax_duty = 6000\n",
			errors.ErrInvalidConfig,
		},
		{
			"temperature out of range", nil,
			"[curve]\nmax_temp = 500\n",
			errors.ErrInvalidConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FANCTL_CONFIG", "")

			var opts []config.Option
			if tt.file != "" {
				opts = append(opts, config.WithConfigFile(writeConfig(t, tt.file)))
			}

			_, err := config.LoadArgs(tt.args, opts...)
			require.Error(t, err)
			assert.True(t, errors.HasCode(err, tt.code), "got %v", err)
		})
	}
}

func TestLogLevelIsValid(t *testing.T) {
	for _, l := range []config.LogLevel{
		config.LogLevelDebug, config.LogLevelInfo, config.LogLevelWarning, config.LogLevelError,
	} {
		assert.True(t, l.IsValid(), l.String())
	}
	assert.False(t, config.LogLevel("trace").IsValid())
}
