package config

import (
	"math"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"codeberg.org/mutker/fanctl/internal/control"
	"codeberg.org/mutker/fanctl/internal/degrees"
	"codeberg.org/mutker/fanctl/internal/errors"
)

const (
	DefaultEnvPrefix = "FANCTL"
	DefaultLogLevel  = "info"
	DefaultInterval  = 1000 // ms
	MaxInterval      = 60_000
	DefaultDBPath    = "/var/lib/fanctl/metrics.db"

	configName = "fanctl"
	configType = "toml"

	samplingDMA    = "dma"
	samplingPolled = "polled"
)

// Mode selects what the host tool talks to.
type Mode string

const (
	// ModeMonitor polls a controller on a serial port.
	ModeMonitor Mode = "monitor"
	// ModeSimulate runs the controller firmware on a simulated board.
	ModeSimulate Mode = "simulate"
)

func (m Mode) IsValid() bool {
	return m == ModeMonitor || m == ModeSimulate
}

type SerialConfig struct {
	Port string `mapstructure:"port"`
	Baud int    `mapstructure:"baud"`
}

// CurveConfig is the fan curve in PWM ticks and °C.
type CurveConfig struct {
	MinDuty  int     `mapstructure:"min_duty"`
	MaxDuty  int     `mapstructure:"max_duty"`
	MinTemp  float64 `mapstructure:"min_temp"`
	MaxTemp  float64 `mapstructure:"max_temp"`
	PWMTicks int     `mapstructure:"pwm_ticks"`
}

type SimConfig struct {
	Scenario string `mapstructure:"scenario"`
	Sampling string `mapstructure:"sampling"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DBPath  string `mapstructure:"db_path"`
}

type TelemetryConfig struct {
	Listen string `mapstructure:"listen"`
}

type Config struct {
	Mode      Mode            `mapstructure:"mode"`
	Interval  int             `mapstructure:"interval"`
	LogLevel  string          `mapstructure:"log_level"`
	Serial    SerialConfig    `mapstructure:"serial"`
	Curve     CurveConfig     `mapstructure:"curve"`
	Sim       SimConfig       `mapstructure:"sim"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`

	// Command line only
	Debug     bool `mapstructure:"-"`
	Verbose   bool `mapstructure:"-"`
	ListPorts bool `mapstructure:"-"`
	Bootload  bool `mapstructure:"-"`
}

var _ Provider = (*Config)(nil)

// Load reads the configuration from the command line, the environment and
// the config file, in that order of precedence.
func Load(opts ...Option) (*Config, error) {
	return LoadArgs(os.Args[1:], opts...)
}

// LoadArgs is Load with explicit command line arguments.
func LoadArgs(args []string, opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := &options{envPrefix: DefaultEnvPrefix}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	v := viper.New()
	setDefaults(v)

	fs := pflag.NewFlagSet(configName, pflag.ContinueOnError)
	debug := fs.Bool("debug", false, "Enable debug logging")
	verbose := fs.Bool("verbose", false, "Enable verbose logging")
	listPorts := fs.Bool("list-ports", false, "List serial ports and exit")
	bootload := fs.Bool("bootloader", false, "Reset the controller into its USB bootloader and exit")
	fs.String("mode", string(ModeMonitor), "Operating mode: monitor or simulate")
	fs.Int("interval", DefaultInterval, "Milliseconds between status requests")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warning or error")
	fs.String("port", "auto", "Serial port of the controller, or auto")
	fs.Int("baud", 115200, "Serial baud rate")
	fs.String("scenario", "", "YAML temperature scenario for simulate mode")
	fs.String("sampling", samplingDMA, "Simulated thermistor sampling: dma or polled")
	fs.Bool("metrics", false, "Record readings to the metrics database")
	fs.String("db", DefaultDBPath, "Path to the metrics database")
	fs.String("listen", "", "Address to serve Prometheus metrics on, e.g. :9101")

	if err := fs.Parse(args); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	bindings := map[string]string{
		"mode":             "mode",
		"interval":         "interval",
		"log_level":        "log-level",
		"serial.port":      "port",
		"serial.baud":      "baud",
		"sim.scenario":     "scenario",
		"sim.sampling":     "sampling",
		"metrics.enabled":  "metrics",
		"metrics.db_path":  "db",
		"telemetry.listen": "listen",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, errFactory.Wrap(errors.ErrBindFlags, err)
		}
	}

	v.SetEnvPrefix(o.envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := readConfigFile(v, o); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	cfg.Debug = *debug
	cfg.Verbose = *verbose
	cfg.ListPorts = *listPorts
	cfg.Bootload = *bootload
	if cfg.Debug {
		cfg.LogLevel = string(LogLevelDebug)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	def := control.DefaultParams()

	v.SetDefault("mode", string(ModeMonitor))
	v.SetDefault("interval", DefaultInterval)
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("serial.port", "auto")
	v.SetDefault("serial.baud", 115200)
	v.SetDefault("curve.min_duty", int(def.MinDuty))
	v.SetDefault("curve.max_duty", int(def.MaxDuty))
	v.SetDefault("curve.min_temp", def.MinTemp.Float())
	v.SetDefault("curve.max_temp", def.MaxTemp.Float())
	v.SetDefault("curve.pwm_ticks", int(def.PWMTicks))
	v.SetDefault("sim.scenario", "")
	v.SetDefault("sim.sampling", samplingDMA)
	v.SetDefault("metrics.enabled", false)
	v.SetDefault("metrics.db_path", DefaultDBPath)
	v.SetDefault("telemetry.listen", "")
}

func readConfigFile(v *viper.Viper, o *options) error {
	errFactory := errors.New()

	path := o.configPath
	if path == "" {
		path = os.Getenv(o.envPrefix + "_CONFIG")
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType(configType)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath("/etc")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return nil
		}

		return errFactory.Wrap(errors.ErrReadConfig, err)
	}

	return nil
}

// Validate checks every field and returns the first problem found.
func (c *Config) Validate() error {
	errFactory := errors.New()

	if !c.Mode.IsValid() {
		return errFactory.WithData(errors.ErrInvalidMode, c.Mode)
	}
	if c.Interval <= 0 || c.Interval > MaxInterval {
		return errFactory.WithData(errors.ErrInvalidInterval, c.Interval)
	}
	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithData(errors.ErrInvalidLogLevel, c.LogLevel)
	}
	if c.Serial.Baud <= 0 {
		return errFactory.WithData(errors.ErrInvalidConfig, struct{ Baud int }{c.Serial.Baud})
	}
	if c.Sim.Sampling != samplingDMA && c.Sim.Sampling != samplingPolled {
		return errFactory.WithData(errors.ErrInvalidConfig, struct{ Sampling string }{c.Sim.Sampling})
	}
	if c.Metrics.Enabled && c.Metrics.DBPath == "" {
		return errFactory.WithMessage(errors.ErrMissingConfig, "metrics enabled without a database path")
	}

	params, err := c.curveParams()
	if err != nil {
		return err
	}
	if _, err := params.Curve(); err != nil {
		return errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	return nil
}

func (c *Config) curveParams() (control.Params, error) {
	cc := c.Curve
	if cc.PWMTicks <= 0 || cc.PWMTicks > math.MaxUint16 ||
		cc.MinDuty < 0 || cc.MaxDuty < 0 || cc.MaxDuty > math.MaxUint16 {
		return control.Params{}, errors.New().WithData(errors.ErrInvalidConfig, cc)
	}
	minTemp, ok := toDegrees(cc.MinTemp)
	if !ok {
		return control.Params{}, errors.New().WithData(errors.ErrInvalidConfig, struct{ MinTemp float64 }{cc.MinTemp})
	}
	maxTemp, ok := toDegrees(cc.MaxTemp)
	if !ok {
		return control.Params{}, errors.New().WithData(errors.ErrInvalidConfig, struct{ MaxTemp float64 }{cc.MaxTemp})
	}

	return control.Params{
		MaxDuty:  uint16(cc.MaxDuty),
		MinDuty:  uint16(cc.MinDuty),
		MaxTemp:  maxTemp,
		MinTemp:  minTemp,
		PWMTicks: uint32(cc.PWMTicks),
	}, nil
}

func toDegrees(c float64) (degrees.Degrees, bool) {
	q := math.Round(c * float64(degrees.One))
	if math.IsNaN(q) || q < float64(degrees.Min) || q > float64(degrees.Max) {
		return 0, false
	}

	return degrees.Degrees(q), true
}

func (c *Config) GetMode() Mode {
	return c.Mode
}

func (c *Config) GetInterval() time.Duration {
	return time.Duration(c.Interval) * time.Millisecond
}

func (c *Config) GetLogLevel() LogLevel {
	return LogLevel(c.LogLevel)
}

func (c *Config) GetSerialPort() string {
	return c.Serial.Port
}

func (c *Config) GetBaudRate() int {
	return c.Serial.Baud
}

// GetCurve returns the validated fan curve calibration.
func (c *Config) GetCurve() control.Params {
	p, err := c.curveParams()
	if err != nil {
		return control.DefaultParams()
	}

	return p
}

func (c *Config) GetScenarioPath() string {
	return c.Sim.Scenario
}

func (c *Config) GetSampling() string {
	return c.Sim.Sampling
}

func (c *Config) IsMetricsEnabled() bool {
	return c.Metrics.Enabled
}

func (c *Config) GetMetricsDBPath() string {
	return c.Metrics.DBPath
}

func (c *Config) GetTelemetryListen() string {
	return c.Telemetry.Listen
}
