package telemetry

import (
	"time"

	"codeberg.org/mutker/fanctl/internal/errors"
)

const (
	defaultNamespace       = "fanctl"
	defaultShutdownTimeout = 5 * time.Second
)

type Config struct {
	// Listen is the HTTP address for /metrics. Empty disables the server.
	Listen          string
	Namespace       string
	ShutdownTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		Namespace:       defaultNamespace,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

func (c Config) Enabled() bool {
	return c.Listen != ""
}

func (c Config) Validate() error {
	errFactory := errors.New()
	if c.Namespace == "" {
		return errFactory.WithMessage(ErrInvalidConfig, "empty metric namespace")
	}
	if c.ShutdownTimeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, c.ShutdownTimeout)
	}
	return nil
}
