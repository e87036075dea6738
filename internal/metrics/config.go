package metrics

import (
	"time"

	"codeberg.org/mutker/fanctl/internal/errors"
)

const (
	// File system permissions and paths
	defaultDirPerm      = 0o755
	defaultDBPath       = "/var/lib/fanctl/metrics.db"
	defaultBatchSize    = 10
	defaultBatchTimeout = 5 * time.Second
)

type Config struct {
	DBPath          string
	BackupOnMigrate bool
	Enabled         bool
	// BatchSize readings are buffered before a write. Zero or one writes
	// every reading immediately.
	BatchSize int
	// BatchTimeout flushes a partial batch.
	BatchTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		DBPath:          defaultDBPath,
		BackupOnMigrate: true,
		Enabled:         false, // Disabled by default
		BatchSize:       defaultBatchSize,
		BatchTimeout:    defaultBatchTimeout,
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate DBPath if metrics is enabled
	if c.Enabled && c.DBPath == "" {
		return errFactory.New(ErrInvalidDBPath)
	}
	if c.BatchSize < 0 || c.BatchTimeout < 0 {
		return errFactory.WithData(ErrInvalidConfig, struct {
			BatchSize    int
			BatchTimeout time.Duration
		}{c.BatchSize, c.BatchTimeout})
	}

	return nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
