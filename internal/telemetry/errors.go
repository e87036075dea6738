package telemetry

import "codeberg.org/mutker/fanctl/internal/errors"

const (
	// Configuration Errors
	ErrInvalidConfig = errors.ErrInvalidConfig

	// Server Errors
	ErrInit     = errors.ErrInitTelemetry
	ErrServe    = errors.ErrServeTelemetry
	ErrShutdown = errors.ErrShutdownFailed
)
