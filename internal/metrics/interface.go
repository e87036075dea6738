package metrics

import (
	"context"
	"time"
)

// MetricsCollector defines the core domain interface
type MetricsCollector interface {
	Record(ctx context.Context, snapshot *MetricsSnapshot) error
	Close() error
}

// Repository defines the interface for metrics data storage
type MetricsRepository interface {
	Record(snapshot *MetricsSnapshot) error
	Recent(limit int) ([]MetricsSnapshot, error)
	Close() error
}

// MetricsSnapshot is one status report from the controller.
type MetricsSnapshot struct {
	Timestamp time.Time
	// Temperature in whole °C, as reported.
	Temperature int
	// DutyPermyriad is the fan duty in hundredths of a percent.
	DutyPermyriad int
	// Simulated is set for readings from the emulated board.
	Simulated bool
}
