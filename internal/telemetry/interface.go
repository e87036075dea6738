package telemetry

import (
	"context"

	"codeberg.org/mutker/fanctl/internal/report"
)

// Collector publishes live controller state.
type Collector interface {
	Observe(reading report.Reading)
	SetConnected(connected bool)
	Serve(ctx context.Context) error
}

// LinkStats exposes the serial link's error counters.
type LinkStats interface {
	Malformed() uint64
	Dropped() uint64
}
