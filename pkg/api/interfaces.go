package api

import (
	"context"

	"github.com/aquarig/supervisor/pkg/bus"
	"github.com/aquarig/supervisor/pkg/db"
	"github.com/aquarig/supervisor/pkg/metrics"
)

// EventStore serves the event-log endpoint.
type EventStore interface {
	RecentEvents(limit int) ([]db.Event, error)
}

// CommandRunner executes one console command line.
type CommandRunner interface {
	Execute(ctx context.Context, line string) string
}

// SampleSource serves the history endpoint.
type SampleSource interface {
	GetSamples(module bus.ModuleID) []metrics.SamplePoint
}
