package metrics

import (
	"time"

	"github.com/aquarig/supervisor/pkg/bus"
)

// SampleStore is a bounded history of telemetry samples.
type SampleStore interface {
	Add(timestamp time.Time, metric string, value float64)
	GetPoints() []SamplePoint
	GetLastPoint() *SamplePoint
}

// SampleCollector aggregates per-module telemetry histories.
type SampleCollector interface {
	AddSample(module bus.ModuleID, timestamp time.Time, metric string, value float64)
	GetSamples(module bus.ModuleID) []SamplePoint
}
