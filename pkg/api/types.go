package api

import (
	"time"

	"github.com/aquarig/supervisor/pkg/bus"
	"github.com/aquarig/supervisor/pkg/state"
	"github.com/aquarig/supervisor/pkg/watchdog"
)

// RigStatus is the /api/status response: the full snapshot plus the
// alarms active at the time of the request.
type RigStatus struct {
	Rig      string         `json:"rig"`
	Snapshot state.Snapshot `json:"snapshot"`
	Alarms   []AlarmStatus  `json:"alarms"`
}

// AlarmStatus is one active alarm condition.
type AlarmStatus struct {
	Code    watchdog.Code `json:"code"`
	Message string        `json:"message"`
}

// ModuleStatus summarizes one module's liveness for /api/modules.
type ModuleStatus struct {
	ID       string        `json:"id"`
	Live     bool          `json:"live"`
	LastSeen time.Time     `json:"last_seen"`
	Age      time.Duration `json:"age_ns"`
}

// ModuleDetail is the /api/modules/{id} response. Exactly one of the
// telemetry fields is set, matching the module.
type ModuleDetail struct {
	ModuleStatus
	Tank     *bus.TankState     `json:"tank,omitempty"`
	Grow     *bus.GrowState     `json:"grow,omitempty"`
	Nutrient *bus.NutrientState `json:"nutrient,omitempty"`
	Feed     *bus.FeedState     `json:"feed,omitempty"`
}

// CommandRequest is the /api/command request body.
type CommandRequest struct {
	Line string `json:"line"`
}

// CommandResponse carries the interpreter's operator-facing reply.
type CommandResponse struct {
	Response string `json:"response"`
}
