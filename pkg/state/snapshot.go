package state

import (
	"time"

	"github.com/aquarig/supervisor/pkg/bus"
)

// Signals are the three derived alarm outputs, recomputed every tick.
type Signals struct {
	LinkUp  bool `json:"link_up"`
	AllLive bool `json:"all_live"`
	Fault   bool `json:"fault"`
}

// Snapshot is a point-in-time copy of the aggregated rig state. It is what
// the uplink publisher serializes and what the console and API render.
type Snapshot struct {
	Timestamp time.Time                  `json:"timestamp"`
	Tank      bus.TankState              `json:"tank"`
	Grow      bus.GrowState              `json:"grow"`
	Nutrient  bus.NutrientState          `json:"nutrient"`
	Feed      bus.FeedState              `json:"feed"`
	LastSeen  map[bus.ModuleID]time.Time `json:"-"`
	LinkDown  bool                       `json:"link_down"`
	Signals   Signals                    `json:"signals"`
}

// Age returns how long ago the module's last accepted frame arrived,
// measured against the snapshot's own timestamp.
func (s Snapshot) Age(id bus.ModuleID) time.Duration {
	last, ok := s.LastSeen[id]
	if !ok {
		return time.Duration(1<<63 - 1)
	}

	return s.Timestamp.Sub(last)
}
