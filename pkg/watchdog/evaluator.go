// Package watchdog derives the liveness and fault signals from the current
// state snapshot. Evaluation is pure: given the same snapshot and clock it
// always produces the same result, and it keeps no memory across ticks.
package watchdog

import (
	"fmt"
	"time"

	"github.com/aquarig/supervisor/pkg/bus"
	"github.com/aquarig/supervisor/pkg/state"
)

const (
	// StaleThreshold is the liveness window: a module whose last
	// accepted frame is this old (or older) counts as lost.
	StaleThreshold = 500 * time.Millisecond

	// LowNutrientThreshold is the remaining-volume floor (ml) below
	// which a nutrient channel raises a fault.
	LowNutrientThreshold = 200
)

// Code identifies one alarm condition. The codes match the ones the remote
// server expects in event reports.
type Code string

const (
	CodeCommLost    Code = "E-COMM-LOST"
	CodeLeak        Code = "E-LEAK"
	CodeNutrientLow Code = "E-NUTRI-LOW"
	CodeFeedEmpty   Code = "E-FEED-EMPTY"
	CodeLinkLost    Code = "E-SRV-LOST"
)

// Message returns the operator-facing description of the alarm.
func (c Code) Message() string {
	switch c {
	case CodeCommLost:
		return "module telemetry lost or delayed"
	case CodeLeak:
		return "leak detected in grow bed"
	case CodeNutrientLow:
		return "nutrient channel below low-level threshold"
	case CodeFeedEmpty:
		return "feed hopper empty"
	case CodeLinkLost:
		return "server uplink down"
	default:
		return fmt.Sprintf("unknown alarm %q", string(c))
	}
}

// Result is one tick's evaluation.
type Result struct {
	AllLive bool
	Fault   bool
	Stale   []bus.ModuleID
	Alarms  []Code
}

// Has reports whether the result raised the given alarm.
func (r Result) Has(code Code) bool {
	for _, c := range r.Alarms {
		if c == code {
			return true
		}
	}

	return false
}

// Evaluate recomputes the alarm state from scratch. A module is stale when
// its liveness age reaches StaleThreshold (the boundary itself counts as
// stale). Fault is the union of leak, low nutrient and empty feed; it is
// independent of liveness.
func Evaluate(snap state.Snapshot, now time.Time) Result {
	r := Result{AllLive: true}

	for _, id := range bus.Monitored() {
		if now.Sub(snap.LastSeen[id]) >= StaleThreshold {
			r.AllLive = false
			r.Stale = append(r.Stale, id)
		}
	}

	if !r.AllLive {
		r.Alarms = append(r.Alarms, CodeCommLost)
	}

	if snap.Grow.LeakMask != 0 {
		r.Fault = true
		r.Alarms = append(r.Alarms, CodeLeak)
	}

	for _, remaining := range snap.Nutrient.Remaining {
		if remaining < LowNutrientThreshold {
			r.Fault = true
			r.Alarms = append(r.Alarms, CodeNutrientLow)

			break
		}
	}

	if snap.Feed.RemainingG == 0 {
		r.Fault = true
		r.Alarms = append(r.Alarms, CodeFeedEmpty)
	}

	if !snap.Signals.LinkUp {
		r.Alarms = append(r.Alarms, CodeLinkLost)
	}

	return r
}
