// Package state holds the supervisor's single source of truth: the latest
// telemetry per module, per-module liveness timestamps, and the derived
// alarm signals. All mutation goes through the Store's narrow API so its
// invariants (non-negative feed mass, clamped brightness, liveness only
// advanced by accepted frames) are enforced in one place.
package state

import (
	"sync"
	"time"

	"github.com/aquarig/supervisor/pkg/bus"
)

// Store is safe for concurrent use by the ingestion, watchdog, uplink,
// console and command tasks. Readers always see a module's state either
// fully before or fully after an update, never a torn mix.
type Store struct {
	mu sync.RWMutex

	tank     bus.TankState
	grow     bus.GrowState
	nutrient bus.NutrientState
	feed     bus.FeedState

	lastSeen map[bus.ModuleID]time.Time

	// Operator LED writes win over bus frames generated before the
	// write; a fresher frame supersedes them.
	ledValue uint8
	ledSetAt time.Time

	linkDown bool
	signals  Signals
}

// NewStore seeds liveness for every monitored module to now, so the
// watchdog does not raise a false comm-loss alarm before the first frame
// has had a chance to arrive.
func NewStore(now time.Time) *Store {
	s := &Store{
		lastSeen: make(map[bus.ModuleID]time.Time, len(bus.Monitored())),
	}

	for _, id := range bus.Monitored() {
		s.lastSeen[id] = now
	}

	return s
}

// ApplyFrame ingests one bus frame. Only SENSOR_REPORT frames mutate
// state; other command codes are ignored for forward compatibility. A
// payload shorter than the module's layout returns bus.ErrShortFrame and
// leaves both state and liveness untouched, so a corrupt sender cannot
// reset the watchdog clock.
func (s *Store) ApplyFrame(f bus.Frame) error {
	if f.Command != bus.CmdSensorReport {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch f.Module {
	case bus.ModuleTank:
		var v bus.TankState
		if err := v.UnmarshalPayload(f.Payload); err != nil {
			return err
		}
		s.tank = v

	case bus.ModuleGrow:
		var v bus.GrowState
		if err := v.UnmarshalPayload(f.Payload); err != nil {
			return err
		}
		if !s.ledSetAt.IsZero() && !f.Timestamp.After(s.ledSetAt) {
			v.LEDBrightness = s.ledValue
		}
		s.grow = v

	case bus.ModuleNutrient:
		var v bus.NutrientState
		if err := v.UnmarshalPayload(f.Payload); err != nil {
			return err
		}
		s.nutrient = v

	case bus.ModuleFeed:
		var v bus.FeedState
		if err := v.UnmarshalPayload(f.Payload); err != nil {
			return err
		}
		s.feed = v

	default:
		// Unknown module IDs are not monitored and not an error.
		return nil
	}

	s.lastSeen[f.Module] = f.Timestamp

	return nil
}

// DispenseFeed removes up to grams from the feeder's remaining mass and
// returns how much was actually dispensed. Remaining mass never goes
// negative.
func (s *Store) DispenseFeed(grams int) int {
	if grams < 0 {
		grams = 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if g := int(s.feed.RemainingG); grams > g {
		grams = g
	}

	s.feed.RemainingG -= uint16(grams)

	return grams
}

// SetLEDBrightness clamps v to [0,100], applies it immediately, and
// records the write time so older bus frames cannot roll it back.
func (s *Store) SetLEDBrightness(v int, at time.Time) int {
	if v < 0 {
		v = 0
	}
	if v > 100 {
		v = 100
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.grow.LEDBrightness = uint8(v)
	s.ledValue = uint8(v)
	s.ledSetAt = at

	return v
}

// SetLinkDown sets or clears the manual link-down flag and forces the
// linkUp signal to match immediately.
func (s *Store) SetLinkDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.linkDown = down
	s.signals.LinkUp = !down
}

// LinkDown reports whether the uplink is manually forced down.
func (s *Store) LinkDown() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.linkDown
}

// SetLinkUp records the outcome of the last uplink attempt.
func (s *Store) SetLinkUp(up bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.signals.LinkUp = up
}

// SetHealth stores the watchdog's latest allLive/fault evaluation so the
// console and API render the same signals the alarm outputs carry.
func (s *Store) SetHealth(allLive, fault bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.signals.AllLive = allLive
	s.signals.Fault = fault
}

// Snapshot returns a consistent copy of the aggregated state at now.
func (s *Store) Snapshot(now time.Time) Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lastSeen := make(map[bus.ModuleID]time.Time, len(s.lastSeen))
	for id, ts := range s.lastSeen {
		lastSeen[id] = ts
	}

	return Snapshot{
		Timestamp: now,
		Tank:      s.tank,
		Grow:      s.grow,
		Nutrient:  s.nutrient,
		Feed:      s.feed,
		LastSeen:  lastSeen,
		LinkDown:  s.linkDown,
		Signals:   s.signals,
	}
}
