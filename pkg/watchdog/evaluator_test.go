package watchdog

import (
	"testing"
	"time"

	"github.com/aquarig/supervisor/pkg/bus"
	"github.com/aquarig/supervisor/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// healthySnapshot returns a snapshot with all modules fresh and no fault
// condition present.
func healthySnapshot(now time.Time) state.Snapshot {
	lastSeen := make(map[bus.ModuleID]time.Time)
	for _, id := range bus.Monitored() {
		lastSeen[id] = now
	}

	return state.Snapshot{
		Timestamp: now,
		Nutrient: bus.NutrientState{
			Remaining: [bus.NutrientChannels]uint16{3000, 3000, 3000, 3000},
		},
		Feed:     bus.FeedState{RemainingG: 500},
		LastSeen: lastSeen,
		Signals:  state.Signals{LinkUp: true},
	}
}

func TestLivenessBoundary(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		age     time.Duration
		allLive bool
	}{
		{name: "fresh", age: 0, allLive: true},
		{name: "just_inside_window", age: 499 * time.Millisecond, allLive: true},
		{name: "exactly_at_threshold", age: 500 * time.Millisecond, allLive: false},
		{name: "well_past_threshold", age: 2 * time.Second, allLive: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := healthySnapshot(now)
			snap.LastSeen[bus.ModuleGrow] = now.Add(-tt.age)

			r := Evaluate(snap, now)
			assert.Equal(t, tt.allLive, r.AllLive)
			assert.Equal(t, !tt.allLive, r.Has(CodeCommLost))

			if !tt.allLive {
				require.Len(t, r.Stale, 1)
				assert.Equal(t, bus.ModuleGrow, r.Stale[0])
			}
		})
	}
}

func TestFaultUnion(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name   string
		mutate func(*state.Snapshot)
		fault  bool
		code   Code
	}{
		{name: "no_condition", mutate: func(*state.Snapshot) {}, fault: false},
		{
			name:   "leak_bit_set",
			mutate: func(s *state.Snapshot) { s.Grow.LeakMask = 0b0001 },
			fault:  true,
			code:   CodeLeak,
		},
		{
			name:   "one_nutrient_channel_low",
			mutate: func(s *state.Snapshot) { s.Nutrient.Remaining[2] = 199 },
			fault:  true,
			code:   CodeNutrientLow,
		},
		{
			name:   "nutrient_at_threshold_is_fine",
			mutate: func(s *state.Snapshot) { s.Nutrient.Remaining[2] = 200 },
			fault:  false,
		},
		{
			name:   "feed_empty",
			mutate: func(s *state.Snapshot) { s.Feed.RemainingG = 0 },
			fault:  true,
			code:   CodeFeedEmpty,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := healthySnapshot(now)
			tt.mutate(&snap)

			r := Evaluate(snap, now)
			assert.Equal(t, tt.fault, r.Fault)

			if tt.code != "" {
				assert.True(t, r.Has(tt.code))
			}
		})
	}
}

func TestFaultIndependentOfLiveness(t *testing.T) {
	now := time.Now()

	// All modules live, but a leak is present: fault fires anyway.
	snap := healthySnapshot(now)
	snap.Grow.LeakMask = 0b0001

	r := Evaluate(snap, now)
	assert.True(t, r.AllLive)
	assert.True(t, r.Fault)
}

func TestBootScenario(t *testing.T) {
	// Boot: liveness seeded to t0, then valid frames arrive 100ms later.
	t0 := time.Now()
	store := state.NewStore(t0)

	t1 := t0.Add(100 * time.Millisecond)
	frames := []bus.Frame{
		{Module: bus.ModuleTank, Command: bus.CmdSensorReport, Timestamp: t1, Payload: bus.TankState{TemperatureC: 24}.MarshalPayload()},
		{Module: bus.ModuleGrow, Command: bus.CmdSensorReport, Timestamp: t1, Payload: bus.GrowState{LEDBrightness: 40}.MarshalPayload()},
		{Module: bus.ModuleNutrient, Command: bus.CmdSensorReport, Timestamp: t1, Payload: bus.NutrientState{Remaining: [bus.NutrientChannels]uint16{3000, 3000, 3000, 3000}}.MarshalPayload()},
		{Module: bus.ModuleFeed, Command: bus.CmdSensorReport, Timestamp: t1, Payload: bus.FeedState{RemainingG: 500}.MarshalPayload()},
	}

	for _, f := range frames {
		require.NoError(t, store.ApplyFrame(f))
	}

	snap := store.Snapshot(t1)
	snap.Signals.LinkUp = true

	r := Evaluate(snap, t1)
	assert.True(t, r.AllLive)
	assert.False(t, r.Fault)
}

func TestLeakFrameRaisesFaultWhileAllLive(t *testing.T) {
	t0 := time.Now()
	store := state.NewStore(t0)

	require.NoError(t, store.ApplyFrame(bus.Frame{
		Module:    bus.ModuleGrow,
		Command:   bus.CmdSensorReport,
		Timestamp: t0.Add(50 * time.Millisecond),
		Payload:   bus.GrowState{LeakMask: 0b0001}.MarshalPayload(),
	}))

	snap := store.Snapshot(t0.Add(60 * time.Millisecond))
	snap.Feed.RemainingG = 500
	snap.Nutrient.Remaining = [bus.NutrientChannels]uint16{3000, 3000, 3000, 3000}

	r := Evaluate(snap, t0.Add(60*time.Millisecond))
	assert.True(t, r.AllLive)
	assert.True(t, r.Fault)
	assert.True(t, r.Has(CodeLeak))
}

func TestLinkLostAlarm(t *testing.T) {
	now := time.Now()

	snap := healthySnapshot(now)
	snap.Signals.LinkUp = false

	r := Evaluate(snap, now)
	assert.True(t, r.Has(CodeLinkLost))
	assert.False(t, r.Fault, "link loss is not a rig fault")
}
