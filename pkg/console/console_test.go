package console

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aquarig/supervisor/pkg/bus"
	"github.com/aquarig/supervisor/pkg/state"
	"github.com/aquarig/supervisor/pkg/watchdog"
)

func TestRenderHealthyDashboard(t *testing.T) {
	now := time.Now()
	store := state.NewStore(now)
	store.SetLinkUp(true)

	require.NoError(t, store.ApplyFrame(bus.Frame{
		Module:    bus.ModuleTank,
		Command:   bus.CmdSensorReport,
		Timestamp: now,
		Payload:   bus.TankState{TemperatureC: 24.2, PH: 7.05}.MarshalPayload(),
	}))
	require.NoError(t, store.ApplyFrame(bus.Frame{
		Module:    bus.ModuleFeed,
		Command:   bus.CmdSensorReport,
		Timestamp: now,
		Payload:   bus.FeedState{RemainingG: 480}.MarshalPayload(),
	}))

	snap := store.Snapshot(now)

	var out strings.Builder
	r := NewRenderer(&out, "rig-1")
	require.NoError(t, r.Render(snap, watchdog.Evaluate(snap, now)))

	text := out.String()
	assert.Contains(t, text, "rig-1")
	assert.Contains(t, text, "pH 7.05")
	assert.Contains(t, text, "480g remaining")
	assert.Contains(t, text, "link=ON")
	assert.Contains(t, text, "leak none")
}

func TestRenderAlarms(t *testing.T) {
	now := time.Now()
	store := state.NewStore(now)

	require.NoError(t, store.ApplyFrame(bus.Frame{
		Module:    bus.ModuleGrow,
		Command:   bus.CmdSensorReport,
		Timestamp: now,
		Payload:   bus.GrowState{LeakMask: 0b0010}.MarshalPayload(),
	}))

	// Let every module go stale, then evaluate.
	later := now.Add(time.Second)
	snap := store.Snapshot(later)
	result := watchdog.Evaluate(snap, later)

	var out strings.Builder
	r := NewRenderer(&out, "rig-1")
	require.NoError(t, r.Render(snap, result))

	text := out.String()
	assert.Contains(t, text, "E-COMM-LOST")
	assert.Contains(t, text, "E-LEAK")
	assert.Contains(t, text, "zones 0b0010")
	assert.Contains(t, text, "fault=ON")
	assert.Contains(t, text, "silent for")
}
