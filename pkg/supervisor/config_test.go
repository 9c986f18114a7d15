package supervisor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidateRequiresRigID(t *testing.T) {
	cfg := Config{}
	assert.ErrorIs(t, cfg.Validate(), errMissingRigID)
}

func TestConfigValidateRejectsBadClock(t *testing.T) {
	cfg := Config{
		RigID:        "rig-1",
		FeedSchedule: []FeedEntry{{At: "8am", Grams: 5}},
	}
	assert.ErrorIs(t, cfg.Validate(), errBadClockTime)

	cfg = Config{
		RigID:         "rig-1",
		LightSchedule: []LightEntry{{On: "07:30", Off: "late", Brightness: 80}},
	}
	assert.ErrorIs(t, cfg.Validate(), errBadClockTime)
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{RigID: "rig-1"}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "supervisor.db", cfg.DBPath)
	assert.Equal(t, 100*time.Millisecond, time.Duration(cfg.IngestPeriod))
	assert.Equal(t, 100*time.Millisecond, time.Duration(cfg.WatchdogPeriod))
	assert.Equal(t, 200*time.Millisecond, time.Duration(cfg.UplinkPeriod))
	assert.Equal(t, time.Second, time.Duration(cfg.SchedulePeriod))
	assert.Equal(t, DefaultHistorySize, cfg.HistorySize)
	assert.Equal(t, DefaultEventRetention, time.Duration(cfg.EventRetention))
}

func TestConfigKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		RigID:       "rig-1",
		DBPath:      "/var/lib/rig/rig.db",
		HistorySize: 42,
	}
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "/var/lib/rig/rig.db", cfg.DBPath)
	assert.Equal(t, 42, cfg.HistorySize)
}
