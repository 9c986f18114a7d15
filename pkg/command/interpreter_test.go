package command

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/aquarig/supervisor/pkg/bus"
	"github.com/aquarig/supervisor/pkg/logger"
	"github.com/aquarig/supervisor/pkg/state"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSettings struct {
	mu     sync.Mutex
	values map[string]int
}

func newFakeSettings() *fakeSettings {
	return &fakeSettings{values: make(map[string]int)}
}

func (f *fakeSettings) SetInt(key string, value int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.values[key] = value

	return nil
}

func (f *fakeSettings) get(key string) (int, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	v, ok := f.values[key]

	return v, ok
}

type fakeCommander struct {
	mu   sync.Mutex
	sent []bus.Frame
}

func (f *fakeCommander) Send(_ context.Context, fr bus.Frame) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, fr)

	return nil
}

func (f *fakeCommander) frames() []bus.Frame {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]bus.Frame(nil), f.sent...)
}

func seedFeed(t *testing.T, store *state.Store, grams uint16) {
	t.Helper()

	require.NoError(t, store.ApplyFrame(bus.Frame{
		Module:    bus.ModuleFeed,
		Command:   bus.CmdSensorReport,
		Timestamp: time.Now(),
		Payload:   bus.FeedState{RemainingG: grams}.MarshalPayload(),
	}))
}

func TestHelp(t *testing.T) {
	i := New(state.NewStore(time.Now()), nil, nil, logger.Nop())
	assert.Contains(t, i.Execute(context.Background(), "help"), "feed <g>")
}

func TestUnknownCommand(t *testing.T) {
	store := state.NewStore(time.Now())
	seedFeed(t, store, 100)

	i := New(store, nil, nil, logger.Nop())

	assert.Equal(t, "Unknown command", i.Execute(context.Background(), "reboot now"))
	assert.Equal(t, uint16(100), store.Snapshot(time.Now()).Feed.RemainingG, "no state change")
}

func TestFeedCommand(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		start     uint16
		dispensed string
		remaining uint16
	}{
		{name: "normal_dispense", line: "feed 30", start: 100, dispensed: "dispensed 30 g of feed", remaining: 70},
		{name: "floors_at_remainder", line: "feed 1000", start: 100, dispensed: "dispensed 100 g of feed", remaining: 0},
		{name: "default_amount", line: "feed", start: 100, dispensed: "dispensed 5 g of feed", remaining: 95},
		{name: "negative_clamps_to_zero", line: "feed -10", start: 100, dispensed: "dispensed 0 g of feed", remaining: 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := state.NewStore(time.Now())
			seedFeed(t, store, tt.start)

			i := New(store, nil, nil, logger.Nop())

			assert.Equal(t, tt.dispensed, i.Execute(context.Background(), tt.line))
			assert.Equal(t, tt.remaining, store.Snapshot(time.Now()).Feed.RemainingG)
		})
	}
}

func TestFeedInvalidAmount(t *testing.T) {
	store := state.NewStore(time.Now())
	seedFeed(t, store, 100)

	i := New(store, nil, nil, logger.Nop())

	assert.Contains(t, i.Execute(context.Background(), "feed lots"), "invalid amount")
	assert.Equal(t, uint16(100), store.Snapshot(time.Now()).Feed.RemainingG)
}

func TestLEDClampAndPersist(t *testing.T) {
	tests := []struct {
		name   string
		line   string
		stored int
	}{
		{name: "below_range", line: "led -5", stored: 0},
		{name: "above_range", line: "led 150", stored: 100},
		{name: "in_range", line: "led 60", stored: 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := state.NewStore(time.Now())
			settings := newFakeSettings()
			commander := &fakeCommander{}

			i := New(store, settings, commander, logger.Nop())
			i.Execute(context.Background(), tt.line)

			assert.Equal(t, uint8(tt.stored), store.Snapshot(time.Now()).Grow.LEDBrightness)

			persisted, ok := settings.get(SettingLEDBrightness)
			require.True(t, ok, "brightness must be persisted")
			assert.Equal(t, tt.stored, persisted)

			frames := commander.frames()
			require.Len(t, frames, 1, "LED command must go out on the bus")
			assert.Equal(t, bus.ModuleGrow, frames[0].Module)
			assert.Equal(t, bus.CmdCommand, frames[0].Command)
			assert.Equal(t, []byte{bus.OpSetLED, uint8(tt.stored)}, frames[0].Payload)
		})
	}
}

func TestLinkToggle(t *testing.T) {
	store := state.NewStore(time.Now())
	store.SetLinkUp(true)

	i := New(store, nil, nil, logger.Nop())

	i.Execute(context.Background(), "srvdown")
	snap := store.Snapshot(time.Now())
	assert.True(t, snap.LinkDown)
	assert.False(t, snap.Signals.LinkUp, "srvdown clears linkUp immediately")

	i.Execute(context.Background(), "srvup")
	snap = store.Snapshot(time.Now())
	assert.False(t, snap.LinkDown)
	assert.True(t, snap.Signals.LinkUp, "srvup restores linkUp immediately")
}

func TestEventsEmitted(t *testing.T) {
	store := state.NewStore(time.Now())
	seedFeed(t, store, 100)

	var events []string
	i := New(store, nil, nil, logger.Nop(), WithEvents(func(kind, msg string) {
		events = append(events, kind+": "+msg)
	}))

	i.Execute(context.Background(), "feed 10")
	i.Execute(context.Background(), "led 30")
	i.Execute(context.Background(), "srvdown")

	require.Len(t, events, 3)
	assert.Equal(t, "feed: dispensed 10 g", events[0])
	assert.Equal(t, "led: brightness set to 30%", events[1])
}
