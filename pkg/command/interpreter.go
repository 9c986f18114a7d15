// Package command parses operator console commands and applies them to the
// rig state. Commands take effect immediately: the very next scheduler tick
// observes their result.
package command

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aquarig/supervisor/pkg/bus"
	"github.com/aquarig/supervisor/pkg/state"
	"go.uber.org/zap"
)

// SettingLEDBrightness is the persisted-settings key for the grow bed LED.
const SettingLEDBrightness = "grow_led_brightness"

const helpText = "commands: help | feed <g> | led <0-100> | srvdown | srvup"

// Defaults applied when the operator omits the numeric argument.
const (
	defaultFeedGrams  = 5
	defaultBrightness = 50
)

// Settings persists operator-adjustable values across restarts.
type Settings interface {
	SetInt(key string, value int) error
}

// EventFunc receives a record of every state-changing command.
type EventFunc func(kind, message string)

// Interpreter executes one console line at a time.
type Interpreter struct {
	store     *state.Store
	settings  Settings
	commander bus.Commander
	log       *zap.SugaredLogger
	onEvent   EventFunc
	clock     func() time.Time
}

// Option configures an Interpreter.
type Option func(*Interpreter)

// WithEvents registers a callback for state-changing commands.
func WithEvents(fn EventFunc) Option {
	return func(i *Interpreter) { i.onEvent = fn }
}

// WithClock overrides the wall clock. Tests use this.
func WithClock(clock func() time.Time) Option {
	return func(i *Interpreter) { i.clock = clock }
}

func New(store *state.Store, settings Settings, commander bus.Commander, log *zap.SugaredLogger, opts ...Option) *Interpreter {
	i := &Interpreter{
		store:     store,
		settings:  settings,
		commander: commander,
		log:       log,
		clock:     time.Now,
	}

	for _, opt := range opts {
		opt(i)
	}

	return i
}

// Execute runs one command line and returns the operator-facing response.
// Unknown input changes nothing.
func (i *Interpreter) Execute(ctx context.Context, line string) string {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return ""
	}

	switch fields[0] {
	case "help":
		return helpText
	case "feed":
		return i.feed(ctx, fields[1:])
	case "led":
		return i.led(ctx, fields[1:])
	case "srvdown":
		i.store.SetLinkDown(true)
		i.event("uplink", "uplink forced down by operator")

		return "uplink forced down"
	case "srvup":
		i.store.SetLinkDown(false)
		i.event("uplink", "uplink restored by operator")

		return "uplink restored"
	default:
		return "Unknown command"
	}
}

func (i *Interpreter) feed(ctx context.Context, args []string) string {
	grams := defaultFeedGrams

	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Sprintf("feed: invalid amount %q", args[0])
		}
		grams = v
	}

	dispensed := i.store.DispenseFeed(grams)

	if i.commander != nil && dispensed > 0 {
		wire := dispensed
		if wire > 255 {
			wire = 255
		}

		if err := i.commander.Send(ctx, bus.NewFeedCommand(uint8(wire), i.clock())); err != nil {
			i.log.Warnw("feed command not delivered to feeder", "error", err)
		}
	}

	i.event("feed", fmt.Sprintf("dispensed %d g", dispensed))

	return fmt.Sprintf("dispensed %d g of feed", dispensed)
}

func (i *Interpreter) led(ctx context.Context, args []string) string {
	v := defaultBrightness

	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Sprintf("led: invalid brightness %q", args[0])
		}
		v = parsed
	}

	clamped := i.store.SetLEDBrightness(v, i.clock())

	if i.settings != nil {
		if err := i.settings.SetInt(SettingLEDBrightness, clamped); err != nil {
			i.log.Warnw("failed to persist LED brightness", "error", err)
		}
	}

	if i.commander != nil {
		if err := i.commander.Send(ctx, bus.NewLEDCommand(uint8(clamped), i.clock())); err != nil {
			i.log.Warnw("LED command not delivered to grow module", "error", err)
		}
	}

	i.event("led", fmt.Sprintf("brightness set to %d%%", clamped))

	return fmt.Sprintf("grow LED set to %d%%", clamped)
}

func (i *Interpreter) event(kind, message string) {
	if i.onEvent != nil {
		i.onEvent(kind, message)
	}
}
