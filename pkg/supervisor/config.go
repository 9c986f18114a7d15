package supervisor

import (
	"time"

	"github.com/aquarig/supervisor/pkg/alerts"
	"github.com/aquarig/supervisor/pkg/config"
	"github.com/aquarig/supervisor/pkg/uplink"
)

// Default tick periods. Ingestion and the watchdog run on the fast tick;
// uplink and console refresh at half that rate; schedules only need
// minute resolution and tick once a second.
const (
	DefaultIngestPeriod   = 100 * time.Millisecond
	DefaultWatchdogPeriod = 100 * time.Millisecond
	DefaultUplinkPeriod   = 200 * time.Millisecond
	DefaultConsolePeriod  = 200 * time.Millisecond
	DefaultSchedulePeriod = time.Second

	DefaultEventRetention = 7 * 24 * time.Hour
	DefaultHistorySize    = 600
)

// Config is the supervisor's JSON configuration file.
type Config struct {
	RigID      string `json:"rig_id"`
	ListenAddr string `json:"listen_addr,omitempty"`
	DBPath     string `json:"db_path"`
	LogLevel   string `json:"log_level,omitempty"`

	// Sim replaces both serial ports with the built-in module simulator
	// and a loopback uplink.
	Sim          bool                `json:"sim,omitempty"`
	BusSerial    uplink.SerialConfig `json:"bus_serial,omitempty"`
	UplinkSerial uplink.SerialConfig `json:"uplink_serial,omitempty"`

	IngestPeriod   config.Duration `json:"ingest_period,omitempty"`
	WatchdogPeriod config.Duration `json:"watchdog_period,omitempty"`
	UplinkPeriod   config.Duration `json:"uplink_period,omitempty"`
	ConsolePeriod  config.Duration `json:"console_period,omitempty"`
	SchedulePeriod config.Duration `json:"schedule_period,omitempty"`

	HistorySize    int             `json:"history_size,omitempty"`
	EventRetention config.Duration `json:"event_retention,omitempty"`

	Webhooks      []alerts.WebhookConfig `json:"webhooks,omitempty"`
	FeedSchedule  []FeedEntry            `json:"feed_schedule,omitempty"`
	LightSchedule []LightEntry           `json:"light_schedule,omitempty"`
}

// Validate checks required fields and schedule syntax, then fills in
// defaults for everything left unset.
func (c *Config) Validate() error {
	if c.RigID == "" {
		return errMissingRigID
	}

	for _, entry := range c.FeedSchedule {
		if err := validClock(entry.At); err != nil {
			return err
		}
	}

	for _, entry := range c.LightSchedule {
		if err := validClock(entry.On); err != nil {
			return err
		}

		if err := validClock(entry.Off); err != nil {
			return err
		}
	}

	c.setDefaults()

	return nil
}

func (c *Config) setDefaults() {
	if c.DBPath == "" {
		c.DBPath = "supervisor.db"
	}

	if c.IngestPeriod == 0 {
		c.IngestPeriod = config.Duration(DefaultIngestPeriod)
	}

	if c.WatchdogPeriod == 0 {
		c.WatchdogPeriod = config.Duration(DefaultWatchdogPeriod)
	}

	if c.UplinkPeriod == 0 {
		c.UplinkPeriod = config.Duration(DefaultUplinkPeriod)
	}

	if c.ConsolePeriod == 0 {
		c.ConsolePeriod = config.Duration(DefaultConsolePeriod)
	}

	if c.SchedulePeriod == 0 {
		c.SchedulePeriod = config.Duration(DefaultSchedulePeriod)
	}

	if c.HistorySize == 0 {
		c.HistorySize = DefaultHistorySize
	}

	if c.EventRetention == 0 {
		c.EventRetention = config.Duration(DefaultEventRetention)
	}
}
