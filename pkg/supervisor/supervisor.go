// Package supervisor wires the rig together: bus ingestion, the watchdog,
// the uplink publisher, schedules, the operator console and persistence,
// each on its own ticker goroutine around a shared state store.
package supervisor

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/aquarig/supervisor/pkg/alerts"
	"github.com/aquarig/supervisor/pkg/bus"
	"github.com/aquarig/supervisor/pkg/command"
	"github.com/aquarig/supervisor/pkg/console"
	"github.com/aquarig/supervisor/pkg/db"
	"github.com/aquarig/supervisor/pkg/metrics"
	"github.com/aquarig/supervisor/pkg/state"
	"github.com/aquarig/supervisor/pkg/uplink"
	"github.com/aquarig/supervisor/pkg/watchdog"
)

const eventCleanupPeriod = time.Hour

// Deps are the externally-constructed pieces the supervisor runs on. The
// command builds them from config (real serial ports or the simulator);
// tests inject fakes.
type Deps struct {
	Source     bus.FrameSource
	Commander  bus.Commander
	Transport  uplink.Transport
	Database   db.Service
	Alerters   []alerts.AlertService
	ConsoleOut io.Writer
	ConsoleIn  io.Reader
	Log        *zap.SugaredLogger
}

// Supervisor owns the rig control loops.
type Supervisor struct {
	cfg       Config
	log       *zap.SugaredLogger
	store     *state.Store
	samples   *metrics.Manager
	database  db.Service
	source    bus.FrameSource
	commander bus.Commander
	publisher *uplink.Publisher
	transport uplink.Transport
	interp    *command.Interpreter
	renderer  *console.Renderer
	alerters  []alerts.AlertService
	sched     *scheduler

	mu     sync.Mutex
	active map[watchdog.Code]bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(cfg Config, deps Deps) (*Supervisor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if deps.Source == nil {
		return nil, errNoFrameSource
	}

	s := &Supervisor{
		cfg:       cfg,
		log:       deps.Log,
		store:     state.NewStore(time.Now()),
		samples:   metrics.NewManager(cfg.HistorySize),
		database:  deps.Database,
		source:    deps.Source,
		commander: deps.Commander,
		transport: deps.Transport,
		alerters:  deps.Alerters,
		sched:     newScheduler(cfg.FeedSchedule, cfg.LightSchedule),
		active:    make(map[watchdog.Code]bool),
	}

	s.publisher = uplink.NewPublisher(cfg.RigID, s.store, deps.Transport, deps.Log)

	s.interp = command.New(s.store, s.database, deps.Commander, deps.Log,
		command.WithEvents(func(kind, message string) {
			s.recordEvent(kind, "", message)
		}))

	if deps.ConsoleOut != nil {
		s.renderer = console.NewRenderer(deps.ConsoleOut, cfg.RigID)
	}

	if deps.ConsoleIn != nil {
		s.startCommandReader(deps.ConsoleIn, deps.ConsoleOut)
	}

	return s, nil
}

// Store exposes the shared state store for the API server.
func (s *Supervisor) Store() *state.Store { return s.store }

// Samples exposes the telemetry history for the API server.
func (s *Supervisor) Samples() *metrics.Manager { return s.samples }

// Interpreter exposes the command interpreter for the API server.
func (s *Supervisor) Interpreter() *command.Interpreter { return s.interp }

// Start restores persisted settings and launches the control loops. It
// returns immediately; Stop tears everything down.
func (s *Supervisor) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(ctx)

	s.restoreBrightness(ctx)

	ingestor := bus.NewIngestor(s.source, s.applier(), s.log)

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		if err := ingestor.Run(ctx); err != nil {
			s.log.Errorw("bus ingestion stopped", "error", err)
		}
	}()

	s.startTicker(ctx, time.Duration(s.cfg.WatchdogPeriod), s.watchdogTick)
	s.startTicker(ctx, time.Duration(s.cfg.UplinkPeriod), func(ctx context.Context, now time.Time) {
		// The publisher logs its own failures; the tick keeps going.
		_ = s.publisher.Tick(now)
	})
	s.startTicker(ctx, time.Duration(s.cfg.SchedulePeriod), s.scheduleTick)

	if s.renderer != nil {
		s.startTicker(ctx, time.Duration(s.cfg.ConsolePeriod), s.consoleTick)
	}

	if s.database != nil {
		s.startTicker(ctx, eventCleanupPeriod, func(_ context.Context, _ time.Time) {
			if err := s.database.CleanOldEvents(time.Duration(s.cfg.EventRetention)); err != nil {
				s.log.Warnw("event cleanup failed", "error", err)
			}
		})
	}

	s.log.Infow("supervisor started", "rig", s.cfg.RigID, "sim", s.cfg.Sim)

	return nil
}

// Stop cancels the loops and waits for them to drain.
func (s *Supervisor) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	if err := s.source.Close(); err != nil {
		s.log.Warnw("closing frame source", "error", err)
	}

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("supervisor shutdown: %w", ctx.Err())
	}

	if s.transport != nil {
		if err := s.transport.Close(); err != nil {
			s.log.Warnw("closing uplink transport", "error", err)
		}
	}

	s.log.Infow("supervisor stopped")

	return nil
}

// applier feeds accepted frames to both the state store and the history
// buffers. The store decides acceptance; history never blocks a frame.
func (s *Supervisor) applier() bus.FrameApplier {
	return applierFunc(func(f bus.Frame) error {
		if err := s.store.ApplyFrame(f); err != nil {
			return err
		}

		_ = s.samples.ApplyFrame(f)

		return nil
	})
}

type applierFunc func(bus.Frame) error

func (fn applierFunc) ApplyFrame(f bus.Frame) error { return fn(f) }

func (s *Supervisor) startTicker(ctx context.Context, period time.Duration, tick func(context.Context, time.Time)) {
	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(period)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				tick(ctx, now)
			}
		}
	}()
}

func (s *Supervisor) watchdogTick(ctx context.Context, now time.Time) {
	snap := s.store.Snapshot(now)
	result := watchdog.Evaluate(snap, now)

	s.store.SetHealth(result.AllLive, result.Fault)
	s.updateAlarms(ctx, result)
}

var allCodes = []watchdog.Code{
	watchdog.CodeCommLost,
	watchdog.CodeLeak,
	watchdog.CodeNutrientLow,
	watchdog.CodeFeedEmpty,
	watchdog.CodeLinkLost,
}

// updateAlarms records and notifies alarm edges only: a code that stays
// raised across ticks produces a single event.
func (s *Supervisor) updateAlarms(ctx context.Context, result watchdog.Result) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, code := range allCodes {
		raised := result.Has(code)
		was := s.active[code]

		if raised == was {
			continue
		}

		s.active[code] = raised

		if raised {
			s.log.Warnw("alarm raised", "code", code, "message", code.Message())
			s.recordEvent("alarm", string(code), code.Message())
		} else {
			s.log.Infow("alarm cleared", "code", code)
			s.recordEvent("clear", string(code), code.Message()+" (cleared)")
		}

		s.notify(ctx, code, raised)
	}
}

func (s *Supervisor) notify(ctx context.Context, code watchdog.Code, raised bool) {
	level := alerts.Warning
	switch code {
	case watchdog.CodeLeak, watchdog.CodeNutrientLow, watchdog.CodeFeedEmpty:
		level = alerts.Error
	}

	title := string(code)
	message := code.Message()

	if !raised {
		level = alerts.Info
		title += " cleared"
		message += " (cleared)"
	}

	alert := &alerts.WebhookAlert{
		Level:   level,
		Title:   title,
		Message: message,
		Rig:     s.cfg.RigID,
		Details: map[string]any{"code": string(code), "raised": raised},
	}

	for _, alerter := range s.alerters {
		if !alerter.IsEnabled() {
			continue
		}

		if err := alerter.Alert(ctx, alert); err != nil {
			s.log.Warnw("webhook alert not delivered", "code", code, "error", err)
		}
	}
}

func (s *Supervisor) scheduleTick(ctx context.Context, now time.Time) {
	for _, a := range s.sched.due(now) {
		response := s.interp.Execute(ctx, a.line)
		s.log.Infow("schedule fired", "entry", a.key, "command", a.line, "response", response)
	}
}

func (s *Supervisor) consoleTick(_ context.Context, now time.Time) {
	snap := s.store.Snapshot(now)

	if err := s.renderer.Render(snap, watchdog.Evaluate(snap, now)); err != nil {
		s.log.Debugw("console render failed", "error", err)
	}
}

// restoreBrightness replays the persisted LED setting so the grow module
// comes back to its last commanded level after a restart.
func (s *Supervisor) restoreBrightness(ctx context.Context) {
	if s.database == nil {
		return
	}

	v, err := s.database.GetInt(command.SettingLEDBrightness, -1)
	if err != nil || v < 0 {
		return
	}

	now := time.Now()
	clamped := s.store.SetLEDBrightness(v, now)

	if s.commander != nil {
		if err := s.commander.Send(ctx, bus.NewLEDCommand(uint8(clamped), now)); err != nil {
			s.log.Warnw("LED restore not delivered to grow module", "error", err)
		}
	}

	s.log.Infow("restored LED brightness", "percent", clamped)
}

// startCommandReader drains operator lines from the console. The reader
// blocks on input and exits with the process, so it runs outside the
// ticker wait group.
func (s *Supervisor) startCommandReader(in io.Reader, out io.Writer) {
	go func() {
		scanner := bufio.NewScanner(in)

		for scanner.Scan() {
			response := s.interp.Execute(context.Background(), scanner.Text())
			if response == "" || out == nil {
				continue
			}

			if _, err := fmt.Fprintln(out, response); err != nil {
				return
			}
		}
	}()
}

func (s *Supervisor) recordEvent(kind, code, message string) {
	if s.database == nil {
		return
	}

	if err := s.database.RecordEvent(&db.Event{
		Timestamp: time.Now(),
		Kind:      kind,
		Code:      code,
		Message:   message,
	}); err != nil {
		s.log.Warnw("event not recorded", "kind", kind, "error", err)
	}
}
