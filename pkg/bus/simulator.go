package bus

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Simulator generates synthetic telemetry with the same shape and cadence a
// real bus delivers, so the rest of the pipeline runs unchanged without
// hardware. Values follow bounded random walks around fixed set-points;
// rare events (leak bits, consumption) fire with a small per-tick
// probability. It also honors LED and feed commands so commanded values are
// echoed back in later frames, like a real module would.
type Simulator struct {
	mu   sync.Mutex
	rng  *rand.Rand
	tick *time.Ticker
	done chan struct{}
	once sync.Once

	rotation []ModuleID
	next     int

	tank     TankState
	grow     GrowState
	nutrient NutrientState
	feed     FeedState
}

// SimulatorOption tweaks simulator construction.
type SimulatorOption func(*Simulator)

// WithSeed makes the simulator deterministic. Tests use this.
func WithSeed(seed int64) SimulatorOption {
	return func(s *Simulator) {
		s.rng = rand.New(rand.NewSource(seed)) //nolint:gosec // synthetic telemetry, not crypto
	}
}

// NewSimulator creates a simulator that emits one frame per module every
// period (frames are spread evenly across the period).
func NewSimulator(period time.Duration, opts ...SimulatorOption) *Simulator {
	s := &Simulator{
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())), //nolint:gosec // synthetic telemetry
		done:     make(chan struct{}),
		rotation: Monitored(),
		tank: TankState{
			TemperatureC: 24.0,
			LevelMM:      60.0,
			PH:           7.2,
			TDS:          350,
			TurbidityNTU: 2.5,
			DOPercent:    85.0,
		},
		grow: GrowState{
			TemperatureC:  23.0,
			Humidity:      55.0,
			LEDBrightness: 40,
		},
		nutrient: NutrientState{
			Ratio:     [NutrientChannels]uint8{10, 10, 0, 0},
			Remaining: [NutrientChannels]uint16{3000, 3000, 3000, 3000},
		},
		feed: FeedState{RemainingG: 500},
	}

	for _, opt := range opts {
		opt(s)
	}

	interval := period / time.Duration(len(s.rotation))
	if interval <= 0 {
		interval = time.Millisecond
	}

	s.tick = time.NewTicker(interval)

	return s
}

// Next blocks until the next module's tick and returns its frame.
func (s *Simulator) Next(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-s.done:
		return Frame{}, ErrSourceClosed
	case <-s.tick.C:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	module := s.rotation[s.next]
	s.next = (s.next + 1) % len(s.rotation)

	return s.generate(module, time.Now()), nil
}

func (s *Simulator) Close() error {
	s.once.Do(func() {
		s.tick.Stop()
		close(s.done)
	})

	return nil
}

// Send applies controller commands to the simulated modules.
func (s *Simulator) Send(_ context.Context, f Frame) error {
	if f.Command != CmdCommand || len(f.Payload) < 2 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch f.Payload[0] {
	case OpSetLED:
		if f.Module == ModuleGrow {
			v := f.Payload[1]
			if v > 100 {
				v = 100
			}
			s.grow.LEDBrightness = v
		}
	case OpDispenseFeed:
		if f.Module == ModuleFeed {
			g := uint16(f.Payload[1])
			if g > s.feed.RemainingG {
				g = s.feed.RemainingG
			}
			s.feed.RemainingG -= g
		}
	}

	return nil
}

// generate builds one sensor report. Caller holds s.mu.
func (s *Simulator) generate(module ModuleID, now time.Time) Frame {
	var payload []byte

	switch module {
	case ModuleTank:
		s.tank.TemperatureC = s.walk(s.tank.TemperatureC, 24.0, 0.3, 0.05)
		s.tank.LevelMM = s.walk(s.tank.LevelMM, 60.0, 1.0, 0.2)
		s.tank.PH = s.walk(s.tank.PH, 7.2, 0.2, 0.02)
		s.tank.TDS = s.walk(s.tank.TDS, 350, 10, 1)
		s.tank.TurbidityNTU = s.walk(s.tank.TurbidityNTU, 2.5, 2.5, 0.2)
		s.tank.DOPercent = s.walk(s.tank.DOPercent, 85.0, 2.0, 0.3)
		payload = s.tank.MarshalPayload()

	case ModuleGrow:
		s.grow.TemperatureC = s.walk(s.grow.TemperatureC, 23.0, 0.5, 0.05)
		s.grow.Humidity = s.walk(s.grow.Humidity, 55.0, 2.0, 0.3)
		if s.rng.Float64() < 0.001 {
			s.grow.LeakMask ^= 1 << s.rng.Intn(4)
		}
		payload = s.grow.MarshalPayload()

	case ModuleNutrient:
		if s.rng.Float64() < 0.1 {
			for i := range s.nutrient.Remaining {
				if s.nutrient.Remaining[i] > 0 {
					s.nutrient.Remaining[i]--
				}
			}
		}
		payload = s.nutrient.MarshalPayload()

	case ModuleFeed:
		if s.rng.Float64() < 0.01 && s.feed.RemainingG > 0 {
			s.feed.RemainingG--
		}
		payload = s.feed.MarshalPayload()
	}

	return Frame{
		Module:    module,
		Command:   CmdSensorReport,
		Timestamp: now,
		Payload:   payload,
	}
}

// walk moves cur one random step, clamped to center +/- span.
func (s *Simulator) walk(cur, center, span, step float32) float32 {
	cur += (s.rng.Float32()*2 - 1) * step

	if cur > center+span {
		cur = center + span
	}
	if cur < center-span {
		cur = center - span
	}

	return cur
}
