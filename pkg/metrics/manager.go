package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/aquarig/supervisor/pkg/bus"
)

// DefaultRetention is how many samples each module's buffer keeps.
// At one sensor report per second that is roughly ten minutes.
const DefaultRetention = 600

type moduleMetrics struct {
	mu     sync.RWMutex
	buffer SampleStore
}

// Manager keeps one ring buffer per module. It also implements the
// frame-applier contract so it can sit on the ingest path next to the
// state store.
type Manager struct {
	modules   sync.Map // bus.ModuleID -> *moduleMetrics
	retention int
}

func NewManager(retention int) *Manager {
	if retention <= 0 {
		retention = DefaultRetention
	}

	return &Manager{retention: retention}
}

// AddSample records one named reading for a module.
func (m *Manager) AddSample(module bus.ModuleID, timestamp time.Time, metric string, value float64) {
	entry, _ := m.modules.LoadOrStore(module, &moduleMetrics{
		buffer: NewBuffer(m.retention),
	})

	mm := entry.(*moduleMetrics)

	mm.mu.Lock()
	defer mm.mu.Unlock()

	mm.buffer.Add(timestamp, metric, value)
}

// GetSamples returns a module's history, newest first.
func (m *Manager) GetSamples(module bus.ModuleID) []SamplePoint {
	entry, ok := m.modules.Load(module)
	if !ok {
		return nil
	}

	mm := entry.(*moduleMetrics)

	mm.mu.RLock()
	defer mm.mu.RUnlock()

	return mm.buffer.GetPoints()
}

// ApplyFrame records the numeric readings carried by a sensor report.
// Non-sensor frames and undecodable payloads are ignored; history is
// best-effort and must never stall ingestion.
func (m *Manager) ApplyFrame(f bus.Frame) error {
	if f.Command != bus.CmdSensorReport {
		return nil
	}

	switch f.Module {
	case bus.ModuleTank:
		var s bus.TankState
		if err := s.UnmarshalPayload(f.Payload); err != nil {
			return nil
		}

		m.AddSample(f.Module, f.Timestamp, "temperature_c", float64(s.TemperatureC))
		m.AddSample(f.Module, f.Timestamp, "level_mm", float64(s.LevelMM))
		m.AddSample(f.Module, f.Timestamp, "ph", float64(s.PH))
		m.AddSample(f.Module, f.Timestamp, "tds_ppm", float64(s.TDS))
		m.AddSample(f.Module, f.Timestamp, "turbidity_ntu", float64(s.TurbidityNTU))
		m.AddSample(f.Module, f.Timestamp, "do_percent", float64(s.DOPercent))
	case bus.ModuleGrow:
		var s bus.GrowState
		if err := s.UnmarshalPayload(f.Payload); err != nil {
			return nil
		}

		m.AddSample(f.Module, f.Timestamp, "temperature_c", float64(s.TemperatureC))
		m.AddSample(f.Module, f.Timestamp, "humidity", float64(s.Humidity))
		m.AddSample(f.Module, f.Timestamp, "led_brightness", float64(s.LEDBrightness))
	case bus.ModuleNutrient:
		var s bus.NutrientState
		if err := s.UnmarshalPayload(f.Payload); err != nil {
			return nil
		}

		for i, remaining := range s.Remaining {
			m.AddSample(f.Module, f.Timestamp, fmt.Sprintf("remaining_ml_ch%d", i), float64(remaining))
		}
	case bus.ModuleFeed:
		var s bus.FeedState
		if err := s.UnmarshalPayload(f.Payload); err != nil {
			return nil
		}

		m.AddSample(f.Module, f.Timestamp, "remaining_g", float64(s.RemainingG))
	}

	return nil
}
