package bus

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Fixed sensor payload sizes per module. A SENSOR_REPORT carrying fewer
// bytes than its module's layout is rejected with ErrShortFrame.
const (
	TankPayloadLen     = 24 // 6 little-endian float32
	GrowPayloadLen     = 10 // 2 float32, leak mask byte, brightness byte
	NutrientPayloadLen = 12 // 4 ratio bytes, 4 little-endian uint16
	FeedPayloadLen     = 2  // 1 little-endian uint16
)

// NutrientChannels is the number of dosing channels on the nutrient module.
const NutrientChannels = 4

// TankState is the water tank telemetry.
type TankState struct {
	TemperatureC float32 `json:"temperature_c"`
	LevelMM      float32 `json:"level_mm"`
	PH           float32 `json:"ph"`
	TDS          float32 `json:"tds_ppm"`
	TurbidityNTU float32 `json:"turbidity_ntu"`
	DOPercent    float32 `json:"do_percent"`
}

// GrowState is the grow bed telemetry. LeakMask has one bit per sensor
// zone (low 4 bits); LEDBrightness is a percentage.
type GrowState struct {
	TemperatureC  float32 `json:"temperature_c"`
	Humidity      float32 `json:"humidity"`
	LeakMask      uint8   `json:"leak_mask"`
	LEDBrightness uint8   `json:"led_brightness"`
}

// NutrientState is the doser telemetry: per-channel mix ratio and
// remaining volume in ml.
type NutrientState struct {
	Ratio     [NutrientChannels]uint8  `json:"ratio"`
	Remaining [NutrientChannels]uint16 `json:"remaining_ml"`
}

// FeedState is the feeder telemetry.
type FeedState struct {
	RemainingG uint16 `json:"remaining_g"`
}

func (s TankState) MarshalPayload() []byte {
	buf := make([]byte, 0, TankPayloadLen)
	for _, v := range []float32{s.TemperatureC, s.LevelMM, s.PH, s.TDS, s.TurbidityNTU, s.DOPercent} {
		buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(v))
	}

	return buf
}

func (s *TankState) UnmarshalPayload(p []byte) error {
	if len(p) < TankPayloadLen {
		return shortPayload(ModuleTank, TankPayloadLen, len(p))
	}

	s.TemperatureC = leFloat32(p[0:])
	s.LevelMM = leFloat32(p[4:])
	s.PH = leFloat32(p[8:])
	s.TDS = leFloat32(p[12:])
	s.TurbidityNTU = leFloat32(p[16:])
	s.DOPercent = leFloat32(p[20:])

	return nil
}

func (s GrowState) MarshalPayload() []byte {
	buf := make([]byte, 0, GrowPayloadLen)
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(s.TemperatureC))
	buf = binary.LittleEndian.AppendUint32(buf, math.Float32bits(s.Humidity))
	buf = append(buf, s.LeakMask, s.LEDBrightness)

	return buf
}

func (s *GrowState) UnmarshalPayload(p []byte) error {
	if len(p) < GrowPayloadLen {
		return shortPayload(ModuleGrow, GrowPayloadLen, len(p))
	}

	s.TemperatureC = leFloat32(p[0:])
	s.Humidity = leFloat32(p[4:])
	s.LeakMask = p[8]
	s.LEDBrightness = p[9]

	return nil
}

func (s NutrientState) MarshalPayload() []byte {
	buf := make([]byte, 0, NutrientPayloadLen)
	buf = append(buf, s.Ratio[:]...)
	for _, v := range s.Remaining {
		buf = binary.LittleEndian.AppendUint16(buf, v)
	}

	return buf
}

func (s *NutrientState) UnmarshalPayload(p []byte) error {
	if len(p) < NutrientPayloadLen {
		return shortPayload(ModuleNutrient, NutrientPayloadLen, len(p))
	}

	copy(s.Ratio[:], p[0:NutrientChannels])
	for i := 0; i < NutrientChannels; i++ {
		s.Remaining[i] = binary.LittleEndian.Uint16(p[NutrientChannels+2*i:])
	}

	return nil
}

func (s FeedState) MarshalPayload() []byte {
	buf := make([]byte, 0, FeedPayloadLen)

	return binary.LittleEndian.AppendUint16(buf, s.RemainingG)
}

func (s *FeedState) UnmarshalPayload(p []byte) error {
	if len(p) < FeedPayloadLen {
		return shortPayload(ModuleFeed, FeedPayloadLen, len(p))
	}

	s.RemainingG = binary.LittleEndian.Uint16(p)

	return nil
}

func leFloat32(p []byte) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(p))
}

func shortPayload(m ModuleID, want, got int) error {
	return fmt.Errorf("%w: %s wants %d bytes, got %d", ErrShortFrame, m, want, got)
}
