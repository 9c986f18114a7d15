// Package bus implements the module-bus side of the supervisor: the logical
// frame exchanged with subordinate modules, the fixed-layout telemetry
// payloads, and the sources that deliver frames (real transport or
// simulation).
package bus

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/aquarig/supervisor/pkg/frame"
)

// ModuleID identifies one subordinate module on the bus.
type ModuleID byte

const (
	ModuleMain     ModuleID = 0x01
	ModuleTank     ModuleID = 0x10
	ModuleGrow     ModuleID = 0x20
	ModuleNutrient ModuleID = 0x30
	ModuleFeed     ModuleID = 0x40
)

// Monitored returns the modules the watchdog tracks for liveness, in a
// stable order.
func Monitored() []ModuleID {
	return []ModuleID{ModuleTank, ModuleGrow, ModuleNutrient, ModuleFeed}
}

func (m ModuleID) String() string {
	switch m {
	case ModuleMain:
		return "main"
	case ModuleTank:
		return "tank"
	case ModuleGrow:
		return "grow"
	case ModuleNutrient:
		return "nutrient"
	case ModuleFeed:
		return "feed"
	default:
		return fmt.Sprintf("module(0x%02x)", byte(m))
	}
}

// ParseModuleID maps a module name back to its bus identifier.
func ParseModuleID(s string) (ModuleID, bool) {
	switch s {
	case "tank":
		return ModuleTank, true
	case "grow":
		return ModuleGrow, true
	case "nutrient":
		return ModuleNutrient, true
	case "feed":
		return ModuleFeed, true
	case "main":
		return ModuleMain, true
	default:
		return 0, false
	}
}

// CommandCode is the second byte of every bus frame.
type CommandCode byte

const (
	CmdSensorReport CommandCode = 0x01
	CmdStatus       CommandCode = 0x02
	CmdCommand      CommandCode = 0x10
	CmdAck          CommandCode = 0x11
	CmdError        CommandCode = 0x12
)

// Frame is one logical unit of transfer on the module bus.
type Frame struct {
	Module    ModuleID
	Command   CommandCode
	Timestamp time.Time
	Payload   []byte
}

// wire header inside the framed packet: command code plus a 32-bit
// millisecond timestamp, little-endian.
const wireHeaderLen = 5

// MarshalWire packs the frame for a byte-stream transport. The module ID
// rides in the codec's TYPE field; command code and timestamp prefix the
// payload.
func (f Frame) MarshalWire() []byte {
	body := make([]byte, 0, wireHeaderLen+len(f.Payload))
	body = append(body, byte(f.Command))
	body = binary.LittleEndian.AppendUint32(body, uint32(f.Timestamp.UnixMilli()))
	body = append(body, f.Payload...)

	return frame.Encode(byte(f.Module), body)
}

// UnmarshalWire rebuilds a Frame from a decoded codec frame. The frame is
// stamped with at (the local receive time): sender ticks are free-running
// 32-bit millisecond counters and live in a different clock domain, so
// liveness is always measured against the supervisor's own clock.
func UnmarshalWire(typ byte, body []byte, at time.Time) (Frame, error) {
	if len(body) < wireHeaderLen {
		return Frame{}, fmt.Errorf("%w: wire header needs %d bytes, got %d",
			ErrShortFrame, wireHeaderLen, len(body))
	}

	payload := make([]byte, len(body)-wireHeaderLen)
	copy(payload, body[wireHeaderLen:])

	return Frame{
		Module:    ModuleID(typ),
		Command:   CommandCode(body[0]),
		Timestamp: at,
		Payload:   payload,
	}, nil
}
