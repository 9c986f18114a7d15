// Package console renders the operator dashboard: one compact text block
// per refresh with the latest telemetry, liveness and alarm lines.
package console

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aquarig/supervisor/pkg/bus"
	"github.com/aquarig/supervisor/pkg/state"
	"github.com/aquarig/supervisor/pkg/watchdog"
)

// Renderer writes dashboard frames to out.
type Renderer struct {
	out   io.Writer
	rigID string
}

func NewRenderer(out io.Writer, rigID string) *Renderer {
	return &Renderer{out: out, rigID: rigID}
}

// Render writes one dashboard frame for the given snapshot.
func (r *Renderer) Render(snap state.Snapshot, result watchdog.Result) error {
	var b strings.Builder

	fmt.Fprintf(&b, "== %s  %s ==\n", r.rigID, snap.Timestamp.Format("15:04:05"))

	fmt.Fprintf(&b, "tank      %5.1f°C  level %6.1fmm  pH %4.2f  TDS %5.0fppm  turb %4.1fNTU  DO %5.1f%%\n",
		snap.Tank.TemperatureC, snap.Tank.LevelMM, snap.Tank.PH,
		snap.Tank.TDS, snap.Tank.TurbidityNTU, snap.Tank.DOPercent)

	fmt.Fprintf(&b, "grow      %5.1f°C  humidity %5.1f%%  LED %3d%%  leak %s\n",
		snap.Grow.TemperatureC, snap.Grow.Humidity,
		snap.Grow.LEDBrightness, leakText(snap.Grow.LeakMask))

	fmt.Fprintf(&b, "nutrient  ")

	for i := 0; i < bus.NutrientChannels; i++ {
		fmt.Fprintf(&b, "ch%d %4dml  ", i, snap.Nutrient.Remaining[i])
	}

	b.WriteByte('\n')

	fmt.Fprintf(&b, "feed      %4dg remaining\n", snap.Feed.RemainingG)

	fmt.Fprintf(&b, "signals   link=%s  live=%s  fault=%s\n",
		onOff(snap.Signals.LinkUp), onOff(result.AllLive), onOff(result.Fault))

	for _, id := range result.Stale {
		fmt.Fprintf(&b, "  ! %s silent for %s\n", id, snap.Age(id).Round(time.Millisecond))
	}

	for _, code := range result.Alarms {
		fmt.Fprintf(&b, "  ! %s %s\n", code, code.Message())
	}

	_, err := io.WriteString(r.out, b.String())

	return err
}

func leakText(mask uint8) string {
	if mask == 0 {
		return "none"
	}

	return fmt.Sprintf("zones 0b%04b", mask&0x0f)
}

func onOff(v bool) string {
	if v {
		return "ON"
	}

	return "off"
}
