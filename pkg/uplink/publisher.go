package uplink

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aquarig/supervisor/pkg/bus"
	"github.com/aquarig/supervisor/pkg/frame"
	"github.com/aquarig/supervisor/pkg/state"
	"go.uber.org/zap"
)

// statusReport is the uplink STATUS payload: a timestamped copy of every
// module's latest state plus the derived signals.
type statusReport struct {
	TS       int64             `json:"ts"`
	Rig      string            `json:"rig,omitempty"`
	Tank     bus.TankState     `json:"tank"`
	Grow     bus.GrowState     `json:"grow"`
	Nutrient bus.NutrientState `json:"nutrient"`
	Feed     bus.FeedState     `json:"feed"`
	Signals  state.Signals     `json:"signals"`
}

// Publisher serializes the aggregated snapshot and emits one framed STATUS
// packet per tick. Transmission is best-effort: a send failure clears the
// linkUp signal and the next tick retries naturally.
type Publisher struct {
	rigID     string
	store     *state.Store
	transport Transport
	log       *zap.SugaredLogger
}

func NewPublisher(rigID string, store *state.Store, transport Transport, log *zap.SugaredLogger) *Publisher {
	return &Publisher{
		rigID:     rigID,
		store:     store,
		transport: transport,
		log:       log,
	}
}

// Tick performs one publish attempt. When the link is manually forced
// down, nothing is transmitted and the linkUp signal goes false.
func (p *Publisher) Tick(now time.Time) error {
	if p.store.LinkDown() {
		p.store.SetLinkUp(false)
		return nil
	}

	snap := p.store.Snapshot(now)

	report := statusReport{
		TS:       now.UnixMilli(),
		Rig:      p.rigID,
		Tank:     snap.Tank,
		Grow:     snap.Grow,
		Nutrient: snap.Nutrient,
		Feed:     snap.Feed,
		Signals:  snap.Signals,
	}

	payload, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("uplink: marshal status: %w", err)
	}

	if err := p.transport.Send(frame.Encode(frame.TypeStatus, payload)); err != nil {
		p.store.SetLinkUp(false)
		p.log.Warnw("uplink send failed", "error", err)

		return err
	}

	p.store.SetLinkUp(true)

	return nil
}
