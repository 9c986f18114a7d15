package bus

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// FrameApplier is the narrow mutation surface the ingestor drives; the
// module state store implements it.
type FrameApplier interface {
	ApplyFrame(f Frame) error
}

// Ingestor pulls frames from a source and applies them to the state store.
// Rejected frames (short payloads, unknown layouts) are dropped and logged,
// with logging rate-limited so a corrupt sender cannot flood the log.
type Ingestor struct {
	source  FrameSource
	store   FrameApplier
	log     *zap.SugaredLogger
	rejects *rate.Limiter
}

func NewIngestor(source FrameSource, store FrameApplier, log *zap.SugaredLogger) *Ingestor {
	return &Ingestor{
		source:  source,
		store:   store,
		log:     log,
		rejects: rate.NewLimiter(rate.Every(time.Second), 5),
	}
}

// Run consumes frames until the context is canceled or the source closes.
func (i *Ingestor) Run(ctx context.Context) error {
	for {
		f, err := i.source.Next(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) ||
				errors.Is(err, ErrSourceClosed) {
				return nil
			}

			return err
		}

		if err := i.store.ApplyFrame(f); err != nil {
			if i.rejects.Allow() {
				i.log.Warnw("dropped bus frame",
					"module", f.Module.String(),
					"command", f.Command,
					"error", err)
			}
		}
	}
}
