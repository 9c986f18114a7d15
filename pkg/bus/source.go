package bus

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/aquarig/supervisor/pkg/frame"
	"go.uber.org/zap"
)

// FrameSource delivers inbound bus frames one at a time. Next blocks until
// a frame is available, the context is done, or the source is closed.
// Implementations: Simulator (synthetic telemetry) and StreamSource (a real
// byte-stream transport). Selecting between them is a wiring decision in
// cmd, not a compile-time fork.
type FrameSource interface {
	Next(ctx context.Context) (Frame, error)
	Close() error
}

// Commander accepts outbound frames addressed to modules: LED set commands
// and manual feed dispenses travel this way.
type Commander interface {
	Send(ctx context.Context, f Frame) error
}

// Command opcodes carried in the first payload byte of a CMD frame.
const (
	OpSetLED       = 0x01
	OpDispenseFeed = 0x02
)

// NewLEDCommand builds the bus frame that sets the grow bed LED
// brightness.
func NewLEDCommand(brightness uint8, at time.Time) Frame {
	return Frame{
		Module:    ModuleGrow,
		Command:   CmdCommand,
		Timestamp: at,
		Payload:   []byte{OpSetLED, brightness},
	}
}

// NewFeedCommand builds the bus frame that asks the feeder to dispense the
// given number of grams (capped at 255 per command on the wire).
func NewFeedCommand(grams uint8, at time.Time) Frame {
	return Frame{
		Module:    ModuleFeed,
		Command:   CmdCommand,
		Timestamp: at,
		Payload:   []byte{OpDispenseFeed, grams},
	}
}

// StreamSource reads bus frames from a byte stream (a CAN adapter or serial
// bridge exposing the framed packet layout). Reads run on a background
// goroutine so Next can honor context cancellation.
type StreamSource struct {
	rc      io.ReadCloser
	log     *zap.SugaredLogger
	frames  chan Frame
	done    chan struct{}
	once    sync.Once
	scanner frame.Scanner
}

// NewStreamSource starts decoding frames from rc.
func NewStreamSource(rc io.ReadCloser, log *zap.SugaredLogger) *StreamSource {
	s := &StreamSource{
		rc:     rc,
		log:    log,
		frames: make(chan Frame, 16),
		done:   make(chan struct{}),
	}

	go s.readLoop()

	return s
}

func (s *StreamSource) Next(ctx context.Context) (Frame, error) {
	select {
	case <-ctx.Done():
		return Frame{}, ctx.Err()
	case <-s.done:
		return Frame{}, ErrSourceClosed
	case f, ok := <-s.frames:
		if !ok {
			return Frame{}, ErrSourceClosed
		}

		return f, nil
	}
}

func (s *StreamSource) Close() error {
	var err error

	s.once.Do(func() {
		close(s.done)
		err = s.rc.Close()
	})

	return err
}

func (s *StreamSource) readLoop() {
	defer close(s.frames)

	buf := make([]byte, 512)

	for {
		n, err := s.rc.Read(buf)
		if n > 0 {
			s.scanner.Feed(buf[:n])
			s.drainScanner()
		}

		if err != nil {
			if !errors.Is(err, io.EOF) && !s.closed() {
				s.log.Errorw("bus stream read failed", "error", err)
			}

			return
		}

		if s.closed() {
			return
		}
	}
}

func (s *StreamSource) drainScanner() {
	for {
		typ, payload, err := s.scanner.Next()
		if errors.Is(err, frame.ErrIncomplete) {
			return
		}

		if err != nil {
			s.log.Debugw("dropping corrupt bus frame", "error", err)
			continue
		}

		f, err := UnmarshalWire(typ, payload, time.Now())
		if err != nil {
			s.log.Debugw("dropping malformed bus frame", "error", err)
			continue
		}

		select {
		case s.frames <- f:
		case <-s.done:
			return
		default:
			// Overwrite-latest semantics: the consumer only cares
			// about the most recent state per module, so shedding
			// the oldest buffered frame is safe.
			select {
			case <-s.frames:
			default:
			}
			select {
			case s.frames <- f:
			default:
			}
		}
	}
}

func (s *StreamSource) closed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

// StreamCommander writes outbound frames to a byte stream.
type StreamCommander struct {
	mu sync.Mutex
	w  io.Writer
}

func NewStreamCommander(w io.Writer) *StreamCommander {
	return &StreamCommander{w: w}
}

func (c *StreamCommander) Send(_ context.Context, f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.w.Write(f.MarshalWire()); err != nil {
		return fmt.Errorf("bus: command write failed: %w", err)
	}

	return nil
}
