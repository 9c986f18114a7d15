package bus

import "errors"

var (
	// ErrShortFrame means a sensor payload was shorter than the module's
	// fixed layout requires. Such frames are dropped without touching
	// state or liveness.
	ErrShortFrame = errors.New("bus: payload shorter than expected")

	// ErrSourceClosed is returned by a FrameSource after Close.
	ErrSourceClosed = errors.New("bus: frame source closed")
)
