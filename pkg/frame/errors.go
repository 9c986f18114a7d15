package frame

import "errors"

var (
	// ErrIncomplete means the buffer does not yet hold a full frame.
	// Callers should keep reading and retry with more bytes.
	ErrIncomplete = errors.New("frame: incomplete")

	ErrBadSTX      = errors.New("frame: missing STX")
	ErrBadETX      = errors.New("frame: missing ETX")
	ErrCRCMismatch = errors.New("frame: CRC mismatch")
)
