package frame

import (
	"bytes"
	"errors"
)

// Scanner extracts frames from a byte stream. Feed it raw reads in any
// chunking; Next yields complete frames and resynchronizes on the following
// STX after a corrupt one.
type Scanner struct {
	buf []byte
}

// Feed appends raw bytes read from the transport.
func (s *Scanner) Feed(p []byte) {
	s.buf = append(s.buf, p...)
}

// Next returns the next complete frame in the buffer. It returns
// ErrIncomplete when no full frame is buffered yet. On a framing or CRC
// error it discards the offending start-of-frame and returns the error; the
// caller may simply call Next again to continue with the remaining bytes.
func (s *Scanner) Next() (typ byte, payload []byte, err error) {
	i := bytes.IndexByte(s.buf, STX)
	if i < 0 {
		s.buf = s.buf[:0]
		return 0, nil, ErrIncomplete
	}

	if i > 0 {
		s.buf = s.buf[i:]
	}

	typ, payload, err = Decode(s.buf)
	if err == nil {
		s.consume(EncodedSize(len(payload)))
		return typ, payload, nil
	}

	if errors.Is(err, ErrIncomplete) {
		return 0, nil, ErrIncomplete
	}

	// Corrupt frame: skip this STX and let the next call resync.
	s.consume(1)

	return 0, nil, err
}

// Pending reports how many bytes are buffered but not yet consumed.
func (s *Scanner) Pending() int {
	return len(s.buf)
}

func (s *Scanner) consume(n int) {
	if n >= len(s.buf) {
		s.buf = s.buf[:0]
		return
	}

	s.buf = s.buf[n:]
}
