// Package frame implements the framed packet layout shared by the uplink
// and the module bus: STX, a little-endian 16-bit length covering TYPE and
// PAYLOAD, the TYPE byte, the payload, a CRC16-CCITT over TYPE++PAYLOAD
// (appended low byte first), and a closing ETX.
package frame

import (
	"encoding/binary"
	"fmt"
)

const (
	STX = 0x02
	ETX = 0x03

	// TypeStatus marks an aggregated status snapshot on the uplink.
	TypeStatus = 0x01

	// overhead is everything around TYPE+PAYLOAD: STX, LEN, CRC, ETX.
	overhead = 6
)

// Encode wraps typ and payload into a wire frame.
func Encode(typ byte, payload []byte) []byte {
	length := 1 + len(payload)

	buf := make([]byte, 0, length+overhead)
	buf = append(buf, STX)
	buf = binary.LittleEndian.AppendUint16(buf, uint16(length))
	buf = append(buf, typ)
	buf = append(buf, payload...)

	crc := CRC16(buf[3 : 3+length])
	buf = binary.LittleEndian.AppendUint16(buf, crc)
	buf = append(buf, ETX)

	return buf
}

// Decode parses a single frame from the start of buf. It returns
// ErrIncomplete when buf is a valid prefix of a frame but does not hold all
// of it yet; the caller is expected to buffer more bytes and retry. The
// returned payload is a copy and safe to retain.
func Decode(buf []byte) (typ byte, payload []byte, err error) {
	if len(buf) == 0 {
		return 0, nil, ErrIncomplete
	}

	if buf[0] != STX {
		return 0, nil, fmt.Errorf("%w: got 0x%02x", ErrBadSTX, buf[0])
	}

	if len(buf) < 3 {
		return 0, nil, ErrIncomplete
	}

	length := int(binary.LittleEndian.Uint16(buf[1:3]))
	if length < 1 {
		return 0, nil, fmt.Errorf("%w: declared length %d", ErrBadETX, length)
	}

	total := length + overhead
	if len(buf) < total {
		return 0, nil, ErrIncomplete
	}

	if buf[total-1] != ETX {
		return 0, nil, fmt.Errorf("%w: got 0x%02x", ErrBadETX, buf[total-1])
	}

	body := buf[3 : 3+length]

	want := binary.LittleEndian.Uint16(buf[3+length : 5+length])
	if got := CRC16(body); got != want {
		return 0, nil, fmt.Errorf("%w: computed 0x%04x, frame carries 0x%04x",
			ErrCRCMismatch, got, want)
	}

	payload = make([]byte, length-1)
	copy(payload, body[1:])

	return body[0], payload, nil
}

// EncodedSize returns the on-wire size of a frame carrying a payload of the
// given length.
func EncodedSize(payloadLen int) int {
	return payloadLen + 1 + overhead
}
