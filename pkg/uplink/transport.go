// Package uplink publishes the aggregated rig snapshot to the remote
// server over a framed byte transport.
package uplink

import (
	"errors"
	"sync"
)

// ErrTransportClosed is returned by Send after Close.
var ErrTransportClosed = errors.New("uplink: transport closed")

// Transport is the byte-level channel to the remote server. Send is
// fire-and-forget: no acknowledgement is awaited.
type Transport interface {
	Send(p []byte) error
	Close() error
}

// Loopback is an in-memory transport used in simulation mode and tests.
// It records sent packets and can be told to fail.
type Loopback struct {
	mu      sync.Mutex
	packets [][]byte
	err     error
	closed  bool
	max     int
}

// NewLoopback creates a loopback transport retaining up to max packets
// (older ones are discarded).
func NewLoopback(max int) *Loopback {
	if max <= 0 {
		max = 64
	}

	return &Loopback{max: max}
}

func (l *Loopback) Send(p []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return ErrTransportClosed
	}

	if l.err != nil {
		return l.err
	}

	buf := make([]byte, len(p))
	copy(buf, p)

	l.packets = append(l.packets, buf)
	if len(l.packets) > l.max {
		l.packets = l.packets[len(l.packets)-l.max:]
	}

	return nil
}

func (l *Loopback) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.closed = true

	return nil
}

// SetError makes subsequent Sends fail with err; nil restores delivery.
func (l *Loopback) SetError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.err = err
}

// Packets returns a copy of the packets sent so far.
func (l *Loopback) Packets() [][]byte {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([][]byte, len(l.packets))
	copy(out, l.packets)

	return out
}
