package uplink

import (
	"fmt"
	"sync"

	"go.bug.st/serial"
)

// SerialConfig describes a serial uplink port.
type SerialConfig struct {
	Device string `json:"device"` // e.g. /dev/ttyUSB0
	Baud   int    `json:"baud"`   // e.g. 115200
}

// OpenPort opens a raw serial port. The bus bridge reuses this for its own
// port in non-simulated deployments.
func OpenPort(device string, baud int) (serial.Port, error) {
	if baud <= 0 {
		baud = 115200
	}

	port, err := serial.Open(device, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("uplink: open %s: %w", device, err)
	}

	return port, nil
}

// SerialTransport sends framed packets over a serial port.
type SerialTransport struct {
	mu   sync.Mutex
	port serial.Port
}

// OpenSerial opens the configured port as an uplink transport.
func OpenSerial(cfg SerialConfig) (*SerialTransport, error) {
	port, err := OpenPort(cfg.Device, cfg.Baud)
	if err != nil {
		return nil, err
	}

	return &SerialTransport{port: port}, nil
}

func (t *SerialTransport) Send(p []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return ErrTransportClosed
	}

	if _, err := t.port.Write(p); err != nil {
		return fmt.Errorf("uplink: serial write: %w", err)
	}

	return nil
}

func (t *SerialTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil
	}

	err := t.port.Close()
	t.port = nil

	return err
}
