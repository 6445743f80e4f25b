package transport

import (
	"errors"
	"fmt"
	"io"
	"time"

	"go.bug.st/serial"
)

// Defaults for SerialConfig.
const (
	DefaultBaudRate     = 115200
	DefaultReadTimeout  = time.Second
	DefaultDrainTimeout = 250 * time.Millisecond
)

// openPort is replaced in tests.
var openPort = serial.Open

// SerialConfig holds configuration for a serial transport.
type SerialConfig struct {
	// Port is the serial device path (e.g. "/dev/ttyUSB0" or "COM3")
	Port string

	// BaudRate is used until SetSpeed is called. Default is 115200.
	BaudRate int

	// ReadTimeout bounds every Recv. Default is 1 second.
	ReadTimeout time.Duration

	// DrainTimeout is the quiet period that ends a Drain. Default is 250ms.
	DrainTimeout time.Duration

	// Reset pulses the target into its bootloader on Open. Default is DTRReset.
	Reset Resetter
}

// Serial is a Transport over a native serial port.
type Serial struct {
	cfg  SerialConfig
	mode serial.Mode
	port serial.Port
}

// NewSerial creates a serial transport. The port is not opened until Open.
func NewSerial(cfg SerialConfig) *Serial {
	if cfg.BaudRate == 0 {
		cfg.BaudRate = DefaultBaudRate
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.DrainTimeout == 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.Reset == nil {
		cfg.Reset = NewDTRReset()
	}

	return &Serial{
		cfg: cfg,
		mode: serial.Mode{
			BaudRate: cfg.BaudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
	}
}

// Name returns the serial port path.
func (s *Serial) Name() string {
	return s.cfg.Port
}

// Open opens the port and pulses the target's reset line.
func (s *Serial) Open() error {
	if s.cfg.Port == "" {
		return errors.New("serial port path is required")
	}
	if s.port != nil {
		return fmt.Errorf("serial port %s is already open", s.cfg.Port)
	}

	port, err := openPort(s.cfg.Port, &s.mode)
	if err != nil {
		return fmt.Errorf("failed to open port %s: %w", s.cfg.Port, err)
	}

	if err := port.SetReadTimeout(s.cfg.ReadTimeout); err != nil {
		port.Close()
		return fmt.Errorf("failed to set read timeout: %w", err)
	}

	if err := s.cfg.Reset.Reset(port); err != nil {
		port.Close()
		return fmt.Errorf("reset target: %w", err)
	}

	s.port = port
	return nil
}

// SetSpeed switches the port to the given baud rate, 8N1.
func (s *Serial) SetSpeed(baud int) error {
	if baud <= 0 {
		return fmt.Errorf("invalid baud rate %d", baud)
	}
	s.mode.BaudRate = baud
	if s.port == nil {
		return ErrNotOpen
	}
	return s.port.SetMode(&s.mode)
}

// Send writes all of p to the port.
func (s *Serial) Send(p []byte) (int, error) {
	if s.port == nil {
		return 0, ErrNotOpen
	}

	n := 0
	for n < len(p) {
		m, err := s.port.Write(p[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, io.ErrShortWrite
		}
	}
	return n, nil
}

// Recv reads until p is full or the read timeout expires.
func (s *Serial) Recv(p []byte) (int, error) {
	if s.port == nil {
		return 0, ErrNotOpen
	}

	n := 0
	for n < len(p) {
		m, err := s.port.Read(p[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			// timeout
			break
		}
	}
	return n, nil
}

// Drain reads and discards input until the line stays quiet for DrainTimeout.
func (s *Serial) Drain() (int, error) {
	if s.port == nil {
		return 0, ErrNotOpen
	}

	if err := s.port.SetReadTimeout(s.cfg.DrainTimeout); err != nil {
		return 0, err
	}
	defer s.port.SetReadTimeout(s.cfg.ReadTimeout)

	buf := make([]byte, 128)
	total := 0
	for {
		n, err := s.port.Read(buf)
		total += n
		if err != nil {
			return total, err
		}
		if n == 0 {
			return total, nil
		}
	}
}

// Close releases the reset line and closes the port.
func (s *Serial) Close() error {
	if s.port == nil {
		return nil
	}
	port := s.port
	s.port = nil

	releaseErr := s.cfg.Reset.Release(port)
	if err := port.Close(); err != nil {
		return err
	}
	return releaseErr
}
