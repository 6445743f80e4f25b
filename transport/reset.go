package transport

import (
	"time"

	"go.bug.st/serial"
)

// Default reset pulse timing: hold reset long enough to discharge the
// auto-reset capacitor, then give the bootloader time to start.
const (
	DefaultResetLow    = 250 * time.Millisecond
	DefaultResetSettle = 50 * time.Millisecond
)

// Resetter drives the target's reset line.
type Resetter interface {
	// Reset pulses the reset line so the bootloader starts listening. port is the
	// freshly opened serial port.
	Reset(port serial.Port) error

	// Release returns the reset line to idle before the port is closed.
	Release(port serial.Port) error
}

// DTRReset resets the target through the DTR and RTS modem lines, as wired on
// Arduino-style boards.
type DTRReset struct {
	Low    time.Duration
	Settle time.Duration
}

// NewDTRReset returns a DTRReset with the default timing.
func NewDTRReset() *DTRReset {
	return &DTRReset{Low: DefaultResetLow, Settle: DefaultResetSettle}
}

func (r *DTRReset) Reset(port serial.Port) error {
	if err := setModemLines(port, false); err != nil {
		return err
	}
	time.Sleep(r.Low)

	if err := setModemLines(port, true); err != nil {
		return err
	}
	time.Sleep(r.Settle)
	return nil
}

func (r *DTRReset) Release(port serial.Port) error {
	return setModemLines(port, false)
}

func setModemLines(port serial.Port, level bool) error {
	if err := port.SetDTR(level); err != nil {
		return err
	}
	return port.SetRTS(level)
}

// NoReset leaves the reset line alone. Use it when the target is reset by hand
// or already sits in its bootloader.
type NoReset struct{}

func (NoReset) Reset(serial.Port) error   { return nil }
func (NoReset) Release(serial.Port) error { return nil }
