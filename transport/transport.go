// Package transport provides the byte-level links the STK500 session runs over.
//
// The bootloader package depends only on the Transport interface. Two variants are
// provided: Serial, a native serial port built on go.bug.st/serial that also pulses the
// target's reset line, and Loopback, an in-memory optiboot simulator used by tests,
// examples and dry runs.
package transport

import "errors"

// ErrNotOpen is returned by operations on a transport that has not been opened.
var ErrNotOpen = errors.New("transport is not open")

// Transport is the capability a Session needs from the link to the bootloader.
//
// Timeouts are the transport's business: Recv blocks until len(p) bytes arrived or
// the transport's read timeout expired, and reports a short count with a nil error in
// the latter case. A non-nil error always means the link itself failed.
type Transport interface {
	// Name identifies the link in logs and errors.
	Name() string

	// Open acquires the link and resets the target so its bootloader is listening.
	Open() error

	// SetSpeed changes the baud rate.
	SetSpeed(baud int) error

	// Send writes all of p.
	Send(p []byte) (int, error)

	// Recv reads up to len(p) bytes, stopping early on timeout.
	Recv(p []byte) (int, error)

	// Drain discards pending input and returns how many bytes were dropped.
	Drain() (int, error)

	// Close releases the link.
	Close() error
}
