package protocol

import (
	"errors"
	"fmt"
)

// Device-reported failures. A ProtocolError carrying RespNoDevice or RespFailed
// unwraps to one of these.
var (
	ErrNoDevice = errors.New("no device")
	ErrFailed   = errors.New("device reported failure")
)

// ProtocolError represents an unexpected response byte from the bootloader.
type ProtocolError struct {
	// Operation is the command that failed
	Operation string

	// Expected is the response byte the exchange was waiting for
	Expected byte

	// Response is the byte that was received instead
	Response byte
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s failed: expected %s (0x%02X), got %s (0x%02X)",
		e.Operation, ResponseName(e.Expected), e.Expected, ResponseName(e.Response), e.Response)
}

// Unwrap maps device-reported responses to ErrNoDevice and ErrFailed.
func (e *ProtocolError) Unwrap() error {
	switch e.Response {
	case RespNoDevice:
		return ErrNoDevice
	case RespFailed:
		return ErrFailed
	default:
		return nil
	}
}

// DeviceReported reports whether the device itself signalled the failure,
// as opposed to sending a byte that makes no sense at this point.
func (e *ProtocolError) DeviceReported() bool {
	return e.Response == RespNoDevice || e.Response == RespFailed
}

// IsProtocolError returns true if the error chain contains a ProtocolError.
func IsProtocolError(err error) bool {
	var pe *ProtocolError
	return errors.As(err, &pe)
}
