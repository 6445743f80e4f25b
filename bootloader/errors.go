package bootloader

import (
	"context"
	"errors"
	"fmt"

	"github.com/moffa90/go-stk500/protocol"
)

var (
	// ErrShortRead means the transport timed out before the expected bytes arrived.
	ErrShortRead = errors.New("short read")

	// ErrSyncLost means GET_SYNC went unanswered for every allowed attempt.
	ErrSyncLost = errors.New("can't get into sync with the bootloader")

	// ErrSyncExhausted means one operation kept receiving NOSYNC after every
	// allowed resynchronization. The link is usually fine and the upload can be retried.
	ErrSyncExhausted = errors.New("resynchronization attempts exhausted")

	// ErrSessionClosed is returned by session operations before Open or after Close.
	ErrSessionClosed = errors.New("session is not open")
)

// IOError wraps a transport failure.
type IOError struct {
	Op  string
	Err error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s: i/o error: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// VerificationError reports the first byte that read back differently from what was written.
type VerificationError struct {
	// Address is the absolute byte address of the mismatch
	Address  uint32
	Expected byte
	Actual   byte
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("verify failure at 0x%04X: expected 0x%02X, got 0x%02X",
		e.Address, e.Expected, e.Actual)
}

// AddressError indicates a byte address that LOAD_ADDRESS cannot express.
type AddressError struct {
	Address uint32
}

func (e *AddressError) Error() string {
	return fmt.Sprintf("address 0x%X is out of range: word address exceeds 0x%04X",
		e.Address, protocol.MaxWordAddress)
}

// Outcome classifies the result of an operation.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeIO
	OutcomeSyncExhausted
	OutcomeProtocol
	OutcomeVerify
	OutcomeCanceled
	OutcomeInvalid
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeIO:
		return "io"
	case OutcomeSyncExhausted:
		return "sync-exhausted"
	case OutcomeProtocol:
		return "protocol"
	case OutcomeVerify:
		return "verify"
	case OutcomeCanceled:
		return "canceled"
	case OutcomeInvalid:
		return "invalid"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Classify maps an error returned by this package to an Outcome.
// Errors that are none of the above are argument errors (OutcomeInvalid).
func Classify(err error) Outcome {
	var (
		ioErr     *IOError
		verifyErr *VerificationError
		protoErr  *protocol.ProtocolError
	)

	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return OutcomeCanceled
	case errors.As(err, &verifyErr):
		return OutcomeVerify
	case errors.Is(err, ErrSyncExhausted), errors.Is(err, ErrSyncLost):
		return OutcomeSyncExhausted
	case errors.As(err, &protoErr):
		return OutcomeProtocol
	case errors.As(err, &ioErr):
		return OutcomeIO
	default:
		return OutcomeInvalid
	}
}

// IsRetryable reports whether err is a transient loss of sync, after which
// reopening the session and starting over may succeed.
func IsRetryable(err error) bool {
	return Classify(err) == OutcomeSyncExhausted
}
