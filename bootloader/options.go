package bootloader

import (
	"github.com/moffa90/go-stk500/protocol"
	"github.com/moffa90/go-stk500/transport"
	"github.com/rs/zerolog"
)

// DefaultPageSize is the flash page size of an ATmega328P.
const DefaultPageSize = 128

// Config holds the session and programmer configuration.
type Config struct {
	// Baud is set on the transport right after it is opened. Default is 115200.
	Baud int

	// PageSize is the block size for paged writes and reads. Default is 128 bytes.
	PageSize int

	// ProgressCallback is called during uploads to report progress (optional)
	ProgressCallback ProgressCallback

	// Logger receives protocol events. Default discards everything.
	Logger zerolog.Logger

	// SyncAttempts bounds the GET_SYNC loop of a cold synchronization
	SyncAttempts int

	// ResyncAttempts bounds resynchronizations within one logical operation
	ResyncAttempts int

	// Verify reads every section back after writing and compares it. Default is true.
	Verify bool
}

func defaultConfig() Config {
	return Config{
		Baud:           transport.DefaultBaudRate,
		PageSize:       DefaultPageSize,
		Logger:         zerolog.Nop(),
		SyncAttempts:   protocol.MaxSyncAttempts,
		ResyncAttempts: protocol.MaxResyncAttempts,
		Verify:         true,
	}
}

// Option is a functional option for configuring a Session or Programmer.
type Option func(*Config)

// WithBaud sets the baud rate used for the session.
func WithBaud(baud int) Option {
	return func(c *Config) {
		if baud > 0 {
			c.Baud = baud
		}
	}
}

// WithPageSize sets the block size of paged transfers. Values outside
// 1..protocol.MaxBlockSize are ignored.
//
// Example:
//
//	prog := bootloader.New(port, bootloader.WithPageSize(256)) // ATmega2560
func WithPageSize(size int) Option {
	return func(c *Config) {
		if size > 0 && size <= protocol.MaxBlockSize {
			c.PageSize = size
		}
	}
}

// WithProgressCallback sets a callback function to track upload progress.
func WithProgressCallback(callback ProgressCallback) Option {
	return func(c *Config) {
		c.ProgressCallback = callback
	}
}

// WithLogger sets the logger for protocol events.
//
// Example:
//
//	logger := zerolog.New(os.Stderr).With().Timestamp().Logger()
//	prog := bootloader.New(port, bootloader.WithLogger(logger))
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithSyncAttempts sets how many GET_SYNC frames a cold synchronization sends.
func WithSyncAttempts(n int) Option {
	return func(c *Config) {
		if n > 0 {
			c.SyncAttempts = n
		}
	}
}

// WithResyncAttempts sets how many times one operation may resynchronize.
func WithResyncAttempts(n int) Option {
	return func(c *Config) {
		if n >= 0 {
			c.ResyncAttempts = n
		}
	}
}

// WithVerify enables or disables the read-back pass of an upload.
func WithVerify(verify bool) Option {
	return func(c *Config) {
		c.Verify = verify
	}
}
