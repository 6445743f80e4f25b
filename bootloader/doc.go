// Package bootloader uploads firmware to AVR microcontrollers running optiboot.
//
// # Overview
//
// Two layers are provided. Session speaks the STK500 subset optiboot understands:
// synchronization, programming mode, address loads and paged writes and reads, with
// bounded resynchronization whenever the bootloader answers NOSYNC. Programmer builds
// uploads on top of it: open, write every section, read every section back, compare.
//
// # Basic Usage
//
//	port := transport.NewSerial(transport.SerialConfig{Port: "/dev/ttyUSB0"})
//
//	merger := bootloader.NewSectionMerger(128)
//	if err := ihex.Parse("firmware.hex", merger); err != nil {
//	    log.Fatal(err)
//	}
//
//	prog := bootloader.New(port, bootloader.WithPageSize(128))
//	if err := prog.Upload(context.Background(), merger.Sections()); err != nil {
//	    log.Fatal(err)
//	}
//
// # Progress Tracking
//
//	prog := bootloader.New(port,
//	    bootloader.WithProgressCallback(func(p bootloader.Progress) {
//	        fmt.Printf("\r[%s] %3d%%", p.Phase, p.Percentage)
//	    }),
//	)
//
// Progress is reported after each section is written and after each section is read
// back. Done counts both passes, so Percentage never goes backwards and reaches 100
// once, when the last section has been verified.
//
// # Configuration Options
//
//	prog := bootloader.New(port,
//	    bootloader.WithBaud(115200),
//	    bootloader.WithPageSize(256),
//	    bootloader.WithLogger(logger),
//	    bootloader.WithSyncAttempts(10),
//	    bootloader.WithResyncAttempts(33),
//	    bootloader.WithVerify(true),
//	)
//
// # Addresses
//
// Every address in this package is a byte address. LOAD_ADDRESS carries a 16-bit word
// address; the conversion happens in one place, Session.LoadAddress, which rejects
// addresses at or above 128 KiB with an AddressError.
//
// # Error Handling
//
// Errors fall into the classes reported by Classify:
//   - IOError: the transport failed or timed out (wraps ErrShortRead on timeouts)
//   - ErrSyncLost, ErrSyncExhausted: the bootloader kept answering NOSYNC; see IsRetryable
//   - protocol.ProtocolError: an unexpected response byte; wraps protocol.ErrNoDevice or
//     protocol.ErrFailed when the bootloader reported the failure itself
//   - VerificationError: the first byte that read back differently
//
// # Context Support
//
// Context cancellation is checked before every command exchange and every sync attempt.
// Timeouts on individual reads belong to the transport.
package bootloader
