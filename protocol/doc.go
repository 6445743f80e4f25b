// Package protocol implements the subset of the STK500 protocol spoken by optiboot
// and similar minimal AVR bootloaders.
//
// This package builds command frames and names response bytes. It performs no I/O;
// sessions, retries and paging live in the bootloader package.
//
// # Protocol Overview
//
// Every command is a short frame terminated by CRC_EOP (0x20). The bootloader answers
// INSYNC (0x14) when the frame was well formed, optionally followed by payload, and a
// terminal status byte, normally OK (0x10):
//
//	Command:  [CMD][ARGS...][CRC_EOP]
//	Response: [INSYNC][PAYLOAD...][OK]
//
// A NOSYNC (0x15) answer means the bootloader lost track of frame boundaries and the
// host must run GET_SYNC again before retrying.
//
// # Command Builders
//
//	frame := protocol.BuildGetSyncCmd()
//	frame := protocol.BuildLoadAddressCmd(wordAddr)
//	frame, err := protocol.BuildProgPageCmd(data)
//	frame, err := protocol.BuildReadPageCmd(size)
//
// LOAD_ADDRESS takes a word address (byte address / 2) in little-endian order, while
// PROG_PAGE and READ_PAGE carry a big-endian byte count.
//
// # Error Handling
//
// Unexpected response bytes are reported as ProtocolError:
//
//	err := &protocol.ProtocolError{
//	    Operation: "enter progmode",
//	    Expected:  protocol.RespOK,
//	    Response:  protocol.RespNoDevice,
//	}
//	// err.Error() returns:
//	// "enter progmode failed: expected OK (0x10), got NODEVICE (0x13)"
//	errors.Is(err, protocol.ErrNoDevice) // true
package protocol
