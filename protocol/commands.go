package protocol

import (
	"encoding/binary"
	"fmt"
)

// BuildGetSyncCmd constructs a GET_SYNC frame.
//
// Frame structure:
//
//	[GET_SYNC][CRC_EOP]
func BuildGetSyncCmd() []byte {
	return []byte{CmdGetSync, CRCEOP}
}

// BuildEnterProgModeCmd constructs an ENTER_PROGMODE frame.
//
// Frame structure:
//
//	[ENTER_PROGMODE][CRC_EOP]
func BuildEnterProgModeCmd() []byte {
	return []byte{CmdEnterProgMode, CRCEOP}
}

// BuildLoadAddressCmd constructs a LOAD_ADDRESS frame for the given word address.
//
// Frame structure:
//
//	[LOAD_ADDRESS][ADDR_L][ADDR_H][CRC_EOP]
//
// The address is in 16-bit words and little-endian on the wire.
func BuildLoadAddressCmd(wordAddr uint16) []byte {
	frame := make([]byte, LoadAddressFrameSize)
	frame[0] = CmdLoadAddress
	binary.LittleEndian.PutUint16(frame[1:3], wordAddr)
	frame[3] = CRCEOP
	return frame
}

// BuildProgPageCmd constructs a PROG_PAGE frame carrying data for flash memory.
//
// Frame structure:
//
//	[PROG_PAGE][SIZE_H][SIZE_L]['F'][DATA...][CRC_EOP]
//
// Unlike LOAD_ADDRESS, the size field is big-endian.
func BuildProgPageCmd(data []byte) ([]byte, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("data cannot be empty")
	}
	if len(data) > MaxBlockSize {
		return nil, fmt.Errorf("data length %d exceeds maximum %d bytes", len(data), MaxBlockSize)
	}

	frame := make([]byte, 0, PageHeaderSize+len(data)+1)
	frame = append(frame, CmdProgPage)
	frame = binary.BigEndian.AppendUint16(frame, uint16(len(data)))
	frame = append(frame, MemTypeFlash)
	frame = append(frame, data...)
	frame = append(frame, CRCEOP)

	return frame, nil
}

// BuildReadPageCmd constructs a READ_PAGE frame requesting size bytes of flash memory.
//
// Frame structure:
//
//	[READ_PAGE][SIZE_H][SIZE_L]['F'][CRC_EOP]
func BuildReadPageCmd(size int) ([]byte, error) {
	if size <= 0 {
		return nil, fmt.Errorf("size must be positive, got %d", size)
	}
	if size > MaxBlockSize {
		return nil, fmt.Errorf("size %d exceeds maximum %d bytes", size, MaxBlockSize)
	}

	frame := make([]byte, 0, ReadPageFrameSize)
	frame = append(frame, CmdReadPage)
	frame = binary.BigEndian.AppendUint16(frame, uint16(size))
	frame = append(frame, MemTypeFlash, CRCEOP)

	return frame, nil
}

// FrameSize returns the total size of a command frame given its first bytes,
// or 0 if more bytes are needed to tell. Unknown commands report 0 as well.
//
// It is used by device-side code that has to split a byte stream into frames.
func FrameSize(head []byte) int {
	if len(head) == 0 {
		return 0
	}

	switch head[0] {
	case CmdGetSync, CmdEnterProgMode, CmdLeaveProgMode:
		return SimpleFrameSize
	case CmdLoadAddress:
		return LoadAddressFrameSize
	case CmdReadPage:
		return ReadPageFrameSize
	case CmdProgPage:
		if len(head) < 3 {
			return 0
		}
		return PageHeaderSize + int(binary.BigEndian.Uint16(head[1:3])) + 1
	default:
		return 0
	}
}
