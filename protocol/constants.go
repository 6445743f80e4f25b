package protocol

// Frame terminator. Every command frame ends with it and the bootloader answers
// Resp_STK_NOSYNC when it is missing.
const CRCEOP = 0x20

// MemTypeFlash selects program memory in PROG_PAGE and READ_PAGE frames.
const MemTypeFlash = 'F'

// Command codes understood by optiboot.
const (
	// CmdGetSync asks the bootloader to acknowledge frame alignment
	CmdGetSync = 0x30

	// CmdEnterProgMode enters programming mode
	CmdEnterProgMode = 0x50

	// CmdLeaveProgMode leaves programming mode. optiboot ignores it, so it is never sent.
	CmdLeaveProgMode = 0x51

	// CmdLoadAddress sets the word address used by the next page command
	CmdLoadAddress = 0x55

	// CmdProgPage writes one page of memory
	CmdProgPage = 0x64

	// CmdReadPage reads one page of memory
	CmdReadPage = 0x74
)

// Response bytes.
const (
	// RespOK terminates a successful exchange
	RespOK = 0x10

	// RespFailed reports that the command was understood but failed
	RespFailed = 0x11

	// RespUnknown reports an unknown command
	RespUnknown = 0x12

	// RespNoDevice reports that no target device is attached
	RespNoDevice = 0x13

	// RespInSync acknowledges a well-formed frame
	RespInSync = 0x14

	// RespNoSync reports a frame the bootloader could not align to
	RespNoSync = 0x15
)

// Retry limits.
const (
	// MaxSyncAttempts bounds the GET_SYNC loop of a cold synchronization
	MaxSyncAttempts = 10

	// MaxResyncAttempts bounds resynchronizations within one logical operation
	MaxResyncAttempts = 33
)

// Size limits.
const (
	// MaxBlockSize is the largest page payload accepted by PROG_PAGE and READ_PAGE.
	// AVR flash pages are at most 256 bytes.
	MaxBlockSize = 256

	// MaxWordAddress is the largest word address LOAD_ADDRESS can carry (128 KiB of flash)
	MaxWordAddress = 0xFFFF
)

// Frame sizes.
const (
	// SimpleFrameSize is the size of GET_SYNC and ENTER_PROGMODE frames
	SimpleFrameSize = 2

	// LoadAddressFrameSize is CMD(1) + ADDR(2) + CRC_EOP(1)
	LoadAddressFrameSize = 4

	// PageHeaderSize is CMD(1) + SIZE(2) + MEMTYPE(1)
	PageHeaderSize = 4

	// ReadPageFrameSize is the page header plus CRC_EOP
	ReadPageFrameSize = PageHeaderSize + 1
)
