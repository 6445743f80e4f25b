package protocol

import "fmt"

// ResponseName returns a human-readable name for a response byte.
func ResponseName(b byte) string {
	switch b {
	case RespOK:
		return "OK"
	case RespFailed:
		return "FAILED"
	case RespUnknown:
		return "UNKNOWN"
	case RespNoDevice:
		return "NODEVICE"
	case RespInSync:
		return "INSYNC"
	case RespNoSync:
		return "NOSYNC"
	default:
		return fmt.Sprintf("unknown response 0x%02X", b)
	}
}

// CommandName returns a human-readable name for a command byte.
func CommandName(b byte) string {
	switch b {
	case CmdGetSync:
		return "GET_SYNC"
	case CmdEnterProgMode:
		return "ENTER_PROGMODE"
	case CmdLeaveProgMode:
		return "LEAVE_PROGMODE"
	case CmdLoadAddress:
		return "LOAD_ADDRESS"
	case CmdProgPage:
		return "PROG_PAGE"
	case CmdReadPage:
		return "READ_PAGE"
	default:
		return fmt.Sprintf("command 0x%02X", b)
	}
}
