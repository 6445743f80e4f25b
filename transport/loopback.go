package transport

import (
	"bytes"
	"encoding/binary"

	"github.com/moffa90/go-stk500/protocol"
)

// DefaultFlashSize matches an ATmega328P (32 KiB).
const DefaultFlashSize = 32 * 1024

var (
	_ Transport = (*Serial)(nil)
	_ Transport = (*Loopback)(nil)
)

// Loopback is an in-memory Transport that behaves like an optiboot bootloader.
// Frames sent to it are parsed and answered immediately, so Recv never blocks;
// a reply that is not there yet reads as a timeout.
//
// The exported fields inject faults and record traffic. Loopback is not safe for
// concurrent use, matching the single-session model of the protocol.
type Loopback struct {
	// Flash is the simulated program memory.
	Flash []byte

	// NoSyncReplies answers that many upcoming frames other than GET_SYNC with
	// NOSYNC. A negative value answers all of them with NOSYNC.
	NoSyncReplies int

	// RejectSync answers every GET_SYNC with NOSYNC.
	RejectSync bool

	// SilentSyncs leaves that many upcoming GET_SYNC frames unanswered, as a
	// target that is still booting would.
	SilentSyncs int

	// ProgModeStatus replaces OK as the status of ENTER_PROGMODE when non-zero.
	ProgModeStatus byte

	// PageStatus replaces OK as the status of PROG_PAGE and READ_PAGE when non-zero.
	PageStatus byte

	// Corrupt overrides bytes returned by READ_PAGE, keyed by byte address.
	Corrupt map[uint32]byte

	// TruncateRead drops that many bytes from the end of every READ_PAGE payload
	// and omits the status byte.
	TruncateRead int

	// PowerOnNoise is queued for the host on every Open.
	PowerOnNoise []byte

	// Respond, when set, may answer a frame itself by returning true.
	Respond func(frame []byte) (reply []byte, handled bool)

	// OpenErr, SendErr and RecvErr make the corresponding call fail.
	OpenErr error
	SendErr error
	RecvErr error

	// Baud is the last speed set by the host.
	Baud int

	// SyncRequests counts GET_SYNC frames received.
	SyncRequests int

	// Frames records every complete frame received, in order.
	Frames [][]byte

	// Opens and Closes count lifecycle calls.
	Opens  int
	Closes int

	open     bool
	progMode bool
	wordAddr uint16
	inbox    []byte
	rx       []byte
}

// NewLoopback creates a simulated target with flashSize bytes of erased flash.
func NewLoopback(flashSize int) *Loopback {
	if flashSize <= 0 {
		flashSize = DefaultFlashSize
	}
	return &Loopback{Flash: bytes.Repeat([]byte{0xFF}, flashSize)}
}

func (l *Loopback) Name() string {
	return "loopback"
}

// Open simulates a reset: pending input, partial frames and programming mode are cleared.
func (l *Loopback) Open() error {
	if l.OpenErr != nil {
		return l.OpenErr
	}
	l.Opens++
	l.open = true
	l.progMode = false
	l.wordAddr = 0
	l.inbox = nil
	l.rx = append([]byte(nil), l.PowerOnNoise...)
	return nil
}

func (l *Loopback) SetSpeed(baud int) error {
	if !l.open {
		return ErrNotOpen
	}
	l.Baud = baud
	return nil
}

func (l *Loopback) Send(p []byte) (int, error) {
	if !l.open {
		return 0, ErrNotOpen
	}
	if l.SendErr != nil {
		return 0, l.SendErr
	}
	l.inbox = append(l.inbox, p...)
	l.process()
	return len(p), nil
}

func (l *Loopback) Recv(p []byte) (int, error) {
	if !l.open {
		return 0, ErrNotOpen
	}
	if l.RecvErr != nil {
		return 0, l.RecvErr
	}
	n := copy(p, l.rx)
	l.rx = l.rx[n:]
	return n, nil
}

func (l *Loopback) Drain() (int, error) {
	if !l.open {
		return 0, ErrNotOpen
	}
	n := len(l.rx)
	l.rx = nil
	return n, nil
}

func (l *Loopback) Close() error {
	l.Closes++
	l.open = false
	return nil
}

// ProgMode reports whether the simulated bootloader is in programming mode.
func (l *Loopback) ProgMode() bool {
	return l.progMode
}

// Pending returns the number of reply bytes the host has not read yet.
func (l *Loopback) Pending() int {
	return len(l.rx)
}

// CountFrames returns how many frames starting with cmd were received.
func (l *Loopback) CountFrames(cmd byte) int {
	n := 0
	for _, f := range l.Frames {
		if f[0] == cmd {
			n++
		}
	}
	return n
}

// process splits the inbox into frames and answers each complete one.
func (l *Loopback) process() {
	for len(l.inbox) > 0 {
		size := protocol.FrameSize(l.inbox)
		if size == 0 {
			if isCommand(l.inbox[0]) {
				// header incomplete
				return
			}
			// Unknown command: swallow it up to its terminator.
			end := bytes.IndexByte(l.inbox, protocol.CRCEOP)
			if end < 0 {
				return
			}
			l.take(end + 1)
			l.answer(protocol.RespInSync, protocol.RespUnknown)
			continue
		}
		if len(l.inbox) < size {
			return
		}
		l.handle(l.take(size))
	}
}

func (l *Loopback) take(n int) []byte {
	frame := append([]byte(nil), l.inbox[:n]...)
	l.inbox = l.inbox[n:]
	l.Frames = append(l.Frames, frame)
	return frame
}

func (l *Loopback) handle(frame []byte) {
	if l.Respond != nil {
		if reply, ok := l.Respond(frame); ok {
			l.rx = append(l.rx, reply...)
			return
		}
	}

	if frame[len(frame)-1] != protocol.CRCEOP {
		l.answer(protocol.RespNoSync)
		return
	}

	if frame[0] == protocol.CmdGetSync {
		l.SyncRequests++
		switch {
		case l.SilentSyncs > 0:
			l.SilentSyncs--
		case l.RejectSync:
			l.answer(protocol.RespNoSync)
		default:
			l.answer(protocol.RespInSync, protocol.RespOK)
		}
		return
	}

	if l.NoSyncReplies != 0 {
		if l.NoSyncReplies > 0 {
			l.NoSyncReplies--
		}
		l.answer(protocol.RespNoSync)
		return
	}

	switch frame[0] {
	case protocol.CmdEnterProgMode:
		status := statusOr(l.ProgModeStatus)
		if status == protocol.RespOK {
			l.progMode = true
		}
		l.answer(protocol.RespInSync, status)

	case protocol.CmdLeaveProgMode:
		l.progMode = false
		l.answer(protocol.RespInSync, protocol.RespOK)

	case protocol.CmdLoadAddress:
		l.wordAddr = binary.LittleEndian.Uint16(frame[1:3])
		l.answer(protocol.RespInSync, protocol.RespOK)

	case protocol.CmdProgPage:
		addr, size, ok := l.pageBounds(frame)
		if !ok {
			l.answer(protocol.RespInSync, protocol.RespFailed)
			return
		}
		copy(l.Flash[addr:addr+size], frame[protocol.PageHeaderSize:protocol.PageHeaderSize+size])
		l.answer(protocol.RespInSync, statusOr(l.PageStatus))

	case protocol.CmdReadPage:
		addr, size, ok := l.pageBounds(frame)
		if !ok {
			l.answer(protocol.RespInSync, protocol.RespFailed)
			return
		}
		data := append([]byte(nil), l.Flash[addr:addr+size]...)
		for a, v := range l.Corrupt {
			if int(a) >= addr && int(a) < addr+size {
				data[int(a)-addr] = v
			}
		}
		if l.TruncateRead > 0 {
			data = data[:max(0, len(data)-l.TruncateRead)]
			l.rx = append(l.rx, protocol.RespInSync)
			l.rx = append(l.rx, data...)
			return
		}
		l.rx = append(l.rx, protocol.RespInSync)
		l.rx = append(l.rx, data...)
		l.rx = append(l.rx, statusOr(l.PageStatus))
	}
}

// pageBounds validates a PROG_PAGE or READ_PAGE frame against the flash array.
func (l *Loopback) pageBounds(frame []byte) (addr, size int, ok bool) {
	size = int(binary.BigEndian.Uint16(frame[1:3]))
	addr = int(l.wordAddr) * 2
	if frame[3] != protocol.MemTypeFlash || size == 0 || addr+size > len(l.Flash) {
		return 0, 0, false
	}
	return addr, size, true
}

func (l *Loopback) answer(b ...byte) {
	l.rx = append(l.rx, b...)
}

func statusOr(b byte) byte {
	if b == 0 {
		return protocol.RespOK
	}
	return b
}

func isCommand(b byte) bool {
	switch b {
	case protocol.CmdGetSync, protocol.CmdEnterProgMode, protocol.CmdLeaveProgMode,
		protocol.CmdLoadAddress, protocol.CmdProgPage, protocol.CmdReadPage:
		return true
	}
	return false
}
