package bootloader

import (
	"context"
	"errors"
	"fmt"

	"github.com/moffa90/go-stk500/protocol"
	"github.com/moffa90/go-stk500/transport"
)

// State is the synchronization state of a Session.
type State int

const (
	// Unsynced: the bootloader has not acknowledged a GET_SYNC yet
	Unsynced State = iota

	// Synced: frames are aligned and commands may be sent
	Synced

	// ProgramEnabled: ENTER_PROGMODE succeeded
	ProgramEnabled
)

func (s State) String() string {
	switch s {
	case Unsynced:
		return "unsynced"
	case Synced:
		return "synced"
	case ProgramEnabled:
		return "program-enabled"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// errNoSync signals a NOSYNC reply inside one exchange. It never leaves the package.
var errNoSync = errors.New("bootloader answered NOSYNC")

// Session speaks STK500 to one bootloader over one transport.
//
// A Session is not safe for concurrent use; the protocol is half duplex and allows
// exactly one command in flight.
type Session struct {
	port   transport.Transport
	config Config
	state  State
	open   bool
}

// NewSession creates a session on port. Nothing is sent until Open.
func NewSession(port transport.Transport, opts ...Option) *Session {
	if port == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Session{port: port, config: cfg}
}

// Open opens the transport, sets the baud rate, discards line noise and
// synchronizes with the bootloader. The transport is closed again if any step fails.
func (s *Session) Open(ctx context.Context) error {
	if s.open {
		return fmt.Errorf("session on %s is already open", s.port.Name())
	}

	if err := s.port.Open(); err != nil {
		return &IOError{Op: "open " + s.port.Name(), Err: err}
	}
	s.open = true
	s.state = Unsynced

	if err := s.start(ctx); err != nil {
		s.Close()
		return err
	}

	s.config.Logger.Debug().
		Str("port", s.port.Name()).
		Int("baud", s.config.Baud).
		Msg("session open")
	return nil
}

func (s *Session) start(ctx context.Context) error {
	if err := s.port.SetSpeed(s.config.Baud); err != nil {
		return &IOError{Op: "set speed", Err: err}
	}
	if n, err := s.port.Drain(); err != nil {
		return &IOError{Op: "drain", Err: err}
	} else if n > 0 {
		s.config.Logger.Debug().Int("bytes", n).Msg("discarded line noise")
	}
	return s.GetSync(ctx)
}

// Close closes the transport. Closing a closed session is a no-op.
func (s *Session) Close() error {
	if !s.open {
		return nil
	}
	s.open = false
	s.state = Unsynced

	if err := s.port.Close(); err != nil {
		return &IOError{Op: "close " + s.port.Name(), Err: err}
	}
	return nil
}

// State returns the current synchronization state.
func (s *Session) State() State {
	return s.state
}

// GetSync aligns host and bootloader on frame boundaries.
//
// Two GET_SYNC frames are sent first, each followed by a drain, to flush whatever
// the bootloader or the line produced before. Then up to SyncAttempts GET_SYNC
// frames are sent until one is answered with INSYNC, which must be followed by OK.
// A session that is already ProgramEnabled stays ProgramEnabled.
func (s *Session) GetSync(ctx context.Context) error {
	if !s.open {
		return ErrSessionClosed
	}

	frame := protocol.BuildGetSyncCmd()
	for i := 0; i < 2; i++ {
		if err := s.send("get sync", frame); err != nil {
			return err
		}
		if _, err := s.port.Drain(); err != nil {
			return &IOError{Op: "drain", Err: err}
		}
	}

	synced := false
	for attempt := 1; attempt <= s.config.SyncAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.send("get sync", frame); err != nil {
			return err
		}

		b, ok, err := s.recvByte("get sync")
		if err != nil {
			return err
		}
		if ok && b == protocol.RespInSync {
			synced = true
			break
		}

		ev := s.config.Logger.Debug().Int("attempt", attempt)
		if ok {
			ev = ev.Str("response", protocol.ResponseName(b))
		}
		ev.Msg("no sync")
	}

	if !synced {
		if _, err := s.port.Drain(); err != nil {
			s.config.Logger.Debug().Err(err).Msg("drain after failed sync")
		}
		s.state = Unsynced
		return ErrSyncLost
	}

	if err := s.expectStatus("get sync", protocol.RespOK); err != nil {
		s.state = Unsynced
		return err
	}

	if s.state == Unsynced {
		s.state = Synced
	}
	return nil
}

// ProgramEnable enters programming mode. NODEVICE and FAILED replies are returned
// as a ProtocolError wrapping protocol.ErrNoDevice and protocol.ErrFailed.
func (s *Session) ProgramEnable(ctx context.Context) error {
	if err := s.exchange(ctx, step{name: "enter progmode", frame: protocol.BuildEnterProgModeCmd()}); err != nil {
		return err
	}
	s.state = ProgramEnabled
	return nil
}

// LeaveProgMode is a no-op: optiboot ignores LEAVE_PROGMODE and starts the
// application on its own watchdog timeout.
func (s *Session) LeaveProgMode(ctx context.Context) error {
	if !s.open {
		return ErrSessionClosed
	}
	return ctx.Err()
}

// LoadAddress sets the byte address for the next page command. LOAD_ADDRESS carries
// a 16-bit word address, so byteAddr must be below 128 KiB.
func (s *Session) LoadAddress(ctx context.Context, byteAddr uint32) error {
	st, err := loadAddressStep(byteAddr)
	if err != nil {
		return err
	}
	return s.exchange(ctx, st)
}

func loadAddressStep(byteAddr uint32) (step, error) {
	wordAddr := byteAddr / 2
	if wordAddr > protocol.MaxWordAddress {
		return step{}, &AddressError{Address: byteAddr}
	}
	return step{
		name:  "load address",
		frame: protocol.BuildLoadAddressCmd(uint16(wordAddr)),
	}, nil
}

// PagedWrite writes mem[offset:offset+length] to flash starting at baseAddr, one
// block of at most pageSize bytes at a time. It returns the number of bytes written.
func (s *Session) PagedWrite(ctx context.Context, mem []byte, pageSize int, baseAddr uint32, offset, length int) (int, error) {
	return s.paged(ctx, mem, pageSize, baseAddr, offset, length, s.writeBlock)
}

// PagedLoad reads length bytes of flash starting at baseAddr into mem[offset:],
// one block of at most pageSize bytes at a time. It returns the number of bytes read.
func (s *Session) PagedLoad(ctx context.Context, mem []byte, pageSize int, baseAddr uint32, offset, length int) (int, error) {
	return s.paged(ctx, mem, pageSize, baseAddr, offset, length, s.readBlock)
}

type blockFunc func(ctx context.Context, addr uint32, block []byte) error

func (s *Session) paged(ctx context.Context, mem []byte, pageSize int, baseAddr uint32, offset, length int, fn blockFunc) (int, error) {
	if pageSize <= 0 || pageSize > protocol.MaxBlockSize {
		return 0, fmt.Errorf("page size %d out of range 1-%d", pageSize, protocol.MaxBlockSize)
	}
	if offset < 0 || length < 0 || offset+length > len(mem) {
		return 0, fmt.Errorf("range [%d:%d] outside buffer of %d bytes", offset, offset+length, len(mem))
	}

	done := 0
	for done < length {
		size := min(pageSize, length-done)
		addr := baseAddr + uint32(done)

		if err := fn(ctx, addr, mem[offset+done:offset+done+size]); err != nil {
			return done, fmt.Errorf("block at 0x%04X: %w", addr, err)
		}
		done += size
	}
	return done, nil
}

func (s *Session) writeBlock(ctx context.Context, addr uint32, block []byte) error {
	load, err := loadAddressStep(addr)
	if err != nil {
		return err
	}
	frame, err := protocol.BuildProgPageCmd(block)
	if err != nil {
		return err
	}
	return s.exchange(ctx, load, step{name: "program page", frame: frame})
}

func (s *Session) readBlock(ctx context.Context, addr uint32, block []byte) error {
	load, err := loadAddressStep(addr)
	if err != nil {
		return err
	}
	frame, err := protocol.BuildReadPageCmd(len(block))
	if err != nil {
		return err
	}
	return s.exchange(ctx, load, step{name: "read page", frame: frame, payload: block})
}

// step is one frame of a logical operation and the reply it expects: INSYNC,
// len(payload) raw bytes, then OK.
type step struct {
	name    string
	frame   []byte
	payload []byte
}

// exchange runs the steps of one logical operation. A NOSYNC reply to any step
// resynchronizes and restarts the operation from its first step, at most
// ResyncAttempts times.
func (s *Session) exchange(ctx context.Context, steps ...step) error {
	if !s.open {
		return ErrSessionClosed
	}

	for resyncs := 0; ; resyncs++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.transact(steps)
		if !errors.Is(err, errNoSync) {
			return err
		}

		last := steps[len(steps)-1]
		if resyncs == s.config.ResyncAttempts {
			s.config.Logger.Error().
				Str("op", last.name).
				Str("cmd", protocol.CommandName(last.frame[0])).
				Int("resyncs", resyncs).
				Msg("giving up")
			return fmt.Errorf("%s: %w", last.name, ErrSyncExhausted)
		}

		s.config.Logger.Debug().
			Str("op", last.name).
			Str("cmd", protocol.CommandName(last.frame[0])).
			Int("resync", resyncs+1).
			Msg("lost sync, resynchronizing")

		if err := s.GetSync(ctx); err != nil {
			return err
		}
	}
}

// transact sends each step and checks its reply.
func (s *Session) transact(steps []step) error {
	for _, st := range steps {
		if err := s.send(st.name, st.frame); err != nil {
			return err
		}

		b, ok, err := s.recvByte(st.name)
		if err != nil {
			return err
		}
		if !ok {
			return &IOError{Op: st.name, Err: ErrShortRead}
		}

		switch b {
		case protocol.RespInSync:
		case protocol.RespNoSync:
			return errNoSync
		default:
			return &protocol.ProtocolError{Operation: st.name, Expected: protocol.RespInSync, Response: b}
		}

		if len(st.payload) > 0 {
			n, err := s.port.Recv(st.payload)
			if err != nil {
				return &IOError{Op: st.name, Err: err}
			}
			if n < len(st.payload) {
				return &IOError{
					Op:  st.name,
					Err: fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, n, len(st.payload)),
				}
			}
		}

		if err := s.expectStatus(st.name, protocol.RespOK); err != nil {
			return err
		}
	}
	return nil
}

func (s *Session) send(op string, frame []byte) error {
	s.config.Logger.Trace().
		Str("cmd", protocol.CommandName(frame[0])).
		Int("len", len(frame)).
		Msg("send")
	if _, err := s.port.Send(frame); err != nil {
		return &IOError{Op: op, Err: err}
	}
	return nil
}

// recvByte reads one byte. ok is false when the transport timed out.
func (s *Session) recvByte(op string) (b byte, ok bool, err error) {
	var buf [1]byte
	n, err := s.port.Recv(buf[:])
	if err != nil {
		return 0, false, &IOError{Op: op, Err: err}
	}
	return buf[0], n == 1, nil
}

func (s *Session) expectStatus(op string, want byte) error {
	b, ok, err := s.recvByte(op)
	if err != nil {
		return err
	}
	if !ok {
		return &IOError{Op: op, Err: ErrShortRead}
	}
	if b != want {
		return &protocol.ProtocolError{Operation: op, Expected: want, Response: b}
	}
	return nil
}
