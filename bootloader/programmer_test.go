package bootloader

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/moffa90/go-stk500/internal/testutil/testlog"
	"github.com/moffa90/go-stk500/protocol"
	"github.com/moffa90/go-stk500/transport"
)

func newTestProgrammer(t *testing.T, dev *transport.Loopback, opts ...Option) *Programmer {
	t.Helper()
	opts = append([]Option{WithLogger(testlog.New(t))}, opts...)
	return New(dev, opts...)
}

func testSections() []Section {
	return []Section{
		{Address: 0x0000, Content: pattern(300)},
		{Address: 0x0400, Content: pattern(10)},
	}
}

func TestNew_PanicsOnNilTransport(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("New(nil) did not panic")
		}
	}()
	New(nil)
}

func TestUpload_Success(t *testing.T) {
	dev := transport.NewLoopback(0)
	var events []Progress
	prog := newTestProgrammer(t, dev, WithProgressCallback(func(p Progress) {
		events = append(events, p)
	}))
	sections := testSections()

	if err := prog.Upload(context.Background(), sections); err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}

	for _, sec := range sections {
		if !bytes.Equal(dev.Flash[sec.Address:sec.End()], sec.Content) {
			t.Errorf("flash at 0x%04X does not hold the section", sec.Address)
		}
	}
	if !dev.ProgMode() {
		t.Error("programming mode never entered")
	}
	if n := dev.CountFrames(protocol.CmdLeaveProgMode); n != 0 {
		t.Errorf("LEAVE_PROGMODE sent %d times, want 0", n)
	}
	if dev.Opens != 1 || dev.Closes != 1 {
		t.Errorf("Opens/Closes = %d/%d, want 1/1", dev.Opens, dev.Closes)
	}

	// one event per section per pass
	if len(events) != 4 {
		t.Fatalf("got %d progress events, want 4", len(events))
	}
	wantPhases := []string{PhaseWriting, PhaseWriting, PhaseVerifying, PhaseVerifying}
	hundreds := 0
	var last uint64
	for i, ev := range events {
		if ev.Phase != wantPhases[i] {
			t.Errorf("event %d phase = %s, want %s", i, ev.Phase, wantPhases[i])
		}
		if ev.Total != 620 {
			t.Errorf("event %d total = %d, want 620", i, ev.Total)
		}
		if ev.Done < last {
			t.Errorf("event %d done went backwards: %d < %d", i, ev.Done, last)
		}
		last = ev.Done
		if ev.Percentage != int(ev.Done*100/ev.Total) {
			t.Errorf("event %d percentage = %d, want %d", i, ev.Percentage, ev.Done*100/ev.Total)
		}
		if ev.Percentage == 100 {
			hundreds++
		}
	}
	if hundreds != 1 || events[3].Percentage != 100 {
		t.Errorf("100%% reported %d times, last event at %d%%", hundreds, events[3].Percentage)
	}
	if events[0].Section != 1 || events[0].Sections != 2 || events[0].Percentage != 48 {
		t.Errorf("first event = %+v", events[0])
	}
}

func TestUpload_WithoutVerify(t *testing.T) {
	dev := transport.NewLoopback(0)
	var events []Progress
	prog := newTestProgrammer(t, dev,
		WithVerify(false),
		WithProgressCallback(func(p Progress) { events = append(events, p) }),
	)

	if err := prog.Upload(context.Background(), testSections()); err != nil {
		t.Fatalf("Upload() failed: %v", err)
	}

	if n := dev.CountFrames(protocol.CmdReadPage); n != 0 {
		t.Errorf("READ_PAGE sent %d times, want 0", n)
	}
	if len(events) != 2 || events[1].Total != 310 || events[1].Percentage != 100 {
		t.Errorf("events = %+v", events)
	}
}

func TestUpload_VerificationMismatch(t *testing.T) {
	dev := transport.NewLoopback(0)
	dev.Corrupt = map[uint32]byte{0x0105: 0x00}
	prog := newTestProgrammer(t, dev)

	sections := []Section{
		{Address: 0x0000, Content: pattern(16)},
		{Address: 0x0100, Content: pattern(16)},
		{Address: 0x0200, Content: pattern(16)},
	}

	err := prog.Upload(context.Background(), sections)

	var verr *VerificationError
	if !errors.As(err, &verr) {
		t.Fatalf("Upload() error = %v, want VerificationError", err)
	}
	if verr.Address != 0x0105 {
		t.Errorf("Address = 0x%04X, want 0x0105", verr.Address)
	}
	if verr.Expected != sections[1].Content[5] || verr.Actual != 0x00 {
		t.Errorf("Expected/Actual = 0x%02X/0x%02X, want 0x%02X/0x00", verr.Expected, verr.Actual, sections[1].Content[5])
	}
	// the third section is never read back
	if n := dev.CountFrames(protocol.CmdReadPage); n != 2 {
		t.Errorf("READ_PAGE sent %d times, want 2", n)
	}
	if dev.Closes != 1 {
		t.Errorf("Closes = %d, want 1", dev.Closes)
	}
	if Classify(err) != OutcomeVerify {
		t.Errorf("Classify() = %v, want verify", Classify(err))
	}
}

func TestUpload_InvalidSections(t *testing.T) {
	tests := []struct {
		name     string
		sections []Section
	}{
		{"no sections", nil},
		{"empty section", []Section{{Address: 0, Content: []byte{1}}, {Address: 0x100}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := transport.NewLoopback(0)

			if err := newTestProgrammer(t, dev).Upload(context.Background(), tt.sections); err == nil {
				t.Fatal("Upload() expected error")
			}
			if dev.Opens != 0 {
				t.Error("transport opened for invalid sections")
			}
		})
	}
}

func TestUpload_Failures(t *testing.T) {
	tests := []struct {
		name      string
		setup     func(*transport.Loopback)
		wantErr   error
		wantClass Outcome
	}{
		{
			name:      "no sync",
			setup:     func(d *transport.Loopback) { d.RejectSync = true },
			wantErr:   ErrSyncLost,
			wantClass: OutcomeSyncExhausted,
		},
		{
			name:      "no device",
			setup:     func(d *transport.Loopback) { d.ProgModeStatus = protocol.RespNoDevice },
			wantErr:   protocol.ErrNoDevice,
			wantClass: OutcomeProtocol,
		},
		{
			name:      "page write failed",
			setup:     func(d *transport.Loopback) { d.PageStatus = protocol.RespFailed },
			wantErr:   protocol.ErrFailed,
			wantClass: OutcomeProtocol,
		},
		{
			name:      "short read back",
			setup:     func(d *transport.Loopback) { d.TruncateRead = 1 },
			wantErr:   ErrShortRead,
			wantClass: OutcomeIO,
		},
		{
			name: "lost sync mid upload",
			setup: func(d *transport.Loopback) {
				d.Respond = func(frame []byte) ([]byte, bool) {
					if frame[0] == protocol.CmdProgPage {
						return []byte{protocol.RespNoSync}, true
					}
					return nil, false
				}
			},
			wantErr:   ErrSyncExhausted,
			wantClass: OutcomeSyncExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := transport.NewLoopback(0)
			tt.setup(dev)

			err := newTestProgrammer(t, dev).Upload(context.Background(), testSections())

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Upload() error = %v, want %v", err, tt.wantErr)
			}
			if got := Classify(err); got != tt.wantClass {
				t.Errorf("Classify() = %v, want %v", got, tt.wantClass)
			}
			if dev.Closes != 1 {
				t.Errorf("Closes = %d, want 1", dev.Closes)
			}
		})
	}
}

func TestUpload_StopsAtFirstFailedSection(t *testing.T) {
	dev := transport.NewLoopback(0)
	dev.Respond = func(frame []byte) ([]byte, bool) {
		if frame[0] == protocol.CmdProgPage && len(frame) == protocol.PageHeaderSize+10+1 {
			return []byte{protocol.RespInSync, protocol.RespFailed}, true
		}
		return nil, false
	}
	sections := append(testSections(), Section{Address: 0x0800, Content: pattern(20)})

	err := newTestProgrammer(t, dev).Upload(context.Background(), sections)

	if !errors.Is(err, protocol.ErrFailed) {
		t.Fatalf("Upload() error = %v, want ErrFailed", err)
	}
	if dev.Flash[0x0800] != 0xFF {
		t.Error("section after the failed one was written")
	}
	if n := dev.CountFrames(protocol.CmdReadPage); n != 0 {
		t.Errorf("READ_PAGE sent %d times after a failed write", n)
	}
}

func TestUpload_Canceled(t *testing.T) {
	dev := transport.NewLoopback(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newTestProgrammer(t, dev).Upload(ctx, testSections())

	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Upload() error = %v, want context.Canceled", err)
	}
	if dev.Closes != 1 {
		t.Errorf("Closes = %d, want 1", dev.Closes)
	}
}

func TestUploadBinary(t *testing.T) {
	dev := transport.NewLoopback(0)
	data := pattern(200)

	if err := newTestProgrammer(t, dev, WithPageSize(64)).UploadBinary(context.Background(), data, 0x0200); err != nil {
		t.Fatalf("UploadBinary() failed: %v", err)
	}

	if !bytes.Equal(dev.Flash[0x0200:0x0200+200], data) {
		t.Error("flash does not hold the image")
	}
	if n := dev.CountFrames(protocol.CmdProgPage); n != 4 {
		t.Errorf("PROG_PAGE sent %d times, want 4 with 64-byte pages", n)
	}
}

func TestVerify(t *testing.T) {
	dev := transport.NewLoopback(0)
	sections := testSections()
	for _, sec := range sections {
		copy(dev.Flash[sec.Address:], sec.Content)
	}
	prog := newTestProgrammer(t, dev)

	if err := prog.Verify(context.Background(), sections); err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if n := dev.CountFrames(protocol.CmdProgPage); n != 0 {
		t.Errorf("PROG_PAGE sent %d times, want 0", n)
	}

	dev.Flash[0x0402] ^= 0xFF
	err := prog.Verify(context.Background(), sections)

	var verr *VerificationError
	if !errors.As(err, &verr) || verr.Address != 0x0402 {
		t.Errorf("Verify() error = %v, want mismatch at 0x0402", err)
	}
}

func TestLoad(t *testing.T) {
	dev := transport.NewLoopback(0)
	want := pattern(300)
	copy(dev.Flash[0x7C00:], want)

	mem := make([]byte, len(want))
	n, err := newTestProgrammer(t, dev).Load(context.Background(), mem, 0x7C00)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if n != len(want) || !bytes.Equal(mem, want) {
		t.Errorf("Load() = %d bytes, content match %v", n, bytes.Equal(mem, want))
	}
	if n := dev.CountFrames(protocol.CmdEnterProgMode); n != 0 {
		t.Errorf("ENTER_PROGMODE sent %d times, want 0", n)
	}
	if dev.Closes != 1 {
		t.Errorf("Closes = %d, want 1", dev.Closes)
	}

	if _, err := newTestProgrammer(t, dev).Load(context.Background(), nil, 0); err == nil {
		t.Error("Load() with empty buffer expected error")
	}
}
