package bootloader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/moffa90/go-stk500/transport"
)

// Programmer orchestrates firmware uploads to an optiboot bootloader. Every call
// opens its own Session on the transport and closes it before returning.
//
// Programmer is not safe for concurrent use; one transport carries one session at a time.
type Programmer struct {
	port   transport.Transport
	config Config
}

// New creates a new Programmer with the given transport and options.
//
// Example:
//
//	port := transport.NewSerial(transport.SerialConfig{Port: "/dev/ttyUSB0"})
//	prog := bootloader.New(port,
//	    bootloader.WithProgressCallback(progressFunc),
//	    bootloader.WithPageSize(128),
//	)
func New(port transport.Transport, opts ...Option) *Programmer {
	if port == nil {
		panic("transport cannot be nil")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Programmer{port: port, config: cfg}
}

// Upload writes every section to flash and, unless verification is disabled,
// reads each one back and compares it:
//  1. Open the session and synchronize
//  2. Enter programming mode
//  3. Write every section, page by page
//  4. Read every section back; the first differing byte fails with a VerificationError
//
// The first error aborts the upload. The session is closed on every path.
//
// Example:
//
//	merger := bootloader.NewSectionMerger(128)
//	if err := ihex.Parse("firmware.hex", merger); err != nil {
//	    log.Fatal(err)
//	}
//	err := prog.Upload(ctx, merger.Sections())
func (p *Programmer) Upload(ctx context.Context, sections []Section) error {
	total, err := sectionBytes(sections)
	if err != nil {
		return err
	}
	if p.config.Verify {
		total *= 2
	}

	sess, err := p.open(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	if err := sess.ProgramEnable(ctx); err != nil {
		return fmt.Errorf("enter programming mode: %w", err)
	}

	tr := p.newTracker(len(sections), total)

	p.config.Logger.Info().
		Int("sections", len(sections)).
		Uint64("bytes", sectionTotal(sections)).
		Msg("writing")

	for i, sec := range sections {
		n, err := sess.PagedWrite(ctx, sec.Content, p.config.PageSize, sec.Address, 0, len(sec.Content))
		if err != nil {
			p.config.Logger.Error().Err(err).Uint32("address", sec.Address).Msg("write failed")
			return fmt.Errorf("write section at 0x%04X: %w", sec.Address, err)
		}
		tr.advance(PhaseWriting, i+1, n)
	}

	if err := sess.LeaveProgMode(ctx); err != nil {
		return err
	}

	if p.config.Verify {
		if err := p.verify(ctx, sess, sections, tr); err != nil {
			return err
		}
	}

	p.config.Logger.Info().
		Int("sections", len(sections)).
		Dur("elapsed", time.Since(tr.start)).
		Msg("upload complete")
	return nil
}

// UploadBinary uploads a single memory image starting at address.
func (p *Programmer) UploadBinary(ctx context.Context, data []byte, address uint32) error {
	return p.Upload(ctx, []Section{{Address: address, Content: data}})
}

// Verify reads every section back and compares it without writing anything.
// Progress counts a single pass.
func (p *Programmer) Verify(ctx context.Context, sections []Section) error {
	total, err := sectionBytes(sections)
	if err != nil {
		return err
	}

	sess, err := p.open(ctx)
	if err != nil {
		return err
	}
	defer sess.Close()

	return p.verify(ctx, sess, sections, p.newTracker(len(sections), total))
}

// Load reads len(mem) bytes of flash starting at address into mem and returns the
// number of bytes read.
func (p *Programmer) Load(ctx context.Context, mem []byte, address uint32) (int, error) {
	if len(mem) == 0 {
		return 0, errors.New("load buffer is empty")
	}

	sess, err := p.open(ctx)
	if err != nil {
		return 0, err
	}
	defer sess.Close()

	n, err := sess.PagedLoad(ctx, mem, p.config.PageSize, address, 0, len(mem))
	if err != nil {
		return n, fmt.Errorf("load page at 0x%04X: %w", address, err)
	}
	return n, nil
}

func (p *Programmer) open(ctx context.Context) (*Session, error) {
	sess := &Session{port: p.port, config: p.config}
	if err := sess.Open(ctx); err != nil {
		p.config.Logger.Error().Err(err).Str("port", p.port.Name()).Msg("open failed")
		return nil, fmt.Errorf("open session: %w", err)
	}
	return sess, nil
}

// verify reads each section back and compares it before touching the next one.
func (p *Programmer) verify(ctx context.Context, sess *Session, sections []Section, tr *tracker) error {
	p.config.Logger.Info().Int("sections", len(sections)).Msg("verifying")

	for i, sec := range sections {
		buf := make([]byte, len(sec.Content))
		n, err := sess.PagedLoad(ctx, buf, p.config.PageSize, sec.Address, 0, len(buf))
		if err != nil {
			p.config.Logger.Error().Err(err).Uint32("address", sec.Address).Msg("read back failed")
			return fmt.Errorf("load page at 0x%04X: %w", sec.Address, err)
		}

		for j := range buf {
			if buf[j] != sec.Content[j] {
				return &VerificationError{
					Address:  sec.Address + uint32(j),
					Expected: sec.Content[j],
					Actual:   buf[j],
				}
			}
		}
		tr.advance(PhaseVerifying, i+1, n)
	}
	return nil
}

// sectionBytes validates sections and returns their total size.
func sectionBytes(sections []Section) (uint64, error) {
	if len(sections) == 0 {
		return 0, errors.New("no sections to upload")
	}
	for i, sec := range sections {
		if len(sec.Content) == 0 {
			return 0, fmt.Errorf("section %d at 0x%04X is empty", i, sec.Address)
		}
	}
	return sectionTotal(sections), nil
}

func sectionTotal(sections []Section) uint64 {
	var total uint64
	for _, sec := range sections {
		total += uint64(len(sec.Content))
	}
	return total
}

// tracker accumulates progress across both passes of an upload.
type tracker struct {
	cb       ProgressCallback
	sections int
	done     uint64
	total    uint64
	start    time.Time
}

func (p *Programmer) newTracker(sections int, total uint64) *tracker {
	return &tracker{
		cb:       p.config.ProgressCallback,
		sections: sections,
		total:    total,
		start:    time.Now(),
	}
}

func (t *tracker) advance(phase string, section, n int) {
	t.done += uint64(n)
	if t.cb == nil {
		return
	}
	t.cb(Progress{
		Phase:       phase,
		Section:     section,
		Sections:    t.sections,
		Done:        t.done,
		Total:       t.total,
		Percentage:  int(t.done * 100 / t.total),
		ElapsedTime: time.Since(t.start),
	})
}
