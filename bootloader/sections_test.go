package bootloader

import (
	"bytes"
	"context"
	"testing"

	"github.com/moffa90/go-stk500/ihex"
	"github.com/moffa90/go-stk500/transport"
)

type chunk struct {
	addr uint32
	data []byte
}

func TestSectionMerger(t *testing.T) {
	tests := []struct {
		name     string
		pageSize int
		chunks   []chunk
		want     []Section
	}{
		{
			name:     "contiguous chunks merge",
			pageSize: 128,
			chunks: []chunk{
				{0x00, []byte{1, 2}},
				{0x02, []byte{3, 4}},
				{0x04, []byte{5}},
			},
			want: []Section{{0x00, []byte{1, 2, 3, 4, 5}}},
		},
		{
			name:     "gap starts a new section",
			pageSize: 128,
			chunks: []chunk{
				{0x00, []byte{1, 2}},
				{0x10, []byte{3, 4}},
			},
			want: []Section{
				{0x00, []byte{1, 2}},
				{0x10, []byte{3, 4}},
			},
		},
		{
			name:     "overlap starts a new section",
			pageSize: 128,
			chunks: []chunk{
				{0x00, []byte{1, 2, 3}},
				{0x02, []byte{9}},
			},
			want: []Section{
				{0x00, []byte{1, 2, 3}},
				{0x02, []byte{9}},
			},
		},
		{
			name:     "full page stops merging",
			pageSize: 4,
			chunks: []chunk{
				{0x00, []byte{1, 2}},
				{0x02, []byte{3, 4}},
				{0x04, []byte{5, 6}},
			},
			want: []Section{
				{0x00, []byte{1, 2, 3, 4}},
				{0x04, []byte{5, 6}},
			},
		},
		{
			name:     "section may exceed a page by its last chunk",
			pageSize: 4,
			chunks: []chunk{
				{0x00, []byte{1, 2, 3}},
				{0x03, []byte{4, 5, 6}},
				{0x06, []byte{7}},
			},
			want: []Section{
				{0x00, []byte{1, 2, 3, 4, 5, 6}},
				{0x06, []byte{7}},
			},
		},
		{
			name:     "empty chunks ignored",
			pageSize: 128,
			chunks: []chunk{
				{0x00, nil},
				{0x00, []byte{1}},
				{0x01, []byte{}},
				{0x01, []byte{2}},
			},
			want: []Section{{0x00, []byte{1, 2}}},
		},
		{
			name:     "no chunks",
			pageSize: 128,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewSectionMerger(tt.pageSize)
			for _, c := range tt.chunks {
				m.Chunk(c.addr, c.data)
			}
			m.End()

			got := m.Sections()
			if len(got) != len(tt.want) {
				t.Fatalf("got %d sections, want %d: %+v", len(got), len(tt.want), got)
			}
			for i := range tt.want {
				if got[i].Address != tt.want[i].Address {
					t.Errorf("section %d address = 0x%04X, want 0x%04X", i, got[i].Address, tt.want[i].Address)
				}
				if !bytes.Equal(got[i].Content, tt.want[i].Content) {
					t.Errorf("section %d content = %v, want %v", i, got[i].Content, tt.want[i].Content)
				}
			}
		})
	}
}

func TestSectionMerger_CopiesChunks(t *testing.T) {
	m := NewSectionMerger(128)
	data := []byte{1, 2, 3}

	m.Chunk(0x100, data)
	data[0] = 0xEE
	m.End()

	if got := m.Sections()[0].Content[0]; got != 1 {
		t.Errorf("section byte 0 = 0x%02X, want 0x01 (caller buffer aliased)", got)
	}
}

func TestSectionMerger_EndIsIdempotent(t *testing.T) {
	m := NewSectionMerger(0)
	m.Chunk(0, []byte{1})
	m.End()
	m.End()

	if n := len(m.Sections()); n != 1 {
		t.Errorf("got %d sections, want 1", n)
	}
}

func TestSection_End(t *testing.T) {
	s := Section{Address: 0x7E00, Content: make([]byte, 0x200)}
	if s.End() != 0x8000 {
		t.Errorf("End() = 0x%04X, want 0x8000", s.End())
	}
}

func TestSectionMerger_FromIntelHex(t *testing.T) {
	tests := []struct {
		name    string
		address uint32
		size    int
		want    []Section
	}{
		{
			name:    "whole pages",
			address: 0x0000,
			size:    512,
			want: []Section{
				{0x0000, pattern(512)[0:128]},
				{0x0080, pattern(512)[128:256]},
				{0x0100, pattern(512)[256:384]},
				{0x0180, pattern(512)[384:512]},
			},
		},
		{
			name:    "unaligned tail",
			address: 0x0010,
			size:    300,
			want: []Section{
				{0x0010, pattern(300)[0:128]},
				{0x0090, pattern(300)[128:256]},
				{0x0110, pattern(300)[256:300]},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := ihex.Write(&buf, tt.address, pattern(tt.size)); err != nil {
				t.Fatalf("ihex.Write() failed: %v", err)
			}

			m := NewSectionMerger(128)
			if err := ihex.ParseReader(&buf, m); err != nil {
				t.Fatalf("ihex.ParseReader() failed: %v", err)
			}
			got := m.Sections()

			if len(got) != len(tt.want) {
				t.Fatalf("got %d sections, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i].Address != tt.want[i].Address || !bytes.Equal(got[i].Content, tt.want[i].Content) {
					t.Errorf("section %d = 0x%04X len %d, want 0x%04X len %d",
						i, got[i].Address, len(got[i].Content), tt.want[i].Address, len(tt.want[i].Content))
				}
			}

			dev := transport.NewLoopback(0)
			events := 0
			prog := newTestProgrammer(t, dev, WithProgressCallback(func(Progress) { events++ }))
			if err := prog.Upload(context.Background(), got); err != nil {
				t.Fatalf("Upload() failed: %v", err)
			}
			// one event per section per pass
			if events != 2*len(tt.want) {
				t.Errorf("got %d progress events, want %d", events, 2*len(tt.want))
			}
		})
	}
}
