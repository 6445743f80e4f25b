package ihex

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/marcinbor85/gohex"
)

// ErrNoData is returned for input that parses but carries no data records.
var ErrNoData = errors.New("no data records")

// Handler receives the data of a parsed image.
type Handler interface {
	// Chunk is called for each data record, in address order. Contiguous data is
	// delivered in pieces of at most RecordLength bytes.
	Chunk(address uint32, data []byte)

	// End is called once after the last chunk.
	End()
}

// Segment is a contiguous run of bytes at a byte address.
type Segment struct {
	Address uint32
	Data    []byte
}

// Image is a parsed Intel HEX file.
type Image struct {
	// Segments holds the data in address order
	Segments []Segment

	// StartAddress is the entry point from a start address record, if HasStart
	StartAddress uint32
	HasStart     bool
}

// Size returns the number of data bytes in the image.
func (img *Image) Size() int {
	n := 0
	for _, seg := range img.Segments {
		n += len(seg.Data)
	}
	return n
}

// Bounds returns the lowest address and the first address past the highest byte.
func (img *Image) Bounds() (low, high uint32) {
	for i, seg := range img.Segments {
		end := seg.Address + uint32(len(seg.Data))
		if i == 0 || seg.Address < low {
			low = seg.Address
		}
		if end > high {
			high = end
		}
	}
	return low, high
}

// Replay feeds the image to h one record at a time. The parser joins adjacent
// records into segments, so each segment is cut back into RecordLength pieces.
func (img *Image) Replay(h Handler) {
	for _, seg := range img.Segments {
		for off := 0; off < len(seg.Data); off += RecordLength {
			end := min(off+RecordLength, len(seg.Data))
			h.Chunk(seg.Address+uint32(off), seg.Data[off:end])
		}
	}
	h.End()
}

// Parse parses the Intel HEX file at path and feeds it to h.
//
// Example:
//
//	merger := bootloader.NewSectionMerger(128)
//	err := ihex.Parse("blink.hex", merger)
func Parse(path string, h Handler) error {
	img, err := ReadImage(path)
	if err != nil {
		return err
	}
	img.Replay(h)
	return nil
}

// ParseReader parses Intel HEX from any io.Reader and feeds it to h.
func ParseReader(r io.Reader, h Handler) error {
	img, err := ReadImageFrom(r)
	if err != nil {
		return err
	}
	img.Replay(h)
	return nil
}

// ReadImage parses the Intel HEX file at path.
func ReadImage(path string) (*Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	img, err := ReadImageFrom(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// ReadImageFrom parses Intel HEX from r. Input without data records fails with ErrNoData.
func ReadImageFrom(r io.Reader) (*Image, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, fmt.Errorf("failed to parse intel hex: %w", err)
	}

	img := &Image{}
	for _, seg := range mem.GetDataSegments() {
		if len(seg.Data) == 0 {
			continue
		}
		img.Segments = append(img.Segments, Segment{
			Address: seg.Address,
			Data:    append([]byte(nil), seg.Data...),
		})
	}
	if len(img.Segments) == 0 {
		return nil, ErrNoData
	}

	img.StartAddress, img.HasStart = mem.GetStartAddress()
	return img, nil
}
