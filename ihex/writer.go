package ihex

import (
	"fmt"
	"io"

	"github.com/marcinbor85/gohex"
)

// RecordLength is the number of data bytes per record written by Write.
const RecordLength = 16

// Write dumps data, located at address, to w as Intel HEX.
func Write(w io.Writer, address uint32, data []byte) error {
	mem := gohex.NewMemory()
	if err := mem.AddBinary(address, data); err != nil {
		return fmt.Errorf("add segment at 0x%04X: %w", address, err)
	}
	if err := mem.DumpIntelHex(w, RecordLength); err != nil {
		return fmt.Errorf("write intel hex: %w", err)
	}
	return nil
}
