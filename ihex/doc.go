// Package ihex reads and writes Intel HEX firmware images.
//
// Parsing is done by github.com/marcinbor85/gohex, which merges adjacent records into
// contiguous data segments. Consumers receive the segments in address order through the
// Handler interface, the same way a streaming parser would hand them out:
//
//	merger := bootloader.NewSectionMerger(128)
//	if err := ihex.Parse("firmware.hex", merger); err != nil {
//	    log.Fatal(err)
//	}
//
// ReadImage returns the whole image for inspection, and Write dumps a memory buffer
// back to Intel HEX.
package ihex
