// Command avrflash uploads Intel HEX firmware to AVR boards running optiboot.
//
// Usage:
//
//	avrflash [flags] <firmware.hex>        upload and verify
//	avrflash read --address 0x7C00 --length 1024 [-o boot.hex]
//	avrflash verify <firmware.hex>
//	avrflash info <firmware.hex>
//	avrflash ports
//
// Settings come from flags, then avrflash.toml (or --config), then built-in defaults.
// --port loopback runs against a simulated bootloader.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/moffa90/go-stk500/bootloader"
	"github.com/moffa90/go-stk500/protocol"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "avrflash: %v\n", err)
		if h := hint(err); h != "" {
			fmt.Fprintf(os.Stderr, "avrflash: %s\n", h)
		}
		stop()
		os.Exit(1)
	}
}

// hint suggests what to do about a failed run, or returns "".
func hint(err error) string {
	if bootloader.IsRetryable(err) {
		return "lost sync with the bootloader; check the port and reset wiring, then retry"
	}
	var pe *protocol.ProtocolError
	if errors.As(err, &pe) && pe.DeviceReported() {
		return fmt.Sprintf("the bootloader refused %s; check the board type and page size", pe.Operation)
	}
	return ""
}
