package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-stk500/bootloader"
	"github.com/moffa90/go-stk500/ihex"
)

func newInfoCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "info <firmware.hex>",
		Short: "Show the sections an upload of a hex file would write",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.resolve(cmd)
			if err != nil {
				return err
			}

			img, err := ihex.ReadImage(args[0])
			if err != nil {
				return err
			}

			merger := bootloader.NewSectionMerger(cfg.PageSize)
			img.Replay(merger)
			sections := merger.Sections()

			out := cmd.OutOrStdout()
			low, high := img.Bounds()
			fmt.Fprintf(out, "File:     %s\n", args[0])
			fmt.Fprintf(out, "Bytes:    %d\n", img.Size())
			fmt.Fprintf(out, "Range:    0x%04X-0x%04X\n", low, high)
			if img.HasStart {
				fmt.Fprintf(out, "Start:    0x%04X\n", img.StartAddress)
			}
			fmt.Fprintf(out, "Sections: %d (page size %d)\n", len(sections), cfg.PageSize)
			for i, sec := range sections {
				fmt.Fprintf(out, "  %3d  0x%04X-0x%04X  %5d bytes\n", i, sec.Address, sec.End(), len(sec.Content))
			}
			return nil
		},
	}
}
