package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-stk500/bootloader"
	"github.com/moffa90/go-stk500/ihex"
)

func newReadCmd(g *globalFlags) *cobra.Command {
	var (
		address string
		length  int
		output  string
	)

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read flash back and dump it as Intel HEX",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.resolve(cmd)
			if err != nil {
				return err
			}

			addr, err := strconv.ParseUint(address, 0, 32)
			if err != nil {
				return fmt.Errorf("invalid address %q: %w", address, err)
			}
			if length <= 0 {
				return fmt.Errorf("length must be positive, got %d", length)
			}

			port, err := openTransport(cfg)
			if err != nil {
				return err
			}

			mem := make([]byte, length)
			prog := bootloader.New(port, programmerOptions(cfg, newLogger(cmd, cfg))...)
			if _, err := prog.Load(cmd.Context(), mem, uint32(addr)); err != nil {
				return err
			}

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			return ihex.Write(w, uint32(addr), mem)
		},
	}

	cmd.Flags().StringVarP(&address, "address", "a", "0", "byte address to start reading at")
	cmd.Flags().IntVarP(&length, "length", "n", 1024, "number of bytes to read")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write Intel HEX to this file instead of stdout")
	return cmd
}
