package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moffa90/go-stk500/bootloader"
)

func runUpload(cmd *cobra.Command, g *globalFlags, path string) error {
	cfg, err := g.resolve(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(cmd, cfg)

	sections, err := loadSections(path, cfg.PageSize)
	if err != nil {
		return err
	}

	port, err := openTransport(cfg)
	if err != nil {
		return err
	}

	bar := newProgressBar(cmd.OutOrStdout(), 40)
	opts := append(programmerOptions(cfg, logger), bootloader.WithProgressCallback(bar.update))
	prog := bootloader.New(port, opts...)

	if err := prog.Upload(cmd.Context(), sections); err != nil {
		return fmt.Errorf("upload %s: %w", path, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %d sections uploaded to %s\n", path, len(sections), port.Name())
	return nil
}

func newVerifyCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <firmware.hex>",
		Short: "Compare flash contents with a hex file without writing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := g.resolve(cmd)
			if err != nil {
				return err
			}

			sections, err := loadSections(args[0], cfg.PageSize)
			if err != nil {
				return err
			}

			port, err := openTransport(cfg)
			if err != nil {
				return err
			}

			bar := newProgressBar(cmd.OutOrStdout(), 40)
			opts := append(programmerOptions(cfg, newLogger(cmd, cfg)), bootloader.WithProgressCallback(bar.update))
			if err := bootloader.New(port, opts...).Verify(cmd.Context(), sections); err != nil {
				return fmt.Errorf("verify %s: %w", args[0], err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: flash matches\n", args[0])
			return nil
		},
	}
}
