package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/moffa90/go-stk500/bootloader"
	"github.com/moffa90/go-stk500/ihex"
	"github.com/moffa90/go-stk500/internal/config"
	"github.com/moffa90/go-stk500/internal/logging"
)

// flags shared by every subcommand
type globalFlags struct {
	configPath string
	port       string
	baud       int
	pageSize   int
	reset      string
	resetPin   string
	logLevel   string
	noVerify   bool
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	cmd := &cobra.Command{
		Use:           "avrflash [flags] <firmware.hex>",
		Short:         "Upload firmware to AVR boards running optiboot",
		Long:          "Uploads an Intel HEX file over the STK500 protocol spoken by optiboot, then reads it back and verifies it.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, g, args[0])
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "configuration file (default "+config.DefaultPath+" if present)")
	pf.StringVarP(&g.port, "port", "P", "", "serial port, or \"loopback\" for a simulated bootloader")
	pf.IntVarP(&g.baud, "baud", "b", 0, "baud rate")
	pf.IntVar(&g.pageSize, "page-size", 0, "flash page size in bytes")
	pf.StringVar(&g.reset, "reset", "", "reset method: dtr, gpio or none")
	pf.StringVar(&g.resetPin, "reset-pin", "", "GPIO pin driving RESET when --reset gpio (e.g. GPIO17)")
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn, error or off")
	cmd.Flags().BoolVar(&g.noVerify, "no-verify", false, "skip reading the firmware back")

	cmd.AddCommand(
		newReadCmd(g),
		newVerifyCmd(g),
		newInfoCmd(g),
		newPortsCmd(),
	)
	return cmd
}

// resolve merges defaults, the configuration file and the flags the user set.
func (g *globalFlags) resolve(cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()

	path := g.configPath
	if path == "" {
		if _, err := os.Stat(config.DefaultPath); err == nil {
			path = config.DefaultPath
		} else if !errors.Is(err, fs.ErrNotExist) {
			return config.Config{}, err
		}
	}
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = g.port
	}
	if flags.Changed("baud") {
		cfg.Baud = g.baud
	}
	if flags.Changed("page-size") {
		cfg.PageSize = g.pageSize
	}
	if flags.Changed("reset") {
		cfg.Reset = g.reset
	}
	if flags.Changed("reset-pin") {
		cfg.ResetPin = g.resetPin
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = g.logLevel
	}
	if flags.Lookup("no-verify") != nil && flags.Changed("no-verify") {
		cfg.Verify = !g.noVerify
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg config.Config) zerolog.Logger {
	return logging.New(cmd.ErrOrStderr(), logging.ProfileRuntime, cfg.LogLevel)
}

// programmerOptions maps the configuration onto bootloader options.
func programmerOptions(cfg config.Config, logger zerolog.Logger) []bootloader.Option {
	return []bootloader.Option{
		bootloader.WithBaud(cfg.Baud),
		bootloader.WithPageSize(cfg.PageSize),
		bootloader.WithSyncAttempts(cfg.SyncAttempts),
		bootloader.WithResyncAttempts(cfg.ResyncAttempts),
		bootloader.WithVerify(cfg.Verify),
		bootloader.WithLogger(logger),
	}
}

// loadSections parses a hex file into upload sections.
func loadSections(path string, pageSize int) ([]bootloader.Section, error) {
	merger := bootloader.NewSectionMerger(pageSize)
	if err := ihex.Parse(path, merger); err != nil {
		return nil, fmt.Errorf("parse firmware: %w", err)
	}
	return merger.Sections(), nil
}
