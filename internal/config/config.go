package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/moffa90/go-stk500/internal/logging"
	"github.com/moffa90/go-stk500/protocol"
	"github.com/moffa90/go-stk500/transport"
)

// DefaultPath is the configuration file read when --config is not given.
const DefaultPath = "avrflash.toml"

// LoopbackPort selects the in-memory simulated bootloader instead of a serial port.
const LoopbackPort = "loopback"

// Reset modes.
const (
	ResetDTR  = "dtr"
	ResetGPIO = "gpio"
	ResetNone = "none"
)

// Config is the resolved avrflash configuration.
type Config struct {
	Port           string
	Baud           int
	PageSize       int
	Reset          string
	ResetPin       string
	ReadTimeout    time.Duration
	DrainTimeout   time.Duration
	SyncAttempts   int
	ResyncAttempts int
	Verify         bool
	LogLevel       string
}

// avrflash.toml key mapping.
type fileConfig struct {
	Port           string `toml:"port"`
	Baud           int    `toml:"baud"`
	PageSize       int    `toml:"page_size"`
	Reset          string `toml:"reset"`
	ResetPin       string `toml:"reset_pin"`
	ReadTimeout    string `toml:"read_timeout"`
	DrainTimeout   string `toml:"drain_timeout"`
	SyncAttempts   int    `toml:"sync_attempts"`
	ResyncAttempts int    `toml:"resync_attempts"`
	Verify         bool   `toml:"verify"`
	LogLevel       string `toml:"log_level"`
}

// Default returns the settings of an Arduino-style board on the first USB serial adapter.
func Default() Config {
	return Config{
		Port:           "/dev/ttyUSB1",
		Baud:           transport.DefaultBaudRate,
		PageSize:       128,
		Reset:          ResetDTR,
		ReadTimeout:    transport.DefaultReadTimeout,
		DrainTimeout:   transport.DefaultDrainTimeout,
		SyncAttempts:   protocol.MaxSyncAttempts,
		ResyncAttempts: protocol.MaxResyncAttempts,
		Verify:         true,
		LogLevel:       "info",
	}
}

// Load reads path and overlays the keys it defines on Default.
func Load(path string) (Config, error) {
	cfg := Default()

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: unknown key %q", undecoded[0].String())
	}

	if meta.IsDefined("port") {
		cfg.Port = strings.TrimSpace(raw.Port)
	}
	if meta.IsDefined("baud") {
		cfg.Baud = raw.Baud
	}
	if meta.IsDefined("page_size") {
		cfg.PageSize = raw.PageSize
	}
	if meta.IsDefined("reset") {
		cfg.Reset = strings.ToLower(strings.TrimSpace(raw.Reset))
	}
	if meta.IsDefined("reset_pin") {
		cfg.ResetPin = strings.TrimSpace(raw.ResetPin)
	}
	if meta.IsDefined("read_timeout") {
		if cfg.ReadTimeout, err = parseDuration("read_timeout", raw.ReadTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("drain_timeout") {
		if cfg.DrainTimeout, err = parseDuration("drain_timeout", raw.DrainTimeout); err != nil {
			return Config{}, err
		}
	}
	if meta.IsDefined("sync_attempts") {
		cfg.SyncAttempts = raw.SyncAttempts
	}
	if meta.IsDefined("resync_attempts") {
		cfg.ResyncAttempts = raw.ResyncAttempts
	}
	if meta.IsDefined("verify") {
		cfg.Verify = raw.Verify
	}
	if meta.IsDefined("log_level") {
		cfg.LogLevel = strings.TrimSpace(raw.LogLevel)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("load config: %s: %w", key, err)
	}
	return d, nil
}

// Validate checks ranges and combinations.
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("port is required")
	}
	if c.Baud <= 0 {
		return fmt.Errorf("baud must be positive, got %d", c.Baud)
	}
	if c.PageSize <= 0 || c.PageSize > protocol.MaxBlockSize {
		return fmt.Errorf("page_size must be 1-%d, got %d", protocol.MaxBlockSize, c.PageSize)
	}
	switch c.Reset {
	case ResetDTR, ResetNone:
	case ResetGPIO:
		if c.ResetPin == "" {
			return fmt.Errorf("reset_pin is required when reset = %q", ResetGPIO)
		}
	default:
		return fmt.Errorf("unsupported reset mode %q (expected dtr, gpio or none)", c.Reset)
	}
	if c.ReadTimeout <= 0 || c.DrainTimeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if c.SyncAttempts <= 0 {
		return fmt.Errorf("sync_attempts must be positive, got %d", c.SyncAttempts)
	}
	if c.ResyncAttempts < 0 {
		return fmt.Errorf("resync_attempts must not be negative, got %d", c.ResyncAttempts)
	}
	if _, ok := logging.ParseLevel(c.LogLevel); !ok {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}

// IsLoopback reports whether the simulated bootloader is selected.
func (c Config) IsLoopback() bool {
	return c.Port == LoopbackPort
}
