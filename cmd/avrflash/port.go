package main

import (
	"fmt"

	"github.com/moffa90/go-stk500/internal/config"
	"github.com/moffa90/go-stk500/transport"
)

// openTransport builds the transport selected by cfg. Nothing is opened yet.
func openTransport(cfg config.Config) (transport.Transport, error) {
	if cfg.IsLoopback() {
		return transport.NewLoopback(0), nil
	}

	var reset transport.Resetter
	switch cfg.Reset {
	case config.ResetDTR:
		reset = transport.NewDTRReset()
	case config.ResetNone:
		reset = transport.NoReset{}
	case config.ResetGPIO:
		r, err := transport.NewGPIOReset(cfg.ResetPin)
		if err != nil {
			return nil, err
		}
		reset = r
	default:
		return nil, fmt.Errorf("unsupported reset mode %q", cfg.Reset)
	}

	return transport.NewSerial(transport.SerialConfig{
		Port:         cfg.Port,
		BaudRate:     cfg.Baud,
		ReadTimeout:  cfg.ReadTimeout,
		DrainTimeout: cfg.DrainTimeout,
		Reset:        reset,
	}), nil
}
