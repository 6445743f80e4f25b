package transport

import (
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"
)

var (
	hostMu    sync.Mutex
	hostReady bool

	// hostInit loads the periph drivers.
	hostInit = func() error {
		_, err := host.Init()
		return err
	}
)

// initHost runs hostInit until it succeeds once.
func initHost() error {
	hostMu.Lock()
	defer hostMu.Unlock()

	if hostReady {
		return nil
	}
	if err := hostInit(); err != nil {
		return fmt.Errorf("host initialization failed: %w", err)
	}
	hostReady = true
	return nil
}

// GPIOReset drives the target's RESET pin from a host GPIO, for boards wired to a
// Raspberry Pi header or similar instead of a USB serial adapter's DTR line.
// RESET is active low.
type GPIOReset struct {
	Pin    gpio.PinIO
	Low    time.Duration
	Settle time.Duration
}

// NewGPIOReset looks up a GPIO pin by name (e.g. "GPIO17") in the periph registry.
func NewGPIOReset(name string) (*GPIOReset, error) {
	if err := initHost(); err != nil {
		return nil, err
	}

	pin := gpioreg.ByName(name)
	if pin == nil {
		return nil, fmt.Errorf("gpio pin %q not found", name)
	}

	return &GPIOReset{Pin: pin, Low: DefaultResetLow, Settle: DefaultResetSettle}, nil
}

func (r *GPIOReset) Reset(serial.Port) error {
	if err := r.Pin.Out(gpio.Low); err != nil {
		return fmt.Errorf("assert reset on %s: %w", r.Pin, err)
	}
	time.Sleep(r.Low)

	if err := r.Pin.Out(gpio.High); err != nil {
		return fmt.Errorf("release reset on %s: %w", r.Pin, err)
	}
	time.Sleep(r.Settle)
	return nil
}

// Release leaves RESET high so the freshly flashed application keeps running.
func (r *GPIOReset) Release(serial.Port) error {
	return r.Pin.Out(gpio.High)
}
