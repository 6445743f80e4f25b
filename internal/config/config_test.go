package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "avrflash.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Port != "/dev/ttyUSB1" || cfg.Baud != 115200 || cfg.PageSize != 128 {
		t.Errorf("Default() = %+v", cfg)
	}
	if cfg.Reset != ResetDTR || !cfg.Verify {
		t.Errorf("Default() reset/verify = %s/%v", cfg.Reset, cfg.Verify)
	}
	if cfg.SyncAttempts != 10 || cfg.ResyncAttempts != 33 {
		t.Errorf("Default() attempts = %d/%d, want 10/33", cfg.SyncAttempts, cfg.ResyncAttempts)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Default().Validate() = %v", err)
	}
}

func TestLoad_Overlay(t *testing.T) {
	path := writeConfig(t, `
port = "/dev/ttyACM0"
page_size = 256
verify = false
read_timeout = "2s"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Port != "/dev/ttyACM0" || cfg.PageSize != 256 || cfg.Verify {
		t.Errorf("Load() = %+v", cfg)
	}
	if cfg.ReadTimeout != 2*time.Second {
		t.Errorf("ReadTimeout = %v, want 2s", cfg.ReadTimeout)
	}
	// untouched keys keep their defaults
	if cfg.Baud != 115200 || cfg.DrainTimeout != 250*time.Millisecond || cfg.Reset != ResetDTR {
		t.Errorf("defaults lost: %+v", cfg)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{"bad toml", `port = `, "load config"},
		{"unknown key", `speed = 9600`, "unknown key"},
		{"bad duration", `drain_timeout = "soon"`, "drain_timeout"},
		{"page too large", `page_size = 512`, "page_size"},
		{"gpio without pin", `reset = "gpio"`, "reset_pin"},
		{"unknown reset", `reset = "rts"`, "unsupported reset mode"},
		{"bad level", `log_level = "loud"`, "log_level"},
		{"empty port", `port = " "`, "port is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "none.toml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoad_GPIOReset(t *testing.T) {
	cfg, err := Load(writeConfig(t, "reset = \"GPIO\"\nreset_pin = \"GPIO17\"\n"))
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Reset != ResetGPIO || cfg.ResetPin != "GPIO17" {
		t.Errorf("reset = %s/%s", cfg.Reset, cfg.ResetPin)
	}
}

func TestIsLoopback(t *testing.T) {
	cfg := Default()
	if cfg.IsLoopback() {
		t.Error("default port reported as loopback")
	}
	cfg.Port = LoopbackPort
	if !cfg.IsLoopback() {
		t.Error("loopback port not detected")
	}
}
