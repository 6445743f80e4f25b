package testlog

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/moffa90/go-stk500/internal/logging"
)

// New returns a debug-level logger that writes through t.Log, so output only shows
// for failing tests or with -v.
func New(t *testing.T) zerolog.Logger {
	t.Helper()
	cfg := logging.DefaultConfig(logging.ProfileTest)
	return zerolog.New(zerolog.NewTestWriter(t)).
		Level(cfg.Level).
		With().
		Str("test", t.Name()).
		Logger()
}
