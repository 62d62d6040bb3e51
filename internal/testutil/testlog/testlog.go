// Package testlog routes photon's component loggers through the test profile
// and brackets each test with start/finish lines.
package testlog

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/danmuck/photon/internal/logging"
)

// Start configures test logging and returns a logger tagged with the test
// name. The finish line reports elapsed time and whether the test failed.
func Start(t testing.TB) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	l := logging.Component("test").With().Str("test", t.Name()).Logger()
	start := time.Now()
	l.Debug().Msg("start")
	t.Cleanup(func() {
		l.Debug().Bool("failed", t.Failed()).Dur("elapsed", time.Since(start)).Msg("finish")
	})
	return l
}
