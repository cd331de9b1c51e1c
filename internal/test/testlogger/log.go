// Package testlogger builds loggers for tests.
package testlogger

import (
	"os"
	"testing"

	"github.com/drand/stepout/common/log"
)

// Level is the debug level when STEPOUT_TEST_LOGS=DEBUG and info otherwise.
func Level(t testing.TB) int {
	if lvl, ok := os.LookupEnv("STEPOUT_TEST_LOGS"); ok && lvl == "DEBUG" {
		t.Log("Enabling DebugLevel logs")
		return log.DebugLevel
	}
	return log.InfoLevel
}

// New returns a JSON logger tagged with the test name.
func New(t testing.TB) log.Logger {
	return log.New(nil, Level(t), true).With("testName", t.Name())
}
