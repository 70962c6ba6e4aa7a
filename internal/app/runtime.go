package app

import (
	"os"
	"strconv"
	"strings"
	"sync/atomic"
)

// TestModeEnv switches the binaries into test mode, where main returns before touching storage.
const TestModeEnv = "STOCKSCAN_TEST_MODE"

var testMode atomic.Pointer[bool]

// InTestMode reports whether TestModeEnv holds a true value ("1", "true", ...). The first call
// caches the result.
func InTestMode() bool {
	if on := testMode.Load(); on != nil {
		return *on
	}
	return RefreshTestMode()
}

// RefreshTestMode re-reads TestModeEnv and returns the new value.
func RefreshTestMode() bool {
	on, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(TestModeEnv)))
	if err != nil {
		on = false
	}
	testMode.Store(&on)
	return on
}
