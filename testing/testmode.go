// Package testing is blank-imported by test packages that build the HTTP stack or the
// binaries. Importing it sets STOCKSCAN_TEST_MODE=1 unless the caller already chose a value,
// so cmd/stockscan and cmd/worker return before opening storage.
package testing

import "os"

const testModeEnv = "STOCKSCAN_TEST_MODE"

func init() {
	if _, ok := os.LookupEnv(testModeEnv); !ok {
		_ = os.Setenv(testModeEnv, "1")
	}
}
