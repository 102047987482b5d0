package app

import (
	"os"
	"sync"
)

// TestModeEnv disables process startup when set to "1". The testing helper
// package sets it for every test binary.
const TestModeEnv = "ARTICLEGEN_TEST_MODE"

var testMode = sync.OnceValue(func() bool {
	return os.Getenv(TestModeEnv) == "1"
})

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	return testMode()
}
