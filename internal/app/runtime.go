package app

import (
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// INVOX_TEST_MODE disables side effects such as Gotenberg health probes and
// bucket creation at start-up.
const testModeEnv = "INVOX_TEST_MODE"

var (
	testModeFlag atomic.Bool
	testModeOnce sync.Once
)

func detectTestMode() {
	testModeFlag.Store(parseFlag(os.Getenv(testModeEnv)))
}

func parseFlag(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// InTestMode reports whether the application should skip runtime side effects.
func InTestMode() bool {
	testModeOnce.Do(detectTestMode)
	return testModeFlag.Load()
}

// RefreshTestMode re-reads the environment after it changed.
func RefreshTestMode() {
	testModeOnce.Do(func() {})
	detectTestMode()
}
