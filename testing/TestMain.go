package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

// ensureTestMode keeps binaries from starting servers and points every
// backend at in-process defaults.
func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv("INVOX_TEST_MODE", "1")
		if os.Getenv("STORE_DRIVER") == "" {
			_ = os.Setenv("STORE_DRIVER", "memory")
		}
		if os.Getenv("GOTENBERG_URL") == "" {
			_ = os.Setenv("GOTENBERG_URL", "http://127.0.0.1:0")
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
