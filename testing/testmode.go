// Package testing switches binaries into test mode when imported by tests,
// so wiring code can be exercised without migrations or cron side effects.
package testing

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("SHOPLEDGER_TEST_MODE") == "" {
			_ = os.Setenv("SHOPLEDGER_TEST_MODE", "1")
		}
	})
}
