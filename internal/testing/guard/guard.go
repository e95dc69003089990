// Package guard switches entrypoints into test mode when blank-imported from
// a test, so main() returns before touching Postgres or Redis.
package guard

import "os"

func init() {
	if os.Getenv("ODYSSEY_TEST_MODE") == "" {
		_ = os.Setenv("ODYSSEY_TEST_MODE", "1")
	}
	if os.Getenv("REDIS_ADDR") == "" {
		_ = os.Setenv("REDIS_ADDR", "127.0.0.1:0")
	}
}
