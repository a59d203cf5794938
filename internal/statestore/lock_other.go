//go:build !unix

package statestore

import "os"

// Non-unix platforms fall back to no-op locking. Concurrent invocations
// on these platforms rely on the temp-file rename for whole-file
// atomicity only.
func flockExclusive(_ *os.File) error { return nil }

func flockUnlock(_ *os.File) error { return nil }
