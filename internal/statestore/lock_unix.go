//go:build unix

package statestore

import (
	"os"

	"golang.org/x/sys/unix"
)

// flockExclusive acquires an exclusive blocking lock on the file.
// This serializes read-modify-write cycles across cooperating
// command invocations sharing the same project state.
func flockExclusive(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_EX)
}

// flockUnlock releases a lock on the file.
func flockUnlock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}
