package statestore

import (
	"fmt"
	"os"
	"syscall"
)

// acquireExclusiveLock blocks until it obtains an exclusive advisory lock on
// path, creating the file if necessary. Unlike a single-instance guard this
// is a BLOCKING acquire (no LOCK_NB) — the store serializes concurrent
// writers rather than rejecting them, since multiple orchestrator processes
// may legitimately share one state directory (spec §5).
func acquireExclusiveLock(path string) (*os.File, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("statestore: open lock file %s: %w", path, err)
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("statestore: acquire lock %s: %w", path, err)
	}
	return f, nil
}

func releaseLock(f *os.File) {
	if f == nil {
		return
	}
	syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
	f.Close()
}
