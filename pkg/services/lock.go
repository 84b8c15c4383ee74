package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// LockFileName is created in the output folder for the duration of a run.
const LockFileName = ".readly.lock"

// ErrOutputLocked reports another run writing to the same output folder.
var ErrOutputLocked = errors.New("output folder is in use by another run")

// LockOutput creates folder if needed and takes an exclusive lock on it.
// Release the lock with Unlock.
func LockOutput(folder string) (*flock.Flock, error) {
	if err := os.MkdirAll(folder, 0o755); err != nil {
		return nil, fmt.Errorf("create output folder: %w", err)
	}

	lock := flock.New(filepath.Join(folder, LockFileName))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock output folder: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%s: %w", folder, ErrOutputLocked)
	}
	return lock, nil
}
