// Package runlock prevents two sort runs from working on the same source
// directory at once.
package runlock

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"dicomsort/internal/services"
)

// Lock is an advisory per-source lock held for the duration of a run.
type Lock struct {
	path   string
	source string
	lock   *flock.Flock
}

// PathFor returns the lock file used for source inside lockDir.
func PathFor(lockDir, source string) (string, error) {
	abs, err := filepath.Abs(source)
	if err != nil {
		return "", fmt.Errorf("resolve source: %w", err)
	}
	sum := sha256.Sum256([]byte(filepath.Clean(abs)))
	return filepath.Join(lockDir, hex.EncodeToString(sum[:])[:16]+".lock"), nil
}

// Acquire takes the lock for source without blocking. A source already locked
// by another run yields an error marked services.ErrConflict.
func Acquire(lockDir, source string) (*Lock, error) {
	path, err := PathFor(lockDir, source)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return nil, fmt.Errorf("create lock dir: %w", err)
	}

	fl := flock.New(path)
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return nil, services.Wrap(services.ErrConflict, "sort", "lock",
			fmt.Sprintf("another run is already sorting %s", source), nil)
	}
	return &Lock{path: path, source: source, lock: fl}, nil
}

// Path returns the lock file location.
func (l *Lock) Path() string {
	return l.path
}

// Release unlocks and removes the lock file.
func (l *Lock) Release() error {
	if l == nil || l.lock == nil {
		return nil
	}
	if err := l.lock.Unlock(); err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	_ = os.Remove(l.path)
	return nil
}
