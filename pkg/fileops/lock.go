package fileops

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
)

// LockFile takes an exclusive advisory lock on root/name, creating the file
// and its parent directories as needed. It blocks until the lock is held.
// The returned release function unlocks and closes the file; the file itself
// is left in place.
func LockFile(root, name string) (release func() error, err error) {
	fsys := osfs.New(root)
	path := filepath.Join(root, name)

	f, err := fsys.OpenFile(name, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open lock file %s: %w", path, err)
	}
	if err := f.Lock(); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}

	return func() error {
		return errors.Join(f.Unlock(), f.Close())
	}, nil
}
