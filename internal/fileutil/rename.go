package fileutil

import (
	"errors"
	"io/fs"
	"os"
)

// renameIfAbsent is the non-atomic fallback: a concurrent writer can still
// create dst between the Lstat and the Rename.
func renameIfAbsent(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return &os.LinkError{Op: "rename", Old: src, New: dst, Err: fs.ErrExist}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return os.Rename(src, dst)
}
